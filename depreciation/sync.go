/*
sync.go - Keeps the persisted schedule equal to the generated one

PURPOSE:
  After any change to an asset's financial attributes, the persisted
  schedule is thrown away and rewritten from GenerateSchedule. There is no
  diffing and no partial update: replace-all is the whole contract.

TRIGGERS:
  - asset create, asset update (including disposal), successful import row
  - never category mutation; categories carry creation defaults only
  - asset delete cascades the schedule away in the store

FAILURE:
  A short write or a store error is a ConsistencyError. The caller must run
  SyncSchedule inside the same WithTx as the asset write so that the error
  rolls both back.

SEE ALSO:
  - schedule.go: What gets written
  - store.go: ReplaceSchedule contract
*/
package depreciation

import (
	"context"
)

// ScheduleWriter is the slice of Store that SyncSchedule needs.
type ScheduleWriter interface {
	ReplaceSchedule(ctx context.Context, assetID int64, entries []Entry) (int, error)
}

// SyncSchedule regenerates a's schedule and replaces the persisted rows.
// It returns the entries written.
func SyncSchedule(ctx context.Context, w ScheduleWriter, a Asset) ([]Entry, error) {
	if a.ID == nil {
		return nil, ErrMissingID
	}

	entries := GenerateSchedule(a)

	written, err := w.ReplaceSchedule(ctx, *a.ID, entries)
	if err != nil {
		return nil, &ConsistencyError{AssetID: *a.ID, Expected: len(entries), Written: written, Err: err}
	}
	if written != len(entries) {
		return nil, &ConsistencyError{AssetID: *a.ID, Expected: len(entries), Written: written}
	}

	return entries, nil
}
