package sqlite

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/abacus/asset-engine/depreciation"
)

// =============================================================================
// SCHEDULE STORE - Replace-all, never edited in place
// =============================================================================

// ReplaceSchedule outside WithTx still runs as one SQL transaction.
func (s *Store) ReplaceSchedule(ctx context.Context, assetID int64, entries []depreciation.Entry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	written, err := replaceSchedule(ctx, sqlTx, assetID, entries)
	if err != nil {
		return written, err
	}
	return written, sqlTx.Commit()
}

func (s *Store) Schedule(ctx context.Context, assetID int64) ([]depreciation.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return querySchedule(ctx, s.db, "WHERE asset_id = ? ORDER BY year", assetID)
}

func (s *Store) ListScheduleEntries(ctx context.Context) ([]depreciation.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return querySchedule(ctx, s.db, "ORDER BY asset_id, year")
}

func (ts *txStore) ReplaceSchedule(ctx context.Context, assetID int64, entries []depreciation.Entry) (int, error) {
	return replaceSchedule(ctx, ts.tx, assetID, entries)
}

func (ts *txStore) Schedule(ctx context.Context, assetID int64) ([]depreciation.Entry, error) {
	return querySchedule(ctx, ts.tx, "WHERE asset_id = ? ORDER BY year", assetID)
}

func (ts *txStore) ListScheduleEntries(ctx context.Context) ([]depreciation.Entry, error) {
	return querySchedule(ctx, ts.tx, "ORDER BY asset_id, year")
}

// -----------------------------------------------------------------------------

// replaceSchedule returns the number of rows actually inserted, counted from
// RowsAffected rather than assumed from len(entries).
func replaceSchedule(ctx context.Context, q querier, assetID int64, entries []depreciation.Entry) (int, error) {
	if _, err := q.ExecContext(ctx, "DELETE FROM depreciation_schedule WHERE asset_id = ?", assetID); err != nil {
		return 0, fmt.Errorf("failed to clear schedule: %w", err)
	}

	written := 0
	for _, e := range entries {
		res, err := q.ExecContext(ctx, `
			INSERT INTO depreciation_schedule
			(asset_id, year, beginning_book_value, depreciation_expense,
			 accumulated_depreciation, ending_book_value)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			assetID,
			e.Year,
			money(e.BeginningBookValue),
			money(e.DepreciationExpense),
			money(e.AccumulatedDepreciation),
			money(e.EndingBookValue),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return written, fmt.Errorf("duplicate schedule year %d for asset %d: %w", e.Year, assetID, err)
			}
			return written, fmt.Errorf("failed to insert schedule entry: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return written, fmt.Errorf("failed to count schedule rows: %w", err)
		}
		written += int(n)
	}
	return written, nil
}

func querySchedule(ctx context.Context, q querier, where string, args ...any) ([]depreciation.Entry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, asset_id, year, beginning_book_value, depreciation_expense,
		       accumulated_depreciation, ending_book_value
		FROM depreciation_schedule `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	defer rows.Close()

	entries := []depreciation.Entry{}
	for rows.Next() {
		var (
			e                                       depreciation.Entry
			beginning, expense, accumulated, ending string
		)
		if err := rows.Scan(&e.ID, &e.AssetID, &e.Year, &beginning, &expense, &accumulated, &ending); err != nil {
			return nil, fmt.Errorf("failed to scan schedule entry: %w", err)
		}
		for dst, src := range map[*decimal.Decimal]string{
			&e.BeginningBookValue:      beginning,
			&e.DepreciationExpense:     expense,
			&e.AccumulatedDepreciation: accumulated,
			&e.EndingBookValue:         ending,
		} {
			v, err := parseMoney(src)
			if err != nil {
				return nil, err
			}
			*dst = v
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
