/*
schedule.go - Straight-line schedule generation

PURPOSE:
  Turns a validated asset into its full year-by-year depreciation schedule.
  Pure and deterministic: same asset in, same entries out.

ALGORITHM:
  base    = cost - salvage
  annual  = base / life            (full precision, never rounded)
  year i  = service year + i
  expense = annual, except the final year which takes book - salvage

  The unrounded running book value carries between years. Each stored field
  (beginning, expense, accumulated, ending) is rounded to cents on its own,
  so rounding never compounds and the final ending value equals salvage
  exactly.

EXAMPLE:
  cost 2000, salvage 200, life 5, placed 2024-01-15

  year  beginning  expense  accumulated  ending
  2024    2000.00   360.00       360.00  1640.00
  ...
  2028     560.00   360.00      1800.00   200.00

INVARIANTS (see CheckSchedule):
  - exactly life entries, contiguous years from the service year
  - entry[0].beginning == cost
  - entry[i].beginning == entry[i-1].ending
  - entry[i].ending == entry[i].beginning - entry[i].expense   (within 1 cent)
  - entry[last].ending == salvage
  - accumulated == cost - ending on every row                  (within 1 cent)
  - sum of expense == cost - salvage                           (within life cents)

SEE ALSO:
  - valuation.go: Point-in-time queries using the same base and annual figure
  - sync.go: Persists what this produces
*/
package depreciation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// GenerateSchedule computes the straight-line schedule for a validated asset.
// Entries carry the asset's ID, or 0 when the asset is not yet persisted.
func GenerateSchedule(a Asset) []Entry {
	if a.UsefulLifeYears < 1 {
		return nil
	}

	var assetID int64
	if a.ID != nil {
		assetID = *a.ID
	}

	life := decimal.NewFromInt(int64(a.UsefulLifeYears))
	annual := a.DepreciableBase().Div(life)
	startYear := a.ServiceYear()

	schedule := make([]Entry, 0, a.UsefulLifeYears)
	accumulated := decimal.Zero
	bookValue := a.Cost

	for i := 0; i < a.UsefulLifeYears; i++ {
		beginning := bookValue

		expense := annual
		if i == a.UsefulLifeYears-1 {
			expense = bookValue.Sub(a.SalvageValue)
		}

		accumulated = accumulated.Add(expense)
		bookValue = bookValue.Sub(expense)

		schedule = append(schedule, Entry{
			AssetID:                 assetID,
			Year:                    startYear + i,
			BeginningBookValue:      Round2(beginning),
			DepreciationExpense:     Round2(expense),
			AccumulatedDepreciation: Round2(accumulated),
			EndingBookValue:         Round2(bookValue),
		})
	}

	return schedule
}

// CheckSchedule verifies entries against the schedule invariants for asset a
// and returns one message per violation. It does not compare with a freshly
// generated schedule; Registry.Verify does both.
func CheckSchedule(a Asset, entries []Entry) []string {
	var problems []string

	if len(entries) != a.UsefulLifeYears {
		problems = append(problems, fmt.Sprintf("expected %d entries, found %d", a.UsefulLifeYears, len(entries)))
	}
	if len(entries) == 0 {
		return problems
	}

	cost := Round2(a.Cost)
	if !entries[0].BeginningBookValue.Equal(cost) {
		problems = append(problems, fmt.Sprintf("year %d: beginning %s does not equal cost %s",
			entries[0].Year, entries[0].BeginningBookValue.StringFixed(2), cost.StringFixed(2)))
	}

	startYear := a.ServiceYear()
	previous, total := decimal.Zero, decimal.Zero
	for i, e := range entries {
		if e.Year != startYear+i {
			problems = append(problems, fmt.Sprintf("entry %d: year %d, expected %d", i, e.Year, startYear+i))
		}
		if i > 0 && !e.BeginningBookValue.Equal(entries[i-1].EndingBookValue) {
			problems = append(problems, fmt.Sprintf("year %d: beginning %s does not chain from previous ending %s",
				e.Year, e.BeginningBookValue.StringFixed(2), entries[i-1].EndingBookValue.StringFixed(2)))
		}
		if !withinCents(e.EndingBookValue, e.BeginningBookValue.Sub(e.DepreciationExpense), 1) {
			problems = append(problems, fmt.Sprintf("year %d: ending %s is not beginning minus expense",
				e.Year, e.EndingBookValue.StringFixed(2)))
		}
		if !withinCents(e.AccumulatedDepreciation, cost.Sub(e.EndingBookValue), 1) {
			problems = append(problems, fmt.Sprintf("year %d: accumulated %s is not cost minus ending",
				e.Year, e.AccumulatedDepreciation.StringFixed(2)))
		}
		if e.AccumulatedDepreciation.LessThan(previous) {
			problems = append(problems, fmt.Sprintf("year %d: accumulated depreciation decreased", e.Year))
		}
		previous = e.AccumulatedDepreciation
		total = total.Add(e.DepreciationExpense)
	}

	if base := Round2(a.DepreciableBase()); !withinCents(total, base, int64(len(entries))) {
		problems = append(problems, fmt.Sprintf("total expense %s does not match depreciable base %s",
			total.StringFixed(2), base.StringFixed(2)))
	}

	last := entries[len(entries)-1]
	if salvage := Round2(a.SalvageValue); !last.EndingBookValue.Equal(salvage) {
		problems = append(problems, fmt.Sprintf("year %d: final ending %s does not equal salvage %s",
			last.Year, last.EndingBookValue.StringFixed(2), salvage.StringFixed(2)))
	}

	return problems
}

// withinCents reports whether a and b differ by at most n cents. Each stored
// field is rounded on its own, so derived identities may drift by a cent.
func withinCents(a, b decimal.Decimal, n int64) bool {
	return a.Sub(b).Abs().LessThanOrEqual(decimal.New(n, -2))
}
