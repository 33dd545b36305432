/*
valuation.go - Point-in-time queries without a materialized schedule

PURPOSE:
  Fast per-asset figures for dashboards and reports, derived from the same
  depreciable base and annual figure as GenerateSchedule.

KNOWN DIVERGENCE:
  DepreciationForYear always returns the flat annual figure, including the
  final service year, where GenerateSchedule applies the salvage plug. Sums
  of DepreciationForYear can therefore differ from the persisted schedule
  by a few cents in the last year. This is the established behavior and is
  kept as-is.

SEE ALSO:
  - schedule.go: Full schedule with final-year plug
  - portfolio.go: Folds these across all assets
*/
package depreciation

import (
	"github.com/shopspring/decimal"
)

// CurrentBookValue is the asset's book value at the end of asOfYear:
// cost less the flat annual figure for each elapsed year, floored at salvage.
// Before the service year it is cost; from the last service year on, salvage.
func CurrentBookValue(a Asset, asOfYear int) decimal.Decimal {
	if a.UsefulLifeYears < 1 {
		return Round2(a.Cost)
	}

	elapsed := asOfYear - a.ServiceYear() + 1
	elapsed = max(0, min(elapsed, a.UsefulLifeYears))

	annual := a.DepreciableBase().Div(decimal.NewFromInt(int64(a.UsefulLifeYears)))
	accumulated := annual.Mul(decimal.NewFromInt(int64(elapsed)))

	return Round2(decimal.Max(a.Cost.Sub(accumulated), a.SalvageValue))
}

// DepreciationForYear is the flat annual expense for year, or zero when year
// is outside the service span or strictly after the disposal year.
func DepreciationForYear(a Asset, year int) decimal.Decimal {
	if a.UsefulLifeYears < 1 {
		return decimal.Zero
	}

	if year < a.ServiceYear() || year > a.LastServiceYear() {
		return decimal.Zero
	}

	if a.DisposedDate != nil {
		// an unreadable disposal date never cuts expense short
		if disposedYear := yearOf(*a.DisposedDate, 9999); year > disposedYear {
			return decimal.Zero
		}
	}

	annual := a.DepreciableBase().Div(decimal.NewFromInt(int64(a.UsefulLifeYears)))
	return Round2(annual)
}
