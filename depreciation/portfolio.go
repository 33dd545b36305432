package depreciation

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Dashboard folds the valuation functions over every non-disposed asset.
func Dashboard(assets []Asset, year int) DashboardStats {
	stats := DashboardStats{
		Year:                    year,
		TotalCost:               decimal.Zero,
		TotalBookValue:          decimal.Zero,
		CurrentYearDepreciation: decimal.Zero,
	}

	for _, a := range assets {
		if a.IsDisposed() {
			continue
		}
		stats.TotalAssets++
		stats.TotalCost = stats.TotalCost.Add(a.Cost)
		stats.TotalBookValue = stats.TotalBookValue.Add(CurrentBookValue(a, year))
		stats.CurrentYearDepreciation = stats.CurrentYearDepreciation.Add(DepreciationForYear(a, year))
	}

	stats.TotalCost = Round2(stats.TotalCost)
	stats.TotalBookValue = Round2(stats.TotalBookValue)
	stats.CurrentYearDepreciation = Round2(stats.CurrentYearDepreciation)
	return stats
}

// SummarizeByYear totals persisted schedule expense per calendar year.
// Entries of an asset disposed before the entry's year are excluded; an
// asset disposed during a year still contributes that year.
func SummarizeByYear(assets []Asset, entries []Entry) []AnnualSummary {
	byID := make(map[int64]Asset, len(assets))
	for _, a := range assets {
		if a.ID != nil {
			byID[*a.ID] = a
		}
	}

	type bucket struct {
		total  decimal.Decimal
		assets map[int64]struct{}
	}
	years := make(map[int]*bucket)

	for _, e := range entries {
		a, ok := byID[e.AssetID]
		if !ok {
			continue
		}
		if a.DisposedDate != nil && yearOf(*a.DisposedDate, 9999) < e.Year {
			continue
		}

		b := years[e.Year]
		if b == nil {
			b = &bucket{total: decimal.Zero, assets: make(map[int64]struct{})}
			years[e.Year] = b
		}
		b.total = b.total.Add(e.DepreciationExpense)
		b.assets[e.AssetID] = struct{}{}
	}

	summary := make([]AnnualSummary, 0, len(years))
	for year, b := range years {
		summary = append(summary, AnnualSummary{
			Year:              year,
			TotalDepreciation: Round2(b.total),
			AssetCount:        len(b.assets),
		})
	}
	sort.Slice(summary, func(i, j int) bool { return summary[i].Year < summary[j].Year })
	return summary
}
