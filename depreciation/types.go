/*
Package depreciation provides the fixed-asset depreciation engine.

PURPOSE:
  Turns an asset's financial attributes into a deterministic, auditable
  year-by-year depreciation schedule, keeps the persisted schedule consistent
  with the asset record, and validates the financial invariants that make the
  schedule meaningful.

KEY CONCEPTS IN THIS FILE (types.go):
  - Asset: one depreciable item (authoritative record)
  - Category: optional grouping carrying creation defaults only
  - Entry: one row of a depreciation schedule (derived, cached artifact)
  - PropertyClass: closed set of tax classification buckets

DESIGN PRINCIPLES:
  1. The asset record is the source of truth; schedules are regenerated, never edited
  2. Precision: monetary amounts use decimal.Decimal, rounded to cents at rest
  3. Pure core: validation, generation and valuation never touch storage or the clock

SEE ALSO:
  - schedule.go: Straight-line schedule generation
  - valuation.go: Point-in-time book value and annual expense
  - validate.go: Field and cross-field rules
  - sync.go: Replace-all schedule synchronization
  - registry.go: Orchestration over a Store
*/
package depreciation

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PROPERTY CLASS - Tax-code useful-life bucket (validated, never computed)
// =============================================================================

type PropertyClass string

const (
	PropertyClass3    PropertyClass = "3"
	PropertyClass5    PropertyClass = "5"
	PropertyClass7    PropertyClass = "7"
	PropertyClass10   PropertyClass = "10"
	PropertyClass15   PropertyClass = "15"
	PropertyClass20   PropertyClass = "20"
	PropertyClass27_5 PropertyClass = "27.5"
	PropertyClass39   PropertyClass = "39"
)

// PropertyClasses lists every accepted property class, shortest life first.
var PropertyClasses = []PropertyClass{
	PropertyClass3, PropertyClass5, PropertyClass7, PropertyClass10,
	PropertyClass15, PropertyClass20, PropertyClass27_5, PropertyClass39,
}

// IsValidPropertyClass reports whether s (already trimmed) is in the closed set.
func IsValidPropertyClass(s string) bool {
	for _, pc := range PropertyClasses {
		if string(pc) == s {
			return true
		}
	}
	return false
}

// =============================================================================
// ASSET
// =============================================================================

// Asset is one depreciable item. DatePlacedInService and DisposedDate are kept
// as YYYY-MM-DD strings so malformed input can reach the validator intact.
type Asset struct {
	ID                  *int64           `json:"id"`
	Name                string           `json:"name"`
	Description         *string          `json:"description"`
	CategoryID          *int64           `json:"category_id"`
	DatePlacedInService string           `json:"date_placed_in_service"`
	Cost                decimal.Decimal  `json:"cost"`
	SalvageValue        decimal.Decimal  `json:"salvage_value"`
	UsefulLifeYears     int              `json:"useful_life_years"`
	PropertyClass       *string          `json:"property_class"`
	Notes               *string          `json:"notes"`
	DisposedDate        *string          `json:"disposed_date"`
	DisposedValue       *decimal.Decimal `json:"disposed_value"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// IsDisposed reports whether the asset has been removed from service.
func (a Asset) IsDisposed() bool {
	return a.DisposedDate != nil
}

// ServiceYear is the calendar year depreciation starts.
func (a Asset) ServiceYear() int {
	return yearOf(a.DatePlacedInService, 0)
}

// LastServiceYear is the final year of the asset's useful life.
func (a Asset) LastServiceYear() int {
	return a.ServiceYear() + a.UsefulLifeYears - 1
}

// DepreciableBase is cost minus salvage value.
func (a Asset) DepreciableBase() decimal.Decimal {
	return a.Cost.Sub(a.SalvageValue)
}

// Normalized returns a copy with monetary amounts rounded to cents and text
// fields trimmed, the form in which assets are validated and persisted.
func (a Asset) Normalized() Asset {
	a.Name = trim(a.Name)
	a.DatePlacedInService = trim(a.DatePlacedInService)
	a.Cost = Round2(a.Cost)
	a.SalvageValue = Round2(a.SalvageValue)
	if a.DisposedValue != nil {
		v := Round2(*a.DisposedValue)
		a.DisposedValue = &v
	}
	if a.DisposedDate != nil {
		d := trim(*a.DisposedDate)
		a.DisposedDate = &d
	}
	if a.PropertyClass != nil {
		pc := trim(*a.PropertyClass)
		if pc == "" {
			a.PropertyClass = nil
		} else {
			a.PropertyClass = &pc
		}
	}
	return a
}

// =============================================================================
// CATEGORY - Grouping with creation defaults, no computational logic
// =============================================================================

type Category struct {
	ID                   *int64  `json:"id"`
	Name                 string  `json:"name"`
	DefaultUsefulLife    *int    `json:"default_useful_life"`
	DefaultPropertyClass *string `json:"default_property_class"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type CategoryWithCount struct {
	Category
	AssetCount int `json:"asset_count"`
}

// =============================================================================
// DEPRECIATION ENTRY - One schedule row
// =============================================================================

// Entry is one year of a depreciation schedule. All amounts are rounded to
// cents independently at the point of storage.
type Entry struct {
	ID                      int64           `json:"id,omitempty"`
	AssetID                 int64           `json:"asset_id"`
	Year                    int             `json:"year"`
	BeginningBookValue      decimal.Decimal `json:"beginning_book_value"`
	DepreciationExpense     decimal.Decimal `json:"depreciation_expense"`
	AccumulatedDepreciation decimal.Decimal `json:"accumulated_depreciation"`
	EndingBookValue         decimal.Decimal `json:"ending_book_value"`
}

// SameValues reports whether two entries carry identical schedule data,
// ignoring the storage surrogate key.
func (e Entry) SameValues(o Entry) bool {
	return e.AssetID == o.AssetID &&
		e.Year == o.Year &&
		e.BeginningBookValue.Equal(o.BeginningBookValue) &&
		e.DepreciationExpense.Equal(o.DepreciationExpense) &&
		e.AccumulatedDepreciation.Equal(o.AccumulatedDepreciation) &&
		e.EndingBookValue.Equal(o.EndingBookValue)
}

type AssetWithSchedule struct {
	Asset        Asset   `json:"asset"`
	Schedule     []Entry `json:"schedule"`
	CategoryName *string `json:"category_name"`
}

// =============================================================================
// AGGREGATES - Dashboard and reports
// =============================================================================

type DashboardStats struct {
	Year                    int             `json:"year"`
	TotalAssets             int             `json:"total_assets"`
	TotalCost               decimal.Decimal `json:"total_cost"`
	TotalBookValue          decimal.Decimal `json:"total_book_value"`
	CurrentYearDepreciation decimal.Decimal `json:"current_year_depreciation"`
}

type AnnualSummary struct {
	Year              int             `json:"year"`
	TotalDepreciation decimal.Decimal `json:"total_depreciation"`
	AssetCount        int             `json:"asset_count"`
}

// ReportAsset is one asset line of an export report.
type ReportAsset struct {
	AssetWithSchedule
	CurrentBookValue decimal.Decimal
}

// Report is the read-only input to the export collaborator.
type Report struct {
	Year          int
	Assets        []ReportAsset
	AnnualSummary []AnnualSummary
}

// =============================================================================
// IMPORT
// =============================================================================

// ImportCandidate is an asset as read from one spreadsheet row, before
// validation. Category is a free-text name, resolved (or created) on import.
type ImportCandidate struct {
	Name                string
	Description         *string
	Category            *string
	DatePlacedInService string
	Cost                decimal.Decimal
	SalvageValue        *decimal.Decimal
	UsefulLifeYears     int
	PropertyClass       *string
	Notes               *string
}

// ImportRow pairs a candidate with its 1-based spreadsheet row number.
// Err is set when the row could not be parsed into a candidate at all.
type ImportRow struct {
	Row       int
	Candidate ImportCandidate
	Err       error
}

type ImportResult struct {
	BatchID  string   `json:"batch_id"`
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
}
