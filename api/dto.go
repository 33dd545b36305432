package api

import (
	"github.com/shopspring/decimal"

	"github.com/abacus/asset-engine/depreciation"
)

func init() {
	// Amounts travel as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// =============================================================================
// REQUEST DTOs
// =============================================================================

// AssetRequest creates or updates an asset. Business rules are checked by
// the depreciation validator; tags here only reject malformed references.
type AssetRequest struct {
	Name                string           `json:"name"`
	Description         *string          `json:"description"`
	CategoryID          *int64           `json:"category_id" validate:"omitempty,gt=0"`
	DatePlacedInService string           `json:"date_placed_in_service"`
	Cost                decimal.Decimal  `json:"cost"`
	SalvageValue        decimal.Decimal  `json:"salvage_value"`
	UsefulLifeYears     int              `json:"useful_life_years"`
	PropertyClass       *string          `json:"property_class"`
	Notes               *string          `json:"notes"`
	DisposedDate        *string          `json:"disposed_date"`
	DisposedValue       *decimal.Decimal `json:"disposed_value"`
}

func (r AssetRequest) toAsset(id *int64) depreciation.Asset {
	return depreciation.Asset{
		ID:                  id,
		Name:                r.Name,
		Description:         r.Description,
		CategoryID:          r.CategoryID,
		DatePlacedInService: r.DatePlacedInService,
		Cost:                r.Cost,
		SalvageValue:        r.SalvageValue,
		UsefulLifeYears:     r.UsefulLifeYears,
		PropertyClass:       r.PropertyClass,
		Notes:               r.Notes,
		DisposedDate:        r.DisposedDate,
		DisposedValue:       r.DisposedValue,
	}
}

type CategoryRequest struct {
	Name                 string  `json:"name"`
	DefaultUsefulLife    *int    `json:"default_useful_life"`
	DefaultPropertyClass *string `json:"default_property_class"`
}

func (r CategoryRequest) toCategory(id *int64) depreciation.Category {
	return depreciation.Category{
		ID:                   id,
		Name:                 r.Name,
		DefaultUsefulLife:    r.DefaultUsefulLife,
		DefaultPropertyClass: r.DefaultPropertyClass,
	}
}

type DisposeRequest struct {
	DisposedDate  string           `json:"disposed_date"`
	DisposedValue *decimal.Decimal `json:"disposed_value"`
}

// ReassignRequest moves a category's assets before deleting it.
// A nil TargetID leaves the assets uncategorized.
type ReassignRequest struct {
	TargetID *int64 `json:"target_id" validate:"omitempty,gt=0"`
}

// yearQuery is the ?year= parameter shared by dashboard, valuation and export.
type yearQuery struct {
	Year int `validate:"gte=1900,lte=9999"`
}

// =============================================================================
// RESPONSE DTOs
// =============================================================================

type CreatedResponse struct {
	ID int64 `json:"id"`
}

type ReassignResponse struct {
	Moved int `json:"moved"`
}

type ResyncResponse struct {
	Synced int `json:"synced"`
}

type VerifyResponse struct {
	Consistent    bool                       `json:"consistent"`
	Discrepancies []depreciation.Discrepancy `json:"discrepancies"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
