/*
validate.go - Field-level and cross-field rules

PURPOSE:
  Decides whether an asset, a category, a disposal, or an import row may
  affect a schedule. Every rule is evaluated; all violations are reported
  together in one ValidationError.

REFERENCE DATE:
  "Not in the future" is judged against the today argument, never the
  system clock, so results are deterministic. The Registry supplies today
  from its injected clock.

LIMITS:
  Asset name       1..200 chars (trimmed)
  Category name    1..100 chars (trimmed)
  Description      <= 500 chars
  Notes            <= 2000 chars

SEE ALSO:
  - errors.go: ValidationError rendering
  - registry.go: Runs these before any mutation
*/
package depreciation

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	maxAssetNameLen    = 200
	maxCategoryNameLen = 100
	maxDescriptionLen  = 500
	maxNotesLen        = 2000
)

// ValidateAsset checks an asset before create or update.
func ValidateAsset(a Asset, today time.Time) error {
	var errs []string

	name := trim(a.Name)
	if name == "" {
		errs = append(errs, "Asset name is required")
	} else if utf8.RuneCountInString(name) > maxAssetNameLen {
		errs = append(errs, "Asset name must be 200 characters or less")
	}

	switch {
	case trim(a.DatePlacedInService) == "":
		errs = append(errs, "Date placed in service is required")
	case !isDate(a.DatePlacedInService):
		errs = append(errs, "Invalid date format for date placed in service (use YYYY-MM-DD)")
	case isFutureDate(a.DatePlacedInService, today):
		errs = append(errs, "Date placed in service cannot be in the future")
	}

	if !a.Cost.IsPositive() {
		errs = append(errs, "Cost must be greater than $0")
	}

	if a.SalvageValue.IsNegative() {
		errs = append(errs, "Salvage value cannot be negative")
	} else if a.SalvageValue.GreaterThan(a.Cost) {
		errs = append(errs, "Salvage value cannot exceed cost")
	}

	if a.UsefulLifeYears < 1 {
		errs = append(errs, "Useful life must be at least 1 year")
	}

	if pc, ok := setPropertyClass(a.PropertyClass); ok && !IsValidPropertyClass(pc) {
		errs = append(errs, fmt.Sprintf("Invalid property class: %s", pc))
	}

	if a.Description != nil && utf8.RuneCountInString(*a.Description) > maxDescriptionLen {
		errs = append(errs, "Description must be 500 characters or less")
	}
	if a.Notes != nil && utf8.RuneCountInString(*a.Notes) > maxNotesLen {
		errs = append(errs, "Notes must be 2000 characters or less")
	}

	if a.DisposedDate != nil {
		errs = append(errs, disposalDateRules(*a.DisposedDate, a.DatePlacedInService, today,
			"Disposal date cannot be empty once set")...)
	} else if a.DisposedValue != nil {
		errs = append(errs, "Disposal date is required when a disposal value is set")
	}
	if a.DisposedValue != nil && a.DisposedValue.IsNegative() {
		errs = append(errs, "Disposal value cannot be negative")
	}

	return newValidationError(errs)
}

// ValidateCategory checks a category before create or update.
func ValidateCategory(c Category) error {
	var errs []string

	name := trim(c.Name)
	if name == "" {
		errs = append(errs, "Category name is required")
	} else if utf8.RuneCountInString(name) > maxCategoryNameLen {
		errs = append(errs, "Category name must be 100 characters or less")
	}

	if c.DefaultUsefulLife != nil && *c.DefaultUsefulLife < 1 {
		errs = append(errs, "Default useful life must be at least 1 year")
	}

	if pc, ok := setPropertyClass(c.DefaultPropertyClass); ok && !IsValidPropertyClass(pc) {
		errs = append(errs, fmt.Sprintf("Invalid default property class: %s", pc))
	}

	return newValidationError(errs)
}

// ValidateDisposal checks a standalone disposal against the asset's service date.
func ValidateDisposal(disposedDate string, disposedValue *decimal.Decimal, serviceDate string, today time.Time) error {
	errs := disposalDateRules(disposedDate, serviceDate, today, "Disposal date is required")
	if disposedValue != nil && disposedValue.IsNegative() {
		errs = append(errs, "Disposal value cannot be negative")
	}
	return newValidationError(errs)
}

// ValidateImportRow mirrors ValidateAsset for a spreadsheet candidate,
// prefixing each message with its 1-based row number.
func ValidateImportRow(c ImportCandidate, row int, today time.Time) error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("Row %d: ", row)+fmt.Sprintf(format, args...))
	}

	name := trim(c.Name)
	if name == "" {
		add("Asset name is required")
	} else if utf8.RuneCountInString(name) > maxAssetNameLen {
		add("Asset name must be 200 characters or less")
	}

	switch {
	case trim(c.DatePlacedInService) == "":
		add("Date placed in service is required")
	case !isDate(c.DatePlacedInService):
		add("Invalid date format '%s' (use YYYY-MM-DD)", c.DatePlacedInService)
	case isFutureDate(c.DatePlacedInService, today):
		add("Date cannot be in the future")
	}

	if !c.Cost.IsPositive() {
		add("Cost must be greater than $0")
	}

	if c.SalvageValue != nil {
		if c.SalvageValue.IsNegative() {
			add("Salvage value cannot be negative")
		} else if c.SalvageValue.GreaterThan(c.Cost) {
			add("Salvage value ($%s) cannot exceed cost ($%s)",
				c.SalvageValue.StringFixed(2), c.Cost.StringFixed(2))
		}
	}

	if c.UsefulLifeYears < 1 {
		add("Useful life must be at least 1 year")
	}

	if pc, ok := setPropertyClass(c.PropertyClass); ok && !IsValidPropertyClass(pc) {
		add("Invalid property class '%s'", pc)
	}

	if c.Description != nil && utf8.RuneCountInString(*c.Description) > maxDescriptionLen {
		add("Description must be 500 characters or less")
	}
	if c.Notes != nil && utf8.RuneCountInString(*c.Notes) > maxNotesLen {
		add("Notes must be 2000 characters or less")
	}

	return newValidationError(errs)
}

// disposalDateRules applies the date rules shared by asset and disposal
// validation. emptyMsg differs between the two callers.
func disposalDateRules(disposedDate, serviceDate string, today time.Time, emptyMsg string) []string {
	if trim(disposedDate) == "" {
		return []string{emptyMsg}
	}
	disposed, err := ParseDate(disposedDate)
	if err != nil {
		return []string{"Invalid disposal date format (use YYYY-MM-DD)"}
	}

	var errs []string
	if disposed.After(DateOf(today)) {
		errs = append(errs, "Disposal date cannot be in the future")
	}
	if service, err := ParseDate(serviceDate); err == nil && disposed.Before(service) {
		errs = append(errs, "Disposal date must be on or after the date placed in service")
	}
	return errs
}

// setPropertyClass returns the trimmed class and whether it counts as set.
// An empty string means unset.
func setPropertyClass(pc *string) (string, bool) {
	if pc == nil {
		return "", false
	}
	s := trim(*pc)
	return s, s != ""
}

func isDate(s string) bool {
	_, err := ParseDate(s)
	return err == nil
}
