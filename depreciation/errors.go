/*
errors.go - Centralized error types for the depreciation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match on the sentinels with errors.Is and pull structured
  context out with errors.As.

ERROR CATEGORIES:
  1. Validation errors - One or more rule violations, reported together
  2. Consistency errors - Schedule regeneration did not fully land
  3. Not-found errors - Referenced asset/category does not exist
  4. Referential errors - Category still referenced by assets

USAGE:
  if err := registry.DeleteCategory(ctx, id); err != nil {
      var ref *depreciation.ReferentialError
      if errors.As(err, &ref) {
          fmt.Println("blocked by", ref.Count, "assets")
      }
  }

SEE ALSO:
  - validate.go: Produces ValidationError
  - sync.go: Produces ConsistencyError
  - registry.go: Produces NotFoundError and ReferentialError
*/
package depreciation

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is wrapped by every NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrScheduleInconsistent is returned when a schedule replace did not
	// write every generated entry. The triggering operation has failed.
	ErrScheduleInconsistent = errors.New("depreciation schedule inconsistent")

	// ErrCategoryInUse is returned when deleting a category assets still reference.
	ErrCategoryInUse = errors.New("category in use")

	// ErrMissingID is returned when an update targets a record with no identifier.
	ErrMissingID = errors.New("identifier required")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError holds every rule violation found in one check.
// A single violation renders as its message alone; several are joined.
type ValidationError struct {
	Messages []string
}

func newValidationError(messages []string) error {
	if len(messages) == 0 {
		return nil
	}
	return &ValidationError{Messages: messages}
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 1 {
		return e.Messages[0]
	}
	return "Validation failed: " + strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ConsistencyError reports a schedule regeneration that did not fully land.
type ConsistencyError struct {
	AssetID  int64
	Expected int
	Written  int
	Err      error
}

func (e *ConsistencyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("depreciation schedule for asset %d not regenerated: %v", e.AssetID, e.Err)
	}
	return fmt.Sprintf("depreciation schedule for asset %d incomplete: wrote %d of %d entries",
		e.AssetID, e.Written, e.Expected)
}

func (e *ConsistencyError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrScheduleInconsistent, e.Err}
	}
	return []error{ErrScheduleInconsistent}
}

// NotFoundError reports a missing asset or category.
type NotFoundError struct {
	Kind string // "asset" or "category"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ReferentialError blocks a category delete while assets reference it.
type ReferentialError struct {
	CategoryID int64
	Count      int
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("Cannot delete category: %d asset(s) are using this category. Please reassign them first.", e.Count)
}

func (e *ReferentialError) Unwrap() error {
	return ErrCategoryInUse
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// ValidationMessages returns the individual messages of a ValidationError
// anywhere in err's chain, or nil.
func ValidationMessages(err error) []string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Messages
	}
	return nil
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrMissingID)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error indicates a referential conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrCategoryInUse)
}
