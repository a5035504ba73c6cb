/*
errors.go - Centralized error types for the generic layer

PURPOSE:
  All domain-agnostic error types in one place for consistency and
  discoverability. The timeoff package wraps these errors with leave
  specific context and adds its own sentinels.

ERROR CATEGORIES:
  1. Validation errors - Business rule violations (client errors)
  2. Lookup errors - Missing entities or records
  3. Store errors - Concurrency and persistence failures

USAGE:
  Domain packages can wrap generic errors:

    if errors.Is(err, generic.ErrInsufficientBalance) {
        return &DomainSpecificError{...}
    }

  Classification helpers drive HTTP status mapping in the api package:

    switch {
    case generic.IsNotFound(err):    // 404
    case generic.IsClientError(err): // 4xx
    }

SEE ALSO:
  - timeoff/errors.go: Leave specific errors built on these
  - api/handlers.go: Maps errors to HTTP responses
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientBalance is returned when consumption exceeds available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrEntityNotFound is returned when a referenced entity doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrConflict is returned when a write collides with existing state.
	ErrConflict = errors.New("conflict")

	// ErrForbidden is returned when the actor lacks the required role.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthenticated is returned when credentials are missing or wrong.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrValidation is the parent of all business-rule violations.
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EntityID  EntityID
	Available Amount
	Requested Amount
	Shortfall Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %v, requested %v, shortfall %v",
		e.Available.Value, e.Requested.Value, e.Shortfall.Value)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// NewInsufficientBalance fills the shortfall from available and requested.
func NewInsufficientBalance(entity EntityID, available, requested Amount) *InsufficientBalanceError {
	return &InsufficientBalanceError{
		EntityID:  entity,
		Available: available,
		Requested: requested,
		Shortfall: requested.Sub(available),
	}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}
