package timeoff

import (
	"errors"
	"fmt"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrInvalidRange is returned when a requested end date precedes its start.
	ErrInvalidRange = fmt.Errorf("range error: %w", generic.ErrInvalidPeriod)

	// ErrZeroDays is returned when a range contains no business days, or a
	// monetization asks for zero or fewer days.
	ErrZeroDays = fmt.Errorf("%w: range has no business days", generic.ErrValidation)

	// ErrConflict is returned when a request overlaps an in-flight or approved one.
	ErrConflict = fmt.Errorf("%w: overlapping leave request", generic.ErrConflict)

	// ErrTenure is returned when legal leave is requested before one year of service.
	ErrTenure = fmt.Errorf("%w: at least 365 days of tenure required", generic.ErrValidation)

	// ErrInsufficientBenefit is returned when the benefit cycle cannot cover a request.
	ErrInsufficientBenefit = fmt.Errorf("%w: insufficient benefit days", generic.ErrValidation)

	// ErrInvalidTransition is returned for any decision on a non-pending record.
	ErrInvalidTransition = fmt.Errorf("%w: invalid state transition", generic.ErrConflict)

	// ErrEmployeeNotFound and ErrRecordNotFound are the NotFound kinds.
	ErrEmployeeNotFound = fmt.Errorf("employee: %w", generic.ErrEntityNotFound)
	ErrRecordNotFound   = fmt.Errorf("record: %w", generic.ErrEntityNotFound)

	ErrEmployeeExists   = fmt.Errorf("%w: employee already exists", generic.ErrConflict)
	ErrUnknownCountry   = fmt.Errorf("%w: unknown country", generic.ErrValidation)
	ErrInvalidCategory  = fmt.Errorf("%w: invalid leave category", generic.ErrValidation)
	ErrEvidenceAttached = fmt.Errorf("%w: evidence already attached", generic.ErrConflict)
	ErrNegativeDays     = fmt.Errorf("%w: days must not be negative", generic.ErrValidation)
	ErrInvalidEmployee  = fmt.Errorf("%w: invalid employee", generic.ErrValidation)

	ErrForbidden       = generic.ErrForbidden
	ErrUnauthenticated = generic.ErrUnauthenticated
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ConflictError names the record the candidate range collides with.
type ConflictError struct {
	Candidate generic.Period
	Index     int
	Existing  generic.Period
	State     State
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("requested %s overlaps %s record #%d %s",
		e.Candidate, e.State, e.Index, e.Existing)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InsufficientBenefitError reports the current cycle's availability.
type InsufficientBenefitError struct {
	Available  int
	Requested  int
	CycleStart generic.TimePoint
	Reason     string
}

func (e *InsufficientBenefitError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("insufficient benefit days: %s (requested %d)", e.Reason, e.Requested)
	}
	return fmt.Sprintf("insufficient benefit days: available %d in cycle from %s, requested %d",
		e.Available, e.CycleStart, e.Requested)
}

func (e *InsufficientBenefitError) Unwrap() error { return ErrInsufficientBenefit }

// TransitionError records the attempted decision on a record.
type TransitionError struct {
	Index int
	From  State
	To    State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("record #%d: cannot move from %s to %s", e.Index, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// NotFoundError identifies a missing employee or record.
type NotFoundError struct {
	Kind  string // "employee" or "record"
	ID    string
	Index int
}

func (e *NotFoundError) Error() string {
	if e.Kind == "record" {
		return fmt.Sprintf("record #%d of employee %s not found", e.Index, e.ID)
	}
	return fmt.Sprintf("employee %s not found", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	if e.Kind == "record" {
		return ErrRecordNotFound
	}
	return ErrEmployeeNotFound
}

// IOError wraps a failure of a persistence or upload collaborator.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *IOError) Unwrap() error { return e.Err }

// IsIOError reports whether err came from a collaborator.
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}
