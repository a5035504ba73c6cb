/*
request.go - Leave request workflow

PURPOSE:
  The state machine and validation chain for leave records. Every method
  validates fully before it mutates, so a failed call leaves the employee
  unchanged.

STATE MACHINE:
  Submit    -> Pending
  Pending   -> Approved | Rejected   (Decide)
  Approved, Rejected: terminal. Deciding again fails.
  Monetize  -> Approved directly (administrative, no pending step)

  Correct and Remove are administrative overrides outside the state
  machine: they touch days, reason or the record's existence only.

SUBMIT VALIDATION ORDER:
  1. end < start                      -> ErrInvalidRange
  2. overlaps a non-rejected record   -> *ConflictError
  3. zero business days               -> ErrZeroDays
  4. Benefit: days > cycle available  -> *InsufficientBenefitError
  5. Legal:   tenure < 365 days       -> ErrTenure
              days > legal balance    -> *generic.InsufficientBalanceError
  6. append Pending record

EXAMPLE:
  rec, err := emp.Submit(timeoff.SubmitInput{
      Start:    generic.NewTimePoint(2025, time.March, 10),
      End:      generic.NewTimePoint(2025, time.March, 14),
      Category: timeoff.CategoryLegal,
      Reason:   "family trip",
  }, asOf)

SEE ALSO:
  - service.go: Load-modify-save around these methods
  - conflict.go, businessdays.go, ledger.go, benefit.go: The checks
*/
package timeoff

import (
	"fmt"

	"github.com/warp/leave-engine/generic"
)

// SubmitInput is a self-service leave request.
type SubmitInput struct {
	Start       generic.TimePoint
	End         generic.TimePoint
	Reason      string
	Category    Category
	EvidenceRef string
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit validates the request against the employee's history and appends a
// Pending record. It returns a copy of the new record.
func (e *Employee) Submit(in SubmitInput, asOf generic.TimePoint) (LeaveRecord, error) {
	if in.Category != CategoryLegal && in.Category != CategoryBenefit {
		return LeaveRecord{}, fmt.Errorf("%w: %q cannot be submitted", ErrInvalidCategory, in.Category)
	}

	if in.End.Before(in.Start) {
		return LeaveRecord{}, ErrInvalidRange
	}

	if conflict, found := FindConflict(e.Records, in.Start, in.End); found {
		return LeaveRecord{}, conflict
	}

	days, err := CountBusinessDays(e.Country, in.Start, in.End, e.WorksSaturday)
	if err != nil {
		return LeaveRecord{}, err
	}
	if days == 0 {
		return LeaveRecord{}, ErrZeroDays
	}

	switch in.Category {
	case CategoryBenefit:
		status := BenefitBalance(e.HireDate, e.Records, asOf)
		if days > status.Available {
			return LeaveRecord{}, &InsufficientBenefitError{
				Available:  status.Available,
				Requested:  days,
				CycleStart: status.CycleStart,
				Reason:     status.Reason,
			}
		}
	case CategoryLegal:
		if err := e.checkLegal(days, asOf); err != nil {
			return LeaveRecord{}, err
		}
	}

	rng := generic.Period{Start: in.Start, End: in.End}
	rec := LeaveRecord{
		DaysTaken:   days,
		Category:    in.Category,
		CreatedOn:   asOf,
		Range:       &rng,
		Reason:      in.Reason,
		State:       StatePending,
		EvidenceRef: in.EvidenceRef,
	}
	e.Records = append(e.Records, rec)
	return rec, nil
}

// checkLegal applies the tenure and legal balance checks in that order.
func (e *Employee) checkLegal(days int, asOf generic.TimePoint) error {
	if e.TenureDays(asOf) < MinTenureDays {
		return ErrTenure
	}
	balance := LegalBalance(AccruedDays(e.HireDate, asOf), e.Records)
	requested := generic.Days(days)
	if requested.GreaterThan(balance) {
		return generic.NewInsufficientBalance(e.ID, balance, requested)
	}
	return nil
}

// =============================================================================
// DECIDE
// =============================================================================

// Decide moves a Pending record to Approved or Rejected. Any other current
// state or outcome is an invalid transition.
func (e *Employee) Decide(index int, outcome State) error {
	rec, err := e.record(index)
	if err != nil {
		return err
	}
	if rec.State != StatePending || !outcome.Terminal() {
		return &TransitionError{Index: index, From: rec.State, To: outcome}
	}
	rec.State = outcome
	return nil
}

// =============================================================================
// MONETIZE
// =============================================================================

// Monetize records legal days paid in cash. The record is created Approved
// and has no date range.
func (e *Employee) Monetize(days int, reason string, asOf generic.TimePoint) (LeaveRecord, error) {
	if e.TenureDays(asOf) < MinTenureDays {
		return LeaveRecord{}, ErrTenure
	}
	if days <= 0 {
		return LeaveRecord{}, ErrZeroDays
	}
	if err := e.checkLegal(days, asOf); err != nil {
		return LeaveRecord{}, err
	}

	rec := LeaveRecord{
		DaysTaken: days,
		Category:  CategoryMonetized,
		CreatedOn: asOf,
		Reason:    reason,
		State:     StateApproved,
	}
	e.Records = append(e.Records, rec)
	return rec, nil
}

// =============================================================================
// ADMINISTRATIVE OVERRIDES
// =============================================================================

// Correct overwrites days and/or reason of a record without revalidating
// balances. Nil arguments leave the field unchanged.
func (e *Employee) Correct(index int, days *int, reason *string) error {
	rec, err := e.record(index)
	if err != nil {
		return err
	}
	if days != nil && *days < 0 {
		return ErrNegativeDays
	}
	if days != nil {
		rec.DaysTaken = *days
	}
	if reason != nil {
		rec.Reason = *reason
	}
	return nil
}

// Remove deletes a record. Later records shift down by one index.
func (e *Employee) Remove(index int) (LeaveRecord, error) {
	rec, err := e.record(index)
	if err != nil {
		return LeaveRecord{}, err
	}
	removed := *rec
	e.Records = append(e.Records[:index], e.Records[index+1:]...)
	return removed, nil
}

// AttachEvidence sets the evidence reference once. A record that already has
// one is left untouched.
func (e *Employee) AttachEvidence(index int, ref string) error {
	rec, err := e.record(index)
	if err != nil {
		return err
	}
	if rec.EvidenceRef != "" {
		return ErrEvidenceAttached
	}
	rec.EvidenceRef = ref
	return nil
}
