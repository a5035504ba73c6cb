// Package timeoff implements leave accrual, balances and the request workflow.
// It builds on the generic package with country holiday rules, the monthly
// legal accrual, the yearly benefit allotment and the approval state machine.
package timeoff

import (
	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// CATEGORY - Which pool a record draws from
// =============================================================================

type Category string

const (
	// CategoryLegal is statutory vacation taken as time off.
	CategoryLegal Category = "legal"
	// CategoryBenefit is the company allotment of 5 days per anniversary cycle.
	CategoryBenefit Category = "benefit"
	// CategoryMonetized is legal vacation paid out in cash instead of taken.
	CategoryMonetized Category = "monetized"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryLegal, CategoryBenefit, CategoryMonetized:
		return true
	}
	return false
}

// =============================================================================
// STATE - Approval lifecycle
// =============================================================================

type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateRejected State = "rejected"
)

func (s State) Valid() bool {
	switch s {
	case StatePending, StateApproved, StateRejected:
		return true
	}
	return false
}

// Terminal reports whether no further decision can be taken.
func (s State) Terminal() bool { return s == StateApproved || s == StateRejected }

// =============================================================================
// ROLE - Who may do what
// =============================================================================

type Role string

const (
	RoleCollaborator Role = "collaborator"
	RoleAdmin        Role = "admin"
	RoleSuperAdmin   Role = "super_admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCollaborator, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin is true for administrators and super administrators.
func (r Role) IsAdmin() bool { return r == RoleAdmin || r == RoleSuperAdmin }

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   generic.EntityID
	Role Role
}

// System is the actor used for bootstrap tasks.
var System = Actor{ID: "system", Role: RoleSuperAdmin}

// =============================================================================
// LEAVE RECORD
// =============================================================================

// LeaveRecord is one entry of an employee's leave history.
//
// DaysTaken is frozen at creation for Legal and Benefit records even if holiday
// rules change later. Range is nil for Monetized records and for legacy rows
// whose stored range could not be parsed.
type LeaveRecord struct {
	DaysTaken   int
	Category    Category
	CreatedOn   generic.TimePoint
	Range       *generic.Period
	Reason      string
	State       State
	EvidenceRef string
}

// Counts reports whether the record is approved and in one of the categories.
func (r LeaveRecord) Counts(categories ...Category) bool {
	if r.State != StateApproved {
		return false
	}
	for _, c := range categories {
		if r.Category == c {
			return true
		}
	}
	return false
}

// Days returns DaysTaken as a decimal amount.
func (r LeaveRecord) Days() generic.Amount { return generic.Days(r.DaysTaken) }

// =============================================================================
// EMPLOYEE
// =============================================================================

// Employee owns the leave history. Records are kept in creation order and are
// addressed by their index in that order.
type Employee struct {
	ID             generic.EntityID
	Name           string
	HireDate       generic.TimePoint
	Country        Country
	WorksSaturday  bool
	Role           Role
	CredentialHash string
	Records        []LeaveRecord
}

// TenureDays is the number of calendar days from hire to asOf.
func (e *Employee) TenureDays(asOf generic.TimePoint) int {
	return generic.DaysBetween(e.HireDate, asOf)
}

// Clone returns a deep copy, so callers can mutate without aliasing a snapshot.
func (e Employee) Clone() Employee {
	out := e
	out.Records = make([]LeaveRecord, len(e.Records))
	for i, r := range e.Records {
		if r.Range != nil {
			rng := *r.Range
			r.Range = &rng
		}
		out.Records[i] = r
	}
	return out
}

func (e *Employee) record(index int) (*LeaveRecord, error) {
	if index < 0 || index >= len(e.Records) {
		return nil, &NotFoundError{Kind: "record", ID: string(e.ID), Index: index}
	}
	return &e.Records[index], nil
}
