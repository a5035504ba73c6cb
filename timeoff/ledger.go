/*
ledger.go - Legal vacation balance

PURPOSE:
  Derives the legal vacation balance from accrual and the full record
  history. Balances are never stored; every read recomputes them, so a
  correction or removal of an old record is reflected immediately.

RULE:
  balance = accrued - sum(DaysTaken) over records that are
            Approved AND (Legal OR Monetized)

  Pending and Rejected records never reduce the balance. Monetized days are
  paid in cash but come out of the same statutory pool. They do not touch
  the benefit allotment.

NEGATIVE BALANCES:
  The self-service path always validates first, so a balance only goes
  negative through an administrative correction.

EXAMPLE:
  accrued := timeoff.AccruedDays(emp.HireDate, asOf)
  balance := timeoff.LegalBalance(accrued, emp.Records)
  if requested.GreaterThan(balance) {
      return generic.NewInsufficientBalance(emp.ID, balance, requested)
  }

SEE ALSO:
  - accrual.go: AccruedDays
  - benefit.go: The separate benefit pool
*/
package timeoff

import (
	"github.com/warp/leave-engine/generic"
)

// LegalBalance subtracts approved legal and monetized days from accrued.
func LegalBalance(accrued generic.Amount, history []LeaveRecord) generic.Amount {
	balance := accrued
	for _, r := range history {
		if r.Counts(CategoryLegal, CategoryMonetized) {
			balance = balance.Sub(r.Days())
		}
	}
	return balance
}

// PendingDays sums the days of records still awaiting a decision, per category.
func PendingDays(history []LeaveRecord) map[Category]int {
	out := make(map[Category]int)
	for _, r := range history {
		if r.State == StatePending {
			out[r.Category] += r.DaysTaken
		}
	}
	return out
}
