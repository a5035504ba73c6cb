/*
accrual.go - Legal vacation accrual

PURPOSE:
  Implements generic.AccrualSchedule for statutory vacation: a fixed number
  of days is earned for every full month of service since the hire date.

RULE:
  months = (asOf.year - hire.year) * 12 + (asOf.month - hire.month)
  minus one when asOf.day < hire.day (this month's anniversary day has not
  happened yet). Accrued = max(0, months) * 1.25 days.

  Partial months never count and no month is counted twice. Accrual is a
  continuous rate: there is no yearly reset and no cap.

MONTH ENDS:
  Events falling in a shorter month are dated on its last day (hired Jan 31,
  the February event is dated Feb 28/29). The count always follows the
  month rule above.

EXAMPLE:
  accrued := timeoff.AccruedDays(hire, generic.Today())

  // or, to show when each portion was earned
  events := timeoff.LegalAccrual(hire).GenerateAccruals(hire, asOf)

SEE ALSO:
  - generic/accrual.go: AccrualSchedule interface
  - ledger.go: Subtracts approved legal and monetized days
*/
package timeoff

import (
	"github.com/warp/leave-engine/generic"
)

// MonthlyAccrual earns PerMonth days on each monthly anniversary of HireDate.
type MonthlyAccrual struct {
	HireDate generic.TimePoint
	PerMonth generic.Amount
}

var _ generic.AccrualSchedule = (*MonthlyAccrual)(nil)

// LegalAccrual is the statutory schedule of 1.25 days per month.
func LegalAccrual(hire generic.TimePoint) *MonthlyAccrual {
	return &MonthlyAccrual{
		HireDate: hire,
		PerMonth: generic.Amount{Value: LegalDaysPerMonth, Unit: generic.UnitDays},
	}
}

// GenerateAccruals returns one event per completed month whose anniversary
// falls in [from, to].
func (ma *MonthlyAccrual) GenerateAccruals(from, to generic.TimePoint) []generic.AccrualEvent {
	months := generic.MonthsBetween(ma.HireDate, to)

	var events []generic.AccrualEvent
	for k := 1; k <= months; k++ {
		at := generic.AddMonthsClamped(ma.HireDate, k)
		if at.Before(from) {
			continue
		}
		events = append(events, generic.AccrualEvent{
			At:     at,
			Amount: ma.PerMonth,
			Reason: "monthly accrual",
		})
	}
	return events
}

// AccruedDays is the legal vacation earned from hire up to asOf.
func AccruedDays(hire, asOf generic.TimePoint) generic.Amount {
	return generic.TotalAccrued(LegalAccrual(hire).GenerateAccruals(hire, asOf))
}
