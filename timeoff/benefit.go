package timeoff

import (
	"github.com/warp/leave-engine/generic"
)

// ReasonInsufficientTenure is reported when the benefit is not yet available.
const ReasonInsufficientTenure = "insufficient tenure"

// BenefitStatus is the state of the current benefit cycle.
type BenefitStatus struct {
	Eligible   bool
	Available  int
	Used       int
	CycleStart generic.TimePoint // zero when not eligible
	CycleEnd   generic.TimePoint
	Reason     string
}

// BenefitBalance computes the benefit days left in the anniversary cycle that
// contains asOf. Employees with less than a year of service get nothing.
//
// Only Approved Benefit records created on or after the cycle start count.
// Unused days do not carry over into the next cycle.
func BenefitBalance(hire generic.TimePoint, history []LeaveRecord, asOf generic.TimePoint) BenefitStatus {
	if generic.DaysBetween(hire, asOf) < MinTenureDays {
		return BenefitStatus{Reason: ReasonInsufficientTenure}
	}

	cycle := generic.AnniversaryPeriod(hire, asOf)

	used := 0
	for _, r := range history {
		if r.Counts(CategoryBenefit) && r.CreatedOn.AfterOrEqual(cycle.Start) {
			used += r.DaysTaken
		}
	}

	available := BenefitCap - used
	if available < 0 {
		available = 0
	}

	return BenefitStatus{
		Eligible:   true,
		Available:  available,
		Used:       used,
		CycleStart: cycle.Start,
		CycleEnd:   cycle.End,
	}
}
