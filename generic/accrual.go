package generic

// =============================================================================
// ACCRUAL SCHEDULE - Interface for how entitlement accumulates
// =============================================================================

// AccrualSchedule generates accrual events for a time range.
// Implementations define the business logic (monthly rate, upfront grant, ...).
type AccrualSchedule interface {
	// GenerateAccruals returns accrual events in [from, to].
	GenerateAccruals(from, to TimePoint) []AccrualEvent
}

// AccrualEvent represents a single accrual occurrence.
type AccrualEvent struct {
	At     TimePoint
	Amount Amount
	Reason string
}

// TotalAccrued sums the amounts of the given events.
func TotalAccrued(events []AccrualEvent) Amount {
	amounts := make([]Amount, len(events))
	for i, e := range events {
		amounts[i] = e.Amount
	}
	return Sum(amounts...)
}
