package generic

// =============================================================================
// PERIOD - Closed date interval [Start, End]
// =============================================================================

// Period is an inclusive range of civil dates.
//
// Examples:
//   - A leave request: Mar 10 - Mar 14
//   - A benefit cycle: hire anniversary + 1 year - 1 day
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod builds a period, rejecting ranges whose end precedes the start.
func NewPeriod(start, end TimePoint) (Period, error) {
	p := Period{Start: start, End: end}
	if !p.Valid() {
		return Period{}, ErrInvalidPeriod
	}
	return p, nil
}

// Valid reports whether both bounds are set and End is not before Start.
func (p Period) Valid() bool {
	return !p.Start.IsZero() && !p.End.IsZero() && !p.End.Before(p.Start)
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Overlaps is the closed-interval test: [a,b] and [c,d] share at least one
// day iff a <= d and b >= c. It is symmetric.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && p.End.AfterOrEqual(other.Start)
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// Len is the number of calendar days in the period, zero when invalid.
func (p Period) Len() int {
	if !p.Valid() {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// ANNIVERSARY CYCLE - Which yearly cycle a date falls into
// =============================================================================

// AnniversaryPeriod returns the yearly cycle anchored on `anchor` that
// contains `date`. The cycle starts on the most recent anniversary on or
// before date. Feb 29 anchors start on Feb 28 in non-leap years.
func AnniversaryPeriod(anchor, date TimePoint) Period {
	md := anchor.MonthDay()

	year := date.Year()
	if date.Before(md.In(year)) {
		year--
	}

	start := md.In(year)
	end := md.In(year + 1).AddDays(-1)
	return Period{Start: start, End: end}
}
