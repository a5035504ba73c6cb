package timeoff

import (
	"github.com/warp/leave-engine/generic"
)

// CountBusinessDays counts the days in [start, end] that are neither weekly
// rest days nor public holidays of the country. Sundays never count and
// Saturdays count only for six-day schedules. Ranges spanning a year boundary
// use each year's own holidays. An empty count is not an error.
func CountBusinessDays(country Country, start, end generic.TimePoint, worksSaturday bool) (int, error) {
	if end.Before(start) {
		return 0, ErrInvalidRange
	}

	cal, err := CalendarFor(country)
	if err != nil {
		return 0, err
	}

	return countWorkdays(generic.Period{Start: start, End: end}, cal, worksSaturday), nil
}

func countWorkdays(p generic.Period, cal generic.HolidayCalendar, worksSaturday bool) int {
	count := 0
	for day := p.Start; day.BeforeOrEqual(p.End); day = day.AddDays(1) {
		if day.IsWorkdayWithHolidays(cal, worksSaturday) {
			count++
		}
	}
	return count
}

// BusinessDays lists the working days in the period, for previews.
func BusinessDays(country Country, p generic.Period, worksSaturday bool) ([]generic.TimePoint, error) {
	if !p.Valid() {
		return nil, ErrInvalidRange
	}
	cal, err := CalendarFor(country)
	if err != nil {
		return nil, err
	}

	var out []generic.TimePoint
	for _, day := range p.Days() {
		if day.IsWorkdayWithHolidays(cal, worksSaturday) {
			out = append(out, day)
		}
	}
	return out, nil
}
