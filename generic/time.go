package generic

import (
	"time"
)

// =============================================================================
// TIME POINT - Civil date abstraction (leave is counted in whole days)
// =============================================================================

type TimePoint struct {
	Time time.Time
}

const DateLayout = "2006-01-02"

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates t to its civil date in t's own location.
func FromTime(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, err
	}
	return FromTime(t), nil
}

func Today() TimePoint {
	return FromTime(time.Now())
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return FromTime(tp.normalize().AddDate(0, 0, n)) }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	return tp.Time.Format(DateLayout)
}

// MonthDay returns the (month, day) pair, comparable across years.
func (tp TimePoint) MonthDay() MonthDay {
	return MonthDay{Month: tp.Month(), Day: tp.Day()}
}

// MonthDay is a calendar date without a year, e.g. Dec 25.
type MonthDay struct {
	Month time.Month
	Day   int
}

// In places the month/day in the given year. Feb 29 falls back to Feb 28
// in non-leap years instead of rolling into March.
func (md MonthDay) In(year int) TimePoint {
	last := EndOfMonth(year, md.Month).Day()
	day := md.Day
	if day > last {
		day = last
	}
	return NewTimePoint(year, md.Month, day)
}

// =============================================================================
// HOLIDAY CALENDAR - Non-working public holidays
// =============================================================================

// Holiday represents a public holiday that does not count as a working day.
type Holiday struct {
	Date TimePoint
	Name string
	// Observed is the original month/day when the holiday was moved to a Monday.
	Observed *MonthDay
}

// HolidayCalendar provides holiday lookup functionality.
type HolidayCalendar interface {
	// IsHoliday checks if a date is a holiday.
	IsHoliday(date TimePoint) bool

	// GetHolidays returns all holidays in a given year, ordered by date.
	GetHolidays(year int) []Holiday
}

// IsRestDay reports whether the date is a weekly rest day. Sunday always is;
// Saturday only when the schedule does not include it.
func (tp TimePoint) IsRestDay(worksSaturday bool) bool {
	switch tp.Weekday() {
	case time.Sunday:
		return true
	case time.Saturday:
		return !worksSaturday
	default:
		return false
	}
}

// IsWorkdayWithHolidays checks if a date is a working day, considering holidays.
func (tp TimePoint) IsWorkdayWithHolidays(calendar HolidayCalendar, worksSaturday bool) bool {
	if tp.IsRestDay(worksSaturday) {
		return false
	}
	if calendar != nil && calendar.IsHoliday(tp) {
		return false
	}
	return true
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

func DaysBetween(from, to TimePoint) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}
func EndOfMonth(year int, month time.Month) TimePoint {
	return FromTime(time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1))
}

// MonthsBetween counts whole months from `from` to `to`. A month only counts
// once its day-of-month has been reached. Negative spans return zero.
func MonthsBetween(from, to TimePoint) int {
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// AddMonthsClamped moves n months forward keeping the day-of-month, clamped to
// the last day of the target month (Jan 31 + 1 month = Feb 28/29).
func AddMonthsClamped(tp TimePoint, n int) TimePoint {
	first := time.Date(tp.Year(), tp.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return MonthDay{Month: first.Month(), Day: tp.Day()}.In(first.Year())
}
