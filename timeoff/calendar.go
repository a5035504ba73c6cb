/*
calendar.go - Country public holiday calendars

PURPOSE:
  Computes the set of public holidays for a country and year. Each country
  is a RuleCalendar built from three kinds of rules, so adding a country
  never touches the shifting or aggregation logic:

    Fixed:    observed exactly on month/day (Jan 1, May 1, Dec 25, ...)
    Emiliani: month/day moved to the following Monday unless it already
              falls on a Monday (Colombian Ley Emiliani)
    Easter:   a signed offset in days from Easter Sunday, optionally
              moved to the following Monday as well

EASTER:
  Easter Sunday uses the anonymous Gregorian algorithm (Meeus/Jones/Butcher).
  Valid for every Gregorian year (1583+). 2024 -> Mar 31, 2023 -> Apr 9.

REGISTRY:
  Built-in countries are registered on init (see policies.go). More can
  be added at startup with RegisterJurisdiction, e.g. from a YAML file via
  factory.LoadCalendars.

EXAMPLE:
  holidays, err := timeoff.HolidaysFor(timeoff.CountryColombia, 2025)
  if holidays.Contains(generic.NewTimePoint(2025, time.January, 6)) {
      // true: Epiphany 2025 falls on a Monday and stays there
  }

SEE ALSO:
  - policies.go: Colombia, Peru and Ecuador rule sets
  - businessdays.go: Uses these calendars to count working days
*/
package timeoff

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// COUNTRY
// =============================================================================

// Country is an ISO 3166-1 alpha-2 code with a registered Jurisdiction.
type Country string

const (
	CountryColombia Country = "CO"
	CountryPeru     Country = "PE"
	CountryEcuador  Country = "EC"
)

// =============================================================================
// JURISDICTION - Polymorphic holiday source
// =============================================================================

// Jurisdiction supplies the public holidays of one country.
type Jurisdiction interface {
	Country() Country
	Name() string
	Holidays(year int) HolidaySet
}

// HolidaySet is the set of holidays of one year keyed by civil date.
type HolidaySet map[string]generic.Holiday

func (s HolidaySet) Contains(day generic.TimePoint) bool {
	_, ok := s[day.String()]
	return ok
}

// Sorted returns the holidays ordered by date.
func (s HolidaySet) Sorted() []generic.Holiday {
	out := make([]generic.Holiday, 0, len(s))
	for _, h := range s {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (s HolidaySet) add(h generic.Holiday) {
	key := h.Date.String()
	if existing, ok := s[key]; ok {
		h.Name = existing.Name + " / " + h.Name
	}
	s[key] = h
}

// =============================================================================
// RULE CALENDAR
// =============================================================================

// DateRule is a month/day holiday.
type DateRule struct {
	Month time.Month
	Day   int
	Name  string
}

// existsIn reports whether the date occurs in the year. Feb 29 does not in
// common years.
func (r DateRule) existsIn(year int) bool {
	return r.Day <= generic.EndOfMonth(year, r.Month).Day()
}

// EasterRule is a holiday at a fixed offset from Easter Sunday.
type EasterRule struct {
	Offset int
	Name   string
	// MoveToMonday applies the Emiliani shift to the computed date.
	MoveToMonday bool
}

// RuleCalendar is a data-driven Jurisdiction.
type RuleCalendar struct {
	Code     Country
	Title    string
	Fixed    []DateRule
	Emiliani []DateRule
	Easter   []EasterRule
}

var _ Jurisdiction = (*RuleCalendar)(nil)

func (c *RuleCalendar) Country() Country { return c.Code }
func (c *RuleCalendar) Name() string     { return c.Title }

// Holidays computes the holiday set for the year. Colliding rules are merged
// into one entry.
func (c *RuleCalendar) Holidays(year int) HolidaySet {
	set := make(HolidaySet, len(c.Fixed)+len(c.Emiliani)+len(c.Easter))

	for _, r := range c.Fixed {
		if !r.existsIn(year) {
			continue
		}
		set.add(generic.Holiday{Date: generic.NewTimePoint(year, r.Month, r.Day), Name: r.Name})
	}

	for _, r := range c.Emiliani {
		if !r.existsIn(year) {
			continue
		}
		original := generic.NewTimePoint(year, r.Month, r.Day)
		set.add(shifted(original, r.Name))
	}

	easter := EasterSunday(year)
	for _, r := range c.Easter {
		day := easter.AddDays(r.Offset)
		if r.MoveToMonday {
			set.add(shifted(day, r.Name))
			continue
		}
		set.add(generic.Holiday{Date: day, Name: r.Name})
	}

	return set
}

func shifted(original generic.TimePoint, name string) generic.Holiday {
	moved := NextMonday(original)
	h := generic.Holiday{Date: moved, Name: name}
	if !moved.Equal(original) {
		md := original.MonthDay()
		h.Observed = &md
	}
	return h
}

// =============================================================================
// DATE RULES
// =============================================================================

// EasterSunday returns Easter Sunday of the Gregorian year.
func EasterSunday(year int) generic.TimePoint {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return generic.NewTimePoint(year, time.Month(month), day)
}

// NextMonday returns day itself when it is a Monday, otherwise the first
// Monday after it.
func NextMonday(day generic.TimePoint) generic.TimePoint {
	ahead := (int(time.Monday) - int(day.Weekday()) + 7) % 7
	return day.AddDays(ahead)
}

// =============================================================================
// YEAR CACHE - generic.HolidayCalendar over a Jurisdiction
// =============================================================================

type yearCache struct {
	j     Jurisdiction
	years map[int]HolidaySet
}

func (y *yearCache) set(year int) HolidaySet {
	s, ok := y.years[year]
	if !ok {
		s = y.j.Holidays(year)
		y.years[year] = s
	}
	return s
}

func (y *yearCache) IsHoliday(date generic.TimePoint) bool {
	return y.set(date.Year()).Contains(date)
}

func (y *yearCache) GetHolidays(year int) []generic.Holiday {
	return y.set(year).Sorted()
}

// =============================================================================
// REGISTRY
// =============================================================================

var (
	jurisdictions  = make(map[Country]Jurisdiction)
	jurisdictionMu sync.RWMutex
)

// RegisterJurisdiction adds or replaces the jurisdiction for its country.
func RegisterJurisdiction(j Jurisdiction) {
	jurisdictionMu.Lock()
	defer jurisdictionMu.Unlock()
	jurisdictions[j.Country()] = j
}

// LookupJurisdiction finds the registered jurisdiction for a country.
func LookupJurisdiction(country Country) (Jurisdiction, error) {
	jurisdictionMu.RLock()
	defer jurisdictionMu.RUnlock()
	j, ok := jurisdictions[country]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCountry, country)
	}
	return j, nil
}

// Countries lists the registered country codes in sorted order.
func Countries() []Country {
	jurisdictionMu.RLock()
	defer jurisdictionMu.RUnlock()
	out := make([]Country, 0, len(jurisdictions))
	for c := range jurisdictions {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HolidaysFor returns the holiday set of a registered country.
func HolidaysFor(country Country, year int) (HolidaySet, error) {
	j, err := LookupJurisdiction(country)
	if err != nil {
		return nil, err
	}
	return j.Holidays(year), nil
}

// CalendarFor returns a per-year memoising generic.HolidayCalendar. It is not
// safe for concurrent use; take one per computation.
func CalendarFor(country Country) (generic.HolidayCalendar, error) {
	j, err := LookupJurisdiction(country)
	if err != nil {
		return nil, err
	}
	return &yearCache{j: j, years: make(map[int]HolidaySet)}, nil
}
