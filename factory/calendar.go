/*
Package factory provides YAML to Go holiday calendar conversion.

PURPOSE:
  Converts YAML calendar definitions into timeoff.RuleCalendar values and
  registers them, so a deployment can add a country or correct a holiday
  list without a code change. A definition for a built-in country replaces
  the built-in rules.

YAML SCHEMA:
  calendars:
    - country: BO
      name: Bolivia
      fixed:
        - {date: "01-01", name: "Año Nuevo"}
        - {date: "01-22", name: "Estado Plurinacional"}
      emiliani:
        - {date: "08-15", name: "Asunción"}
      easter:
        - {offset: -48, name: "Carnaval"}
        - {offset: 60, name: "Corpus Christi", move_to_monday: true}

  date is MM-DD. offset is in days from Easter Sunday.

USAGE:
  countries, err := factory.LoadCalendars("holidays.yaml")
  // countries are now accepted by CreateEmployee and CountBusinessDays

SEE ALSO:
  - timeoff/calendar.go: RuleCalendar and the registry
  - timeoff/policies.go: Built-in calendars
*/
package factory

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warp/leave-engine/timeoff"
)

// =============================================================================
// YAML SCHEMA TYPES
// =============================================================================

// CalendarsFile is the top-level YAML document.
type CalendarsFile struct {
	Calendars []CalendarYAML `yaml:"calendars"`
}

// CalendarYAML is one country's rule set.
type CalendarYAML struct {
	Country  string       `yaml:"country"`
	Name     string       `yaml:"name"`
	Fixed    []DateYAML   `yaml:"fixed"`
	Emiliani []DateYAML   `yaml:"emiliani"`
	Easter   []EasterYAML `yaml:"easter"`
}

// DateYAML is a month/day holiday written as MM-DD.
type DateYAML struct {
	Date string `yaml:"date"`
	Name string `yaml:"name"`
}

// EasterYAML is a holiday relative to Easter Sunday.
type EasterYAML struct {
	Offset       int    `yaml:"offset"`
	Name         string `yaml:"name"`
	MoveToMonday bool   `yaml:"move_to_monday"`
}

// =============================================================================
// CALENDAR FACTORY
// =============================================================================

// ParseCalendars decodes and validates YAML into rule calendars without
// registering them.
func ParseCalendars(data []byte) ([]*timeoff.RuleCalendar, error) {
	var file CalendarsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse calendar YAML: %w", err)
	}

	seen := make(map[timeoff.Country]bool, len(file.Calendars))
	out := make([]*timeoff.RuleCalendar, 0, len(file.Calendars))
	for i, cy := range file.Calendars {
		cal, err := FromYAML(cy)
		if err != nil {
			return nil, fmt.Errorf("calendars[%d]: %w", i, err)
		}
		if seen[cal.Code] {
			return nil, fmt.Errorf("calendars[%d]: duplicate country %s", i, cal.Code)
		}
		seen[cal.Code] = true
		out = append(out, cal)
	}
	return out, nil
}

// FromYAML converts one definition.
func FromYAML(cy CalendarYAML) (*timeoff.RuleCalendar, error) {
	code := strings.ToUpper(strings.TrimSpace(cy.Country))
	if len(code) != 2 {
		return nil, fmt.Errorf("country must be a two-letter code, got %q", cy.Country)
	}

	cal := &timeoff.RuleCalendar{
		Code:  timeoff.Country(code),
		Title: cy.Name,
	}
	if cal.Title == "" {
		cal.Title = code
	}

	var err error
	if cal.Fixed, err = parseDates(cy.Fixed); err != nil {
		return nil, fmt.Errorf("%s fixed: %w", code, err)
	}
	if cal.Emiliani, err = parseDates(cy.Emiliani); err != nil {
		return nil, fmt.Errorf("%s emiliani: %w", code, err)
	}
	for _, e := range cy.Easter {
		if e.Offset < -100 || e.Offset > 100 {
			return nil, fmt.Errorf("%s easter: offset %d out of range", code, e.Offset)
		}
		cal.Easter = append(cal.Easter, timeoff.EasterRule{
			Offset:       e.Offset,
			Name:         e.Name,
			MoveToMonday: e.MoveToMonday,
		})
	}
	return cal, nil
}

func parseDates(in []DateYAML) ([]timeoff.DateRule, error) {
	out := make([]timeoff.DateRule, 0, len(in))
	for _, d := range in {
		// 2024 is a leap year, so 02-29 is accepted
		t, err := time.Parse("2006-01-02", "2024-"+strings.TrimSpace(d.Date))
		if err != nil {
			return nil, fmt.Errorf("invalid date %q (want MM-DD)", d.Date)
		}
		out = append(out, timeoff.DateRule{Month: t.Month(), Day: t.Day(), Name: d.Name})
	}
	return out, nil
}

// LoadCalendars reads a YAML file and registers every calendar in it.
// Nothing is registered if any definition is invalid.
func LoadCalendars(path string) ([]timeoff.Country, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calendar file: %w", err)
	}

	cals, err := ParseCalendars(data)
	if err != nil {
		return nil, err
	}

	countries := make([]timeoff.Country, 0, len(cals))
	for _, cal := range cals {
		timeoff.RegisterJurisdiction(cal)
		countries = append(countries, cal.Code)
	}
	return countries, nil
}
