/*
policies.go - Built-in leave policy constants and country calendars

PURPOSE:
  Provides the fixed policy numbers of the leave engine and the ready-to-use
  holiday rule sets for the supported countries.

POLICY CONSTANTS:
  LegalDaysPerMonth: 1.25 legal vacation days per full month of service
                     (15 working days per year)
  BenefitCap:        5 company benefit days per anniversary cycle, no carryover
  MinTenureDays:     365 calendar days of service before legal leave or the
                     benefit can be used

AVAILABLE CALENDARS:
  Colombia: fixed dates, Ley Emiliani Monday shifts and Easter based
            holidays (Holy Thursday/Friday stay put, the rest move)
  Peru:     fixed dates plus Holy Thursday and Good Friday
  Ecuador:  fixed dates plus Carnival Monday/Tuesday and Good Friday

CUSTOMIZATION:
  Calendars are plain RuleCalendar values. Deployments can replace or extend
  them at startup from a YAML file (factory.LoadCalendars).

EXAMPLE:
  co := timeoff.Colombia()
  set := co.Holidays(2025)
  for _, h := range set.Sorted() {
      fmt.Println(h.Date, h.Name)
  }

SEE ALSO:
  - calendar.go: RuleCalendar and the Easter/Monday rules
  - accrual.go: Uses LegalDaysPerMonth
  - benefit.go: Uses BenefitCap and MinTenureDays
*/
package timeoff

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// POLICY CONSTANTS
// =============================================================================

var LegalDaysPerMonth = decimal.RequireFromString("1.25")

const (
	BenefitCap    = 5
	MinTenureDays = 365
)

func init() {
	RegisterJurisdiction(Colombia())
	RegisterJurisdiction(Peru())
	RegisterJurisdiction(Ecuador())
}

// =============================================================================
// COUNTRY CALENDARS
// =============================================================================

// Colombia returns the Colombian calendar (Ley 51 de 1983, "Ley Emiliani").
func Colombia() *RuleCalendar {
	return &RuleCalendar{
		Code:  CountryColombia,
		Title: "Colombia",
		Fixed: []DateRule{
			{Month: time.January, Day: 1, Name: "Año Nuevo"},
			{Month: time.May, Day: 1, Name: "Día del Trabajo"},
			{Month: time.July, Day: 20, Name: "Día de la Independencia"},
			{Month: time.August, Day: 7, Name: "Batalla de Boyacá"},
			{Month: time.December, Day: 8, Name: "Inmaculada Concepción"},
			{Month: time.December, Day: 25, Name: "Navidad"},
		},
		Emiliani: []DateRule{
			{Month: time.January, Day: 6, Name: "Reyes Magos"},
			{Month: time.March, Day: 19, Name: "San José"},
			{Month: time.June, Day: 29, Name: "San Pedro y San Pablo"},
			{Month: time.August, Day: 15, Name: "Asunción de la Virgen"},
			{Month: time.October, Day: 12, Name: "Día de la Raza"},
			{Month: time.November, Day: 1, Name: "Todos los Santos"},
			{Month: time.November, Day: 11, Name: "Independencia de Cartagena"},
		},
		Easter: []EasterRule{
			{Offset: -3, Name: "Jueves Santo"},
			{Offset: -2, Name: "Viernes Santo"},
			{Offset: 39, Name: "Ascensión del Señor", MoveToMonday: true},
			{Offset: 60, Name: "Corpus Christi", MoveToMonday: true},
			{Offset: 68, Name: "Sagrado Corazón", MoveToMonday: true},
		},
	}
}

// Peru returns the Peruvian calendar.
func Peru() *RuleCalendar {
	return &RuleCalendar{
		Code:  CountryPeru,
		Title: "Perú",
		Fixed: []DateRule{
			{Month: time.January, Day: 1, Name: "Año Nuevo"},
			{Month: time.May, Day: 1, Name: "Día del Trabajo"},
			{Month: time.June, Day: 7, Name: "Batalla de Arica"},
			{Month: time.June, Day: 29, Name: "San Pedro y San Pablo"},
			{Month: time.July, Day: 23, Name: "Día de la Fuerza Aérea"},
			{Month: time.July, Day: 28, Name: "Fiestas Patrias"},
			{Month: time.July, Day: 29, Name: "Fiestas Patrias"},
			{Month: time.August, Day: 6, Name: "Batalla de Junín"},
			{Month: time.August, Day: 30, Name: "Santa Rosa de Lima"},
			{Month: time.October, Day: 8, Name: "Combate de Angamos"},
			{Month: time.November, Day: 1, Name: "Todos los Santos"},
			{Month: time.December, Day: 8, Name: "Inmaculada Concepción"},
			{Month: time.December, Day: 9, Name: "Batalla de Ayacucho"},
			{Month: time.December, Day: 25, Name: "Navidad"},
		},
		Easter: []EasterRule{
			{Offset: -3, Name: "Jueves Santo"},
			{Offset: -2, Name: "Viernes Santo"},
		},
	}
}

// Ecuador returns the Ecuadorian calendar without the decree-based bridge days.
func Ecuador() *RuleCalendar {
	return &RuleCalendar{
		Code:  CountryEcuador,
		Title: "Ecuador",
		Fixed: []DateRule{
			{Month: time.January, Day: 1, Name: "Año Nuevo"},
			{Month: time.May, Day: 1, Name: "Día del Trabajo"},
			{Month: time.May, Day: 24, Name: "Batalla de Pichincha"},
			{Month: time.August, Day: 10, Name: "Primer Grito de Independencia"},
			{Month: time.October, Day: 9, Name: "Independencia de Guayaquil"},
			{Month: time.November, Day: 2, Name: "Día de los Difuntos"},
			{Month: time.November, Day: 3, Name: "Independencia de Cuenca"},
			{Month: time.December, Day: 25, Name: "Navidad"},
		},
		Easter: []EasterRule{
			{Offset: -48, Name: "Carnaval"},
			{Offset: -47, Name: "Carnaval"},
			{Offset: -2, Name: "Viernes Santo"},
		},
	}
}
