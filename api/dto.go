/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

FORMATS:
  Dates are YYYY-MM-DD strings. Day balances are JSON numbers; accrual
  works in quarter days so they are exact as float64.

VALIDATION:
  Validation is done in handlers and the timeoff service, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses. Credentials are never
// included.
type EmployeeDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	HireDate      string `json:"hire_date"`
	Country       string `json:"country"`
	WorksSaturday bool   `json:"works_saturday"`
	Role          string `json:"role"`
	RecordCount   int    `json:"record_count"`
}

// CreateEmployeeRequest is the request body for creating an employee.
type CreateEmployeeRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	HireDate      string `json:"hire_date"` // YYYY-MM-DD
	Country       string `json:"country"`
	WorksSaturday bool   `json:"works_saturday"`
	Role          string `json:"role,omitempty"`
	Secret        string `json:"secret,omitempty"`
}

// UpdateEmployeeRequest changes only the fields that are present.
type UpdateEmployeeRequest struct {
	Name          *string `json:"name,omitempty"`
	HireDate      *string `json:"hire_date,omitempty"`
	Country       *string `json:"country,omitempty"`
	WorksSaturday *bool   `json:"works_saturday,omitempty"`
	Role          *string `json:"role,omitempty"`
	Secret        *string `json:"secret,omitempty"`
}

// RecordDTO is one entry of an employee's leave history.
type RecordDTO struct {
	Index       *int   `json:"index,omitempty"`
	DaysTaken   int    `json:"days_taken"`
	Category    string `json:"category"`
	CreatedOn   string `json:"created_on"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	Reason      string `json:"reason,omitempty"`
	State       string `json:"state"`
	EvidenceRef string `json:"evidence_ref,omitempty"`
}

// SubmitLeaveRequest is the request body for a Legal or Benefit request.
type SubmitLeaveRequest struct {
	Start       string `json:"start"` // YYYY-MM-DD
	End         string `json:"end"`   // YYYY-MM-DD
	Category    string `json:"category"`
	Reason      string `json:"reason,omitempty"`
	EvidenceRef string `json:"evidence_ref,omitempty"`
}

// MonetizeRequest records legal days paid out in cash.
type MonetizeRequest struct {
	Days   int    `json:"days"`
	Reason string `json:"reason,omitempty"`
}

// DecisionRequest approves or rejects a pending record.
type DecisionRequest struct {
	Outcome string `json:"outcome"` // approved or rejected
}

// CorrectRecordRequest overrides the fields that are present.
type CorrectRecordRequest struct {
	DaysTaken *int    `json:"days_taken,omitempty"`
	Reason    *string `json:"reason,omitempty"`
}

// EvidenceDTO is returned after an upload.
type EvidenceDTO struct {
	EvidenceRef string `json:"evidence_ref"`
}

// BenefitDTO is the current benefit cycle.
type BenefitDTO struct {
	Eligible   bool   `json:"eligible"`
	Available  int    `json:"available"`
	Used       int    `json:"used"`
	CycleStart string `json:"cycle_start,omitempty"`
	CycleEnd   string `json:"cycle_end,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// SummaryDTO shows an employee's balances as of a date.
type SummaryDTO struct {
	EmployeeID   string         `json:"employee_id"`
	AsOf         string         `json:"as_of"`
	AccruedDays  float64        `json:"accrued_days"`
	LegalBalance float64        `json:"legal_balance"`
	Benefit      BenefitDTO     `json:"benefit"`
	Pending      map[string]int `json:"pending"`
}

// PendingItemDTO is one entry of the approval inbox.
type PendingItemDTO struct {
	EmployeeID   string    `json:"employee_id"`
	EmployeeName string    `json:"employee_name"`
	Record       RecordDTO `json:"record"`
}

// HolidayDTO represents a public holiday.
type HolidayDTO struct {
	Date string `json:"date"`
	Name string `json:"name"`
	// ObservedFrom is the original MM-DD when the holiday moved to a Monday.
	ObservedFrom string `json:"observed_from,omitempty"`
}

// BusinessDaysDTO is the working-day preview for a range.
type BusinessDaysDTO struct {
	Country       string   `json:"country"`
	Start         string   `json:"start"`
	End           string   `json:"end"`
	WorksSaturday bool     `json:"works_saturday"`
	Count         int      `json:"count"`
	Days          []string `json:"days"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEmployeeDTO(e timeoff.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:            string(e.ID),
		Name:          e.Name,
		HireDate:      e.HireDate.String(),
		Country:       string(e.Country),
		WorksSaturday: e.WorksSaturday,
		Role:          string(e.Role),
		RecordCount:   len(e.Records),
	}
}

func toRecordDTO(r timeoff.LeaveRecord) RecordDTO {
	dto := RecordDTO{
		DaysTaken:   r.DaysTaken,
		Category:    string(r.Category),
		CreatedOn:   r.CreatedOn.String(),
		Reason:      r.Reason,
		State:       string(r.State),
		EvidenceRef: r.EvidenceRef,
	}
	if r.Range != nil {
		dto.Start = r.Range.Start.String()
		dto.End = r.Range.End.String()
	}
	return dto
}

func toIndexedRecordDTO(index int, r timeoff.LeaveRecord) RecordDTO {
	dto := toRecordDTO(r)
	dto.Index = &index
	return dto
}

func toSummaryDTO(s timeoff.Summary) SummaryDTO {
	pending := make(map[string]int, len(s.Pending))
	for cat, days := range s.Pending {
		pending[string(cat)] = days
	}

	benefit := BenefitDTO{
		Eligible:  s.Benefit.Eligible,
		Available: s.Benefit.Available,
		Used:      s.Benefit.Used,
		Reason:    s.Benefit.Reason,
	}
	if s.Benefit.Eligible {
		benefit.CycleStart = s.Benefit.CycleStart.String()
		benefit.CycleEnd = s.Benefit.CycleEnd.String()
	}

	return SummaryDTO{
		EmployeeID:   string(s.EmployeeID),
		AsOf:         s.AsOf.String(),
		AccruedDays:  s.AccruedDays.Float64(),
		LegalBalance: s.LegalBalance.Float64(),
		Benefit:      benefit,
		Pending:      pending,
	}
}

func toHolidayDTO(h generic.Holiday) HolidayDTO {
	dto := HolidayDTO{Date: h.Date.String(), Name: h.Name}
	if h.Observed != nil {
		dto.ObservedFrom = formatMonthDay(*h.Observed)
	}
	return dto
}

func formatMonthDay(md generic.MonthDay) string {
	// Any leap year keeps Feb 29 intact.
	return md.In(2000).Time.Format("01-02")
}
