/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the timeoff service via REST API. Handles HTTP request/response
  and JSON serialization, and delegates every rule to timeoff.Service.

ENDPOINTS:
  Calendar (public):
    GET    /api/holidays?country=CO&year=2025
    GET    /api/business-days?country=CO&start=...&end=...&saturday=false

  Employees:
    GET    /api/employees                       List employees (admin)
    POST   /api/employees                       Create employee (admin)
    GET    /api/employees/{id}                  Profile (self or admin)
    PUT    /api/employees/{id}                  Update profile (admin)
    GET    /api/employees/{id}/summary          Balances (self or admin)
    GET    /api/employees/{id}/records          Leave history (self or admin)

  Records:
    POST   /api/employees/{id}/requests                   Submit request
    POST   /api/employees/{id}/monetizations              Monetize legal days
    POST   /api/employees/{id}/records/{index}/decision   Approve or reject
    PUT    /api/employees/{id}/records/{index}            Correct a record
    DELETE /api/employees/{id}/records/{index}            Remove a record
    POST   /api/employees/{id}/records/{index}/evidence   Upload evidence
    GET    /api/requests/pending                          Approval inbox

ERROR HANDLING:
  Errors are returned as JSON with a status derived from the error chain:
  - 400: Validation errors, invalid input
  - 401: Missing or wrong credentials
  - 403: Role does not allow the operation
  - 404: Employee or record not found
  - 409: Overlap, invalid transition, duplicate
  - 422: Insufficient legal balance
  - 503: Storage or upload failure, or retries exhausted
  - 500: Anything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

const defaultMaxUploadBytes = 10 << 20

// maxPreviewDays bounds the public business-day preview.
const maxPreviewDays = 366

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *timeoff.Service
	Logger  *zap.Logger

	// MaxUploadBytes bounds evidence documents.
	MaxUploadBytes int64
}

// NewHandler creates a new handler for the given service.
func NewHandler(svc *timeoff.Service, logger *zap.Logger) *Handler {
	return &Handler{
		Service:        svc,
		Logger:         logger,
		MaxUploadBytes: defaultMaxUploadBytes,
	}
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// Health reports that the process is serving.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// CALENDAR HANDLERS
// =============================================================================

// ListHolidays returns the holidays of a country for one year.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	country := timeoff.Country(r.URL.Query().Get("country"))

	year := generic.Today().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = parsed
	}

	set, err := timeoff.HolidaysFor(country, year)
	if err != nil {
		h.fail(w, r, "Failed to list holidays", err)
		return
	}

	sorted := set.Sorted()
	dtos := make([]HolidayDTO, len(sorted))
	for i, hol := range sorted {
		dtos[i] = toHolidayDTO(hol)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PreviewBusinessDays counts and lists the working days of a range.
func (h *Handler) PreviewBusinessDays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	country := timeoff.Country(q.Get("country"))

	period, err := parsePeriod(q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	if period.Len() > maxPreviewDays {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Range too long (at most %d days)", maxPreviewDays), nil)
		return
	}

	saturday := false
	if raw := q.Get("saturday"); raw != "" {
		saturday, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid saturday flag", err)
			return
		}
	}

	days, err := timeoff.BusinessDays(country, period, saturday)
	if err != nil {
		h.fail(w, r, "Failed to count business days", err)
		return
	}

	out := BusinessDaysDTO{
		Country:       string(country),
		Start:         period.Start.String(),
		End:           period.End.String(),
		WorksSaturday: saturday,
		Count:         len(days),
		Days:          make([]string, len(days)),
	}
	for i, d := range days {
		out.Days[i] = d.String()
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Service.ListEmployees(r.Context(), actor(r))
	if err != nil {
		h.fail(w, r, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Service.GetEmployee(r.Context(), actor(r), employeeID(r))
	if err != nil {
		h.fail(w, r, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// CreateEmployee creates a new employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	hireDate, err := generic.ParseDate(req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hire_date format (use YYYY-MM-DD)", err)
		return
	}

	emp, err := h.Service.CreateEmployee(r.Context(), actor(r), timeoff.NewEmployee{
		ID:            generic.EntityID(req.ID),
		Name:          req.Name,
		HireDate:      hireDate,
		Country:       timeoff.Country(req.Country),
		WorksSaturday: req.WorksSaturday,
		Role:          timeoff.Role(req.Role),
		Secret:        req.Secret,
	})
	if err != nil {
		h.fail(w, r, "Failed to create employee", err)
		return
	}

	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// UpdateEmployee changes the profile fields present in the body.
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	var req UpdateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	upd := timeoff.ProfileUpdate{
		Name:          req.Name,
		WorksSaturday: req.WorksSaturday,
		Secret:        req.Secret,
	}
	if req.HireDate != nil {
		hire, err := generic.ParseDate(*req.HireDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid hire_date format (use YYYY-MM-DD)", err)
			return
		}
		upd.HireDate = &hire
	}
	if req.Country != nil {
		c := timeoff.Country(*req.Country)
		upd.Country = &c
	}
	if req.Role != nil {
		role := timeoff.Role(*req.Role)
		upd.Role = &role
	}

	emp, err := h.Service.UpdateProfile(r.Context(), actor(r), employeeID(r), upd)
	if err != nil {
		h.fail(w, r, "Failed to update employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// GetSummary returns accrued days, legal balance, benefit cycle and pending
// totals as of today.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.ComputeSummary(r.Context(), actor(r), employeeID(r))
	if err != nil {
		h.fail(w, r, "Failed to compute summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// ListRecords returns the employee's leave history with record indices.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Service.GetEmployee(r.Context(), actor(r), employeeID(r))
	if err != nil {
		h.fail(w, r, "Failed to list records", err)
		return
	}

	dtos := make([]RecordDTO, len(emp.Records))
	for i, rec := range emp.Records {
		dtos[i] = toIndexedRecordDTO(i, rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// SubmitRequest creates a Pending Legal or Benefit request.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	period, err := parsePeriod(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	rec, err := h.Service.SubmitRequest(r.Context(), actor(r), employeeID(r), timeoff.SubmitInput{
		Start:       period.Start,
		End:         period.End,
		Reason:      req.Reason,
		Category:    timeoff.Category(req.Category),
		EvidenceRef: req.EvidenceRef,
	})
	if err != nil {
		h.fail(w, r, "Failed to submit request", err)
		return
	}

	writeJSON(w, http.StatusCreated, toRecordDTO(rec))
}

// Monetize records legal days paid out in cash.
func (h *Handler) Monetize(w http.ResponseWriter, r *http.Request) {
	var req MonetizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec, err := h.Service.Monetize(r.Context(), actor(r), employeeID(r), req.Days, req.Reason)
	if err != nil {
		h.fail(w, r, "Failed to monetize days", err)
		return
	}

	writeJSON(w, http.StatusCreated, toRecordDTO(rec))
}

// DecideRequest approves or rejects a pending record.
func (h *Handler) DecideRequest(w http.ResponseWriter, r *http.Request) {
	index, ok := recordIndex(w, r)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	outcome := timeoff.State(req.Outcome)
	if !outcome.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid outcome", fmt.Errorf("unknown state %q", req.Outcome))
		return
	}

	if err := h.Service.DecideRequest(r.Context(), actor(r), employeeID(r), index, outcome); err != nil {
		h.fail(w, r, "Failed to decide request", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CorrectRecord overrides days and/or reason of a record.
func (h *Handler) CorrectRecord(w http.ResponseWriter, r *http.Request) {
	index, ok := recordIndex(w, r)
	if !ok {
		return
	}

	var req CorrectRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Service.CorrectRecord(r.Context(), actor(r), employeeID(r), index, req.DaysTaken, req.Reason); err != nil {
		h.fail(w, r, "Failed to correct record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveRecord deletes a record. Later records move down one index.
func (h *Handler) RemoveRecord(w http.ResponseWriter, r *http.Request) {
	index, ok := recordIndex(w, r)
	if !ok {
		return
	}

	if err := h.Service.RemoveRecord(r.Context(), actor(r), employeeID(r), index); err != nil {
		h.fail(w, r, "Failed to remove record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AttachEvidence stores the multipart "file" field and links it to the record.
func (h *Handler) AttachEvidence(w http.ResponseWriter, r *http.Request) {
	index, ok := recordIndex(w, r)
	if !ok {
		return
	}

	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))

	if err := r.ParseMultipartForm(limit); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart body", err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field", err)
		return
	}
	defer file.Close()

	if header.Size > limit {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large", nil)
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file", err)
		return
	}

	ref, err := h.Service.AttachEvidence(r.Context(), actor(r), employeeID(r), index, data, header.Filename)
	if err != nil {
		h.fail(w, r, "Failed to attach evidence", err)
		return
	}
	writeJSON(w, http.StatusCreated, EvidenceDTO{EvidenceRef: ref})
}

// ListPendingRequests returns the approval inbox.
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.PendingInbox(r.Context(), actor(r))
	if err != nil {
		h.fail(w, r, "Failed to list pending requests", err)
		return
	}

	dtos := make([]PendingItemDTO, len(items))
	for i, it := range items {
		dtos[i] = PendingItemDTO{
			EmployeeID:   string(it.EmployeeID),
			EmployeeName: it.EmployeeName,
			Record:       toIndexedRecordDTO(it.Index, it.Record),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func employeeID(r *http.Request) generic.EntityID {
	return generic.EntityID(chi.URLParam(r, "id"))
}

func recordIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid record index", err)
		return 0, false
	}
	return index, true
}

func parsePeriod(start, end string) (generic.Period, error) {
	s, err := generic.ParseDate(start)
	if err != nil {
		return generic.Period{}, fmt.Errorf("start: %w", err)
	}
	e, err := generic.ParseDate(end)
	if err != nil {
		return generic.Period{}, fmt.Errorf("end: %w", err)
	}
	return generic.Period{Start: s, End: e}, nil
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case timeoff.IsIOError(err), errors.Is(err, generic.ErrConcurrentModification):
		return http.StatusServiceUnavailable
	case errors.Is(err, generic.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, generic.ErrForbidden):
		return http.StatusForbidden
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, generic.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, generic.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case generic.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Server-side failures are logged and
// their details withheld from the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger().Error(message,
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.Int("status", status))
		writeError(w, status, message, nil)
		return
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
