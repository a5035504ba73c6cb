/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Public calendar endpoints
- Basic authentication and role checks
- Request workflow through HTTP (submit, decide, summary, inbox)
- Record correction, removal and evidence upload
- Error to status mapping
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/storage"
	"github.com/warp/leave-engine/store/memory"
	"github.com/warp/leave-engine/timeoff"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type credentials struct{ id, secret string }

var (
	root = credentials{"root", "root-secret"}
	ana  = credentials{"ana", "ana-secret"}
)

// newTestRouter serves a memory-backed service on Jan 15 2024. Ana (CO) was
// hired Jan 15 2023 and has 15 accrued legal days.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()

	svc := timeoff.NewService(memory.New(), zaptest.NewLogger(t))
	svc.Clock = func() generic.TimePoint { return generic.NewTimePoint(2024, time.January, 15) }
	svc.BcryptCost = 4

	uploadDir := t.TempDir()
	uploader, err := storage.NewLocal(uploadDir, "/uploads")
	require.NoError(t, err)
	svc.Uploader = uploader

	created, err := svc.EnsureSuperAdmin(ctx, generic.EntityID(root.id), "Root", root.secret)
	require.NoError(t, err)
	require.True(t, created)

	_, err = svc.CreateEmployee(ctx, timeoff.System, timeoff.NewEmployee{
		ID:       generic.EntityID(ana.id),
		Name:     "Ana",
		HireDate: generic.NewTimePoint(2023, time.January, 15),
		Country:  timeoff.CountryColombia,
		Secret:   ana.secret,
	})
	require.NoError(t, err)

	h := api.NewHandler(svc, zaptest.NewLogger(t))
	return api.NewRouter(h, api.RouterOptions{UploadDir: uploadDir, UploadRoute: "/uploads"})
}

func do(t *testing.T, router http.Handler, who *credentials, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if who != nil {
		req.SetBasicAuth(who.id, who.secret)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func submitWeek(t *testing.T, router http.Handler) {
	t.Helper()
	rec := do(t, router, &ana, http.MethodPost, "/api/employees/ana/requests", api.SubmitLeaveRequest{
		Start:    "2024-01-22",
		End:      "2024-01-26",
		Category: "legal",
		Reason:   "trip",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// =============================================================================
// PUBLIC ENDPOINTS
// =============================================================================

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, nil, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestListHolidays_ShiftedHoliday(t *testing.T) {
	// GIVEN: Colombia 2025, where St Joseph (Mar 19) moves to Monday Mar 24
	// WHEN: Listing holidays without credentials
	// THEN: The moved date is listed with its original month/day
	router := newTestRouter(t)

	rec := do(t, router, nil, http.MethodGet, "/api/holidays?country=CO&year=2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	holidays := decode[[]api.HolidayDTO](t, rec)
	require.NotEmpty(t, holidays)
	assert.Equal(t, "2025-01-01", holidays[0].Date)

	var found *api.HolidayDTO
	for i := range holidays {
		assert.NotEqual(t, "2025-03-19", holidays[i].Date)
		if holidays[i].Date == "2025-03-24" {
			found = &holidays[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "03-19", found.ObservedFrom)
}

func TestListHolidays_BadInput(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, nil, http.MethodGet, "/api/holidays?country=XX&year=2025", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, nil, http.MethodGet, "/api/holidays?country=CO&year=soon", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewBusinessDays(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, nil, http.MethodGet,
		"/api/business-days?country=CO&start=2025-03-24&end=2025-03-30&saturday=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode[api.BusinessDaysDTO](t, rec)
	assert.Equal(t, 5, out.Count)
	assert.Equal(t, []string{"2025-03-25", "2025-03-26", "2025-03-27", "2025-03-28", "2025-03-29"}, out.Days)
}

func TestPreviewBusinessDays_InvertedRange(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, nil, http.MethodGet,
		"/api/business-days?country=CO&start=2025-03-28&end=2025-03-24", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, nil, http.MethodGet,
		"/api/business-days?country=CO&start=march&end=2025-03-24", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewBusinessDays_SpanLimit(t *testing.T) {
	// GIVEN: The public preview endpoint
	// WHEN: The range is longer than a leap year
	// THEN: 400 before any day is enumerated; a full leap year still works
	router := newTestRouter(t)

	rec := do(t, router, nil, http.MethodGet,
		"/api/business-days?country=CO&start=0001-01-01&end=9999-12-31", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, nil, http.MethodGet,
		"/api/business-days?country=CO&start=2024-01-01&end=2025-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, nil, http.MethodGet,
		"/api/business-days?country=CO&start=2024-01-01&end=2024-12-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Positive(t, decode[api.BusinessDaysDTO](t, rec).Count)
}

// =============================================================================
// AUTHENTICATION AND AUTHORIZATION
// =============================================================================

func TestAuthentication(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, nil, http.MethodGet, "/api/employees/ana", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	rec = do(t, router, &credentials{"ana", "wrong"}, http.MethodGet, "/api/employees/ana", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, &credentials{"ghost", "x"}, http.MethodGet, "/api/employees/ana", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, &ana, http.MethodGet, "/api/employees/ana", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	emp := decode[api.EmployeeDTO](t, rec)
	assert.Equal(t, "collaborator", emp.Role)
	assert.NotContains(t, rec.Body.String(), "$2a$", "credential hash must not leak")
}

func TestAuthorization_CollaboratorLimits(t *testing.T) {
	// GIVEN: Ana, a collaborator
	// WHEN: She calls admin-only endpoints or reads someone else
	// THEN: 403
	router := newTestRouter(t)

	assert.Equal(t, http.StatusForbidden, do(t, router, &ana, http.MethodGet, "/api/employees", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(t, router, &ana, http.MethodGet, "/api/employees/root/summary", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(t, router, &ana, http.MethodGet, "/api/requests/pending", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(t, router, &ana, http.MethodPost, "/api/employees/ana/monetizations",
		api.MonetizeRequest{Days: 1}).Code)
}

func TestUnknownEmployee_NotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, &root, http.MethodGet, "/api/employees/ghost/summary", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// EMPLOYEE ADMINISTRATION
// =============================================================================

func TestCreateAndUpdateEmployee(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, &root, http.MethodPost, "/api/employees", api.CreateEmployeeRequest{
		ID: "luis", Name: "Luis", HireDate: "2022-05-02", Country: "PE", WorksSaturday: true, Secret: "luis-secret",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[api.EmployeeDTO](t, rec)
	assert.Equal(t, "collaborator", created.Role)
	assert.True(t, created.WorksSaturday)

	// Duplicate ID
	rec = do(t, router, &root, http.MethodPost, "/api/employees", api.CreateEmployeeRequest{
		ID: "luis", Name: "Luis", HireDate: "2022-05-02", Country: "PE",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Bad date and unknown country
	rec = do(t, router, &root, http.MethodPost, "/api/employees", api.CreateEmployeeRequest{
		ID: "eva", Name: "Eva", HireDate: "02/05/2022", Country: "PE",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, router, &root, http.MethodPost, "/api/employees", api.CreateEmployeeRequest{
		ID: "eva", Name: "Eva", HireDate: "2022-05-02", Country: "XX",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The new employee can log in
	rec = do(t, router, &credentials{"luis", "luis-secret"}, http.MethodGet, "/api/employees/luis", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	name := "Luis Alberto"
	rec = do(t, router, &root, http.MethodPut, "/api/employees/luis", api.UpdateEmployeeRequest{Name: &name})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Luis Alberto", decode[api.EmployeeDTO](t, rec).Name)

	rec = do(t, router, &root, http.MethodGet, "/api/employees", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.EmployeeDTO](t, rec), 3)
}

// =============================================================================
// REQUEST WORKFLOW
// =============================================================================

func TestRequestWorkflow(t *testing.T) {
	// GIVEN: Ana with 15 accrued days
	// WHEN: She requests Jan 22-26 and root approves it
	// THEN: The inbox empties and her legal balance is 10
	router := newTestRouter(t)
	submitWeek(t, router)

	rec := do(t, router, &root, http.MethodGet, "/api/requests/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inbox := decode[[]api.PendingItemDTO](t, rec)
	require.Len(t, inbox, 1)
	assert.Equal(t, "ana", inbox[0].EmployeeID)
	require.NotNil(t, inbox[0].Record.Index)
	assert.Equal(t, 0, *inbox[0].Record.Index)
	assert.Equal(t, 5, inbox[0].Record.DaysTaken)

	rec = do(t, router, &ana, http.MethodGet, "/api/employees/ana/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decode[api.SummaryDTO](t, rec).Pending["legal"])

	// Collaborators cannot decide
	rec = do(t, router, &ana, http.MethodPost, "/api/employees/ana/records/0/decision", api.DecisionRequest{Outcome: "approved"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, &root, http.MethodPost, "/api/employees/ana/records/0/decision", api.DecisionRequest{Outcome: "approved"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// A second decision is an invalid transition
	rec = do(t, router, &root, http.MethodPost, "/api/employees/ana/records/0/decision", api.DecisionRequest{Outcome: "rejected"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, &root, http.MethodGet, "/api/requests/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]api.PendingItemDTO](t, rec))

	rec = do(t, router, &ana, http.MethodGet, "/api/employees/ana/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[api.SummaryDTO](t, rec)
	assert.Equal(t, "2024-01-15", summary.AsOf)
	assert.Equal(t, 15.0, summary.AccruedDays)
	assert.Equal(t, 10.0, summary.LegalBalance)
	assert.True(t, summary.Benefit.Eligible)
	assert.Equal(t, 5, summary.Benefit.Available)
	assert.Empty(t, summary.Pending)
}

func TestSubmitRequest_Errors(t *testing.T) {
	router := newTestRouter(t)
	submitWeek(t, router)

	tests := []struct {
		name string
		body api.SubmitLeaveRequest
		want int
	}{
		{"overlap", api.SubmitLeaveRequest{Start: "2024-01-24", End: "2024-01-30", Category: "legal"}, http.StatusConflict},
		{"inverted", api.SubmitLeaveRequest{Start: "2024-02-09", End: "2024-02-05", Category: "legal"}, http.StatusBadRequest},
		{"weekend only", api.SubmitLeaveRequest{Start: "2024-02-10", End: "2024-02-11", Category: "legal"}, http.StatusBadRequest},
		{"monetized category", api.SubmitLeaveRequest{Start: "2024-02-05", End: "2024-02-05", Category: "monetized"}, http.StatusBadRequest},
		{"over balance", api.SubmitLeaveRequest{Start: "2024-02-05", End: "2024-03-01", Category: "legal"}, http.StatusUnprocessableEntity},
		{"bad date", api.SubmitLeaveRequest{Start: "tomorrow", End: "2024-02-05", Category: "legal"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, &ana, http.MethodPost, "/api/employees/ana/requests", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[api.ErrorResponse](t, rec).Error)
		})
	}
}

func TestMonetizeCorrectRemove(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, &root, http.MethodPost, "/api/employees/ana/monetizations", api.MonetizeRequest{Days: 3, Reason: "payout"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	monetized := decode[api.RecordDTO](t, rec)
	assert.Equal(t, "monetized", monetized.Category)
	assert.Equal(t, "approved", monetized.State)
	assert.Empty(t, monetized.Start)

	days := 4
	rec = do(t, router, &root, http.MethodPut, "/api/employees/ana/records/0", api.CorrectRecordRequest{DaysTaken: &days})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, router, &ana, http.MethodGet, "/api/employees/ana/summary", nil)
	assert.Equal(t, 11.0, decode[api.SummaryDTO](t, rec).LegalBalance)

	rec = do(t, router, &root, http.MethodDelete, "/api/employees/ana/records/0", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, &ana, http.MethodGet, "/api/employees/ana/records", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]api.RecordDTO](t, rec))

	rec = do(t, router, &root, http.MethodDelete, "/api/employees/ana/records/0", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, &root, http.MethodDelete, "/api/employees/ana/records/first", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// EVIDENCE
// =============================================================================

func uploadEvidence(t *testing.T, router http.Handler, who credentials, path string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "note.pdf")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth(who.id, who.secret)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAttachEvidence(t *testing.T) {
	// GIVEN: A pending request
	// WHEN: Ana uploads a document for it
	// THEN: The reference is stored once and the file is served back
	router := newTestRouter(t)
	submitWeek(t, router)
	content := []byte("%PDF-1.4 medical note")

	rec := uploadEvidence(t, router, ana, "/api/employees/ana/records/0/evidence", content)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ref := decode[api.EvidenceDTO](t, rec).EvidenceRef
	assert.True(t, strings.HasPrefix(ref, "/uploads/"), ref)
	assert.True(t, strings.HasSuffix(ref, ".pdf"), ref)

	rec = do(t, router, &ana, http.MethodGet, "/api/employees/ana/records", nil)
	records := decode[[]api.RecordDTO](t, rec)
	require.Len(t, records, 1)
	assert.Equal(t, ref, records[0].EvidenceRef)

	rec = do(t, router, &ana, http.MethodGet, ref, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, content, rec.Body.Bytes())

	rec = do(t, router, nil, http.MethodGet, ref, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = uploadEvidence(t, router, ana, "/api/employees/ana/records/0/evidence", content)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = uploadEvidence(t, router, ana, "/api/employees/ana/records/7/evidence", content)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvidence_OnlyOwnerOrAdminCanRead(t *testing.T) {
	// GIVEN: Ana attached a document and Luis is another collaborator
	// WHEN: Each of them and the super admin fetch it
	// THEN: Luis is refused while Ana and root read it
	router := newTestRouter(t)
	submitWeek(t, router)

	luis := credentials{"luis", "luis-secret"}
	rec := do(t, router, &root, http.MethodPost, "/api/employees", api.CreateEmployeeRequest{
		ID: luis.id, Name: "Luis", HireDate: "2022-05-02", Country: "PE", Secret: luis.secret,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	content := []byte("%PDF-1.4 medical note")
	rec = uploadEvidence(t, router, ana, "/api/employees/ana/records/0/evidence", content)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ref := decode[api.EvidenceDTO](t, rec).EvidenceRef

	rec = do(t, router, &luis, http.MethodGet, ref, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "PDF")

	rec = do(t, router, &ana, http.MethodGet, ref, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, &root, http.MethodGet, ref, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, content, rec.Body.Bytes())

	rec = do(t, router, &ana, http.MethodGet, "/uploads/someone-else.pdf", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// =============================================================================
// INFRASTRUCTURE FAILURES
// =============================================================================

type brokenRepo struct{}

func (brokenRepo) LoadAll(context.Context) (timeoff.Snapshot, error) {
	return timeoff.Snapshot{}, errors.New("database is locked")
}

func (brokenRepo) SaveAll(context.Context, timeoff.Snapshot) error {
	return errors.New("database is locked")
}

func TestStorageFailure_ServiceUnavailable(t *testing.T) {
	// GIVEN: A repository that cannot load
	// WHEN: Any authenticated request arrives
	// THEN: 503 without leaking the storage error
	svc := timeoff.NewService(brokenRepo{}, zaptest.NewLogger(t))
	router := api.NewRouter(api.NewHandler(svc, zaptest.NewLogger(t)), api.RouterOptions{})

	rec := do(t, router, &root, http.MethodGet, "/api/employees", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, decode[api.ErrorResponse](t, rec).Details)
	assert.NotContains(t, rec.Body.String(), "locked")

	// Public endpoints do not touch storage
	rec = do(t, router, nil, http.MethodGet, "/api/holidays?country=PE&year=2025", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestActorContext(t *testing.T) {
	ctx := api.WithActor(context.Background(), timeoff.Actor{ID: "ana", Role: timeoff.RoleCollaborator})

	got, ok := api.ActorFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, generic.EntityID("ana"), got.ID)

	_, ok = api.ActorFrom(context.Background())
	assert.False(t, ok)
}
