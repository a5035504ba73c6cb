package timeoff_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/store/memory"
	"github.com/warp/leave-engine/timeoff"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	admin = timeoff.Actor{ID: "boss", Role: timeoff.RoleAdmin}
	super = timeoff.Actor{ID: "root", Role: timeoff.RoleSuperAdmin}
	ana   = timeoff.Actor{ID: "ana", Role: timeoff.RoleCollaborator}
)

// anaEmployee has one full year of service on Jan 15 2024 (15 accrued days).
func anaEmployee() timeoff.Employee {
	return timeoff.Employee{
		ID:       "ana",
		Name:     "Ana",
		HireDate: date(2023, time.January, 15),
		Country:  timeoff.CountryColombia,
		Role:     timeoff.RoleCollaborator,
	}
}

func newTestService(t *testing.T, repo timeoff.Repository) *timeoff.Service {
	svc := timeoff.NewService(repo, zaptest.NewLogger(t))
	svc.Clock = func() generic.TimePoint { return date(2024, time.January, 15) }
	svc.BcryptCost = 4
	return svc
}

// interleavingRepo runs a competing write right before the first save.
type interleavingRepo struct {
	*memory.Store
	competing func(ctx context.Context, inner *memory.Store)
	saves     int
}

func (r *interleavingRepo) SaveAll(ctx context.Context, snap timeoff.Snapshot) error {
	r.saves++
	if r.saves == 1 && r.competing != nil {
		r.competing(ctx, r.Store)
	}
	return r.Store.SaveAll(ctx, snap)
}

type failingRepo struct {
	loadErr error
	saveErr error
	saves   int
}

func (r *failingRepo) LoadAll(context.Context) (timeoff.Snapshot, error) {
	if r.loadErr != nil {
		return timeoff.Snapshot{}, r.loadErr
	}
	return timeoff.Snapshot{Employees: []timeoff.Employee{anaEmployee()}}, nil
}

func (r *failingRepo) SaveAll(context.Context, timeoff.Snapshot) error {
	r.saves++
	return r.saveErr
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]timeoff.Summary
	hits    int
}

func (c *mapCache) GetSummary(_ context.Context, key string) (timeoff.Summary, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return s, ok, nil
}

func (c *mapCache) SetSummary(_ context.Context, key string, s timeoff.Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = s
	return nil
}

// =============================================================================
// WORKFLOW THROUGH THE SERVICE
// =============================================================================

func TestService_SubmitDecideSummary(t *testing.T) {
	ctx := context.Background()
	store := memory.New(anaEmployee())
	svc := newTestService(t, store)

	rec, err := svc.SubmitRequest(ctx, ana, "ana", legal(date(2024, time.January, 22), date(2024, time.January, 26)))
	require.NoError(t, err)
	assert.Equal(t, 5, rec.DaysTaken)

	summary, err := svc.ComputeSummary(ctx, ana, "ana")
	require.NoError(t, err)
	assert.True(t, summary.AccruedDays.Equal(generic.Days(15)))
	assert.True(t, summary.LegalBalance.Equal(generic.Days(15)))
	assert.Equal(t, 5, summary.Pending[timeoff.CategoryLegal])

	require.NoError(t, svc.DecideRequest(ctx, admin, "ana", 0, timeoff.StateApproved))

	summary, err = svc.ComputeSummary(ctx, ana, "ana")
	require.NoError(t, err)
	assert.True(t, summary.LegalBalance.Equal(generic.Days(10)))
	assert.Empty(t, summary.Pending)
	assert.Equal(t, int64(2), store.Version())
}

func TestService_ValidationFailureDoesNotSave(t *testing.T) {
	ctx := context.Background()
	store := memory.New(anaEmployee())
	svc := newTestService(t, store)

	_, err := svc.SubmitRequest(ctx, ana, "ana", legal(date(2024, time.February, 1), date(2024, time.March, 29)))
	assert.ErrorIs(t, err, generic.ErrInsufficientBalance)
	assert.Equal(t, int64(0), store.Version())
}

func TestService_UnknownEmployee(t *testing.T) {
	svc := newTestService(t, memory.New())

	_, err := svc.ComputeSummary(context.Background(), admin, "ghost")
	assert.ErrorIs(t, err, timeoff.ErrEmployeeNotFound)

	err = svc.DecideRequest(context.Background(), admin, "ghost", 0, timeoff.StateApproved)
	assert.ErrorIs(t, err, timeoff.ErrEmployeeNotFound)
}

func TestService_CorrectAndRemove(t *testing.T) {
	ctx := context.Background()
	emp := anaEmployee()
	emp.Records = []timeoff.LeaveRecord{
		{DaysTaken: 4, Category: timeoff.CategoryLegal, State: timeoff.StateApproved},
		{DaysTaken: 1, Category: timeoff.CategoryMonetized, State: timeoff.StateApproved},
	}
	svc := newTestService(t, memory.New(emp))

	days := 20
	require.NoError(t, svc.CorrectRecord(ctx, admin, "ana", 0, &days, nil))

	summary, err := svc.ComputeSummary(ctx, admin, "ana")
	require.NoError(t, err)
	// Corrections can drive the balance negative
	assert.True(t, summary.LegalBalance.Equal(generic.Days(-6)))

	require.NoError(t, svc.RemoveRecord(ctx, admin, "ana", 0))

	got, err := svc.GetEmployee(ctx, admin, "ana")
	require.NoError(t, err)
	require.Len(t, got.Records, 1)
	assert.Equal(t, timeoff.CategoryMonetized, got.Records[0].Category)

	assert.ErrorIs(t, svc.RemoveRecord(ctx, admin, "ana", 5), timeoff.ErrRecordNotFound)
}

func TestService_Monetize(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New(anaEmployee()))

	rec, err := svc.Monetize(ctx, admin, "ana", 5, "year end")
	require.NoError(t, err)
	assert.Nil(t, rec.Range)

	summary, err := svc.ComputeSummary(ctx, ana, "ana")
	require.NoError(t, err)
	assert.True(t, summary.LegalBalance.Equal(generic.Days(10)))
}

func TestService_PendingInbox(t *testing.T) {
	ctx := context.Background()
	other := anaEmployee()
	other.ID, other.Name = "luis", "Luis"
	svc := newTestService(t, memory.New(anaEmployee(), other))

	_, err := svc.SubmitRequest(ctx, ana, "ana", legal(date(2024, time.January, 22), date(2024, time.January, 23)))
	require.NoError(t, err)
	_, err = svc.SubmitRequest(ctx, admin, "luis", legal(date(2024, time.February, 5), date(2024, time.February, 6)))
	require.NoError(t, err)
	require.NoError(t, svc.DecideRequest(ctx, admin, "luis", 0, timeoff.StateRejected))

	items, err := svc.PendingInbox(ctx, admin)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, generic.EntityID("ana"), items[0].EmployeeID)
	assert.Equal(t, "Ana", items[0].EmployeeName)
	assert.Equal(t, 0, items[0].Index)
}

// =============================================================================
// AUTHORIZATION
// =============================================================================

func TestService_CollaboratorLimits(t *testing.T) {
	ctx := context.Background()
	other := anaEmployee()
	other.ID = "luis"
	svc := newTestService(t, memory.New(anaEmployee(), other))

	_, err := svc.SubmitRequest(ctx, ana, "luis", legal(date(2024, time.January, 22), date(2024, time.January, 23)))
	assert.ErrorIs(t, err, timeoff.ErrForbidden)

	_, err = svc.ComputeSummary(ctx, ana, "luis")
	assert.ErrorIs(t, err, timeoff.ErrForbidden)

	assert.ErrorIs(t, svc.DecideRequest(ctx, ana, "ana", 0, timeoff.StateApproved), timeoff.ErrForbidden)

	_, err = svc.Monetize(ctx, ana, "ana", 1, "")
	assert.ErrorIs(t, err, timeoff.ErrForbidden)

	_, err = svc.PendingInbox(ctx, ana)
	assert.ErrorIs(t, err, timeoff.ErrForbidden)
}

func TestService_CreateEmployee(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New())

	in := timeoff.NewEmployee{
		ID:       "ana",
		Name:     "Ana",
		HireDate: date(2023, time.January, 15),
		Country:  timeoff.CountryPeru,
		Secret:   "s3cret",
	}
	emp, err := svc.CreateEmployee(ctx, admin, in)
	require.NoError(t, err)
	assert.Equal(t, timeoff.RoleCollaborator, emp.Role)
	assert.NotEmpty(t, emp.CredentialHash)
	assert.NotEqual(t, "s3cret", emp.CredentialHash)

	_, err = svc.CreateEmployee(ctx, admin, in)
	assert.ErrorIs(t, err, timeoff.ErrEmployeeExists)

	// Only a super administrator can create administrators
	boss := in
	boss.ID, boss.Role = "boss2", timeoff.RoleAdmin
	_, err = svc.CreateEmployee(ctx, admin, boss)
	assert.ErrorIs(t, err, timeoff.ErrForbidden)
	_, err = svc.CreateEmployee(ctx, super, boss)
	require.NoError(t, err)

	bad := in
	bad.ID, bad.Country = "x", "XX"
	_, err = svc.CreateEmployee(ctx, admin, bad)
	assert.ErrorIs(t, err, timeoff.ErrUnknownCountry)

	_, err = svc.CreateEmployee(ctx, admin, timeoff.NewEmployee{ID: "y", Country: timeoff.CountryPeru})
	assert.ErrorIs(t, err, timeoff.ErrInvalidEmployee)
}

func TestService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New(anaEmployee()))

	name := "Ana María"
	saturday := true
	updated, err := svc.UpdateProfile(ctx, admin, "ana", timeoff.ProfileUpdate{Name: &name, WorksSaturday: &saturday})
	require.NoError(t, err)
	assert.Equal(t, "Ana María", updated.Name)
	assert.True(t, updated.WorksSaturday)

	role := timeoff.RoleAdmin
	_, err = svc.UpdateProfile(ctx, admin, "ana", timeoff.ProfileUpdate{Role: &role})
	assert.ErrorIs(t, err, timeoff.ErrForbidden)

	updated, err = svc.UpdateProfile(ctx, super, "ana", timeoff.ProfileUpdate{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, timeoff.RoleAdmin, updated.Role)
}

func TestService_UpdateProfile_AdministratorsNeedSuperAdmin(t *testing.T) {
	// GIVEN: A super admin and a second admin
	// WHEN: A plain admin edits either of them
	// THEN: Forbidden and the stored credentials stay as they were
	ctx := context.Background()
	svc := newTestService(t, memory.New(anaEmployee()))
	_, err := svc.EnsureSuperAdmin(ctx, "root", "Root", "root-secret")
	require.NoError(t, err)
	_, err = svc.CreateEmployee(ctx, super, timeoff.NewEmployee{
		ID: "boss", Name: "Boss", HireDate: date(2020, time.March, 1),
		Country: timeoff.CountryColombia, Role: timeoff.RoleAdmin, Secret: "boss-secret",
	})
	require.NoError(t, err)
	_, err = svc.CreateEmployee(ctx, super, timeoff.NewEmployee{
		ID: "carla", Name: "Carla", HireDate: date(2021, time.June, 1),
		Country: timeoff.CountryColombia, Role: timeoff.RoleAdmin, Secret: "carla-secret",
	})
	require.NoError(t, err)

	hijacked := "hijacked"
	_, err = svc.UpdateProfile(ctx, admin, "root", timeoff.ProfileUpdate{Secret: &hijacked})
	assert.ErrorIs(t, err, timeoff.ErrForbidden)
	_, err = svc.Authenticate(ctx, "root", hijacked)
	assert.ErrorIs(t, err, timeoff.ErrUnauthenticated)

	name := "Someone Else"
	_, err = svc.UpdateProfile(ctx, admin, "carla", timeoff.ProfileUpdate{Name: &name})
	assert.ErrorIs(t, err, timeoff.ErrForbidden)
	hired := date(2024, time.January, 1)
	_, err = svc.UpdateProfile(ctx, admin, "carla", timeoff.ProfileUpdate{HireDate: &hired})
	assert.ErrorIs(t, err, timeoff.ErrForbidden)

	// Admins still edit collaborators and themselves
	secret := "new-ana-secret"
	_, err = svc.UpdateProfile(ctx, admin, "ana", timeoff.ProfileUpdate{Secret: &secret})
	require.NoError(t, err)
	own := "boss-rotated"
	_, err = svc.UpdateProfile(ctx, admin, "boss", timeoff.ProfileUpdate{Secret: &own})
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "boss", own)
	require.NoError(t, err)

	// The super admin may edit other administrators
	_, err = svc.UpdateProfile(ctx, super, "carla", timeoff.ProfileUpdate{Name: &name})
	require.NoError(t, err)
}

func TestService_AuthenticateAndBootstrap(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New())

	created, err := svc.EnsureSuperAdmin(ctx, "admin", "Super Admin", "changeme")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureSuperAdmin(ctx, "admin", "Super Admin", "other")
	require.NoError(t, err)
	assert.False(t, created)

	actor, err := svc.Authenticate(ctx, "admin", "changeme")
	require.NoError(t, err)
	assert.Equal(t, timeoff.RoleSuperAdmin, actor.Role)

	_, err = svc.Authenticate(ctx, "admin", "other")
	assert.ErrorIs(t, err, timeoff.ErrUnauthenticated)

	_, err = svc.Authenticate(ctx, "nobody", "changeme")
	assert.ErrorIs(t, err, timeoff.ErrUnauthenticated)
}

// =============================================================================
// EVIDENCE
// =============================================================================

func TestService_AttachEvidence(t *testing.T) {
	ctx := context.Background()
	emp := anaEmployee()
	emp.Records = []timeoff.LeaveRecord{{DaysTaken: 1, Category: timeoff.CategoryLegal, State: timeoff.StatePending}}
	svc := newTestService(t, memory.New(emp))

	uploads := 0
	svc.Uploader = generic.UploaderFunc(func(_ context.Context, data []byte, name string) (string, error) {
		uploads++
		return "https://files.example/" + name, nil
	})

	ref, err := svc.AttachEvidence(ctx, ana, "ana", 0, []byte("pdf"), "note.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://files.example/note.pdf", ref)

	// A second attachment is refused before anything is uploaded
	_, err = svc.AttachEvidence(ctx, ana, "ana", 0, []byte("pdf"), "again.pdf")
	assert.ErrorIs(t, err, timeoff.ErrEvidenceAttached)
	assert.Equal(t, 1, uploads)

	got, err := svc.GetEmployee(ctx, ana, "ana")
	require.NoError(t, err)
	assert.Equal(t, ref, got.Records[0].EvidenceRef)
}

func TestService_AttachEvidence_UploadFailure(t *testing.T) {
	ctx := context.Background()
	emp := anaEmployee()
	emp.Records = []timeoff.LeaveRecord{{DaysTaken: 1}}
	store := memory.New(emp)
	svc := newTestService(t, store)

	diskFull := errors.New("disk full")
	svc.Uploader = generic.UploaderFunc(func(context.Context, []byte, string) (string, error) {
		return "", diskFull
	})

	_, err := svc.AttachEvidence(ctx, ana, "ana", 0, []byte("x"), "x.pdf")
	assert.True(t, timeoff.IsIOError(err))
	assert.ErrorIs(t, err, diskFull)
	assert.Equal(t, int64(0), store.Version())
}

func TestService_AttachEvidence_LosingRaceLogsUploadedRef(t *testing.T) {
	// GIVEN: A record without evidence and a second writer
	// WHEN: The second writer attaches evidence while our upload is running
	// THEN: Our attach fails and the stored but unattached ref is logged
	ctx := context.Background()
	emp := anaEmployee()
	emp.Records = []timeoff.LeaveRecord{{DaysTaken: 1, Category: timeoff.CategoryLegal, State: timeoff.StatePending}}
	store := memory.New(emp)

	other := newTestService(t, store)
	other.Uploader = generic.UploaderFunc(func(context.Context, []byte, string) (string, error) {
		return "/uploads/winner.pdf", nil
	})

	core, logs := observer.New(zap.WarnLevel)
	svc := timeoff.NewService(store, zap.New(core))
	svc.Clock = func() generic.TimePoint { return date(2024, time.January, 15) }
	svc.Uploader = generic.UploaderFunc(func(ctx context.Context, _ []byte, _ string) (string, error) {
		_, err := other.AttachEvidence(ctx, admin, "ana", 0, []byte("x"), "winner.pdf")
		require.NoError(t, err)
		return "/uploads/loser.pdf", nil
	})

	_, err := svc.AttachEvidence(ctx, ana, "ana", 0, []byte("x"), "loser.pdf")
	assert.ErrorIs(t, err, timeoff.ErrEvidenceAttached)

	got, err := svc.GetEmployee(ctx, ana, "ana")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/winner.pdf", got.Records[0].EvidenceRef)

	entries := logs.FilterField(zap.String("ref", "/uploads/loser.pdf")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
}

func TestService_AuthorizeEvidence(t *testing.T) {
	ctx := context.Background()
	emp := anaEmployee()
	emp.Records = []timeoff.LeaveRecord{{DaysTaken: 1, EvidenceRef: "/uploads/ana-note.pdf"}}
	luis := timeoff.Employee{
		ID: "luis", Name: "Luis", HireDate: date(2022, time.May, 2),
		Country: timeoff.CountryPeru, Role: timeoff.RoleCollaborator,
	}
	svc := newTestService(t, memory.New(emp, luis))
	luisActor := timeoff.Actor{ID: "luis", Role: timeoff.RoleCollaborator}

	assert.NoError(t, svc.AuthorizeEvidence(ctx, ana, "ana-note.pdf"))
	assert.NoError(t, svc.AuthorizeEvidence(ctx, admin, "ana-note.pdf"))
	assert.ErrorIs(t, svc.AuthorizeEvidence(ctx, luisActor, "ana-note.pdf"), timeoff.ErrForbidden)
	assert.ErrorIs(t, svc.AuthorizeEvidence(ctx, ana, "note.pdf"), timeoff.ErrForbidden)
	assert.ErrorIs(t, svc.AuthorizeEvidence(ctx, ana, ""), timeoff.ErrForbidden)
	assert.ErrorIs(t, svc.AuthorizeEvidence(ctx, ana, "x/ana-note.pdf"), timeoff.ErrForbidden)
}

// =============================================================================
// CONCURRENCY AND COLLABORATOR FAILURES
// =============================================================================

func TestService_RetryRevalidatesAgainstCompetingWrite(t *testing.T) {
	// GIVEN: 15 accrued days, a 7 day request in flight
	// WHEN: Another writer monetizes 10 days between our load and save
	// THEN: The retry sees balance 5 and fails, the competing write survives

	ctx := context.Background()
	repo := &interleavingRepo{Store: memory.New(anaEmployee())}
	repo.competing = func(ctx context.Context, inner *memory.Store) {
		other := newTestService(t, inner)
		_, err := other.Monetize(ctx, admin, "ana", 10, "competing")
		require.NoError(t, err)
	}
	svc := newTestService(t, repo)

	_, err := svc.SubmitRequest(ctx, ana, "ana", legal(date(2024, time.January, 22), date(2024, time.January, 30)))

	assert.ErrorIs(t, err, generic.ErrInsufficientBalance)
	snap, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Employees[0].Records, 1)
	assert.Equal(t, timeoff.CategoryMonetized, snap.Employees[0].Records[0].Category)
}

func TestService_RetryKeepsBothWrites(t *testing.T) {
	ctx := context.Background()
	other := anaEmployee()
	other.ID = "luis"
	repo := &interleavingRepo{Store: memory.New(anaEmployee(), other)}
	repo.competing = func(ctx context.Context, inner *memory.Store) {
		_, err := newTestService(t, inner).Monetize(ctx, admin, "luis", 2, "")
		require.NoError(t, err)
	}
	svc := newTestService(t, repo)

	_, err := svc.SubmitRequest(ctx, ana, "ana", legal(date(2024, time.January, 22), date(2024, time.January, 23)))
	require.NoError(t, err)

	snap, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Employees[0].Records, 1)
	assert.Len(t, snap.Employees[1].Records, 1)
	assert.Equal(t, 2, repo.saves)
}

func TestService_RetryGivesUp(t *testing.T) {
	repo := &failingRepo{saveErr: generic.ErrConcurrentModification}
	svc := newTestService(t, repo)

	_, err := svc.Monetize(context.Background(), admin, "ana", 1, "")

	assert.ErrorIs(t, err, generic.ErrConcurrentModification)
	assert.False(t, timeoff.IsIOError(err))
	assert.Equal(t, 3, repo.saves)
}

func TestService_IOErrors(t *testing.T) {
	boom := errors.New("connection refused")

	svc := newTestService(t, &failingRepo{loadErr: boom})
	_, err := svc.ComputeSummary(context.Background(), ana, "ana")
	assert.True(t, timeoff.IsIOError(err))
	assert.ErrorIs(t, err, boom)

	saveFails := &failingRepo{saveErr: boom}
	svc = newTestService(t, saveFails)
	_, err = svc.Monetize(context.Background(), admin, "ana", 1, "")
	var ioErr *timeoff.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "save", ioErr.Op)
	assert.Equal(t, 1, saveFails.saves)
}

func TestService_ConcurrentApprovalsNeverOverdraw(t *testing.T) {
	// GIVEN: 15 accrued days
	// WHEN: Six 4-day monetizations race each other
	// THEN: Exactly three succeed and the balance never goes below zero

	ctx := context.Background()
	store := memory.New(anaEmployee())
	svc := newTestService(t, store)
	svc.MaxAttempts = 50

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Monetize(ctx, admin, "ana", 4, "race")
		}()
	}
	wg.Wait()

	summary, err := svc.ComputeSummary(ctx, admin, "ana")
	require.NoError(t, err)
	assert.False(t, summary.LegalBalance.IsNegative(), "balance %s", summary.LegalBalance)
	assert.True(t, summary.LegalBalance.Equal(generic.Days(3)))
}

// =============================================================================
// SUMMARY CACHE
// =============================================================================

func TestService_SummaryCacheKeyedByVersion(t *testing.T) {
	ctx := context.Background()
	cache := &mapCache{entries: make(map[string]timeoff.Summary)}
	svc := newTestService(t, memory.New(anaEmployee()))
	svc.Cache = cache

	_, err := svc.ComputeSummary(ctx, ana, "ana")
	require.NoError(t, err)
	_, err = svc.ComputeSummary(ctx, ana, "ana")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)

	_, err = svc.Monetize(ctx, admin, "ana", 5, "")
	require.NoError(t, err)

	summary, err := svc.ComputeSummary(ctx, ana, "ana")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.True(t, summary.LegalBalance.Equal(generic.Days(10)))
}
