/*
service.go - Leave service: load, compute, save

PURPOSE:
  The entry point used by the HTTP layer. Each operation loads a snapshot
  of all employees from the Repository, runs the pure workflow methods on
  it and saves the result. The caller's identity and "today" are explicit
  inputs (Actor and Clock), never ambient state.

CONCURRENCY:
  No lock is held across repository or upload I/O. Lost updates are
  prevented optimistically: a Snapshot carries the Version it was loaded
  at and Repository.SaveAll fails with generic.ErrConcurrentModification
  when another writer saved in between. The service then reruns the whole
  cycle (load, validate, mutate, save) up to MaxAttempts times, so a second
  approval is validated against the balance left by the first.

  Any other repository failure is returned as *IOError and not retried.

AUTHORIZATION:
  Collaborators may read their own data, submit their own requests and
  attach evidence to their own records. Administrators may do everything
  else. Only super administrators may create administrators or change roles.

CACHING:
  Summaries are derived on every read. An optional SummaryCache memoises
  them by (employee, snapshot version, as-of date), which can never serve a
  stale balance because any write bumps the version.

SEE ALSO:
  - request.go: Workflow methods on Employee
  - store/sqlite, store/postgres, store/memory: Repository implementations
  - cache/redis.go: SummaryCache over Redis
*/
package timeoff

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Snapshot is the full persisted state at a given version.
type Snapshot struct {
	Version   int64
	Employees []Employee
}

// Find returns a pointer into the snapshot for in-place mutation.
func (s *Snapshot) Find(id generic.EntityID) (*Employee, error) {
	for i := range s.Employees {
		if s.Employees[i].ID == id {
			return &s.Employees[i], nil
		}
	}
	return nil, &NotFoundError{Kind: "employee", ID: string(id)}
}

// Repository loads and saves whole snapshots.
type Repository interface {
	// LoadAll returns every employee with its records in creation order.
	LoadAll(ctx context.Context) (Snapshot, error)

	// SaveAll replaces the stored state. It must fail with
	// generic.ErrConcurrentModification when the stored version is no
	// longer snap.Version, and bump the version on success.
	SaveAll(ctx context.Context, snap Snapshot) error
}

// SummaryCache memoises computed summaries. Implementations may drop entries.
type SummaryCache interface {
	GetSummary(ctx context.Context, key string) (Summary, bool, error)
	SetSummary(ctx context.Context, key string, summary Summary) error
}

// =============================================================================
// VIEW TYPES
// =============================================================================

// Summary is the derived balance view of one employee.
type Summary struct {
	EmployeeID   generic.EntityID
	AsOf         generic.TimePoint
	AccruedDays  generic.Amount
	LegalBalance generic.Amount
	Benefit      BenefitStatus
	Pending      map[Category]int
}

// PendingItem is one entry of the administrators' approval inbox.
type PendingItem struct {
	EmployeeID   generic.EntityID
	EmployeeName string
	Index        int
	Record       LeaveRecord
}

// NewEmployee is the input to CreateEmployee.
type NewEmployee struct {
	ID            generic.EntityID
	Name          string
	HireDate      generic.TimePoint
	Country       Country
	WorksSaturday bool
	Role          Role
	Secret        string
}

// ProfileUpdate changes the non-nil fields of an employee profile.
type ProfileUpdate struct {
	Name          *string
	HireDate      *generic.TimePoint
	Country       *Country
	WorksSaturday *bool
	Role          *Role
	Secret        *string
}

// =============================================================================
// SERVICE
// =============================================================================

const defaultMaxAttempts = 3

type Service struct {
	Repo     Repository
	Uploader generic.Uploader // optional
	Cache    SummaryCache     // optional
	Clock    func() generic.TimePoint
	Logger   *zap.Logger

	BcryptCost  int
	MaxAttempts int
}

// NewService wires a service with defaults: real clock, no-op logger.
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Repo:        repo,
		Clock:       generic.Today,
		Logger:      logger,
		MaxAttempts: defaultMaxAttempts,
	}
}

func (s *Service) today() generic.TimePoint {
	if s.Clock == nil {
		return generic.Today()
	}
	return s.Clock()
}

func (s *Service) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// =============================================================================
// LOAD-MODIFY-SAVE
// =============================================================================

func (s *Service) load(ctx context.Context) (Snapshot, error) {
	snap, err := s.Repo.LoadAll(ctx)
	if err != nil {
		s.log().Error("load snapshot failed", zap.Error(err))
		return Snapshot{}, &IOError{Op: "load", Err: err}
	}
	return snap, nil
}

// mutate runs fn against a fresh snapshot and saves it, retrying the whole
// cycle on a version conflict. Validation errors from fn abort without saving.
func (s *Service) mutate(ctx context.Context, op string, fn func(snap *Snapshot) error) error {
	attempts := s.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		snap, err := s.load(ctx)
		if err != nil {
			return err
		}

		if err := fn(&snap); err != nil {
			return err
		}

		err = s.Repo.SaveAll(ctx, snap)
		if err == nil {
			return nil
		}

		if generic.IsRetryable(err) {
			if attempt < attempts {
				s.log().Warn("snapshot changed concurrently, retrying",
					zap.String("op", op),
					zap.Int("attempt", attempt),
					zap.Int64("version", snap.Version))
				continue
			}
			return fmt.Errorf("%s: gave up after %d attempts: %w", op, attempt, err)
		}

		s.log().Error("save snapshot failed", zap.String("op", op), zap.Error(err))
		return &IOError{Op: "save", Err: err}
	}
}

// =============================================================================
// AUTHORIZATION
// =============================================================================

func requireAdmin(actor Actor) error {
	if !actor.Role.IsAdmin() {
		return fmt.Errorf("%w: administrator role required", ErrForbidden)
	}
	return nil
}

func requireSelfOrAdmin(actor Actor, id generic.EntityID) error {
	if actor.ID == id || actor.Role.IsAdmin() {
		return nil
	}
	return fmt.Errorf("%w: not allowed to act for %s", ErrForbidden, id)
}

func requireSuperAdmin(actor Actor) error {
	if actor.Role != RoleSuperAdmin {
		return fmt.Errorf("%w: super administrator role required", ErrForbidden)
	}
	return nil
}

// =============================================================================
// REQUEST WORKFLOW
// =============================================================================

// SubmitRequest creates a Pending Legal or Benefit request.
func (s *Service) SubmitRequest(ctx context.Context, actor Actor, id generic.EntityID, in SubmitInput) (LeaveRecord, error) {
	if err := requireSelfOrAdmin(actor, id); err != nil {
		return LeaveRecord{}, err
	}

	asOf := s.today()
	var created LeaveRecord
	err := s.mutate(ctx, "submit", func(snap *Snapshot) error {
		emp, err := snap.Find(id)
		if err != nil {
			return err
		}
		created, err = emp.Submit(in, asOf)
		return err
	})
	if err != nil {
		return LeaveRecord{}, err
	}

	s.log().Info("leave request submitted",
		zap.String("employee_id", id.String()),
		zap.String("category", string(created.Category)),
		zap.Int("days", created.DaysTaken),
		zap.String("actor", actor.ID.String()))
	return created, nil
}

// DecideRequest approves or rejects a Pending record.
func (s *Service) DecideRequest(ctx context.Context, actor Actor, id generic.EntityID, index int, outcome State) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	err := s.mutate(ctx, "decide", func(snap *Snapshot) error {
		emp, err := snap.Find(id)
		if err != nil {
			return err
		}
		return emp.Decide(index, outcome)
	})
	if err != nil {
		return err
	}

	s.log().Info("leave request decided",
		zap.String("employee_id", id.String()),
		zap.Int("index", index),
		zap.String("outcome", string(outcome)),
		zap.String("actor", actor.ID.String()))
	return nil
}

// Monetize records legal days compensated in cash.
func (s *Service) Monetize(ctx context.Context, actor Actor, id generic.EntityID, days int, reason string) (LeaveRecord, error) {
	if err := requireAdmin(actor); err != nil {
		return LeaveRecord{}, err
	}

	asOf := s.today()
	var created LeaveRecord
	err := s.mutate(ctx, "monetize", func(snap *Snapshot) error {
		emp, err := snap.Find(id)
		if err != nil {
			return err
		}
		created, err = emp.Monetize(days, reason, asOf)
		return err
	})
	if err != nil {
		return LeaveRecord{}, err
	}

	s.log().Info("legal days monetized",
		zap.String("employee_id", id.String()),
		zap.Int("days", days),
		zap.String("actor", actor.ID.String()))
	return created, nil
}

// CorrectRecord overrides days and/or reason of a record.
func (s *Service) CorrectRecord(ctx context.Context, actor Actor, id generic.EntityID, index int, days *int, reason *string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	err := s.mutate(ctx, "correct", func(snap *Snapshot) error {
		emp, err := snap.Find(id)
		if err != nil {
			return err
		}
		return emp.Correct(index, days, reason)
	})
	if err != nil {
		return err
	}

	s.log().Info("leave record corrected",
		zap.String("employee_id", id.String()),
		zap.Int("index", index),
		zap.String("actor", actor.ID.String()))
	return nil
}

// RemoveRecord deletes a record.
func (s *Service) RemoveRecord(ctx context.Context, actor Actor, id generic.EntityID, index int) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	var removed LeaveRecord
	err := s.mutate(ctx, "remove", func(snap *Snapshot) error {
		emp, err := snap.Find(id)
		if err != nil {
			return err
		}
		removed, err = emp.Remove(index)
		return err
	})
	if err != nil {
		return err
	}

	s.log().Info("leave record removed",
		zap.String("employee_id", id.String()),
		zap.Int("index", index),
		zap.String("category", string(removed.Category)),
		zap.String("actor", actor.ID.String()))
	return nil
}

// AttachEvidence uploads a supporting document and attaches its reference to
// the record. The upload happens outside the load-modify-save cycle.
func (s *Service) AttachEvidence(ctx context.Context, actor Actor, id generic.EntityID, index int, data []byte, name string) (string, error) {
	if err := requireSelfOrAdmin(actor, id); err != nil {
		return "", err
	}
	if s.Uploader == nil {
		return "", &IOError{Op: "upload", Err: errors.New("no uploader configured")}
	}

	// Fail early on a bad index or an existing reference before storing a file.
	snap, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	emp, err := snap.Find(id)
	if err != nil {
		return "", err
	}
	rec, err := emp.record(index)
	if err != nil {
		return "", err
	}
	if rec.EvidenceRef != "" {
		return "", ErrEvidenceAttached
	}

	ref, err := s.Uploader.Upload(ctx, data, name)
	if err != nil {
		s.log().Error("evidence upload failed", zap.String("employee_id", id.String()), zap.Error(err))
		return "", &IOError{Op: "upload", Err: err}
	}

	err = s.mutate(ctx, "attach_evidence", func(snap *Snapshot) error {
		emp, err := snap.Find(id)
		if err != nil {
			return err
		}
		return emp.AttachEvidence(index, ref)
	})
	if err != nil {
		if errors.Is(err, ErrEvidenceAttached) {
			s.log().Warn("uploaded evidence left unattached",
				zap.String("employee_id", id.String()),
				zap.Int("index", index),
				zap.String("ref", ref))
		}
		return "", err
	}

	s.log().Info("evidence attached",
		zap.String("employee_id", id.String()),
		zap.Int("index", index),
		zap.String("ref", ref))
	return ref, nil
}

// AuthorizeEvidence checks that the actor may read the stored document named
// key. Administrators read everything; collaborators only documents attached
// to their own records.
func (s *Service) AuthorizeEvidence(ctx context.Context, actor Actor, key string) error {
	if actor.Role.IsAdmin() {
		return nil
	}
	if key == "" || strings.Contains(key, "/") {
		return fmt.Errorf("%w: evidence %q", ErrForbidden, key)
	}

	snap, err := s.load(ctx)
	if err != nil {
		return err
	}
	emp, err := snap.Find(actor.ID)
	if err != nil {
		return fmt.Errorf("%w: evidence %q", ErrForbidden, key)
	}
	for _, rec := range emp.Records {
		if rec.EvidenceRef == key || strings.HasSuffix(rec.EvidenceRef, "/"+key) {
			return nil
		}
	}
	return fmt.Errorf("%w: evidence %q", ErrForbidden, key)
}

// =============================================================================
// QUERIES
// =============================================================================

// ComputeSummary derives the balances of an employee as of today.
func (s *Service) ComputeSummary(ctx context.Context, actor Actor, id generic.EntityID) (Summary, error) {
	if err := requireSelfOrAdmin(actor, id); err != nil {
		return Summary{}, err
	}

	snap, err := s.load(ctx)
	if err != nil {
		return Summary{}, err
	}
	emp, err := snap.Find(id)
	if err != nil {
		return Summary{}, err
	}

	asOf := s.today()
	key := summaryKey(id, snap.Version, asOf)
	if s.Cache != nil {
		cached, ok, err := s.Cache.GetSummary(ctx, key)
		if err != nil {
			s.log().Warn("summary cache read failed", zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	summary := Summarize(emp, asOf)

	if s.Cache != nil {
		if err := s.Cache.SetSummary(ctx, key, summary); err != nil {
			s.log().Warn("summary cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}

// Summarize computes the summary of one employee without I/O.
func Summarize(emp *Employee, asOf generic.TimePoint) Summary {
	accrued := AccruedDays(emp.HireDate, asOf)
	return Summary{
		EmployeeID:   emp.ID,
		AsOf:         asOf,
		AccruedDays:  accrued,
		LegalBalance: LegalBalance(accrued, emp.Records),
		Benefit:      BenefitBalance(emp.HireDate, emp.Records, asOf),
		Pending:      PendingDays(emp.Records),
	}
}

func summaryKey(id generic.EntityID, version int64, asOf generic.TimePoint) string {
	return fmt.Sprintf("summary:%s:v%d:%s", id, version, asOf)
}

// GetEmployee returns one employee with its full history.
func (s *Service) GetEmployee(ctx context.Context, actor Actor, id generic.EntityID) (Employee, error) {
	if err := requireSelfOrAdmin(actor, id); err != nil {
		return Employee{}, err
	}
	snap, err := s.load(ctx)
	if err != nil {
		return Employee{}, err
	}
	emp, err := snap.Find(id)
	if err != nil {
		return Employee{}, err
	}
	return emp.Clone(), nil
}

// ListEmployees returns all employees ordered as stored.
func (s *Service) ListEmployees(ctx context.Context, actor Actor) ([]Employee, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Employees, nil
}

// PendingInbox lists every Pending record across employees.
func (s *Service) PendingInbox(ctx context.Context, actor Actor) ([]PendingItem, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var items []PendingItem
	for _, emp := range snap.Employees {
		for i, r := range emp.Records {
			if r.State != StatePending {
				continue
			}
			items = append(items, PendingItem{
				EmployeeID:   emp.ID,
				EmployeeName: emp.Name,
				Index:        i,
				Record:       r,
			})
		}
	}
	return items, nil
}

// =============================================================================
// EMPLOYEE ADMINISTRATION
// =============================================================================

func (n NewEmployee) validate() error {
	var problems []string
	if strings.TrimSpace(string(n.ID)) == "" {
		problems = append(problems, "id is required")
	}
	if strings.TrimSpace(n.Name) == "" {
		problems = append(problems, "name is required")
	}
	if n.HireDate.IsZero() {
		problems = append(problems, "hire date is required")
	}
	if n.Role != "" && !n.Role.Valid() {
		problems = append(problems, fmt.Sprintf("unknown role %q", n.Role))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidEmployee, strings.Join(problems, ", "))
	}
	if _, err := LookupJurisdiction(n.Country); err != nil {
		return err
	}
	return nil
}

// CreateEmployee registers a new employee. Duplicate IDs fail.
func (s *Service) CreateEmployee(ctx context.Context, actor Actor, in NewEmployee) (Employee, error) {
	if err := requireAdmin(actor); err != nil {
		return Employee{}, err
	}
	if in.Role == "" {
		in.Role = RoleCollaborator
	}
	if err := in.validate(); err != nil {
		return Employee{}, err
	}
	if in.Role.IsAdmin() {
		if err := requireSuperAdmin(actor); err != nil {
			return Employee{}, err
		}
	}

	emp := Employee{
		ID:            in.ID,
		Name:          strings.TrimSpace(in.Name),
		HireDate:      in.HireDate,
		Country:       in.Country,
		WorksSaturday: in.WorksSaturday,
		Role:          in.Role,
	}
	if in.Secret != "" {
		hash, err := HashSecret(in.Secret, s.BcryptCost)
		if err != nil {
			return Employee{}, fmt.Errorf("hash secret: %w", err)
		}
		emp.CredentialHash = hash
	}

	err := s.mutate(ctx, "create_employee", func(snap *Snapshot) error {
		if _, err := snap.Find(emp.ID); err == nil {
			return fmt.Errorf("%w: %s", ErrEmployeeExists, emp.ID)
		}
		snap.Employees = append(snap.Employees, emp)
		return nil
	})
	if err != nil {
		return Employee{}, err
	}

	s.log().Info("employee created",
		zap.String("employee_id", emp.ID.String()),
		zap.String("country", string(emp.Country)),
		zap.String("role", string(emp.Role)),
		zap.String("actor", actor.ID.String()))
	return emp, nil
}

// UpdateProfile edits name, hire date, schedule, country, role or secret.
// Changing a role, or editing another administrator, requires a super
// administrator.
func (s *Service) UpdateProfile(ctx context.Context, actor Actor, id generic.EntityID, upd ProfileUpdate) (Employee, error) {
	if err := requireAdmin(actor); err != nil {
		return Employee{}, err
	}
	if upd.Role != nil {
		if err := requireSuperAdmin(actor); err != nil {
			return Employee{}, err
		}
		if !upd.Role.Valid() {
			return Employee{}, fmt.Errorf("%w: unknown role %q", ErrInvalidEmployee, *upd.Role)
		}
	}
	if upd.Country != nil {
		if _, err := LookupJurisdiction(*upd.Country); err != nil {
			return Employee{}, err
		}
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return Employee{}, fmt.Errorf("%w: name is required", ErrInvalidEmployee)
	}
	if upd.HireDate != nil && upd.HireDate.IsZero() {
		return Employee{}, fmt.Errorf("%w: hire date is required", ErrInvalidEmployee)
	}

	var hash string
	if upd.Secret != nil {
		h, err := HashSecret(*upd.Secret, s.BcryptCost)
		if err != nil {
			return Employee{}, fmt.Errorf("hash secret: %w", err)
		}
		hash = h
	}

	var updated Employee
	err := s.mutate(ctx, "update_profile", func(snap *Snapshot) error {
		emp, err := snap.Find(id)
		if err != nil {
			return err
		}
		if emp.Role.IsAdmin() && emp.ID != actor.ID {
			if err := requireSuperAdmin(actor); err != nil {
				return err
			}
		}
		if upd.Name != nil {
			emp.Name = strings.TrimSpace(*upd.Name)
		}
		if upd.HireDate != nil {
			emp.HireDate = *upd.HireDate
		}
		if upd.Country != nil {
			emp.Country = *upd.Country
		}
		if upd.WorksSaturday != nil {
			emp.WorksSaturday = *upd.WorksSaturday
		}
		if upd.Role != nil {
			emp.Role = *upd.Role
		}
		if upd.Secret != nil {
			emp.CredentialHash = hash
		}
		updated = emp.Clone()
		return nil
	})
	if err != nil {
		return Employee{}, err
	}

	s.log().Info("employee profile updated",
		zap.String("employee_id", id.String()),
		zap.String("actor", actor.ID.String()))
	return updated, nil
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

// Authenticate verifies an employee's secret and returns the matching Actor.
func (s *Service) Authenticate(ctx context.Context, id generic.EntityID, secret string) (Actor, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return Actor{}, err
	}
	emp, err := snap.Find(id)
	if err != nil {
		return Actor{}, ErrUnauthenticated
	}
	if err := CompareSecret(emp.CredentialHash, secret); err != nil {
		return Actor{}, err
	}
	return Actor{ID: emp.ID, Role: emp.Role}, nil
}

// EnsureSuperAdmin creates the bootstrap super administrator when no
// employee with that ID exists. It reports whether one was created.
func (s *Service) EnsureSuperAdmin(ctx context.Context, id generic.EntityID, name, secret string) (bool, error) {
	_, err := s.CreateEmployee(ctx, System, NewEmployee{
		ID:       id,
		Name:     name,
		HireDate: generic.NewTimePoint(2000, 1, 1),
		Country:  CountryColombia,
		Role:     RoleSuperAdmin,
		Secret:   secret,
	})
	if errors.Is(err, ErrEmployeeExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
