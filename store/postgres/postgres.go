/*
Package postgres provides a PostgreSQL-backed timeoff.Repository.

PURPOSE:
  Same snapshot model as store/sqlite for deployments running several
  server replicas against one database.

VERSIONING:
  SaveAll locks the snapshot_meta row with SELECT ... FOR UPDATE, compares
  the version with the one the caller loaded and only then rewrites the
  tables. A concurrent SaveAll blocks on the row lock and then sees the
  bumped version, so it fails with generic.ErrConcurrentModification
  instead of overwriting.

TRANSACTIONS:
  LoadAll uses a read-only transaction, SaveAll a read-write one. The
  transaction is rolled back unless it committed.

SEE ALSO:
  - store/codec.go: Shared row encoding
  - store/sqlite: Single-node backend with the same tables
*/
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/store"
	"github.com/warp/leave-engine/timeoff"
)

// Pool is the subset of pgxpool.Pool used by the store.
type Pool interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements timeoff.Repository on a pgx pool.
type Store struct {
	pool Pool
}

var _ timeoff.Repository = (*Store)(nil)

func New(pool Pool) *Store {
	return &Store{pool: pool}
}

// Connect parses the DSN, opens a pool and checks connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS employees (
	id TEXT PRIMARY KEY,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	hire_date TEXT NOT NULL,
	country TEXT NOT NULL,
	works_saturday BOOLEAN NOT NULL DEFAULT FALSE,
	role TEXT NOT NULL,
	credential_hash TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS leave_records (
	employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	days_taken INTEGER NOT NULL,
	category TEXT NOT NULL,
	created_on TEXT NOT NULL,
	range_start TEXT,
	range_end TEXT,
	reason TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL,
	evidence_ref TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (employee_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_leave_records_state ON leave_records(state);

CREATE TABLE IF NOT EXISTS snapshot_meta (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	version BIGINT NOT NULL
);

INSERT INTO snapshot_meta (id, version) VALUES (1, 0) ON CONFLICT (id) DO NOTHING;
`

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (s *Store) within(ctx context.Context, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}

	committed = true
	return nil
}

// =============================================================================
// REPOSITORY
// =============================================================================

const (
	selectVersion          = `SELECT version FROM snapshot_meta WHERE id = 1`
	selectVersionForUpdate = `SELECT version FROM snapshot_meta WHERE id = 1 FOR UPDATE`
	selectEmployees        = `SELECT id, position, name, hire_date, country, works_saturday, role, credential_hash FROM employees ORDER BY position`
	selectRecords          = `SELECT employee_id, seq, days_taken, category, created_on, range_start, range_end, reason, state, evidence_ref FROM leave_records ORDER BY employee_id, seq`
	deleteRecords          = `DELETE FROM leave_records`
	deleteEmployees        = `DELETE FROM employees`
	insertEmployee         = `INSERT INTO employees (id, position, name, hire_date, country, works_saturday, role, credential_hash) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	insertRecord           = `INSERT INTO leave_records (employee_id, seq, days_taken, category, created_on, range_start, range_end, reason, state, evidence_ref) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	bumpVersion            = `UPDATE snapshot_meta SET version = version + 1 WHERE id = 1`
)

// LoadAll reads the whole snapshot in one read-only transaction.
func (s *Store) LoadAll(ctx context.Context) (timeoff.Snapshot, error) {
	var snap timeoff.Snapshot

	err := s.within(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		var version int64
		if err := tx.QueryRow(ctx, selectVersion).Scan(&version); err != nil {
			return fmt.Errorf("postgres: read version: %w", err)
		}

		employees, err := scanEmployees(ctx, tx)
		if err != nil {
			return err
		}
		records, err := scanRecords(ctx, tx)
		if err != nil {
			return err
		}

		snap = timeoff.Snapshot{Version: version, Employees: store.Assemble(employees, records)}
		return nil
	})
	return snap, err
}

// SaveAll replaces the snapshot if the locked version still matches.
func (s *Store) SaveAll(ctx context.Context, snap timeoff.Snapshot) error {
	return s.within(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite}, func(tx pgx.Tx) error {
		var current int64
		if err := tx.QueryRow(ctx, selectVersionForUpdate).Scan(&current); err != nil {
			return fmt.Errorf("postgres: lock version: %w", err)
		}
		if current != snap.Version {
			return generic.ErrConcurrentModification
		}

		if _, err := tx.Exec(ctx, deleteRecords); err != nil {
			return fmt.Errorf("postgres: clear records: %w", err)
		}
		if _, err := tx.Exec(ctx, deleteEmployees); err != nil {
			return fmt.Errorf("postgres: clear employees: %w", err)
		}

		for pos, emp := range snap.Employees {
			e := store.EncodeEmployee(emp, pos)
			if _, err := tx.Exec(ctx, insertEmployee,
				e.ID, e.Position, e.Name, e.HireDate, e.Country, e.WorksSaturday, e.Role, e.CredentialHash); err != nil {
				return fmt.Errorf("postgres: insert employee %s: %w", e.ID, err)
			}

			for seq, rec := range emp.Records {
				r := store.EncodeRecord(emp.ID, seq, rec)
				if _, err := tx.Exec(ctx, insertRecord,
					r.EmployeeID, r.Seq, r.DaysTaken, r.Category, r.CreatedOn,
					r.RangeStart, r.RangeEnd, r.Reason, r.State, r.EvidenceRef); err != nil {
					return fmt.Errorf("postgres: insert record %s#%d: %w", r.EmployeeID, r.Seq, err)
				}
			}
		}

		if _, err := tx.Exec(ctx, bumpVersion); err != nil {
			return fmt.Errorf("postgres: bump version: %w", err)
		}
		return nil
	})
}

func scanEmployees(ctx context.Context, tx pgx.Tx) ([]timeoff.Employee, error) {
	rows, err := tx.Query(ctx, selectEmployees)
	if err != nil {
		return nil, fmt.Errorf("postgres: query employees: %w", err)
	}
	defer rows.Close()

	var out []timeoff.Employee
	for rows.Next() {
		var row store.EmployeeRow
		if err := rows.Scan(&row.ID, &row.Position, &row.Name, &row.HireDate,
			&row.Country, &row.WorksSaturday, &row.Role, &row.CredentialHash); err != nil {
			return nil, fmt.Errorf("postgres: scan employee: %w", err)
		}
		emp, err := store.DecodeEmployee(row)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

func scanRecords(ctx context.Context, tx pgx.Tx) ([]store.RecordRow, error) {
	rows, err := tx.Query(ctx, selectRecords)
	if err != nil {
		return nil, fmt.Errorf("postgres: query records: %w", err)
	}
	defer rows.Close()

	var out []store.RecordRow
	for rows.Next() {
		var row store.RecordRow
		if err := rows.Scan(&row.EmployeeID, &row.Seq, &row.DaysTaken, &row.Category, &row.CreatedOn,
			&row.RangeStart, &row.RangeEnd, &row.Reason, &row.State, &row.EvidenceRef); err != nil {
			return nil, fmt.Errorf("postgres: scan record: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
