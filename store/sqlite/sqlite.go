/*
Package sqlite provides a SQLite-backed timeoff.Repository.

PURPOSE:
  Persists the whole leave snapshot (employees and their records) in
  SQLite. This is the default backend for single-node deployments and for
  tests using ":memory:".

KEY TABLES:
  employees:      One row per employee, ordered by position
  leave_records:  One row per record, keyed by (employee_id, seq) where seq
                  is the record's index in the employee's history
  snapshot_meta:  Single row holding the snapshot version

VERSIONING:
  SaveAll runs in one transaction: it reads snapshot_meta.version, fails
  with generic.ErrConcurrentModification if it differs from the version the
  caller loaded, rewrites employees and records, and bumps the version.
  Either the whole snapshot is written or nothing is.

CONCURRENCY:
  The pool is limited to one connection, so transactions from this process
  are serialized by database/sql. Other processes are kept out by
  _txlock=immediate, which takes the write lock at BEGIN.

USAGE:
  repo, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer repo.Close()

  svc := timeoff.NewService(repo, logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - store/codec.go: Row encoding shared with the Postgres repository
  - store/postgres: Multi-node backend
  - store/memory: In-process backend for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/store"
	"github.com/warp/leave-engine/timeoff"
)

// Store implements timeoff.Repository using SQLite.
type Store struct {
	db *sql.DB
}

var _ timeoff.Repository = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		hire_date TEXT NOT NULL,
		country TEXT NOT NULL,
		works_saturday INTEGER NOT NULL DEFAULT 0,
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

	-- Approval inbox
	CREATE INDEX IF NOT EXISTS idx_leave_records_state
		ON leave_records(state);

	CREATE TABLE IF NOT EXISTS snapshot_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL
	);

	INSERT OR IGNORE INTO snapshot_meta (id, version) VALUES (1, 0);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REPOSITORY
// =============================================================================

// LoadAll reads the whole snapshot in one transaction.
func (s *Store) LoadAll(ctx context.Context) (timeoff.Snapshot, error) {
	var snap timeoff.Snapshot

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		version, err := readVersion(ctx, tx)
		if err != nil {
			return err
		}
		employees, err := loadEmployees(ctx, tx)
		if err != nil {
			return err
		}
		records, err := loadRecords(ctx, tx)
		if err != nil {
			return err
		}
		snap = timeoff.Snapshot{Version: version, Employees: store.Assemble(employees, records)}
		return nil
	})
	return snap, err
}

// SaveAll replaces the stored snapshot if its version is unchanged.
func (s *Store) SaveAll(ctx context.Context, snap timeoff.Snapshot) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := readVersion(ctx, tx)
		if err != nil {
			return err
		}
		if current != snap.Version {
			return generic.ErrConcurrentModification
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM leave_records`); err != nil {
			return fmt.Errorf("clear records: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM employees`); err != nil {
			return fmt.Errorf("clear employees: %w", err)
		}

		for pos, emp := range snap.Employees {
			if err := insertEmployee(ctx, tx, store.EncodeEmployee(emp, pos)); err != nil {
				return err
			}
			for seq, rec := range emp.Records {
				if err := insertRecord(ctx, tx, store.EncodeRecord(emp.ID, seq, rec)); err != nil {
					return err
				}
			}
		}

		_, err = tx.ExecContext(ctx, `UPDATE snapshot_meta SET version = version + 1 WHERE id = 1`)
		return err
	})
}

// Version returns the stored snapshot version.
func (s *Store) Version(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM snapshot_meta WHERE id = 1`).Scan(&v)
	return v, err
}

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// ROWS
// =============================================================================

func readVersion(ctx context.Context, tx *sql.Tx) (int64, error) {
	var v int64
	if err := tx.QueryRowContext(ctx, `SELECT version FROM snapshot_meta WHERE id = 1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read version: %w", err)
	}
	return v, nil
}

func loadEmployees(ctx context.Context, tx *sql.Tx) ([]timeoff.Employee, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, position, name, hire_date, country, works_saturday, role, credential_hash
		FROM employees
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	var out []timeoff.Employee
	for rows.Next() {
		var row store.EmployeeRow
		if err := rows.Scan(&row.ID, &row.Position, &row.Name, &row.HireDate,
			&row.Country, &row.WorksSaturday, &row.Role, &row.CredentialHash); err != nil {
			return nil, err
		}
		emp, err := store.DecodeEmployee(row)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

func loadRecords(ctx context.Context, tx *sql.Tx) ([]store.RecordRow, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT employee_id, seq, days_taken, category, created_on,
		       range_start, range_end, reason, state, evidence_ref
		FROM leave_records
		ORDER BY employee_id, seq
	`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []store.RecordRow
	for rows.Next() {
		var row store.RecordRow
		if err := rows.Scan(&row.EmployeeID, &row.Seq, &row.DaysTaken, &row.Category, &row.CreatedOn,
			&row.RangeStart, &row.RangeEnd, &row.Reason, &row.State, &row.EvidenceRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func insertEmployee(ctx context.Context, tx *sql.Tx, row store.EmployeeRow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO employees (id, position, name, hire_date, country, works_saturday, role, credential_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, row.ID, row.Position, row.Name, row.HireDate, row.Country, row.WorksSaturday, row.Role, row.CredentialHash)
	if err != nil {
		return fmt.Errorf("insert employee %s: %w", row.ID, err)
	}
	return nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, row store.RecordRow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO leave_records (employee_id, seq, days_taken, category, created_on,
		                           range_start, range_end, reason, state, evidence_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, row.EmployeeID, row.Seq, row.DaysTaken, row.Category, row.CreatedOn,
		row.RangeStart, row.RangeEnd, row.Reason, row.State, row.EvidenceRef)
	if err != nil {
		return fmt.Errorf("insert record %s#%d: %w", row.EmployeeID, row.Seq, err)
	}
	return nil
}

// Exec runs a raw statement. Used by tests to simulate legacy rows.
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}
