/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces the core depends on.

PURPOSE:
  Implements ledger.Store plus the approval package's RequestStore,
  EmployeeDirectory, and TypeRegistry against one SQLite database.
  The same patterns apply to PostgreSQL - only dialect differences.

KEY TABLES:
  balances:     One row per (employee, leave type, year), version column
  reservations: Single-use holds against a balance row
  journal:      Append-only record of every ledger mutation
  requests:     Leave requests with status + version columns
  employees:    Employee references (department scoping)
  leave_types:  Immutable reference data

OPTIMISTIC CONCURRENCY:
  Balance and request updates are conditional UPDATEs guarded by the
  version column (and, for requests, the expected status). Zero rows
  affected means another writer won; callers see
  leave.ErrConcurrentModification and retry or surface it.

SINGLE-USE SETTLE:
  SettleReservation is a conditional UPDATE on state='open'. Of two
  concurrent settle attempts exactly one flips the row; the other gets
  leave.ErrUnknownReservation.

WAL MODE:
  The database is opened with WAL so readers don't block the writer.

USAGE:
  store, err := sqlite.New("./leave.db")  // ":memory:" for tests
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/ledger"
)

// Fixed-width fractional seconds keep lexicographic ORDER BY chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) a SQLite store. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer connection sidesteps SQLITE_BUSY between the
	// balance, reservation, and request writes of one transition.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS balances (
		employee_id   TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		year          INTEGER NOT NULL,
		entitlement   TEXT NOT NULL,
		reserved      TEXT NOT NULL,
		consumed      TEXT NOT NULL,
		version       INTEGER NOT NULL,
		PRIMARY KEY (employee_id, leave_type_id, year)
	);

	CREATE TABLE IF NOT EXISTS reservations (
		id            TEXT PRIMARY KEY,
		employee_id   TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		year          INTEGER NOT NULL,
		days          TEXT NOT NULL,
		request_id    TEXT NOT NULL,
		state         TEXT NOT NULL,
		created_at    TEXT NOT NULL,
		settled_at    TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_reservations_request
		ON reservations(request_id);

	-- Append-only: no UPDATE, no DELETE.
	CREATE TABLE IF NOT EXISTS journal (
		id            TEXT PRIMARY KEY,
		seq           INTEGER NOT NULL DEFAULT 0,
		employee_id   TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		year          INTEGER NOT NULL,
		kind          TEXT NOT NULL,
		days          TEXT NOT NULL,
		request_id    TEXT NOT NULL,
		actor_id      TEXT NOT NULL,
		at            TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_journal_employee
		ON journal(employee_id, at);

	CREATE TABLE IF NOT EXISTS requests (
		id             TEXT PRIMARY KEY,
		employee_id    TEXT NOT NULL,
		leave_type_id  TEXT NOT NULL,
		start_date     TEXT NOT NULL,
		end_date       TEXT NOT NULL,
		working_days   TEXT NOT NULL,
		status         TEXT NOT NULL,
		reason         TEXT NOT NULL,
		reservation_id TEXT NOT NULL,
		hod_actor      TEXT,
		hod_verdict    TEXT,
		hod_comment    TEXT,
		hod_decided_at TEXT,
		hr_actor       TEXT,
		hr_verdict     TEXT,
		hr_comment     TEXT,
		hr_decided_at  TEXT,
		document_id    TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL,
		version        INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON requests(employee_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);

	CREATE TABLE IF NOT EXISTS employees (
		id            TEXT PRIMARY KEY,
		department_id TEXT NOT NULL,
		hire_date     TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leave_types (
		id                 TEXT PRIMARY KEY,
		name               TEXT NOT NULL,
		annual_entitlement TEXT NOT NULL,
		paid               INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

func (s *Store) GetBalance(ctx context.Context, key ledger.Key) (ledger.Balance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT entitlement, reserved, consumed, version
		FROM balances WHERE employee_id = ? AND leave_type_id = ? AND year = ?`,
		key.EmployeeID, key.LeaveTypeID, key.Year)

	var entitlement, reserved, consumed string
	b := ledger.Balance{Key: key}
	if err := row.Scan(&entitlement, &reserved, &consumed, &b.Version); err != nil {
		if err == sql.ErrNoRows {
			return ledger.Balance{}, leave.ErrNotFound
		}
		return ledger.Balance{}, fmt.Errorf("failed to load balance: %w", err)
	}

	var err error
	if b.Entitlement, err = decimal.NewFromString(entitlement); err != nil {
		return ledger.Balance{}, err
	}
	if b.Reserved, err = decimal.NewFromString(reserved); err != nil {
		return ledger.Balance{}, err
	}
	if b.Consumed, err = decimal.NewFromString(consumed); err != nil {
		return ledger.Balance{}, err
	}
	return b, nil
}

func (s *Store) CreateBalance(ctx context.Context, b ledger.Balance) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO balances (employee_id, leave_type_id, year, entitlement, reserved, consumed, version)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.Key.EmployeeID, b.Key.LeaveTypeID, b.Key.Year,
		b.Entitlement.String(), b.Reserved.String(), b.Consumed.String(), b.Version)
	if err != nil {
		if isUniqueConstraintError(err) {
			return leave.ErrConcurrentModification
		}
		return fmt.Errorf("failed to create balance: %w", err)
	}
	return nil
}

func (s *Store) UpdateBalance(ctx context.Context, b ledger.Balance) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE balances SET entitlement = ?, reserved = ?, consumed = ?, version = ?
		WHERE employee_id = ? AND leave_type_id = ? AND year = ? AND version = ?`,
		b.Entitlement.String(), b.Reserved.String(), b.Consumed.String(), b.Version,
		b.Key.EmployeeID, b.Key.LeaveTypeID, b.Key.Year, b.Version-1)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return leave.ErrConcurrentModification
	}
	return nil
}

func (s *Store) CreateReservation(ctx context.Context, r ledger.Reservation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reservations (id, employee_id, leave_type_id, year, days, request_id, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Key.EmployeeID, r.Key.LeaveTypeID, r.Key.Year,
		r.Days.String(), r.RequestID, string(r.State), r.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (s *Store) GetReservation(ctx context.Context, id string) (ledger.Reservation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, employee_id, leave_type_id, year, days, request_id, state, created_at, settled_at
		FROM reservations WHERE id = ?`, id)

	var r ledger.Reservation
	var days, state, createdAt string
	var settledAt sql.NullString
	err := row.Scan(&r.ID, &r.Key.EmployeeID, &r.Key.LeaveTypeID, &r.Key.Year,
		&days, &r.RequestID, &state, &createdAt, &settledAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ledger.Reservation{}, leave.ErrNotFound
		}
		return ledger.Reservation{}, fmt.Errorf("failed to load reservation: %w", err)
	}

	if r.Days, err = decimal.NewFromString(days); err != nil {
		return ledger.Reservation{}, err
	}
	r.State = ledger.ReservationState(state)
	if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return ledger.Reservation{}, err
	}
	if settledAt.Valid {
		t, err := time.Parse(timeLayout, settledAt.String)
		if err != nil {
			return ledger.Reservation{}, err
		}
		r.SettledAt = &t
	}
	return r, nil
}

func (s *Store) SettleReservation(ctx context.Context, id string, outcome ledger.ReservationState) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reservations SET state = ?, settled_at = ?
		WHERE id = ? AND state = ?`,
		string(outcome), time.Now().UTC().Format(timeLayout), id, string(ledger.ReservationOpen))
	if err != nil {
		return fmt.Errorf("failed to settle reservation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return leave.ErrUnknownReservation
	}
	return nil
}

func (s *Store) AppendJournal(ctx context.Context, e ledger.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal (id, seq, employee_id, leave_type_id, year, kind, days, request_id, actor_id, at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM journal), ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Key.EmployeeID, e.Key.LeaveTypeID, e.Key.Year,
		string(e.Kind), e.Days.String(), e.RequestID, e.ActorID, e.At.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

func (s *Store) Journal(ctx context.Context, employeeID string) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, leave_type_id, year, kind, days, request_id, actor_id, at
		FROM journal WHERE employee_id = ? ORDER BY seq ASC`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		var days, kind, at string
		if err := rows.Scan(&e.ID, &e.Key.EmployeeID, &e.Key.LeaveTypeID, &e.Key.Year,
			&kind, &days, &e.RequestID, &e.ActorID, &at); err != nil {
			return nil, err
		}
		if e.Days, err = decimal.NewFromString(days); err != nil {
			return nil, err
		}
		e.Kind = ledger.EntryKind(kind)
		if e.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// REQUEST STORE (approval.RequestStore interface)
// =============================================================================

func (s *Store) Create(ctx context.Context, req *leave.LeaveRequest) error {
	hod := decisionColumns(req.HODDecision)
	hr := decisionColumns(req.HRDecision)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests
		(id, employee_id, leave_type_id, start_date, end_date, working_days, status, reason,
		 reservation_id, hod_actor, hod_verdict, hod_comment, hod_decided_at,
		 hr_actor, hr_verdict, hr_comment, hr_decided_at, document_id,
		 created_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.EmployeeID, req.LeaveTypeID,
		req.StartDate.String(), req.EndDate.String(), req.WorkingDays.String(),
		string(req.Status), req.Reason, req.ReservationID,
		hod.actor, hod.verdict, hod.comment, hod.decidedAt,
		hr.actor, hr.verdict, hr.comment, hr.decidedAt,
		req.DocumentID,
		req.CreatedAt.UTC().Format(timeLayout), req.UpdatedAt.UTC().Format(timeLayout),
		req.Version)
	if err != nil {
		if isUniqueConstraintError(err) {
			return leave.ErrConcurrentModification
		}
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*leave.LeaveRequest, error) {
	reqs, err := s.queryRequests(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, leave.ErrNotFound
	}
	return reqs[0], nil
}

func (s *Store) Update(ctx context.Context, req *leave.LeaveRequest, expectedStatus leave.Status) error {
	hod := decisionColumns(req.HODDecision)
	hr := decisionColumns(req.HRDecision)

	res, err := s.db.ExecContext(ctx, `
		UPDATE requests SET
			status = ?, reason = ?, reservation_id = ?,
			hod_actor = ?, hod_verdict = ?, hod_comment = ?, hod_decided_at = ?,
			hr_actor = ?, hr_verdict = ?, hr_comment = ?, hr_decided_at = ?,
			document_id = ?, updated_at = ?, version = ?
		WHERE id = ? AND status = ? AND version = ?`,
		string(req.Status), req.Reason, req.ReservationID,
		hod.actor, hod.verdict, hod.comment, hod.decidedAt,
		hr.actor, hr.verdict, hr.comment, hr.decidedAt,
		req.DocumentID, req.UpdatedAt.UTC().Format(timeLayout), req.Version,
		req.ID, string(expectedStatus), req.Version-1)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return leave.ErrConcurrentModification
	}
	return nil
}

func (s *Store) ListByEmployee(ctx context.Context, employeeID string) ([]*leave.LeaveRequest, error) {
	return s.queryRequests(ctx, `WHERE employee_id = ? ORDER BY created_at DESC`, employeeID)
}

func (s *Store) queryRequests(ctx context.Context, where string, args ...any) ([]*leave.LeaveRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, leave_type_id, start_date, end_date, working_days, status, reason,
		       reservation_id, hod_actor, hod_verdict, hod_comment, hod_decided_at,
		       hr_actor, hr_verdict, hr_comment, hr_decided_at, document_id,
		       created_at, updated_at, version
		FROM requests `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var out []*leave.LeaveRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func scanRequest(rows *sql.Rows) (*leave.LeaveRequest, error) {
	var req leave.LeaveRequest
	var startDate, endDate, workingDays, status, createdAt, updatedAt string
	var hodActor, hodVerdict, hodComment, hodAt sql.NullString
	var hrActor, hrVerdict, hrComment, hrAt sql.NullString

	err := rows.Scan(&req.ID, &req.EmployeeID, &req.LeaveTypeID,
		&startDate, &endDate, &workingDays, &status, &req.Reason,
		&req.ReservationID,
		&hodActor, &hodVerdict, &hodComment, &hodAt,
		&hrActor, &hrVerdict, &hrComment, &hrAt,
		&req.DocumentID, &createdAt, &updatedAt, &req.Version)
	if err != nil {
		return nil, err
	}

	if req.StartDate, err = calendar.ParseDate(startDate); err != nil {
		return nil, err
	}
	if req.EndDate, err = calendar.ParseDate(endDate); err != nil {
		return nil, err
	}
	if req.WorkingDays, err = decimal.NewFromString(workingDays); err != nil {
		return nil, err
	}
	req.Status = leave.Status(status)
	if req.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, err
	}
	if req.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, err
	}

	if req.HODDecision, err = scanDecision(hodActor, hodVerdict, hodComment, hodAt); err != nil {
		return nil, err
	}
	if req.HRDecision, err = scanDecision(hrActor, hrVerdict, hrComment, hrAt); err != nil {
		return nil, err
	}
	return &req, nil
}

type decisionCols struct {
	actor, verdict, comment, decidedAt sql.NullString
}

func decisionColumns(d *leave.Decision) decisionCols {
	if d == nil {
		return decisionCols{}
	}
	return decisionCols{
		actor:     sql.NullString{String: d.ActorID, Valid: true},
		verdict:   sql.NullString{String: string(d.Verdict), Valid: true},
		comment:   sql.NullString{String: d.Comment, Valid: true},
		decidedAt: sql.NullString{String: d.DecidedAt.UTC().Format(timeLayout), Valid: true},
	}
}

func scanDecision(actor, verdict, comment, at sql.NullString) (*leave.Decision, error) {
	if !actor.Valid {
		return nil, nil
	}
	decidedAt, err := time.Parse(timeLayout, at.String)
	if err != nil {
		return nil, err
	}
	return &leave.Decision{
		ActorID:   actor.String,
		Verdict:   leave.Verdict(verdict.String),
		Comment:   comment.String,
		DecidedAt: decidedAt,
	}, nil
}

// =============================================================================
// EMPLOYEES AND LEAVE TYPES
// =============================================================================

// PutEmployee inserts or updates an employee reference.
func (s *Store) PutEmployee(ctx context.Context, e leave.Employee) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, department_id, hire_date) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET department_id = excluded.department_id, hire_date = excluded.hire_date`,
		e.ID, e.DepartmentID, e.HireDate.String())
	return err
}

func (s *Store) Employee(ctx context.Context, id string) (leave.Employee, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, department_id, hire_date FROM employees WHERE id = ?`, id)

	var e leave.Employee
	var hireDate string
	if err := row.Scan(&e.ID, &e.DepartmentID, &hireDate); err != nil {
		if err == sql.ErrNoRows {
			return leave.Employee{}, leave.ErrNotFound
		}
		return leave.Employee{}, fmt.Errorf("failed to load employee: %w", err)
	}
	var err error
	if e.HireDate, err = calendar.ParseDate(hireDate); err != nil {
		return leave.Employee{}, err
	}
	return e, nil
}

// PutLeaveType inserts or updates a leave type.
func (s *Store) PutLeaveType(ctx context.Context, t leave.LeaveType) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_types (id, name, annual_entitlement, paid) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name,
			annual_entitlement = excluded.annual_entitlement, paid = excluded.paid`,
		t.ID, t.Name, t.AnnualEntitlement.String(), boolToInt(t.Paid))
	return err
}

func (s *Store) LeaveType(ctx context.Context, id string) (leave.LeaveType, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, annual_entitlement, paid FROM leave_types WHERE id = ?`, id)

	var t leave.LeaveType
	var entitlement string
	var paid int
	if err := row.Scan(&t.ID, &t.Name, &entitlement, &paid); err != nil {
		if err == sql.ErrNoRows {
			return leave.LeaveType{}, leave.ErrNotFound
		}
		return leave.LeaveType{}, fmt.Errorf("failed to load leave type: %w", err)
	}
	var err error
	if t.AnnualEntitlement, err = decimal.NewFromString(entitlement); err != nil {
		return leave.LeaveType{}, err
	}
	t.Paid = paid != 0
	return t, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
