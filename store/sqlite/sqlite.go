/*
Package sqlite provides the SQLite-backed implementation of the
scheduling storage interfaces.

INTERFACES IMPLEMENTED:
  schedule.Store:   visits, workdays, addresses
  schedule.TxStore: adds InTransaction for the close-day operation

KEY TABLES:
  visits:    scheduled field visits, date-indexed
  workdays:  per-date capacity ledger rows (unique on date)
  addresses: shared postal addresses, reference-counted by the scheduler

WAL MODE:
  Opened with WAL and foreign keys on. Multiple readers don't block,
  single writer at a time, better crash recovery.

TRANSACTIONS:
  InTransaction runs the given function against a transaction-scoped
  store view with serializable isolation; any error rolls the whole
  transaction back. The close-day sweep relies on this.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool with versioned migrations.

USAGE:
  store, err := sqlite.New("./data/visits.db")   // or ":memory:"
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fieldops/visit-engine/schedule"
)

// Store implements schedule.TxStore using SQLite.
type Store struct {
	db *sql.DB
	ops
}

// querier is satisfied by both *sql.DB and *sql.Tx, so the same query
// methods serve plain calls and transaction-scoped views.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ops carries every store operation against a querier.
type ops struct {
	q querier
}

// New creates a SQLite store at dbPath. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single pooled connection avoids
	// SQLITE_BUSY between the pool's own connections under write load.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, ops: ops{q: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS addresses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		postal_code TEXT NOT NULL,
		sublocality TEXT NOT NULL DEFAULT '',
		street TEXT NOT NULL DEFAULT '',
		street_number TEXT NOT NULL DEFAULT '',
		complement TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		forms INTEGER NOT NULL DEFAULT 0,
		products INTEGER NOT NULL DEFAULT 0,
		duration INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		address_id INTEGER NOT NULL REFERENCES addresses(id),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Hot path: every ledger refresh aggregates by date.
	CREATE INDEX IF NOT EXISTS idx_visits_date ON visits(date);
	CREATE INDEX IF NOT EXISTS idx_visits_date_completed ON visits(date, completed);
	-- Address reference counting.
	CREATE INDEX IF NOT EXISTS idx_visits_address ON visits(address_id);

	CREATE TABLE IF NOT EXISTS workdays (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL UNIQUE,
		visits INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		duration INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// =============================================================================
// VISIT STORE
// =============================================================================

func (o ops) SaveVisit(ctx context.Context, v *schedule.Visit) error {
	if v.ID == 0 {
		res, err := o.q.ExecContext(ctx, `
			INSERT INTO visits (date, forms, products, duration, completed, status, address_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.Date.String(), v.Forms, v.Products, v.Duration, v.Completed, string(v.Status), v.AddressID, now(), now())
		if err != nil {
			return fmt.Errorf("insert visit: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("visit id: %w", err)
		}
		v.ID = id
		return nil
	}

	res, err := o.q.ExecContext(ctx, `
		UPDATE visits
		SET date = ?, forms = ?, products = ?, duration = ?, completed = ?, status = ?, address_id = ?, updated_at = ?
		WHERE id = ?`,
		v.Date.String(), v.Forms, v.Products, v.Duration, v.Completed, string(v.Status), v.AddressID, now(), v.ID)
	if err != nil {
		return fmt.Errorf("update visit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return schedule.ErrVisitNotFound
	}
	return nil
}

func (o ops) DeleteVisit(ctx context.Context, v *schedule.Visit) error {
	res, err := o.q.ExecContext(ctx, `DELETE FROM visits WHERE id = ?`, v.ID)
	if err != nil {
		return fmt.Errorf("delete visit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return schedule.ErrVisitNotFound
	}
	return nil
}

func (o ops) GetVisit(ctx context.Context, id int64) (*schedule.Visit, error) {
	row := o.q.QueryRowContext(ctx, `
		SELECT id, date, forms, products, duration, completed, status, address_id
		FROM visits WHERE id = ?`, id)

	v, err := scanVisit(row)
	if err == sql.ErrNoRows {
		return nil, schedule.ErrVisitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get visit: %w", err)
	}
	return v, nil
}

func (o ops) ListVisitsByDate(ctx context.Context, date schedule.Date) ([]schedule.Visit, error) {
	return o.listVisits(ctx, `
		SELECT id, date, forms, products, duration, completed, status, address_id
		FROM visits WHERE date = ? ORDER BY id`, date.String())
}

func (o ops) ListPendingByDate(ctx context.Context, date schedule.Date) ([]schedule.Visit, error) {
	return o.listVisits(ctx, `
		SELECT id, date, forms, products, duration, completed, status, address_id
		FROM visits WHERE date = ? AND completed = 0 ORDER BY id`, date.String())
}

func (o ops) listVisits(ctx context.Context, query string, args ...any) ([]schedule.Visit, error) {
	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	var visits []schedule.Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		visits = append(visits, *v)
	}
	return visits, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanVisit(s scanner) (*schedule.Visit, error) {
	var (
		v       schedule.Visit
		dateStr string
		status  string
	)
	if err := s.Scan(&v.ID, &dateStr, &v.Forms, &v.Products, &v.Duration, &v.Completed, &status, &v.AddressID); err != nil {
		return nil, err
	}
	date, err := schedule.ParseDate(dateStr)
	if err != nil {
		return nil, err
	}
	v.Date = date
	v.Status = schedule.VisitStatus(status)
	return &v, nil
}

func (o ops) SumDurationByDate(ctx context.Context, date schedule.Date) (int, error) {
	var total sql.NullInt64
	err := o.q.QueryRowContext(ctx,
		`SELECT SUM(duration) FROM visits WHERE date = ?`, date.String()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum durations: %w", err)
	}
	return int(total.Int64), nil
}

func (o ops) CountVisitsByDate(ctx context.Context, date schedule.Date, completed *bool) (int, error) {
	query := `SELECT COUNT(*) FROM visits WHERE date = ?`
	args := []any{date.String()}
	if completed != nil {
		query += ` AND completed = ?`
		args = append(args, *completed)
	}

	var n int
	if err := o.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count visits: %w", err)
	}
	return n, nil
}

// =============================================================================
// WORKDAY STORE
// =============================================================================

func (o ops) GetWorkday(ctx context.Context, date schedule.Date) (*schedule.Workday, error) {
	row := o.q.QueryRowContext(ctx, `
		SELECT id, date, visits, completed, duration
		FROM workdays WHERE date = ?`, date.String())

	w, err := scanWorkday(row)
	if err == sql.ErrNoRows {
		return nil, nil // lazy zero, not an error
	}
	if err != nil {
		return nil, fmt.Errorf("get workday: %w", err)
	}
	return w, nil
}

func (o ops) UpsertWorkday(ctx context.Context, w *schedule.Workday) error {
	res, err := o.q.ExecContext(ctx, `
		INSERT INTO workdays (date, visits, completed, duration, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			visits = excluded.visits,
			completed = excluded.completed,
			duration = excluded.duration,
			updated_at = excluded.updated_at`,
		w.Date.String(), w.Visits, w.Completed, w.Duration, now(), now())
	if err != nil {
		return fmt.Errorf("upsert workday: %w", err)
	}
	if w.ID == 0 {
		if id, err := res.LastInsertId(); err == nil {
			w.ID = id
		}
	}
	return nil
}

func (o ops) ListWorkdays(ctx context.Context, from, to *schedule.Date, limit int) ([]schedule.Workday, error) {
	query := `SELECT id, date, visits, completed, duration FROM workdays`
	var (
		conds []string
		args  []any
	)
	if from != nil {
		conds = append(conds, `date >= ?`)
		args = append(args, from.String())
	}
	if to != nil {
		conds = append(conds, `date <= ?`)
		args = append(args, to.String())
	}
	for i, c := range conds {
		if i == 0 {
			query += ` WHERE ` + c
		} else {
			query += ` AND ` + c
		}
	}
	query += ` ORDER BY date DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list workdays: %w", err)
	}
	defer rows.Close()

	var workdays []schedule.Workday
	for rows.Next() {
		w, err := scanWorkday(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workday: %w", err)
		}
		workdays = append(workdays, *w)
	}
	return workdays, rows.Err()
}

func scanWorkday(s scanner) (*schedule.Workday, error) {
	var (
		w       schedule.Workday
		dateStr string
	)
	if err := s.Scan(&w.ID, &dateStr, &w.Visits, &w.Completed, &w.Duration); err != nil {
		return nil, err
	}
	date, err := schedule.ParseDate(dateStr)
	if err != nil {
		return nil, err
	}
	w.Date = date
	return &w, nil
}

// =============================================================================
// ADDRESS STORE
// =============================================================================

func (o ops) SaveAddress(ctx context.Context, a *schedule.Address) error {
	if a.ID == 0 {
		res, err := o.q.ExecContext(ctx, `
			INSERT INTO addresses (postal_code, sublocality, street, street_number, complement, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.PostalCode, a.Sublocality, a.Street, a.StreetNumber, a.Complement, now(), now())
		if err != nil {
			return fmt.Errorf("insert address: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("address id: %w", err)
		}
		a.ID = id
		return nil
	}

	res, err := o.q.ExecContext(ctx, `
		UPDATE addresses
		SET postal_code = ?, sublocality = ?, street = ?, street_number = ?, complement = ?, updated_at = ?
		WHERE id = ?`,
		a.PostalCode, a.Sublocality, a.Street, a.StreetNumber, a.Complement, now(), a.ID)
	if err != nil {
		return fmt.Errorf("update address: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return schedule.ErrAddressNotFound
	}
	return nil
}

func (o ops) DeleteAddress(ctx context.Context, id int64) error {
	res, err := o.q.ExecContext(ctx, `DELETE FROM addresses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return schedule.ErrAddressNotFound
	}
	return nil
}

func (o ops) GetAddress(ctx context.Context, id int64) (*schedule.Address, error) {
	var a schedule.Address
	err := o.q.QueryRowContext(ctx, `
		SELECT id, postal_code, sublocality, street, street_number, complement
		FROM addresses WHERE id = ?`, id).
		Scan(&a.ID, &a.PostalCode, &a.Sublocality, &a.Street, &a.StreetNumber, &a.Complement)
	if err == sql.ErrNoRows {
		return nil, schedule.ErrAddressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get address: %w", err)
	}
	return &a, nil
}

func (o ops) CountVisitsUsingAddress(ctx context.Context, addressID int64) (int, error) {
	var n int
	err := o.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM visits WHERE address_id = ?`, addressID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count address references: %w", err)
	}
	return n, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// InTransaction runs fn against a transaction-scoped store view with
// serializable isolation. A non-nil error from fn rolls everything back.
func (s *Store) InTransaction(ctx context.Context, fn func(schedule.Store) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(ops{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// Compile-time interface checks.
var (
	_ schedule.Store   = (*Store)(nil)
	_ schedule.TxStore = (*Store)(nil)
	_ schedule.Store   = ops{}
)
