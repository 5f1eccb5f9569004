/*
store.go - Storage interface definitions

PURPOSE:
  Defines the persistence contracts the scheduling core depends on.
  Components receive these interfaces at construction time - nothing is
  looked up from a registry at call time.

INTERFACES:
  VisitStore:   Visit persistence and per-date aggregation queries
  WorkdayStore: Capacity ledger rows
  AddressStore: Addresses with reference counting
  Store:        All of the above (what most components take)
  TxStore:      Store + InTransaction for the close-day operation

IMPLEMENTATIONS:
  store/sqlite:    Production SQLite store
  schedule/store:  In-memory store for tests
*/
package schedule

import "context"

// =============================================================================
// STORE INTERFACES
// =============================================================================

// VisitStore persists visits and answers the per-date aggregate queries
// the ledger is rebuilt from.
type VisitStore interface {
	// SaveVisit inserts (ID == 0, assigning an ID) or updates a visit.
	SaveVisit(ctx context.Context, v *Visit) error

	// DeleteVisit removes a visit.
	DeleteVisit(ctx context.Context, v *Visit) error

	// GetVisit returns a visit by ID, or ErrVisitNotFound.
	GetVisit(ctx context.Context, id int64) (*Visit, error)

	// ListVisitsByDate returns all visits scheduled on a date, oldest first.
	ListVisitsByDate(ctx context.Context, date Date) ([]Visit, error)

	// ListPendingByDate returns visits on a date with Completed=false.
	ListPendingByDate(ctx context.Context, date Date) ([]Visit, error)

	// SumDurationByDate returns the minute sum over all visits on a date.
	SumDurationByDate(ctx context.Context, date Date) (int, error)

	// CountVisitsByDate counts visits on a date; completed filters by
	// the Completed flag when non-nil.
	CountVisitsByDate(ctx context.Context, date Date, completed *bool) (int, error)
}

// WorkdayStore persists capacity ledger rows.
type WorkdayStore interface {
	// GetWorkday returns the ledger row for a date, or nil when the date
	// has never been materialized. A missing row is not an error.
	GetWorkday(ctx context.Context, date Date) (*Workday, error)

	// UpsertWorkday creates or replaces the ledger row for w.Date.
	UpsertWorkday(ctx context.Context, w *Workday) error

	// ListWorkdays returns ledger rows, newest date first, optionally
	// bounded by from/to (inclusive) and capped at limit when limit > 0.
	ListWorkdays(ctx context.Context, from, to *Date, limit int) ([]Workday, error)
}

// AddressStore persists addresses.
type AddressStore interface {
	// SaveAddress inserts (ID == 0) or updates an address.
	SaveAddress(ctx context.Context, a *Address) error

	// DeleteAddress removes an address by ID.
	DeleteAddress(ctx context.Context, id int64) error

	// GetAddress returns an address by ID, or ErrAddressNotFound.
	GetAddress(ctx context.Context, id int64) (*Address, error)

	// CountVisitsUsingAddress returns how many visits reference an address.
	CountVisitsUsingAddress(ctx context.Context, addressID int64) (int, error)
}

// Store is the full persistence surface the scheduling core needs.
type Store interface {
	VisitStore
	WorkdayStore
	AddressStore
}

// TxStore is a Store that can run a function inside a single storage
// transaction. The Store passed to fn sees and writes uncommitted state;
// a non-nil error from fn rolls everything back.
type TxStore interface {
	Store
	InTransaction(ctx context.Context, fn func(Store) error) error
}
