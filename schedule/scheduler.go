/*
scheduler.go - Visit mutation orchestration

PURPOSE:
  The explicit application-level sequence around every visit mutation:
  recompute derived fields, run admission control, persist, refresh the
  affected ledgers. The persistence layer has no lifecycle hooks; this
  is the only place the sequence lives.

CONCURRENCY:
  Admission is check-then-write. The scheduler serializes that window
  per date with a lock striped by date, so two concurrent creations on
  a nearly-full day cannot both pass the check and jointly overshoot
  480 minutes. Operations spanning two dates take both locks in sorted
  order.

EDIT RE-GATING:
  Editing form/product counts on an unchanged date is re-gated against
  the cap using the duration delta (the visit's own current minutes are
  already in the ledger and must not count against it twice). A date
  change is gated with the full new duration against the new date.

ADDRESS OWNERSHIP:
  Addresses are shared; deletion is reference-counted. A visit delete or
  address replacement removes the old address only when no other visit
  still points at it.
*/
package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Scheduler coordinates visit and address mutations against the store.
type Scheduler struct {
	store     TxStore
	ledger    *CapacityLedger
	admission *AdmissionControl

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-date admission locks
}

// NewScheduler creates a scheduler over a transactional store.
func NewScheduler(store TxStore) *Scheduler {
	ledger := NewCapacityLedger(store, store)
	return &Scheduler{
		store:     store,
		ledger:    ledger,
		admission: NewAdmissionControl(ledger),
		locks:     make(map[string]*sync.Mutex),
	}
}

// Ledger exposes the capacity ledger for read paths (workday views).
func (s *Scheduler) Ledger() *CapacityLedger { return s.ledger }

// lockDates acquires the per-date locks for the given dates (deduplicated,
// sorted, so concurrent two-date operations cannot deadlock) and returns
// the release function.
func (s *Scheduler) lockDates(dates ...Date) func() {
	keys := map[string]bool{}
	for _, d := range dates {
		keys[d.String()] = true
	}
	ordered := make([]string, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)

	s.mu.Lock()
	held := make([]*sync.Mutex, 0, len(ordered))
	for _, k := range ordered {
		l, ok := s.locks[k]
		if !ok {
			l = &sync.Mutex{}
			s.locks[k] = l
		}
		held = append(held, l)
	}
	s.mu.Unlock()

	for _, l := range held {
		l.Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// =============================================================================
// VISIT OPERATIONS
// =============================================================================

// VisitInput is the payload for creating a visit.
type VisitInput struct {
	Date      Date
	Forms     int
	Products  int
	Completed bool
	Address   Address
}

// VisitChanges is a partial update; nil fields are left unchanged.
type VisitChanges struct {
	Date      *Date
	Forms     *int
	Products  *int
	Completed *bool
}

// AddVisit creates a visit with its address. The write is gated by
// admission control and runs inside one store transaction, so a
// rejection or a failure at any step (including the ledger refresh)
// leaves no partial state behind.
func (s *Scheduler) AddVisit(ctx context.Context, in VisitInput) (*Visit, error) {
	if !ValidPostalCode(in.Address.PostalCode) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPostalCode, in.Address.PostalCode)
	}
	in.Address.PostalCode = FormatPostalCode(in.Address.PostalCode)

	visit := &Visit{
		Date:      in.Date,
		Forms:     in.Forms,
		Products:  in.Products,
		Completed: in.Completed,
	}
	visit.Recalculate()

	unlock := s.lockDates(in.Date)
	defer unlock()

	err := s.store.InTransaction(ctx, func(st Store) error {
		ledger := NewCapacityLedger(st, st)
		if err := NewAdmissionControl(ledger).Admit(ctx, in.Date, visit.Duration); err != nil {
			return err
		}

		addr := in.Address
		if err := st.SaveAddress(ctx, &addr); err != nil {
			return fmt.Errorf("save address: %w", err)
		}
		visit.AddressID = addr.ID

		if err := st.SaveVisit(ctx, visit); err != nil {
			return fmt.Errorf("save visit: %w", err)
		}
		return ledger.Refresh(ctx, in.Date)
	})
	if err != nil {
		return nil, err
	}
	return visit, nil
}

// EditVisit applies a partial update to a visit, re-gating against the
// daily cap whenever the change affects a day total.
func (s *Scheduler) EditVisit(ctx context.Context, id int64, ch VisitChanges) (*Visit, error) {
	visit, err := s.store.GetVisit(ctx, id)
	if err != nil {
		return nil, err
	}

	oldDate := visit.Date
	oldDuration := visit.Duration

	if ch.Date != nil {
		visit.Date = *ch.Date
	}
	if ch.Forms != nil {
		visit.Forms = *ch.Forms
	}
	if ch.Products != nil {
		visit.Products = *ch.Products
	}
	if ch.Completed != nil {
		visit.Completed = *ch.Completed
	}
	visit.Recalculate()

	dateChanged := !visit.Date.Equal(oldDate)

	unlock := s.lockDates(oldDate, visit.Date)
	defer unlock()

	if dateChanged {
		// Moving day: the whole duration lands on the new date.
		if err := s.admission.Admit(ctx, visit.Date, visit.Duration); err != nil {
			return nil, err
		}
	} else if delta := visit.Duration - oldDuration; delta > 0 {
		// Same day, longer visit: gate the growth only. The current
		// duration already sits in the ledger.
		if err := s.admission.Admit(ctx, visit.Date, delta); err != nil {
			return nil, err
		}
	}

	if err := s.store.SaveVisit(ctx, visit); err != nil {
		return nil, fmt.Errorf("save visit: %w", err)
	}

	if err := s.ledger.Refresh(ctx, visit.Date); err != nil {
		return nil, err
	}
	if dateChanged {
		if err := s.ledger.Refresh(ctx, oldDate); err != nil {
			return nil, err
		}
	}
	return visit, nil
}

// DeleteVisit removes a visit, refreshes its day, and garbage-collects
// the address when this was its last reference.
func (s *Scheduler) DeleteVisit(ctx context.Context, id int64) error {
	visit, err := s.store.GetVisit(ctx, id)
	if err != nil {
		return err
	}

	unlock := s.lockDates(visit.Date)
	defer unlock()

	if err := s.store.DeleteVisit(ctx, visit); err != nil {
		return fmt.Errorf("delete visit: %w", err)
	}
	if err := s.ledger.Refresh(ctx, visit.Date); err != nil {
		return err
	}
	return s.releaseAddress(ctx, visit.AddressID)
}

// =============================================================================
// ADDRESS OPERATIONS
// =============================================================================

// ReplaceAddress points a visit at a freshly created address, deleting
// the old one if it became orphaned. A failed repoint rolls the new
// address back.
func (s *Scheduler) ReplaceAddress(ctx context.Context, visitID int64, newAddr Address) (*Address, error) {
	visit, err := s.store.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if !ValidPostalCode(newAddr.PostalCode) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPostalCode, newAddr.PostalCode)
	}
	newAddr.PostalCode = FormatPostalCode(newAddr.PostalCode)
	newAddr.ID = 0

	if err := s.store.SaveAddress(ctx, &newAddr); err != nil {
		return nil, fmt.Errorf("save address: %w", err)
	}

	oldID := visit.AddressID
	visit.AddressID = newAddr.ID
	if err := s.store.SaveVisit(ctx, visit); err != nil {
		_ = s.store.DeleteAddress(ctx, newAddr.ID)
		return nil, fmt.Errorf("save visit: %w", err)
	}

	if err := s.releaseAddress(ctx, oldID); err != nil {
		return nil, err
	}
	return &newAddr, nil
}

// releaseAddress deletes an address iff no visit references it anymore.
func (s *Scheduler) releaseAddress(ctx context.Context, addressID int64) error {
	if addressID == 0 {
		return nil
	}
	n, err := s.store.CountVisitsUsingAddress(ctx, addressID)
	if err != nil {
		return fmt.Errorf("count address references: %w", err)
	}
	if n > 0 {
		return nil
	}
	if err := s.store.DeleteAddress(ctx, addressID); err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	return nil
}
