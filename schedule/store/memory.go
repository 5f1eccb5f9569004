// Package store provides an in-memory schedule.Store implementation
// for tests.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/fieldops/visit-engine/schedule"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements schedule.TxStore entirely in maps.
//
// SaveVisitHook, when set, is consulted before every visit save; a non-nil
// return is surfaced as the save error. Tests use it to simulate write
// failures for specific visits.
type Memory struct {
	mu sync.RWMutex

	visits    map[int64]schedule.Visit
	addresses map[int64]schedule.Address
	workdays  map[string]schedule.Workday

	nextVisitID   int64
	nextAddressID int64
	nextWorkdayID int64

	SaveVisitHook func(*schedule.Visit) error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		visits:    make(map[int64]schedule.Visit),
		addresses: make(map[int64]schedule.Address),
		workdays:  make(map[string]schedule.Workday),
	}
}

// =============================================================================
// VISIT STORE
// =============================================================================

func (m *Memory) SaveVisit(_ context.Context, v *schedule.Visit) error {
	if m.SaveVisitHook != nil {
		if err := m.SaveVisitHook(v); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if v.ID == 0 {
		m.nextVisitID++
		v.ID = m.nextVisitID
	}
	m.visits[v.ID] = *v
	return nil
}

func (m *Memory) DeleteVisit(_ context.Context, v *schedule.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.visits[v.ID]; !ok {
		return schedule.ErrVisitNotFound
	}
	delete(m.visits, v.ID)
	return nil
}

func (m *Memory) GetVisit(_ context.Context, id int64) (*schedule.Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.visits[id]
	if !ok {
		return nil, schedule.ErrVisitNotFound
	}
	return &v, nil
}

func (m *Memory) ListVisitsByDate(_ context.Context, date schedule.Date) ([]schedule.Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listByDateLocked(date, nil), nil
}

func (m *Memory) ListPendingByDate(_ context.Context, date schedule.Date) ([]schedule.Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pending := false
	return m.listByDateLocked(date, &pending), nil
}

// listByDateLocked returns visits on date in creation (ID) order,
// optionally filtered by the Completed flag.
func (m *Memory) listByDateLocked(date schedule.Date, completed *bool) []schedule.Visit {
	var out []schedule.Visit
	for _, v := range m.visits {
		if !v.Date.Equal(date) {
			continue
		}
		if completed != nil && v.Completed != *completed {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) SumDurationByDate(_ context.Context, date schedule.Date) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, v := range m.visits {
		if v.Date.Equal(date) {
			total += v.Duration
		}
	}
	return total, nil
}

func (m *Memory) CountVisitsByDate(_ context.Context, date schedule.Date, completed *bool) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listByDateLocked(date, completed)), nil
}

// =============================================================================
// WORKDAY STORE
// =============================================================================

func (m *Memory) GetWorkday(_ context.Context, date schedule.Date) (*schedule.Workday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.workdays[date.String()]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (m *Memory) UpsertWorkday(_ context.Context, w *schedule.Workday) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.workdays[w.Date.String()]; ok {
		w.ID = existing.ID
	} else if w.ID == 0 {
		m.nextWorkdayID++
		w.ID = m.nextWorkdayID
	}
	m.workdays[w.Date.String()] = *w
	return nil
}

func (m *Memory) ListWorkdays(_ context.Context, from, to *schedule.Date, limit int) ([]schedule.Workday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []schedule.Workday
	for _, w := range m.workdays {
		if from != nil && w.Date.Before(*from) {
			continue
		}
		if to != nil && w.Date.After(*to) {
			continue
		}
		out = append(out, w)
	}
	// Newest first, matching the SQLite store.
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// =============================================================================
// ADDRESS STORE
// =============================================================================

func (m *Memory) SaveAddress(_ context.Context, a *schedule.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID == 0 {
		m.nextAddressID++
		a.ID = m.nextAddressID
	}
	m.addresses[a.ID] = *a
	return nil
}

func (m *Memory) DeleteAddress(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.addresses[id]; !ok {
		return schedule.ErrAddressNotFound
	}
	delete(m.addresses, id)
	return nil
}

func (m *Memory) GetAddress(_ context.Context, id int64) (*schedule.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.addresses[id]
	if !ok {
		return nil, schedule.ErrAddressNotFound
	}
	return &a, nil
}

func (m *Memory) CountVisitsUsingAddress(_ context.Context, addressID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, v := range m.visits {
		if v.AddressID == addressID {
			n++
		}
	}
	return n, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// InTransaction snapshots the maps, runs fn, and restores the snapshot if
// fn fails. Good enough isolation for a single-process store: callers are
// expected to serialize conflicting operations at the scheduler level.
func (m *Memory) InTransaction(_ context.Context, fn func(schedule.Store) error) error {
	m.mu.Lock()
	visits := make(map[int64]schedule.Visit, len(m.visits))
	for k, v := range m.visits {
		visits[k] = v
	}
	addresses := make(map[int64]schedule.Address, len(m.addresses))
	for k, v := range m.addresses {
		addresses[k] = v
	}
	workdays := make(map[string]schedule.Workday, len(m.workdays))
	for k, v := range m.workdays {
		workdays[k] = v
	}
	ids := [3]int64{m.nextVisitID, m.nextAddressID, m.nextWorkdayID}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.visits = visits
		m.addresses = addresses
		m.workdays = workdays
		m.nextVisitID, m.nextAddressID, m.nextWorkdayID = ids[0], ids[1], ids[2]
		m.mu.Unlock()
		return err
	}
	return nil
}

// Compile-time interface checks.
var (
	_ schedule.Store   = (*Memory)(nil)
	_ schedule.TxStore = (*Memory)(nil)
)
