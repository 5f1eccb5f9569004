/*
close_test.go - Unit tests for the day-closing reallocation engine

CORE DESIGN:
- Completed visits never move; only the pending set is swept
- Each pending visit relocates independently; a visit that cannot move
  is a per-item failure, not an aborted close
- Re-closing is idempotent: the pending set shrinks toward empty
- The whole sweep runs in one transaction
*/
package schedule_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/visit-engine/schedule"
	memstore "github.com/fieldops/visit-engine/schedule/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestCloseEngine(t *testing.T) (*schedule.CloseEngine, *memstore.Memory, *schedule.CapacityLedger) {
	t.Helper()
	mem := memstore.NewMemory()
	ledger := schedule.NewCapacityLedger(mem, mem)
	return schedule.NewCloseEngine(mem), mem, ledger
}

// =============================================================================
// CLOSE TESTS
// =============================================================================

func TestClose_EmptyPendingSet(t *testing.T) {
	// GIVEN: A day with only completed visits
	// WHEN: The day is closed
	// THEN: Nothing moves and the summary is all zeros

	engine, mem, ledger := newTestCloseEngine(t)
	ctx := context.Background()
	march10 := date(2026, time.March, 10)

	done := seedVisit(t, mem, march10, 2, 0, true)
	require.NoError(t, ledger.Refresh(ctx, march10))

	result, err := engine.Close(ctx, march10)
	require.NoError(t, err)

	assert.Equal(t, schedule.CloseSummary{}, result.Summary)
	assert.Empty(t, result.Reallocated)
	assert.Empty(t, result.Failed)

	// The completed visit stayed put.
	got, err := mem.GetVisit(ctx, done.ID)
	require.NoError(t, err)
	assert.True(t, got.Date.Equal(march10))
}

func TestClose_RelocatesToFirstDayWithRoom(t *testing.T) {
	// GIVEN: A pending 450-minute visit on March 10, with March 11 full
	//        and March 12 holding 460 minutes
	// WHEN: March 10 is closed
	// THEN: The visit lands on March 13, and the ledgers of the closed
	//       date and the destination are both recomputed

	engine, mem, ledger := newTestCloseEngine(t)
	ctx := context.Background()
	march10 := date(2026, time.March, 10)

	pending := seedVisit(t, mem, march10, 30, 0, false) // 450 min
	seedVisit(t, mem, march10.AddDays(1), 32, 0, false) // 480 min, full
	seedVisit(t, mem, march10.AddDays(2), 28, 8, false) // 460 min
	for i := 0; i <= 2; i++ {
		require.NoError(t, ledger.Refresh(ctx, march10.AddDays(i)))
	}

	result, err := engine.Close(ctx, march10)
	require.NoError(t, err)

	require.Len(t, result.Reallocated, 1)
	moved := result.Reallocated[0]
	assert.Equal(t, pending.ID, moved.VisitID)
	assert.True(t, moved.FromDate.Equal(march10))
	assert.True(t, moved.ToDate.Equal(march10.AddDays(3)))
	assert.Equal(t, 450, moved.Duration)
	assert.Equal(t, schedule.CloseSummary{TotalPending: 1, Succeeded: 1}, result.Summary)

	// Closed date drained, destination charged.
	closedWd, err := mem.GetWorkday(ctx, march10)
	require.NoError(t, err)
	assert.Equal(t, 0, closedWd.Duration)

	destWd, err := mem.GetWorkday(ctx, march10.AddDays(3))
	require.NoError(t, err)
	assert.Equal(t, 450, destWd.Duration)

	// March 12 only rejected the visit; its row must be untouched.
	skippedWd, err := mem.GetWorkday(ctx, march10.AddDays(2))
	require.NoError(t, err)
	assert.Equal(t, 460, skippedWd.Duration)
}

func TestClose_SequentialPacking(t *testing.T) {
	// GIVEN: Three pending 240-minute visits on an otherwise empty horizon
	// WHEN: The day is closed
	// THEN: Two pack onto March 11 (exactly 480), the third spills to
	//       March 12 - earlier visits consume the capacity later ones see

	engine, mem, ledger := newTestCloseEngine(t)
	ctx := context.Background()
	march10 := date(2026, time.March, 10)

	a := seedVisit(t, mem, march10, 16, 0, false) // 240 min
	b := seedVisit(t, mem, march10, 16, 0, false)
	c := seedVisit(t, mem, march10, 16, 0, false)
	require.NoError(t, ledger.Refresh(ctx, march10))

	result, err := engine.Close(ctx, march10)
	require.NoError(t, err)
	require.Len(t, result.Reallocated, 3)

	dest := map[int64]schedule.Date{}
	for _, m := range result.Reallocated {
		dest[m.VisitID] = m.ToDate
	}
	assert.True(t, dest[a.ID].Equal(march10.AddDays(1)))
	assert.True(t, dest[b.ID].Equal(march10.AddDays(1)))
	assert.True(t, dest[c.ID].Equal(march10.AddDays(2)))
}

func TestClose_DestinationsNeverExceedCap(t *testing.T) {
	// GIVEN: Two pending 300-minute visits on an empty horizon
	// WHEN: The day is closed
	// THEN: They cannot share a destination (600 > 480): the first lands
	//       on March 11, the second on March 12, and no destination row
	//       exceeds the cap

	engine, mem, ledger := newTestCloseEngine(t)
	ctx := context.Background()
	march10 := date(2026, time.March, 10)

	a := seedVisit(t, mem, march10, 20, 0, false) // 300 min
	b := seedVisit(t, mem, march10, 20, 0, false)
	require.NoError(t, ledger.Refresh(ctx, march10))

	result, err := engine.Close(ctx, march10)
	require.NoError(t, err)
	require.Len(t, result.Reallocated, 2)

	dest := map[int64]schedule.Date{}
	for _, m := range result.Reallocated {
		dest[m.VisitID] = m.ToDate
	}
	assert.True(t, dest[a.ID].Equal(march10.AddDays(1)))
	assert.True(t, dest[b.ID].Equal(march10.AddDays(2)))

	for i := 1; i <= 2; i++ {
		wd, err := mem.GetWorkday(ctx, march10.AddDays(i))
		require.NoError(t, err)
		assert.LessOrEqual(t, wd.Duration, schedule.DailyCapacityMinutes,
			"destination %s must stay within the daily cap", wd.Date)
		assert.Equal(t, 300, wd.Duration)
	}
}

func TestClose_NoCapacityInHorizon_ReportedPerVisit(t *testing.T) {
	// GIVEN: A pending visit and a fully booked 30-day horizon
	// WHEN: The day is closed
	// THEN: The close succeeds with one per-item failure and the visit
	//       keeps its original date

	engine, mem, ledger := newTestCloseEngine(t)
	ctx := context.Background()
	march10 := date(2026, time.March, 10)

	stuck := seedVisit(t, mem, march10, 1, 0, false)
	for i := 1; i <= schedule.HorizonDays; i++ {
		seedVisit(t, mem, march10.AddDays(i), 32, 0, false) // 480 min
		require.NoError(t, ledger.Refresh(ctx, march10.AddDays(i)))
	}
	require.NoError(t, ledger.Refresh(ctx, march10))

	result, err := engine.Close(ctx, march10)
	require.NoError(t, err)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, stuck.ID, result.Failed[0].VisitID)
	assert.Equal(t, schedule.ReasonNoCapacity, result.Failed[0].Reason)
	assert.Equal(t, schedule.CloseSummary{TotalPending: 1, Failed: 1}, result.Summary)

	got, err := mem.GetVisit(ctx, stuck.ID)
	require.NoError(t, err)
	assert.True(t, got.Date.Equal(march10))
}

func TestClose_WriteFailure_RecordedAndSweepContinues(t *testing.T) {
	// GIVEN: Two pending visits, the first of which fails to save
	// WHEN: The day is closed
	// THEN: The failure is recorded per-item and the second visit still
	//       relocates

	engine, mem, ledger := newTestCloseEngine(t)
	ctx := context.Background()
	march10 := date(2026, time.March, 10)

	bad := seedVisit(t, mem, march10, 2, 0, false)
	good := seedVisit(t, mem, march10, 3, 0, false)
	require.NoError(t, ledger.Refresh(ctx, march10))

	mem.SaveVisitHook = func(v *schedule.Visit) error {
		if v.ID == bad.ID {
			return errors.New("disk full")
		}
		return nil
	}

	result, err := engine.Close(ctx, march10)
	require.NoError(t, err)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, bad.ID, result.Failed[0].VisitID)
	assert.Equal(t, schedule.ReasonWriteFailed, result.Failed[0].Reason)
	require.Len(t, result.Reallocated, 1)
	assert.Equal(t, good.ID, result.Reallocated[0].VisitID)
	assert.Equal(t, schedule.CloseSummary{TotalPending: 2, Succeeded: 1, Failed: 1}, result.Summary)
}

func TestClose_Idempotent(t *testing.T) {
	// GIVEN: A day already closed once
	// WHEN: It is closed again
	// THEN: The pending set is empty and no visit moves twice

	engine, mem, ledger := newTestCloseEngine(t)
	ctx := context.Background()
	march10 := date(2026, time.March, 10)

	v := seedVisit(t, mem, march10, 4, 0, false)
	require.NoError(t, ledger.Refresh(ctx, march10))

	first, err := engine.Close(ctx, march10)
	require.NoError(t, err)
	require.Len(t, first.Reallocated, 1)
	firstDest := first.Reallocated[0].ToDate

	second, err := engine.Close(ctx, march10)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Summary.TotalPending)
	assert.Empty(t, second.Reallocated)

	got, err := mem.GetVisit(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, got.Date.Equal(firstDest), "visit must not move again")
}

func TestClose_StoreFailureRollsBackTheWholeSweep(t *testing.T) {
	// GIVEN: A store whose workday writes break mid-close
	// WHEN: The close aborts
	// THEN: Relocations from this invocation are rolled back

	mem := memstore.NewMemory()
	ledger := schedule.NewCapacityLedger(mem, mem)
	engine := schedule.NewCloseEngine(&failingWorkdayStore{Memory: mem})
	ctx := context.Background()
	march10 := date(2026, time.March, 10)

	v := seedVisit(t, mem, march10, 4, 0, false)
	require.NoError(t, ledger.Refresh(ctx, march10))

	_, err := engine.Close(ctx, march10)
	require.Error(t, err)

	got, err := mem.GetVisit(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, got.Date.Equal(march10), "relocation must be rolled back")
}

// failingWorkdayStore breaks every workday upsert after the fact, so a
// close fails at its final refresh phase.
type failingWorkdayStore struct {
	*memstore.Memory
}

func (f *failingWorkdayStore) UpsertWorkday(_ context.Context, _ *schedule.Workday) error {
	return errors.New("workday table gone")
}

func (f *failingWorkdayStore) InTransaction(ctx context.Context, fn func(schedule.Store) error) error {
	return f.Memory.InTransaction(ctx, func(schedule.Store) error {
		return fn(f)
	})
}
