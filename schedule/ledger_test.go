/*
ledger_test.go - Unit tests for the per-day capacity ledger and
admission control

CORE DESIGN:
- Workday counters are a CACHE over the visit set, recomputed by Refresh
- Refresh is idempotent
- Admission is inclusive at the 480-minute boundary
- An unmaterialized date reads as 0 minutes
*/
package schedule_test

import (
	"context"
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

func newTestLedger(t *testing.T) (*schedule.CapacityLedger, *memstore.Memory) {
	t.Helper()
	mem := memstore.NewMemory()
	return schedule.NewCapacityLedger(mem, mem), mem
}

// seedVisit saves a visit with derived fields recomputed.
func seedVisit(t *testing.T, mem *memstore.Memory, date schedule.Date, forms, products int, completed bool) *schedule.Visit {
	t.Helper()
	v := &schedule.Visit{Date: date, Forms: forms, Products: products, Completed: completed}
	v.Recalculate()
	require.NoError(t, mem.SaveVisit(context.Background(), v))
	return v
}

func date(y int, m time.Month, d int) schedule.Date {
	return schedule.NewDate(y, m, d)
}

// =============================================================================
// LEDGER REFRESH TESTS
// =============================================================================

func TestLedger_Refresh_RecomputesAllCounters(t *testing.T) {
	// GIVEN: Two visits on March 10, one completed (30 min + 45 min)
	// WHEN: The ledger is refreshed
	// THEN: The workday row reads visits=2, completed=1, duration=75

	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	march10 := date(2026, time.March, 10)

	seedVisit(t, mem, march10, 2, 0, true)  // 30 min
	seedVisit(t, mem, march10, 3, 0, false) // 45 min

	require.NoError(t, ledger.Refresh(ctx, march10))

	wd, err := mem.GetWorkday(ctx, march10)
	require.NoError(t, err)
	require.NotNil(t, wd)
	assert.Equal(t, 2, wd.Visits)
	assert.Equal(t, 1, wd.Completed)
	assert.Equal(t, 75, wd.Duration)
}

func TestLedger_Refresh_CreatesRowForEmptyDate(t *testing.T) {
	// First touch of a date with no visits materializes a zero row.
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	march10 := date(2026, time.March, 10)

	require.NoError(t, ledger.Refresh(ctx, march10))

	wd, err := mem.GetWorkday(ctx, march10)
	require.NoError(t, err)
	require.NotNil(t, wd)
	assert.NotZero(t, wd.ID)
	assert.Equal(t, 0, wd.Visits)
	assert.Equal(t, 0, wd.Duration)
}

func TestLedger_Refresh_Idempotent(t *testing.T) {
	// GIVEN: A refreshed date
	// WHEN: Refresh runs again with no intervening mutation
	// THEN: The row is unchanged, including its ID

	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	march10 := date(2026, time.March, 10)
	seedVisit(t, mem, march10, 1, 1, false) // 20 min

	require.NoError(t, ledger.Refresh(ctx, march10))
	first, err := mem.GetWorkday(ctx, march10)
	require.NoError(t, err)

	require.NoError(t, ledger.Refresh(ctx, march10))
	second, err := mem.GetWorkday(ctx, march10)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLedger_Refresh_TracksDeletion(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	march10 := date(2026, time.March, 10)

	v := seedVisit(t, mem, march10, 2, 0, false)
	require.NoError(t, ledger.Refresh(ctx, march10))

	require.NoError(t, mem.DeleteVisit(ctx, v))
	require.NoError(t, ledger.Refresh(ctx, march10))

	wd, err := mem.GetWorkday(ctx, march10)
	require.NoError(t, err)
	assert.Equal(t, 0, wd.Visits)
	assert.Equal(t, 0, wd.Duration)
}

func TestLedger_CurrentDuration_MissingRowReadsAsZero(t *testing.T) {
	ledger, _ := newTestLedger(t)

	d, err := ledger.CurrentDuration(context.Background(), date(2026, time.March, 10))
	require.NoError(t, err)
	assert.Equal(t, 0, d)
}

// =============================================================================
// ADMISSION CONTROL TESTS
// =============================================================================

func TestAdmission_InclusiveBoundary(t *testing.T) {
	// GIVEN: A day already holding 450 minutes
	// WHEN: 30 more minutes are proposed (exactly reaching 480)
	// THEN: Admitted; 31 minutes would be rejected

	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	march10 := date(2026, time.March, 10)

	seedVisit(t, mem, march10, 30, 0, false) // 450 min
	require.NoError(t, ledger.Refresh(ctx, march10))

	admission := schedule.NewAdmissionControl(ledger)

	ok, err := admission.CanAdmit(ctx, march10, 30)
	require.NoError(t, err)
	assert.True(t, ok, "filling the day exactly must be admitted")

	ok, err = admission.CanAdmit(ctx, march10, 31)
	require.NoError(t, err)
	assert.False(t, ok, "overshooting by one minute must be rejected")
}

func TestAdmission_Admit_ReturnsTypedCapacityError(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	march10 := date(2026, time.March, 10)

	seedVisit(t, mem, march10, 32, 0, false) // full day
	require.NoError(t, ledger.Refresh(ctx, march10))

	admission := schedule.NewAdmissionControl(ledger)
	err := admission.Admit(ctx, march10, 15)
	require.Error(t, err)

	var capErr *schedule.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 480, capErr.Current)
	assert.Equal(t, 15, capErr.Requested)
	assert.ErrorIs(t, err, schedule.ErrCapacityExceeded)
}

func TestAdmission_UnmaterializedDateHasFullCapacity(t *testing.T) {
	ledger, _ := newTestLedger(t)
	admission := schedule.NewAdmissionControl(ledger)

	ok, err := admission.CanAdmit(context.Background(), date(2026, time.March, 10), 480)
	require.NoError(t, err)
	assert.True(t, ok)
}
