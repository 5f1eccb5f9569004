/*
finder_test.go - Unit tests for the forward availability search

CORE DESIGN:
- The scan starts at start+1: the day being closed is never a candidate
- Earliest admitting date wins, not best fit
- An exhausted 30-day horizon is ok=false, not an error
*/
package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/visit-engine/schedule"
)

func newTestFinder(t *testing.T) (*schedule.AvailabilityFinder, func(schedule.Date, int)) {
	t.Helper()
	ledger, mem := newTestLedger(t)
	finder := schedule.NewAvailabilityFinder(schedule.NewAdmissionControl(ledger))

	// fill schedules minutes on a date and refreshes its ledger row.
	fill := func(d schedule.Date, minutes int) {
		t.Helper()
		require.Zero(t, minutes%5, "test durations must be composable from products")
		v := &schedule.Visit{Date: d, Products: minutes / 5}
		v.Recalculate()
		require.NoError(t, mem.SaveVisit(context.Background(), v))
		require.NoError(t, ledger.Refresh(context.Background(), d))
	}
	return finder, fill
}

func TestFinder_NeverReturnsStartDate(t *testing.T) {
	// GIVEN: An empty schedule (start itself has full capacity)
	// WHEN: Searching from March 10
	// THEN: March 11 is returned, never March 10

	finder, _ := newTestFinder(t)
	start := date(2026, time.March, 10)

	got, ok, err := finder.FindAvailable(context.Background(), start, 60)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, start.AddDays(1), got)
}

func TestFinder_SkipsFullDays_EarliestWins(t *testing.T) {
	// GIVEN: March 11 full, March 12 holding 460 minutes
	// WHEN: Searching for a 450-minute slot from March 10
	// THEN: March 13 is the first date that admits

	finder, fill := newTestFinder(t)
	start := date(2026, time.March, 10)
	fill(start.AddDays(1), 480)
	fill(start.AddDays(2), 460)

	got, ok, err := finder.FindAvailable(context.Background(), start, 450)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, start.AddDays(3), got)
}

func TestFinder_ExactFitAdmits(t *testing.T) {
	// A day holding 420 minutes still admits exactly 60.
	finder, fill := newTestFinder(t)
	start := date(2026, time.March, 10)
	fill(start.AddDays(1), 420)

	got, ok, err := finder.FindAvailable(context.Background(), start, 60)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, start.AddDays(1), got)
}

func TestFinder_ExhaustedHorizonIsNotAnError(t *testing.T) {
	// GIVEN: All 30 days of the horizon are full
	// WHEN: Searching for any slot
	// THEN: ok=false with a nil error

	finder, fill := newTestFinder(t)
	start := date(2026, time.March, 10)
	for i := 1; i <= schedule.HorizonDays; i++ {
		fill(start.AddDays(i), 480)
	}

	_, ok, err := finder.FindAvailable(context.Background(), start, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFinder_DayJustPastHorizonIsNotConsidered(t *testing.T) {
	// Capacity on start+31 must not rescue an exhausted horizon.
	finder, fill := newTestFinder(t)
	start := date(2026, time.March, 10)
	for i := 1; i <= schedule.HorizonDays; i++ {
		fill(start.AddDays(i), 480)
	}
	// start+31 left empty on purpose.

	_, ok, err := finder.FindAvailable(context.Background(), start, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}
