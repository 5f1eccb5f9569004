/*
ledger.go - Per-day capacity ledger

PURPOSE:
  Maintains the Workday aggregate for each date: visit count, completed
  count, total scheduled minutes. The row is a cache over the visit set,
  recomputed after every visit mutation that touches its date.

INVARIANT:
  workday.Duration == SUM(visit.Duration) for all visits on that date.
  The counters are never hand-edited; Refresh is the only writer.

IDEMPOTENCE:
  Refresh(date) twice with no intervening visit mutation stores the same
  values. Tests rely on this.

LAZY MATERIALIZATION:
  CurrentDuration treats a missing row as 0. The row itself is created
  the first time Refresh runs for the date, with zeros when the date has
  no visits.
*/
package schedule

import (
	"context"
	"fmt"
)

// CapacityLedger recomputes and reads the per-date Workday aggregates.
type CapacityLedger struct {
	visits   VisitStore
	workdays WorkdayStore
}

// NewCapacityLedger creates a ledger over the given stores.
func NewCapacityLedger(visits VisitStore, workdays WorkdayStore) *CapacityLedger {
	return &CapacityLedger{visits: visits, workdays: workdays}
}

// Refresh recomputes the three counters for date from the current visit
// set and upserts the ledger row, creating it when absent.
func (l *CapacityLedger) Refresh(ctx context.Context, date Date) error {
	total, err := l.visits.CountVisitsByDate(ctx, date, nil)
	if err != nil {
		return fmt.Errorf("count visits for %s: %w", date, err)
	}

	completed := true
	done, err := l.visits.CountVisitsByDate(ctx, date, &completed)
	if err != nil {
		return fmt.Errorf("count completed visits for %s: %w", date, err)
	}

	duration, err := l.visits.SumDurationByDate(ctx, date)
	if err != nil {
		return fmt.Errorf("sum durations for %s: %w", date, err)
	}

	workday, err := l.workdays.GetWorkday(ctx, date)
	if err != nil {
		return fmt.Errorf("load workday %s: %w", date, err)
	}
	if workday == nil {
		workday = &Workday{Date: date}
	}

	workday.Visits = total
	workday.Completed = done
	workday.Duration = duration

	if err := l.workdays.UpsertWorkday(ctx, workday); err != nil {
		return fmt.Errorf("upsert workday %s: %w", date, err)
	}
	return nil
}

// CurrentDuration returns the scheduled minutes recorded for date.
// A date that was never materialized reads as 0.
func (l *CapacityLedger) CurrentDuration(ctx context.Context, date Date) (int, error) {
	workday, err := l.workdays.GetWorkday(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("load workday %s: %w", date, err)
	}
	if workday == nil {
		return 0, nil
	}
	return workday.Duration, nil
}
