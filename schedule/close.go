/*
close.go - Day-closing reallocation engine

PURPOSE:
  Closing a day sweeps its unfinished visits onto future days with spare
  capacity. Completed visits stay where they are. Each pending visit is
  relocated independently: one visit that cannot move never aborts the
  sweep, it is reported as a per-item failure instead.

TRANSACTION BOUNDARY:
  The whole close - pending-set read, every relocation write, every
  ledger refresh - runs inside one store transaction. A store-level
  failure rolls back all relocations of this invocation and surfaces as
  a single operation-level error.

IDEMPOTENCE:
  Re-closing a date is safe: already-relocated visits no longer carry the
  target date, so the pending set shrinks toward empty. No visit is ever
  relocated twice by repeated closes.

LEDGER REFRESH:
  The destination ledger is recomputed immediately after every
  relocation write, so the admission read for the next pending visit
  sees the minutes already placed there - without this, several visits
  would be jointly admitted to one destination past the 480-minute cap.
  The closed date is refreshed once after the sweep. Dates that only
  rejected candidates are left alone - nothing changed there.
*/
package schedule

import (
	"context"
	"fmt"
)

// Failure reasons reported per visit in a CloseResult.
const (
	ReasonNoCapacity  = "no capacity in horizon"
	ReasonWriteFailed = "write failed"
)

// ReallocatedVisit records one successful relocation.
type ReallocatedVisit struct {
	VisitID  int64
	FromDate Date
	ToDate   Date
	Duration int
}

// FailedReallocation records one visit that could not be relocated.
// The visit keeps its original date.
type FailedReallocation struct {
	VisitID int64
	Reason  string
}

// CloseSummary is the count rollup of a close operation.
type CloseSummary struct {
	TotalPending int
	Succeeded    int
	Failed       int
}

// CloseResult is the full outcome of closing one day.
type CloseResult struct {
	ClosedDate  Date
	Reallocated []ReallocatedVisit
	Failed      []FailedReallocation
	Summary     CloseSummary
}

// CloseEngine orchestrates the close-day operation.
type CloseEngine struct {
	store TxStore
}

// NewCloseEngine creates a close engine over a transactional store.
func NewCloseEngine(store TxStore) *CloseEngine {
	return &CloseEngine{store: store}
}

// Close relocates all pending visits off date and refreshes the affected
// ledgers, as one transaction.
func (e *CloseEngine) Close(ctx context.Context, date Date) (*CloseResult, error) {
	var result *CloseResult
	err := e.store.InTransaction(ctx, func(s Store) error {
		r, err := closeDay(ctx, s, date)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("close %s: %w", date, err)
	}
	return result, nil
}

// closeDay runs the sweep against a (transaction-scoped) store view.
func closeDay(ctx context.Context, s Store, date Date) (*CloseResult, error) {
	ledger := NewCapacityLedger(s, s)
	finder := NewAvailabilityFinder(NewAdmissionControl(ledger))

	pending, err := s.ListPendingByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list pending visits: %w", err)
	}

	result := &CloseResult{ClosedDate: date}

	for i := range pending {
		visit := pending[i]

		target, found, err := finder.FindAvailable(ctx, date, visit.Duration)
		if err != nil {
			// Ledger reads failing means the store is broken; abort the close.
			return nil, fmt.Errorf("find slot for visit %d: %w", visit.ID, err)
		}
		if !found {
			result.Failed = append(result.Failed, FailedReallocation{
				VisitID: visit.ID,
				Reason:  ReasonNoCapacity,
			})
			continue
		}

		visit.Date = target
		if err := s.SaveVisit(ctx, &visit); err != nil {
			result.Failed = append(result.Failed, FailedReallocation{
				VisitID: visit.ID,
				Reason:  ReasonWriteFailed,
			})
			continue
		}

		// Refresh the destination now: the next pending visit's admission
		// read must include the minutes this one just placed there.
		if err := ledger.Refresh(ctx, target); err != nil {
			return nil, err
		}

		result.Reallocated = append(result.Reallocated, ReallocatedVisit{
			VisitID:  visit.ID,
			FromDate: date,
			ToDate:   target,
			Duration: visit.Duration,
		})
	}

	if err := ledger.Refresh(ctx, date); err != nil {
		return nil, err
	}

	result.Summary = CloseSummary{
		TotalPending: len(pending),
		Succeeded:    len(result.Reallocated),
		Failed:       len(result.Failed),
	}
	return result, nil
}
