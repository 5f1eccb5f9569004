/*
finder.go - Forward availability search

PURPOSE:
  Finds the first future date that can absorb a given duration. Used by
  the close-day engine to relocate pending visits off a full day.

SCAN:
  start+1, start+2, ... start+HorizonDays, one date at a time, first
  admitting date wins. The scan never considers start itself (the day
  being closed is presumed full) and is deterministic: lowest date, not
  best fit.

NOT FOUND:
  An exhausted horizon is a normal outcome, returned as ok=false rather
  than an error.
*/
package schedule

import "context"

// HorizonDays is the fixed forward window searched when relocating a visit.
const HorizonDays = 30

// AvailabilityFinder searches forward for a date with spare capacity.
type AvailabilityFinder struct {
	admission *AdmissionControl
	horizon   int
}

// NewAvailabilityFinder creates a finder with the default 30-day horizon.
func NewAvailabilityFinder(admission *AdmissionControl) *AvailabilityFinder {
	return &AvailabilityFinder{admission: admission, horizon: HorizonDays}
}

// FindAvailable returns the earliest date in (start, start+horizon] that
// admits requiredMinutes. ok is false when the horizon is exhausted.
func (f *AvailabilityFinder) FindAvailable(ctx context.Context, start Date, requiredMinutes int) (Date, bool, error) {
	for i := 1; i <= f.horizon; i++ {
		candidate := start.AddDays(i)
		admits, err := f.admission.CanAdmit(ctx, candidate, requiredMinutes)
		if err != nil {
			return Date{}, false, err
		}
		if admits {
			return candidate, true, nil
		}
	}
	return Date{}, false, nil
}
