/*
admission.go - Daily capacity admission control

PURPOSE:
  Decides whether a candidate duration may be added to a date without
  exceeding the 480-minute daily cap. Every write that assigns a visit
  to a date, or moves it to a new one, must pass through here first;
  rejection blocks the write entirely.

BOUNDARY:
  The cap is inclusive: current + additional == 480 admits.

CONSISTENCY:
  CanAdmit only reads. The check-then-write race is closed one level up:
  the Scheduler holds a per-date lock around "read, decide, write" so two
  concurrent creations on a nearly-full day cannot jointly overshoot.
*/
package schedule

import "context"

// AdmissionControl gates writes against the daily capacity cap.
type AdmissionControl struct {
	ledger *CapacityLedger
}

// NewAdmissionControl creates admission control over a ledger.
func NewAdmissionControl(ledger *CapacityLedger) *AdmissionControl {
	return &AdmissionControl{ledger: ledger}
}

// CanAdmit reports whether additionalMinutes fit on date without the
// day total exceeding DailyCapacityMinutes.
func (a *AdmissionControl) CanAdmit(ctx context.Context, date Date, additionalMinutes int) (bool, error) {
	current, err := a.ledger.CurrentDuration(ctx, date)
	if err != nil {
		return false, err
	}
	return current+additionalMinutes <= DailyCapacityMinutes, nil
}

// Admit is CanAdmit that turns a rejection into a CapacityError, for
// callers that want the mutation path to fail with a typed error.
func (a *AdmissionControl) Admit(ctx context.Context, date Date, additionalMinutes int) error {
	current, err := a.ledger.CurrentDuration(ctx, date)
	if err != nil {
		return err
	}
	if current+additionalMinutes > DailyCapacityMinutes {
		return &CapacityError{Date: date, Current: current, Requested: additionalMinutes}
	}
	return nil
}
