/*
duration.go - Visit duration policy

PURPOSE:
  Maps visit inputs (form count, product count) to a minute duration.
  This is the only place duration math lives: every create and every
  edit recomputes through ComputeDuration, a caller-supplied duration
  is never trusted.

FORMULA:
  duration = forms*15 + products*5   (minutes)

CAP:
  A working day holds at most 480 minutes (8 hours). The cap is enforced
  by admission control against the day total, not here - a single visit's
  duration is simply data.

SEE ALSO:
  - admission.go: Gates writes against the daily cap
  - ledger.go: Aggregates durations per day
*/
package schedule

// Duration policy constants.
const (
	// MinutesPerForm is the time budgeted per form filled during a visit.
	MinutesPerForm = 15

	// MinutesPerProduct is the time budgeted per product handled during a visit.
	MinutesPerProduct = 5

	// DailyCapacityMinutes is the hard cap of scheduled work per day (8 hours).
	DailyCapacityMinutes = 480
)

// ComputeDuration returns the visit duration in minutes for the given
// form and product counts. Pure and total: no failure mode, negative
// inputs are the caller's bug and simply produce a negative duration.
func ComputeDuration(forms, products int) int {
	return forms*MinutesPerForm + products*MinutesPerProduct
}
