// Package schedule implements the visit scheduling and capacity core:
// the per-day capacity ledger, admission control against the 480-minute
// daily cap, forward availability search, and the day-closing
// reallocation engine.
package schedule

import (
	"regexp"
	"strings"
)

// =============================================================================
// VISIT
// =============================================================================

// VisitStatus mirrors the Completed flag for display purposes.
// It is derived, never an independent source of truth.
type VisitStatus string

const (
	StatusPending   VisitStatus = "pending"
	StatusCompleted VisitStatus = "completed"
)

// Visit is one scheduled field visit.
//
// Duration and Status are derived fields. They are recomputed by
// Recalculate, which every mutation path must call before the entity is
// considered valid for persistence. There is no hidden recomputation
// triggered by field assignment.
type Visit struct {
	ID        int64
	Date      Date
	Forms     int
	Products  int
	Duration  int // minutes, derived: Forms*15 + Products*5
	Completed bool
	Status    VisitStatus // derived mirror of Completed
	AddressID int64
}

// Recalculate recomputes all derived fields from the source fields.
// This is the single explicit "apply change" step: callers mutate
// Forms/Products/Completed, then call Recalculate, then persist.
func (v *Visit) Recalculate() {
	v.Duration = ComputeDuration(v.Forms, v.Products)
	if v.Completed {
		v.Status = StatusCompleted
	} else {
		v.Status = StatusPending
	}
}

// =============================================================================
// ADDRESS
// =============================================================================

// Address is a normalized postal location. Many visits may share one
// address; deletion is reference-counted by the scheduler, never cascaded.
type Address struct {
	ID           int64
	PostalCode   string // canonical 00000-000
	Sublocality  string
	Street       string
	StreetNumber string
	Complement   string
}

var nonDigits = regexp.MustCompile(`\D`)

// CleanPostalCode strips all non-digit characters from a CEP.
func CleanPostalCode(raw string) string {
	return nonDigits.ReplaceAllString(raw, "")
}

// FormatPostalCode renders the canonical 00000-000 form. Inputs that do
// not reduce to 8 digits are returned unchanged.
func FormatPostalCode(raw string) string {
	clean := CleanPostalCode(raw)
	if len(clean) != 8 {
		return raw
	}
	return clean[:5] + "-" + clean[5:]
}

// ValidPostalCode reports whether raw is an 8-digit CEP, with or without
// the display hyphen.
func ValidPostalCode(raw string) bool {
	return len(CleanPostalCode(raw)) == 8
}

// MergeResolved applies resolver output to the address under the merge
// policy: only fields that are currently empty are filled in, user-supplied
// values are preserved, and the postal code is always overwritten with the
// canonical formatted value.
func (a *Address) MergeResolved(postalCode, sublocality, street string) {
	if strings.TrimSpace(a.Sublocality) == "" && sublocality != "" {
		a.Sublocality = sublocality
	}
	if strings.TrimSpace(a.Street) == "" && street != "" {
		a.Street = street
	}
	a.PostalCode = postalCode
}

// =============================================================================
// WORKDAY - Capacity ledger entry
// =============================================================================

// Workday is the cached per-date aggregate of scheduled work. It is
// materialized lazily the first time a date is touched and recomputed
// from the visit set after every mutation; the counters are never
// hand-edited.
type Workday struct {
	ID        int64
	Date      Date
	Visits    int // all visits on Date
	Completed int // visits with Completed=true
	Duration  int // sum of visit durations, minutes; <= 480 by admission
}
