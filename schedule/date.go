package schedule

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day abstraction (scheduling is day-granular)
// =============================================================================

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

// Date is a calendar day with no time component, normalized to UTC midnight.
// Visits are scheduled against a Date; nothing in the engine cares about
// hours or timezones beyond "which day is it".
type Date struct {
	t time.Time
}

// Constructors

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{t: t.UTC()}, nil
}

// Today returns the current calendar day in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// Comparison

func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool  { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }
func (d Date) IsZero() bool           { return d.t.IsZero() }

// Arithmetic

func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

func (d Date) String() string { return d.t.Format(DateLayout) }

// Time exposes the underlying UTC-midnight instant for persistence layers.
func (d Date) Time() time.Time { return d.t }
