package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/visit-engine/schedule"
)

func TestParseDate(t *testing.T) {
	d, err := schedule.ParseDate("2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", d.String())

	_, err = schedule.ParseDate("10/03/2026")
	assert.ErrorIs(t, err, schedule.ErrInvalidDate)

	_, err = schedule.ParseDate("")
	assert.ErrorIs(t, err, schedule.ErrInvalidDate)
}

func TestDate_ArithmeticAndComparison(t *testing.T) {
	d := schedule.NewDate(2026, time.March, 10)

	assert.Equal(t, "2026-03-11", d.AddDays(1).String())
	assert.Equal(t, "2026-04-09", d.AddDays(30).String(), "horizon crosses month boundary")
	assert.Equal(t, "2026-03-09", d.AddDays(-1).String())

	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.True(t, d.Equal(schedule.NewDate(2026, time.March, 10)))
	assert.False(t, d.IsZero())
	assert.True(t, schedule.Date{}.IsZero())
}
