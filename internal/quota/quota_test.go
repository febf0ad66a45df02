package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webinarflow/whatsapp-dispatch/internal/model"
)

func newAccount(hourly, daily int, lastHourReset time.Time, dayKey string) *model.Account {
	return &model.Account{
		ID:              1,
		HourlyLimit:     hourly,
		DailyLimit:      daily,
		LastHourResetAt: lastHourReset,
		LastDayResetKey: dayKey,
	}
}

func TestDayKeyUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	// 02:30 on Jan 2 local is still 21:30 on Jan 1 in UTC.
	now := time.Date(2026, 1, 2, 2, 30, 0, 0, loc)
	assert.Equal(t, "2026-01-01", DayKey(now))
}

func TestApplyIncrementsWithinWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	a := newAccount(10, 100, now.Add(-10*time.Minute), DayKey(now))
	a.MessagesSentThisHour = 3
	a.MessagesSentToday = 7

	require.True(t, Apply(a, now))
	assert.Equal(t, 4, a.MessagesSentThisHour)
	assert.Equal(t, 8, a.MessagesSentToday)
	// The window did not roll over, so the reset anchor stays.
	assert.Equal(t, now.Add(-10*time.Minute), a.LastHourResetAt)
}

func TestHourlyResetAfterIdlePeriod(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	a := newAccount(10, 100, now.Add(-3*time.Hour), DayKey(now))
	a.MessagesSentThisHour = 9
	a.MessagesSentToday = 9

	require.True(t, Apply(a, now))
	// Idle for three hours, then one send: the hour counter must read 1.
	assert.Equal(t, 1, a.MessagesSentThisHour)
	assert.Equal(t, 10, a.MessagesSentToday)
	assert.Equal(t, now, a.LastHourResetAt)
}

func TestHourWindowIsRollingNotCalendar(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	a := newAccount(10, 100, now.Add(-59*time.Minute), DayKey(now))
	a.MessagesSentThisHour = 5

	require.True(t, Apply(a, now))
	// 59 minutes is not an hour: no reset.
	assert.Equal(t, 6, a.MessagesSentThisHour)

	a.LastHourResetAt = now.Add(-60 * time.Minute)
	require.True(t, Apply(a, now))
	assert.Equal(t, 1, a.MessagesSentThisHour)
}

func TestDailyResetOnNewUTCDay(t *testing.T) {
	now := time.Date(2026, 3, 11, 0, 5, 0, 0, time.UTC)
	a := newAccount(10, 100, now.Add(-30*time.Minute), "2026-03-10")
	a.MessagesSentThisHour = 2
	a.MessagesSentToday = 100 // yesterday's exhausted budget

	require.True(t, Apply(a, now))
	assert.Equal(t, 1, a.MessagesSentToday)
	assert.Equal(t, "2026-03-11", a.LastDayResetKey)
	// Hour window unaffected by the day rollover.
	assert.Equal(t, 3, a.MessagesSentThisHour)
}

func TestApplyRejectsAtHourlyLimit(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	a := newAccount(3, 100, now.Add(-5*time.Minute), DayKey(now))
	a.MessagesSentThisHour = 3
	a.MessagesSentToday = 3

	require.False(t, Apply(a, now))
	// Rejection leaves the snapshot untouched.
	assert.Equal(t, 3, a.MessagesSentThisHour)
	assert.Equal(t, 3, a.MessagesSentToday)
}

func TestApplyRejectsAtDailyLimit(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	a := newAccount(100, 50, now.Add(-2*time.Hour), DayKey(now))
	a.MessagesSentThisHour = 40
	a.MessagesSentToday = 50

	// The hour counter would reset, but the day budget is gone.
	require.False(t, Apply(a, now))
	assert.Equal(t, 40, a.MessagesSentThisHour)
}

func TestPeekDoesNotMutate(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	a := newAccount(10, 100, now.Add(-2*time.Hour), "2026-03-09")
	a.MessagesSentThisHour = 10
	a.MessagesSentToday = 100

	// Both windows would reset, so a reservation would succeed.
	require.True(t, Peek(a, now))
	assert.Equal(t, 10, a.MessagesSentThisHour)
	assert.Equal(t, 100, a.MessagesSentToday)
	assert.Equal(t, "2026-03-09", a.LastDayResetKey)
}

func TestApplyUntilExhausted(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	a := newAccount(3, 100, now, DayKey(now))

	for i := 0; i < 3; i++ {
		require.True(t, Apply(a, now), "send %d should fit", i+1)
	}
	require.False(t, Apply(a, now))
	assert.Equal(t, 3, a.MessagesSentThisHour)
}
