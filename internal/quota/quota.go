// Package quota implements per-account hourly/daily send counters with
// lazy resets. It is pure arithmetic on an Account snapshot; persistence
// and atomicity live in the account repository, which writes the new
// counter values with a compare-and-swap on the old ones.
package quota

import (
	"time"

	"github.com/webinarflow/whatsapp-dispatch/internal/model"
)

// DayKey formats the UTC calendar day used for daily resets.
func DayKey(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// Resets returns the counter values after applying lazy resets at `now`,
// without mutating the account. The hour window is rolling: a reset
// happens once at least one hour passed since the last one.
func Resets(a *model.Account, now time.Time) (hourCount, dayCount int, hourResetAt time.Time, dayKey string) {
	hourCount = a.MessagesSentThisHour
	hourResetAt = a.LastHourResetAt
	if now.Sub(a.LastHourResetAt) >= time.Hour {
		hourCount = 0
		hourResetAt = now
	}

	dayCount = a.MessagesSentToday
	dayKey = a.LastDayResetKey
	if key := DayKey(now); key != a.LastDayResetKey {
		dayCount = 0
		dayKey = key
	}
	return hourCount, dayCount, hourResetAt, dayKey
}

// Peek reports whether a reservation at `now` would succeed. No state is
// touched; the pool uses this to filter candidates before committing.
func Peek(a *model.Account, now time.Time) bool {
	hourCount, dayCount, _, _ := Resets(a, now)
	return hourCount < a.HourlyLimit && dayCount < a.DailyLimit
}

// Apply performs the reset-then-reserve step on the in-memory snapshot.
// It returns false and leaves the account untouched when either limit is
// exhausted. The caller must persist the mutated counters with a
// conditional update keyed on the pre-Apply values.
func Apply(a *model.Account, now time.Time) bool {
	hourCount, dayCount, hourResetAt, dayKey := Resets(a, now)
	if hourCount >= a.HourlyLimit || dayCount >= a.DailyLimit {
		return false
	}
	a.MessagesSentThisHour = hourCount + 1
	a.MessagesSentToday = dayCount + 1
	a.LastHourResetAt = hourResetAt
	a.LastDayResetKey = dayKey
	return true
}
