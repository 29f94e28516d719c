// Package engagement implements the pure side of the gamification engine:
// level and multiplier calculators, streak arithmetic, badge criteria and
// the per-event processors. Nothing here performs I/O; every function maps
// (ledger, input) to a new ledger and is safe to call again on retry.
package engagement

import (
	"time"

	"github.com/vibeloop/vibeloop/internal/domain"
)

// StreakMultiplier maps a mood streak to its XP multiplier.
func StreakMultiplier(streak int) float64 {
	switch {
	case streak >= 28:
		return 1.5
	case streak >= 14:
		return 1.3
	case streak >= 7:
		return 1.2
	case streak >= 3:
		return 1.1
	default:
		return 1.0
	}
}

// CalendarDate truncates t to midnight UTC of its calendar day.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b (negative if
// b is earlier).
func DaysBetween(a, b time.Time) int {
	return int(CalendarDate(b).Sub(CalendarDate(a)) / (24 * time.Hour))
}

// AdvanceStreak applies one mood log dated at to the ledger's streak fields.
// Only the stored date and the event date matter, never the processing time.
//
//   - no prior date: streak = 1
//   - same day: unchanged
//   - next day: streak + 1
//   - anything else, including an earlier day: streak = 1
//
// LastMoodLogDate only ever moves forward.
func AdvanceStreak(l *domain.Ledger, at time.Time) {
	day := CalendarDate(at)

	if l.LastMoodLogDate.IsZero() {
		l.MoodStreak = 1
		l.LastMoodLogDate = day
	} else {
		last := CalendarDate(l.LastMoodLogDate)
		switch DaysBetween(last, day) {
		case 0:
		case 1:
			l.MoodStreak++
		default:
			l.MoodStreak = 1
		}
		if day.After(last) {
			l.LastMoodLogDate = day
		}
		if l.MoodStreak < 1 {
			l.MoodStreak = 1
		}
	}

	if l.MoodStreak > l.LongestMoodStreak {
		l.LongestMoodStreak = l.MoodStreak
	}
}
