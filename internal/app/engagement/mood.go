package engagement

import (
	"strings"

	"github.com/vibeloop/vibeloop/internal/domain"
)

// ProcessMoodLog applies one mood log to a ledger. The input ledger is not
// modified. Same-day duplicates still earn the base XP but leave the streak
// alone.
func ProcessMoodLog(rules Rules, current domain.Ledger, ev domain.MoodLog, defs []domain.BadgeDefinition) (Result, error) {
	if err := ev.Validate(); err != nil {
		return Result{}, err
	}

	l := current.Clone()
	l.Normalize()
	res := Result{PreviousLevel: current.Level}
	at := ev.Timestamp.UTC()

	grant(&l, &res, domain.XPMoodLog, rules.XPForMoodLog, ev.ID, at)

	AdvanceStreak(&l, at)
	l.CurrentStreakMultiplier = StreakMultiplier(l.MoodStreak)
	if at.After(l.LastStreakMultiplierUpdate) {
		l.LastStreakMultiplierUpdate = at
	}

	l.Activity.Moods.Add(strings.TrimSpace(ev.Mood))
	touchActivity(&l, at)

	awardMatching(&l, &res, defs, domain.BadgeMoodExplorer, at)

	l.Level = rules.Level(l.XP)
	res.Ledger = l
	return res, nil
}
