package engagement

import (
	"strings"
	"time"

	"github.com/vibeloop/vibeloop/internal/domain"
)

// SeasonPredicate decides whether a user took part in a season. It gates
// every seasonal badge on top of the badge's own criteria.
type SeasonPredicate func(l domain.Ledger, season domain.SeasonalConfiguration, badge domain.BadgeDefinition) bool

// AlwaysParticipated treats every user with a ledger as a participant.
func AlwaysParticipated(domain.Ledger, domain.SeasonalConfiguration, domain.BadgeDefinition) bool {
	return true
}

// ActiveDuringSeason requires the user's latest activity to fall inside the
// season window.
func ActiveDuringSeason(l domain.Ledger, season domain.SeasonalConfiguration, _ domain.BadgeDefinition) bool {
	return season.Contains(l.LastActivityAt)
}

// PredicateByName resolves a configured participation rule. Unknown names
// fall back to AlwaysParticipated and report ok=false.
func PredicateByName(name string) (SeasonPredicate, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "always":
		return AlwaysParticipated, true
	case "active_during_season", "active":
		return ActiveDuringSeason, true
	default:
		return AlwaysParticipated, false
	}
}

// Satisfied reports whether every criterion of def holds for l. season is
// the season under evaluation, or nil outside a sweep; a seasonal_event
// criterion can only hold inside a sweep.
func Satisfied(def domain.BadgeDefinition, l domain.Ledger, season *domain.SeasonalConfiguration) bool {
	for _, c := range def.Criteria {
		if !holds(c, l, season) {
			return false
		}
	}
	return true
}

func holds(c domain.Criterion, l domain.Ledger, season *domain.SeasonalConfiguration) bool {
	switch c.Kind {
	case domain.CriterionDistinctMoods:
		return len(l.Activity.Moods) >= c.Value
	case domain.CriterionMoodStreak:
		return l.MoodStreak >= c.Value
	case domain.CriterionDistinctGenres:
		return len(l.Activity.Genres) >= c.Value
	case domain.CriterionSongsInGenre:
		genre := strings.TrimSpace(c.Genre)
		return genre != "" && l.Activity.SongsInGenre(genre) >= c.Value
	case domain.CriterionSeasonalEvent:
		if season == nil {
			return false
		}
		return c.Season == "" || c.Season == season.SeasonID
	default:
		return false
	}
}

// ─── Awarding ───────────────────────────────────────────────────────────────

// Result is a processor's output: the next ledger plus what changed.
type Result struct {
	Ledger        domain.Ledger
	Awarded       []domain.AwardedBadge
	XPEntries     []domain.XPEntry
	PreviousLevel int
}

// LeveledUp reports whether the update crossed a level boundary.
func (r Result) LeveledUp() bool {
	return r.Ledger.Level > r.PreviousLevel
}

// Changed reports whether anything was awarded.
func (r Result) Changed() bool {
	return len(r.XPEntries) > 0 || len(r.Awarded) > 0
}

// grant adds amount XP and journals it. Non-positive amounts are ignored so
// XP never decreases.
func grant(l *domain.Ledger, res *Result, source domain.XPSource, amount int64, ref string, at time.Time) {
	if amount <= 0 {
		return
	}
	l.XP += amount
	res.XPEntries = append(res.XPEntries, domain.XPEntry{
		Source:    source,
		Amount:    amount,
		Reference: ref,
		Balance:   l.XP,
		At:        at,
	})
}

// award inserts def into its collection unless already present and grants
// its reward. Returns false when the badge was already held.
func award(l *domain.Ledger, res *Result, def domain.BadgeDefinition, source domain.XPSource, at time.Time) bool {
	coll := l.Badges(def.Type)
	if coll == nil || l.HasBadge(def.Type, def.ID) {
		return false
	}
	earned := domain.EarnedBadge{BadgeID: def.ID, EarnedAt: at}
	*coll = append(*coll, earned)
	grant(l, res, source, def.XPReward, def.ID, at)
	res.Awarded = append(res.Awarded, domain.AwardedBadge{Badge: def, Earned: earned})
	return true
}

// awardMatching evaluates every usable definition of type t not yet held.
func awardMatching(l *domain.Ledger, res *Result, defs []domain.BadgeDefinition, t domain.BadgeType, at time.Time) {
	for _, def := range defs {
		if def.Type != t || def.Validate() != nil {
			continue
		}
		if l.HasBadge(t, def.ID) {
			continue
		}
		if Satisfied(def, *l, nil) {
			award(l, res, def, domain.XPBadge, at)
		}
	}
}

// touchActivity advances LastActivityAt, never backwards.
func touchActivity(l *domain.Ledger, at time.Time) {
	if at.After(l.LastActivityAt) {
		l.LastActivityAt = at.UTC()
	}
}
