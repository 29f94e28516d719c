package engagement

import (
	"time"

	"github.com/vibeloop/vibeloop/internal/domain"
)

// ActiveSeasons filters seasons to those active at now.
func ActiveSeasons(seasons []domain.SeasonalConfiguration, now time.Time) []domain.SeasonalConfiguration {
	var active []domain.SeasonalConfiguration
	for _, s := range seasons {
		if s.Validate() == nil && s.ActiveAt(now) {
			active = append(active, s)
		}
	}
	return active
}

// SeasonalBadges indexes the seasonal definitions referenced by any of the
// given seasons. Definitions of other types are ignored.
func SeasonalBadges(seasons []domain.SeasonalConfiguration, defs []domain.BadgeDefinition) map[string]domain.BadgeDefinition {
	byID := make(map[string]domain.BadgeDefinition, len(defs))
	for _, d := range defs {
		if d.Type == domain.BadgeSeasonalAchievement && d.Validate() == nil {
			byID[d.ID] = d
		}
	}
	out := make(map[string]domain.BadgeDefinition)
	for _, s := range seasons {
		for _, id := range s.RelatedBadges {
			if d, ok := byID[id]; ok {
				out[id] = d
			}
		}
	}
	return out
}

// ProcessSeasonal awards every eligible seasonal badge to one ledger. The
// level is recomputed once at the end. A nil predicate means
// AlwaysParticipated.
func ProcessSeasonal(
	rules Rules,
	current domain.Ledger,
	seasons []domain.SeasonalConfiguration,
	badges map[string]domain.BadgeDefinition,
	participated SeasonPredicate,
	now time.Time,
) Result {
	if participated == nil {
		participated = AlwaysParticipated
	}

	l := current.Clone()
	l.Normalize()
	res := Result{PreviousLevel: current.Level}
	at := now.UTC()

	for _, season := range seasons {
		for _, id := range season.RelatedBadges {
			def, ok := badges[id]
			if !ok || l.HasBadge(domain.BadgeSeasonalAchievement, def.ID) {
				continue
			}
			if !participated(l, season, def) || !Satisfied(def, l, &season) {
				continue
			}
			award(&l, &res, def, domain.XPSeasonalBadge, at)
		}
	}

	l.Level = rules.Level(l.XP)
	res.Ledger = l
	return res
}
