package engagement

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/vibeloop/vibeloop/internal/domain"
)

// StaticCatalog is an in-memory, read-only catalog.
type StaticCatalog struct {
	badges  []domain.BadgeDefinition
	byID    map[string]domain.BadgeDefinition
	seasons []domain.SeasonalConfiguration
}

// NewStaticCatalog builds a catalog, dropping invalid entries. The dropped
// entries' errors are returned for logging; they never fail construction.
func NewStaticCatalog(badges []domain.BadgeDefinition, seasons []domain.SeasonalConfiguration) (*StaticCatalog, []error) {
	c := &StaticCatalog{byID: make(map[string]domain.BadgeDefinition, len(badges))}
	var problems []error

	for _, b := range badges {
		if err := b.Validate(); err != nil {
			problems = append(problems, err)
			continue
		}
		if _, dup := c.byID[b.ID]; dup {
			problems = append(problems, &domain.ConfigurationError{Source: "badge " + b.ID, Reason: "duplicate id"})
			continue
		}
		c.byID[b.ID] = b
		c.badges = append(c.badges, b)
	}
	for _, s := range seasons {
		if err := s.Validate(); err != nil {
			problems = append(problems, err)
			continue
		}
		c.seasons = append(c.seasons, s)
	}
	return c, problems
}

// BadgeDefinitions returns definitions of type t in catalog order.
func (c *StaticCatalog) BadgeDefinitions(_ context.Context, t domain.BadgeType) ([]domain.BadgeDefinition, error) {
	var out []domain.BadgeDefinition
	for _, b := range c.badges {
		if t == "" || b.Type == t {
			out = append(out, b)
		}
	}
	return out, nil
}

// BadgeDetails looks up one definition.
func (c *StaticCatalog) BadgeDetails(_ context.Context, badgeID string) (domain.BadgeDefinition, error) {
	b, ok := c.byID[badgeID]
	if !ok {
		return domain.BadgeDefinition{}, domain.ErrBadgeNotFound
	}
	return b, nil
}

// Seasons returns every configured season ordered by start date.
func (c *StaticCatalog) Seasons(context.Context) ([]domain.SeasonalConfiguration, error) {
	out := append([]domain.SeasonalConfiguration(nil), c.seasons...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

// ─── Catalog File ───────────────────────────────────────────────────────────

// CatalogFile is the TOML layout of a catalog seed file:
//
//	[[badges]]
//	id = "mood_explorer_1"
//	type = "mood_explorer"
//	xp_reward = 50
//	  [[badges.criteria]]
//	  type = "distinct_moods"
//	  value = 3
//
//	[[seasons]]
//	id = "summer_2025"
//	start_date = 2025-06-01T00:00:00Z
//	end_date = 2025-09-01T00:00:00Z
//	active = true
//	related_badges = ["summer_vibes_2025"]
type CatalogFile struct {
	Badges  []domain.BadgeDefinition       `toml:"badges"`
	Seasons []domain.SeasonalConfiguration `toml:"seasons"`
}

// LoadCatalogFile decodes a catalog seed file. Validation is left to the
// consumer so one bad entry does not reject the file.
func LoadCatalogFile(path string) (CatalogFile, error) {
	var f CatalogFile
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read catalog: %w", err)
	}
	if _, err := toml.Decode(string(data), &f); err != nil {
		return f, &domain.ConfigurationError{Source: path, Reason: err.Error()}
	}
	return f, nil
}

// ─── Default Badge Definitions ──────────────────────────────────────────────

// DefaultBadges returns the built-in catalog used when no other catalog has
// been seeded.
func DefaultBadges() []domain.BadgeDefinition {
	return []domain.BadgeDefinition{
		// ── Mood Explorer ──────────────────────────────────────────────
		{
			ID: "mood_explorer_level_1", Name: "Mood Explorer I", Type: domain.BadgeMoodExplorer,
			Description: "Log 3 different moods", Rarity: domain.RarityCommon, XPReward: 50,
			Criteria: []domain.Criterion{{Kind: domain.CriterionDistinctMoods, Value: 3}},
		},
		{
			ID: "mood_explorer_level_2", Name: "Mood Explorer II", Type: domain.BadgeMoodExplorer,
			Description: "Log 7 different moods", Rarity: domain.RarityRare, XPReward: 150,
			Criteria: []domain.Criterion{{Kind: domain.CriterionDistinctMoods, Value: 7}},
		},
		{
			ID: "streak_starter", Name: "Streak Starter", Type: domain.BadgeMoodExplorer,
			Description: "Log your mood 7 days in a row", Rarity: domain.RarityCommon, XPReward: 70,
			Criteria: []domain.Criterion{{Kind: domain.CriterionMoodStreak, Value: 7}},
		},
		{
			ID: "mood_master", Name: "Mood Master", Type: domain.BadgeMoodExplorer,
			Description: "Log your mood 30 days in a row", Rarity: domain.RarityEpic, XPReward: 300,
			Criteria: []domain.Criterion{{Kind: domain.CriterionMoodStreak, Value: 30}},
		},
		{
			ID: "emotional_range", Name: "Emotional Range", Type: domain.BadgeMoodExplorer,
			Description: "Log 5 different moods during a 5-day streak", Rarity: domain.RarityRare, XPReward: 120,
			Criteria: []domain.Criterion{
				{Kind: domain.CriterionDistinctMoods, Value: 5},
				{Kind: domain.CriterionMoodStreak, Value: 5},
			},
		},

		// ── Genre Collector ────────────────────────────────────────────
		{
			ID: "genre_collector_level_1", Name: "Genre Hopper", Type: domain.BadgeGenreCollector,
			Description: "Play songs from 3 genres", Rarity: domain.RarityCommon, XPReward: 40,
			Criteria: []domain.Criterion{{Kind: domain.CriterionDistinctGenres, Value: 3}},
		},
		{
			ID: "genre_collector_level_2", Name: "Genre Nomad", Type: domain.BadgeGenreCollector,
			Description: "Play songs from 10 genres", Rarity: domain.RarityEpic, XPReward: 200,
			Criteria: []domain.Criterion{{Kind: domain.CriterionDistinctGenres, Value: 10}},
		},
		{
			ID: "genre_collector_pop_fanatic", Name: "Pop Fanatic", Type: domain.BadgeGenreCollector,
			Description: "Play 10 different pop songs", Rarity: domain.RarityRare, XPReward: 60,
			Criteria: []domain.Criterion{{Kind: domain.CriterionSongsInGenre, Value: 10, Genre: "Pop"}},
		},
		{
			ID: "genre_collector_jazz_cat", Name: "Jazz Cat", Type: domain.BadgeGenreCollector,
			Description: "Play 5 different jazz songs", Rarity: domain.RarityRare, XPReward: 60,
			Criteria: []domain.Criterion{{Kind: domain.CriterionSongsInGenre, Value: 5, Genre: "Jazz"}},
		},

		// ── Seasonal ───────────────────────────────────────────────────
		{
			ID: "season_participant", Name: "In Season", Type: domain.BadgeSeasonalAchievement,
			Description: "Be active during a seasonal event", Rarity: domain.RarityCommon, XPReward: 25,
			Criteria: []domain.Criterion{{Kind: domain.CriterionSeasonalEvent}},
		},
	}
}
