package domain

import (
	"fmt"
	"strings"
	"time"
)

// ─── Badge Catalog Types ────────────────────────────────────────────────────

// BadgeType selects which ledger collection a badge lands in and which
// processor evaluates it.
type BadgeType string

const (
	BadgeMoodExplorer        BadgeType = "mood_explorer"
	BadgeGenreCollector      BadgeType = "genre_collector"
	BadgeSeasonalAchievement BadgeType = "seasonal_achievement"
)

// BadgeTypes lists every known badge type.
func BadgeTypes() []BadgeType {
	return []BadgeType{BadgeMoodExplorer, BadgeGenreCollector, BadgeSeasonalAchievement}
}

// Valid reports whether t is a known badge type.
func (t BadgeType) Valid() bool {
	switch t {
	case BadgeMoodExplorer, BadgeGenreCollector, BadgeSeasonalAchievement:
		return true
	}
	return false
}

// BadgeRarity is display metadata only.
type BadgeRarity string

const (
	RarityCommon    BadgeRarity = "common"
	RarityRare      BadgeRarity = "rare"
	RarityEpic      BadgeRarity = "epic"
	RarityLegendary BadgeRarity = "legendary"
)

// CriterionKind names a badge predicate.
type CriterionKind string

const (
	CriterionDistinctMoods  CriterionKind = "distinct_moods"
	CriterionMoodStreak     CriterionKind = "mood_streak"
	CriterionDistinctGenres CriterionKind = "distinct_genres"
	CriterionSongsInGenre   CriterionKind = "songs_in_genre"
	CriterionSeasonalEvent  CriterionKind = "seasonal_event"
)

// Criterion is one predicate of a badge. Value is the threshold N for the
// counting kinds; Genre scopes songs_in_genre; Season optionally pins a
// seasonal_event to one season ID.
type Criterion struct {
	Kind   CriterionKind `json:"type" toml:"type"`
	Value  int           `json:"value" toml:"value"`
	Genre  string        `json:"genre,omitempty" toml:"genre"`
	Season string        `json:"season,omitempty" toml:"season"`
}

// BadgeDefinition is a catalog entry. All criteria must hold for the badge
// to be awarded.
type BadgeDefinition struct {
	ID          string      `json:"id" toml:"id"`
	Name        string      `json:"name" toml:"name"`
	Description string      `json:"description" toml:"description"`
	Type        BadgeType   `json:"type" toml:"type"`
	Rarity      BadgeRarity `json:"rarity" toml:"rarity"`
	IconURL     string      `json:"iconUrl,omitempty" toml:"icon_url"`
	XPReward    int64       `json:"xpReward" toml:"xp_reward"`
	Criteria    []Criterion `json:"criteria" toml:"criteria"`
}

// Validate checks a definition loaded from configuration.
func (b BadgeDefinition) Validate() error {
	src := "badge " + b.ID
	if strings.TrimSpace(b.ID) == "" {
		return &ConfigurationError{Source: "badge", Reason: "missing id"}
	}
	if !b.Type.Valid() {
		return &ConfigurationError{Source: src, Reason: fmt.Sprintf("unknown type %q", b.Type)}
	}
	if b.XPReward < 0 {
		return &ConfigurationError{Source: src, Reason: "negative xp reward"}
	}
	for i, c := range b.Criteria {
		if err := c.validate(); err != nil {
			return &ConfigurationError{Source: fmt.Sprintf("%s criterion %d", src, i), Reason: err.Error()}
		}
	}
	return nil
}

func (c Criterion) validate() error {
	switch c.Kind {
	case CriterionDistinctMoods, CriterionMoodStreak, CriterionDistinctGenres:
	case CriterionSongsInGenre:
		if strings.TrimSpace(c.Genre) == "" {
			return fmt.Errorf("songs_in_genre requires a genre")
		}
	case CriterionSeasonalEvent:
		return nil
	default:
		return fmt.Errorf("unknown criterion %q", c.Kind)
	}
	if c.Value < 0 {
		return fmt.Errorf("negative threshold %d", c.Value)
	}
	return nil
}

// ─── Seasons ────────────────────────────────────────────────────────────────

// SeasonalConfiguration is a bounded window in which its related badges can
// be earned. The window is half-open: [StartDate, EndDate).
type SeasonalConfiguration struct {
	SeasonID      string    `json:"seasonId" toml:"id"`
	Name          string    `json:"name" toml:"name"`
	Description   string    `json:"description,omitempty" toml:"description"`
	StartDate     time.Time `json:"startDate" toml:"start_date"`
	EndDate       time.Time `json:"endDate" toml:"end_date"`
	Active        bool      `json:"active" toml:"active"`
	RelatedBadges []string  `json:"relatedBadges" toml:"related_badges"`
}

// ActiveAt reports whether the season is switched on and t falls inside it.
func (s SeasonalConfiguration) ActiveAt(t time.Time) bool {
	return s.Active && !t.Before(s.StartDate) && t.Before(s.EndDate)
}

// Contains reports whether t falls inside the window, ignoring Active.
func (s SeasonalConfiguration) Contains(t time.Time) bool {
	return !t.IsZero() && !t.Before(s.StartDate) && t.Before(s.EndDate)
}

// Validate checks a season loaded from configuration.
func (s SeasonalConfiguration) Validate() error {
	if strings.TrimSpace(s.SeasonID) == "" {
		return &ConfigurationError{Source: "season", Reason: "missing id"}
	}
	if !s.EndDate.After(s.StartDate) {
		return &ConfigurationError{Source: "season " + s.SeasonID, Reason: "end_date must be after start_date"}
	}
	return nil
}

// AwardedBadge pairs a newly earned badge with its definition, for
// notification fan-out.
type AwardedBadge struct {
	Badge  BadgeDefinition `json:"badge"`
	Earned EarnedBadge     `json:"earned"`
}
