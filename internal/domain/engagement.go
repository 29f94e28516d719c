// Package domain holds the pure gamification types shared by every layer.
// The ledger is the per-user aggregate of XP, level, streak and badges;
// processors read and return it by value, stores persist it whole.
package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// ─── Running Sets ───────────────────────────────────────────────────────────

// StringSet is an unordered set of strings. It marshals as a sorted array so
// persisted ledgers are byte-stable.
type StringSet map[string]struct{}

// NewStringSet builds a set from the given values.
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Add inserts v and reports whether it was new.
func (s StringSet) Add(v string) bool {
	if _, ok := s[v]; ok {
		return false
	}
	s[v] = struct{}{}
	return true
}

// Has reports whether v is in the set.
func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the members in ascending order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s StringSet) Clone() StringSet {
	cp := make(StringSet, len(s))
	for v := range s {
		cp[v] = struct{}{}
	}
	return cp
}

// MarshalJSON encodes the set as a sorted array.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array into the set.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewStringSet(values...)
	return nil
}

// Activity is the running summary of everything a user has logged. It
// replaces rescanning the full event history on every badge check.
type Activity struct {
	Moods      StringSet            `json:"moods"`
	Genres     StringSet            `json:"genres"`
	GenreSongs map[string]StringSet `json:"genreSongs"`
}

// NewActivity returns an empty, ready-to-use activity summary.
func NewActivity() Activity {
	return Activity{
		Moods:      StringSet{},
		Genres:     StringSet{},
		GenreSongs: map[string]StringSet{},
	}
}

// Clone deep-copies the activity summary.
func (a Activity) Clone() Activity {
	cp := Activity{
		Moods:      a.Moods.Clone(),
		Genres:     a.Genres.Clone(),
		GenreSongs: make(map[string]StringSet, len(a.GenreSongs)),
	}
	for genre, songs := range a.GenreSongs {
		cp.GenreSongs[genre] = songs.Clone()
	}
	return cp
}

// SongsInGenre returns how many distinct songs were played in genre.
func (a Activity) SongsInGenre(genre string) int {
	return len(a.GenreSongs[genre])
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

// EarnedBadge records one badge in one of the ledger's collections.
type EarnedBadge struct {
	BadgeID  string    `json:"badgeId"`
	EarnedAt time.Time `json:"earnedAt"`
	Seen     bool      `json:"seen"`
}

// Ledger is the durable gamification aggregate for one user.
// Level is always LevelForXP(XP); it is rewritten on every update.
type Ledger struct {
	UserID                     string        `json:"userId"`
	XP                         int64         `json:"xp"`
	Level                      int           `json:"level"`
	MoodStreak                 int           `json:"moodStreak"`
	LongestMoodStreak          int           `json:"longestMoodStreak"`
	LastMoodLogDate            time.Time     `json:"lastMoodLogDate,omitzero"`
	CurrentStreakMultiplier    float64       `json:"currentStreakMultiplier"`
	LastStreakMultiplierUpdate time.Time     `json:"lastStreakMultiplierUpdate,omitzero"`
	LastActivityAt             time.Time     `json:"lastActivityAt,omitzero"`
	MoodExplorerBadges         []EarnedBadge `json:"moodExplorerBadges"`
	GenreCollectorBadges       []EarnedBadge `json:"genreCollectorBadges"`
	SeasonalAchievements       []EarnedBadge `json:"seasonalAchievements"`
	Activity                   Activity      `json:"activity"`
}

// NewLedger returns the default ledger a user starts with.
func NewLedger(userID string) Ledger {
	return Ledger{
		UserID:                  userID,
		Level:                   1,
		CurrentStreakMultiplier: 1.0,
		MoodExplorerBadges:      []EarnedBadge{},
		GenreCollectorBadges:    []EarnedBadge{},
		SeasonalAchievements:    []EarnedBadge{},
		Activity:                NewActivity(),
	}
}

// Clone returns a deep copy so processors never alias the caller's state.
func (l Ledger) Clone() Ledger {
	cp := l
	cp.MoodExplorerBadges = append([]EarnedBadge{}, l.MoodExplorerBadges...)
	cp.GenreCollectorBadges = append([]EarnedBadge{}, l.GenreCollectorBadges...)
	cp.SeasonalAchievements = append([]EarnedBadge{}, l.SeasonalAchievements...)
	cp.Activity = l.Activity.Clone()
	return cp
}

// Normalize fills nil collections left by older or hand-written records.
func (l *Ledger) Normalize() {
	if l.MoodExplorerBadges == nil {
		l.MoodExplorerBadges = []EarnedBadge{}
	}
	if l.GenreCollectorBadges == nil {
		l.GenreCollectorBadges = []EarnedBadge{}
	}
	if l.SeasonalAchievements == nil {
		l.SeasonalAchievements = []EarnedBadge{}
	}
	if l.Activity.Moods == nil {
		l.Activity.Moods = StringSet{}
	}
	if l.Activity.Genres == nil {
		l.Activity.Genres = StringSet{}
	}
	if l.Activity.GenreSongs == nil {
		l.Activity.GenreSongs = map[string]StringSet{}
	}
	if l.CurrentStreakMultiplier < 1.0 {
		l.CurrentStreakMultiplier = 1.0
	}
}

// Badges returns the collection that holds badges of type t.
func (l *Ledger) Badges(t BadgeType) *[]EarnedBadge {
	switch t {
	case BadgeMoodExplorer:
		return &l.MoodExplorerBadges
	case BadgeGenreCollector:
		return &l.GenreCollectorBadges
	case BadgeSeasonalAchievement:
		return &l.SeasonalAchievements
	default:
		return nil
	}
}

// HasBadge reports whether badgeID is already in the collection for t.
func (l Ledger) HasBadge(t BadgeType, badgeID string) bool {
	coll := l.Badges(t)
	if coll == nil {
		return false
	}
	for _, b := range *coll {
		if b.BadgeID == badgeID {
			return true
		}
	}
	return false
}

// BadgeCount returns the total number of earned badges across collections.
func (l Ledger) BadgeCount() int {
	return len(l.MoodExplorerBadges) + len(l.GenreCollectorBadges) + len(l.SeasonalAchievements)
}

// ─── Present | Absent ───────────────────────────────────────────────────────

// LedgerRecord is what a store returns for a user: either a persisted ledger
// or nothing at all. Processing always starts from OrDefault.
type LedgerRecord struct {
	ledger  Ledger
	present bool
}

// PresentLedger wraps a persisted ledger.
func PresentLedger(l Ledger) LedgerRecord {
	l.Normalize()
	return LedgerRecord{ledger: l, present: true}
}

// AbsentLedger is the record for a user with no ledger yet.
func AbsentLedger() LedgerRecord {
	return LedgerRecord{}
}

// Present reports whether a ledger exists.
func (r LedgerRecord) Present() bool { return r.present }

// Ledger returns the stored ledger and whether it exists.
func (r LedgerRecord) Ledger() (Ledger, bool) {
	if !r.present {
		return Ledger{}, false
	}
	return r.ledger.Clone(), true
}

// OrDefault resolves the record to a ledger, default-initialising when absent.
func (r LedgerRecord) OrDefault(userID string) Ledger {
	if !r.present {
		return NewLedger(userID)
	}
	return r.ledger.Clone()
}
