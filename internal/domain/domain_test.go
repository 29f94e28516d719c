package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestNewLedger_Defaults(t *testing.T) {
	l := NewLedger("u1")
	if l.Level != 1 || l.XP != 0 || l.MoodStreak != 0 {
		t.Errorf("unexpected defaults: %+v", l)
	}
	if l.CurrentStreakMultiplier != 1.0 {
		t.Errorf("multiplier = %v, want 1.0", l.CurrentStreakMultiplier)
	}
	if l.MoodExplorerBadges == nil || l.GenreCollectorBadges == nil || l.SeasonalAchievements == nil {
		t.Error("badge collections must be empty, not nil")
	}
}

func TestLedger_CloneIsDeep(t *testing.T) {
	l := NewLedger("u1")
	l.Activity.Moods.Add("happy")
	l.Activity.GenreSongs["Jazz"] = NewStringSet("s1")
	l.MoodExplorerBadges = append(l.MoodExplorerBadges, EarnedBadge{BadgeID: "b1"})

	cp := l.Clone()
	cp.Activity.Moods.Add("sad")
	cp.Activity.GenreSongs["Jazz"].Add("s2")
	cp.MoodExplorerBadges[0].Seen = true

	if l.Activity.Moods.Has("sad") {
		t.Error("clone aliased Moods")
	}
	if l.Activity.SongsInGenre("Jazz") != 1 {
		t.Error("clone aliased GenreSongs")
	}
	if l.MoodExplorerBadges[0].Seen {
		t.Error("clone aliased badge collection")
	}
}

func TestLedger_Normalize(t *testing.T) {
	var l Ledger
	l.Normalize()
	if l.Activity.Moods == nil || l.Activity.GenreSongs == nil || l.SeasonalAchievements == nil {
		t.Error("Normalize left nil collections")
	}
	if l.CurrentStreakMultiplier != 1.0 {
		t.Errorf("multiplier = %v, want 1.0", l.CurrentStreakMultiplier)
	}
}

func TestLedger_Badges(t *testing.T) {
	l := NewLedger("u1")
	*l.Badges(BadgeGenreCollector) = append(*l.Badges(BadgeGenreCollector), EarnedBadge{BadgeID: "g1"})

	if !l.HasBadge(BadgeGenreCollector, "g1") {
		t.Error("HasBadge(genre, g1) = false")
	}
	if l.HasBadge(BadgeMoodExplorer, "g1") {
		t.Error("badge leaked into another collection")
	}
	if l.Badges("bogus") != nil || l.HasBadge("bogus", "g1") {
		t.Error("unknown type should have no collection")
	}
	if l.BadgeCount() != 1 {
		t.Errorf("BadgeCount = %d, want 1", l.BadgeCount())
	}
}

func TestLedger_JSONRoundTrip(t *testing.T) {
	l := NewLedger("u1")
	l.XP = 120
	l.Level = 2
	l.Activity.Moods.Add("calm")
	l.Activity.Moods.Add("angry")

	data, err := json.Marshal(l)
	if err != nil {
		t.Fatal(err)
	}
	var got Ledger
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.XP != 120 || !got.Activity.Moods.Has("angry") {
		t.Errorf("round trip lost data: %+v", got)
	}
}

func TestStringSet_MarshalsSorted(t *testing.T) {
	data, err := json.Marshal(NewStringSet("pop", "jazz", "rock", "jazz"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `["jazz","pop","rock"]` {
		t.Errorf("got %s", data)
	}
}

func TestLedgerRecord(t *testing.T) {
	absent := AbsentLedger()
	if absent.Present() {
		t.Error("AbsentLedger().Present() = true")
	}
	if _, ok := absent.Ledger(); ok {
		t.Error("absent record returned a ledger")
	}
	if l := absent.OrDefault("u1"); l.UserID != "u1" || l.Level != 1 {
		t.Errorf("OrDefault = %+v", l)
	}

	stored := NewLedger("u2")
	stored.XP = 40
	rec := PresentLedger(stored)
	got, ok := rec.Ledger()
	if !ok || got.XP != 40 {
		t.Fatalf("Ledger() = %+v, %v", got, ok)
	}
	got.Activity.Moods.Add("happy")
	if again, _ := rec.Ledger(); again.Activity.Moods.Has("happy") {
		t.Error("record handed out an aliased ledger")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Validation
// ═══════════════════════════════════════════════════════════════════════════

func TestMoodLog_Validate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		ev    MoodLog
		field string
	}{
		{"ok", MoodLog{UserID: "u", Mood: "happy", Timestamp: now}, ""},
		{"no user", MoodLog{Mood: "happy", Timestamp: now}, "userId"},
		{"blank mood", MoodLog{UserID: "u", Mood: "  ", Timestamp: now}, "mood"},
		{"no time", MoodLog{UserID: "u", Mood: "happy"}, "timestamp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkValidation(t, tt.ev.Validate(), tt.field)
		})
	}
}

func TestSongPlayLog_Validate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		ev    SongPlayLog
		field string
	}{
		{"ok", SongPlayLog{UserID: "u", SongID: "s", Genre: "Pop", Timestamp: now}, ""},
		{"no song", SongPlayLog{UserID: "u", Genre: "Pop", Timestamp: now}, "songId"},
		{"no genre", SongPlayLog{UserID: "u", SongID: "s", Timestamp: now}, "genre"},
		{"negative duration", SongPlayLog{UserID: "u", SongID: "s", Genre: "Pop", DurationPlayed: -1, Timestamp: now}, "durationPlayed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkValidation(t, tt.ev.Validate(), tt.field)
		})
	}
}

func checkValidation(t *testing.T, err error, field string) {
	t.Helper()
	if field == "" {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError on %s, got %v", field, err)
	}
	if verr.Field != field {
		t.Errorf("Field = %q, want %q", verr.Field, field)
	}
}

func TestBadgeDefinition_Validate(t *testing.T) {
	tests := []struct {
		name string
		def  BadgeDefinition
		ok   bool
	}{
		{"ok", BadgeDefinition{ID: "b", Type: BadgeMoodExplorer, Criteria: []Criterion{{Kind: CriterionDistinctMoods, Value: 3}}}, true},
		{"seasonal without value", BadgeDefinition{ID: "s", Type: BadgeSeasonalAchievement, Criteria: []Criterion{{Kind: CriterionSeasonalEvent}}}, true},
		{"missing id", BadgeDefinition{Type: BadgeMoodExplorer}, false},
		{"unknown type", BadgeDefinition{ID: "b", Type: "legendary_hero"}, false},
		{"negative reward", BadgeDefinition{ID: "b", Type: BadgeMoodExplorer, XPReward: -5}, false},
		{"genre criterion without genre", BadgeDefinition{ID: "b", Type: BadgeGenreCollector, Criteria: []Criterion{{Kind: CriterionSongsInGenre, Value: 5}}}, false},
		{"unknown criterion", BadgeDefinition{ID: "b", Type: BadgeGenreCollector, Criteria: []Criterion{{Kind: "vibes", Value: 1}}}, false},
		{"negative threshold", BadgeDefinition{ID: "b", Type: BadgeMoodExplorer, Criteria: []Criterion{{Kind: CriterionMoodStreak, Value: -1}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !IsConfiguration(err) {
				t.Fatalf("want ConfigurationError, got %v", err)
			}
		})
	}
}

func TestSeason_Window(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	s := SeasonalConfiguration{SeasonID: "summer", StartDate: start, EndDate: end, Active: true}

	if !s.ActiveAt(start) {
		t.Error("start instant should be inside the window")
	}
	if s.ActiveAt(end) {
		t.Error("end instant should be outside the window")
	}
	if !s.Contains(end.Add(-time.Nanosecond)) {
		t.Error("last instant before end should be inside")
	}
	if s.Contains(time.Time{}) {
		t.Error("zero time is never inside")
	}
	s.Active = false
	if s.ActiveAt(start.Add(time.Hour)) {
		t.Error("inactive season is never active")
	}

	if err := (SeasonalConfiguration{SeasonID: "x", StartDate: end, EndDate: start}).Validate(); !IsConfiguration(err) {
		t.Errorf("inverted window: want ConfigurationError, got %v", err)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("database is locked")
	transient := fmt.Errorf("apply: %w", &TransientStoreError{Op: "update", Err: cause})
	if !IsTransient(transient) {
		t.Error("wrapped TransientStoreError not detected")
	}
	if !errors.Is(transient, cause) {
		t.Error("TransientStoreError does not unwrap")
	}

	persistent := &PersistentStoreError{Op: "update", Err: ErrRetriesExhausted}
	if IsTransient(persistent) {
		t.Error("persistent error reported as transient")
	}
	if !errors.Is(persistent, ErrRetriesExhausted) {
		t.Error("PersistentStoreError does not unwrap")
	}
	if !IsValidation(&ValidationError{Field: "mood", Reason: "required"}) {
		t.Error("IsValidation = false")
	}
}
