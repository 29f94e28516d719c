package domain

import (
	"strings"
	"time"
)

// ─── Activity Events ────────────────────────────────────────────────────────

// EventKind tags an entry in the append-only event log.
type EventKind string

const (
	EventMoodLog  EventKind = "mood_log"
	EventSongPlay EventKind = "song_play"
)

// MoodLog is an append-only mood event. Upstream has already enforced any
// one-log-per-day rule before it reaches the engine.
type MoodLog struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Mood      string    `json:"mood"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate rejects malformed mood events before they touch a ledger.
func (m MoodLog) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return &ValidationError{Field: "userId", Reason: "required"}
	}
	if strings.TrimSpace(m.Mood) == "" {
		return &ValidationError{Field: "mood", Reason: "required"}
	}
	if m.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Reason: "required"}
	}
	return nil
}

// SongPlayLog is an append-only song play event.
type SongPlayLog struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	SongID         string    `json:"songId"`
	Genre          string    `json:"genre"`
	Mood           string    `json:"mood,omitempty"`
	DurationPlayed int       `json:"durationPlayed,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Validate rejects malformed plays. Genre is mandatory because every genre
// criterion is keyed on it.
func (p SongPlayLog) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return &ValidationError{Field: "userId", Reason: "required"}
	}
	if strings.TrimSpace(p.SongID) == "" {
		return &ValidationError{Field: "songId", Reason: "required"}
	}
	if strings.TrimSpace(p.Genre) == "" {
		return &ValidationError{Field: "genre", Reason: "required"}
	}
	if p.DurationPlayed < 0 {
		return &ValidationError{Field: "durationPlayed", Reason: "must not be negative"}
	}
	if p.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Reason: "required"}
	}
	return nil
}

// EventRecord is the persisted form of an applied event. ID is unique per
// store; re-applying an ID yields ErrDuplicateEvent.
type EventRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Kind       EventKind `json:"kind"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// ─── XP Journal ─────────────────────────────────────────────────────────────

// XPSource categorizes how XP was earned.
type XPSource string

const (
	XPMoodLog       XPSource = "MOOD_LOG"
	XPSongPlay      XPSource = "SONG_PLAY"
	XPBadge         XPSource = "BADGE"
	XPSeasonalBadge XPSource = "SEASONAL_BADGE"
)

// XPEntry is one XP grant. Balance is the ledger XP right after the grant.
type XPEntry struct {
	Source    XPSource  `json:"source"`
	Amount    int64     `json:"amount"`
	Reference string    `json:"reference,omitempty"`
	Balance   int64     `json:"balance"`
	At        time.Time `json:"at"`
}

// ─── Notifications ──────────────────────────────────────────────────────────

// NotificationKind categorizes notifications.
type NotificationKind string

const (
	NotifyBadgeUnlocked NotificationKind = "badge_unlocked"
	NotifyLevelUp       NotificationKind = "level_up"
)

// Notification is a user-facing toast. Delivery is best-effort.
type Notification struct {
	ID        int64            `json:"id"`
	UserID    string           `json:"userId"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	BadgeID   string           `json:"badgeId,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	Shown     bool             `json:"shown"`
}
