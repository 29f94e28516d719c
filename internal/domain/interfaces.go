package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// Mutation is everything one ledger transaction commits.
type Mutation struct {
	Ledger    Ledger
	Event     *EventRecord // appended to the event log; nil for sweeps and admin edits
	XPEntries []XPEntry
}

// UpdateFunc computes the mutation from the ledger read inside the
// transaction. Returning a nil mutation commits nothing. It may be invoked
// more than once when the store retries.
type UpdateFunc func(current LedgerRecord) (*Mutation, error)

// LedgerStore is a transactional key-value store of ledgers keyed by user.
type LedgerStore interface {
	// LoadLedger reads a ledger outside any transaction.
	LoadLedger(ctx context.Context, userID string) (LedgerRecord, error)

	// UpdateLedger reads, calls fn and writes the full result in one
	// transaction. Conflicts surface as *TransientStoreError.
	UpdateLedger(ctx context.Context, userID string, fn UpdateFunc) error

	// ListLedgerUserIDs pages through users with a ledger, ordered by ID,
	// starting strictly after afterUserID.
	ListLedgerUserIDs(ctx context.Context, afterUserID string, limit int) ([]string, error)

	// XPHistory returns the most recent XP grants, newest first.
	XPHistory(ctx context.Context, userID string, limit int) ([]XPEntry, error)

	Ping(ctx context.Context) error
	Close() error
}

// Catalog is the read-only view of badges and seasons.
type Catalog interface {
	BadgeDefinitions(ctx context.Context, t BadgeType) ([]BadgeDefinition, error)
	BadgeDetails(ctx context.Context, badgeID string) (BadgeDefinition, error)
	Seasons(ctx context.Context) ([]SeasonalConfiguration, error)
}

// CatalogWriter seeds and edits the catalog.
type CatalogWriter interface {
	UpsertBadge(ctx context.Context, b BadgeDefinition) error
	UpsertSeason(ctx context.Context, s SeasonalConfiguration) error
}

// NotificationStore keeps the badge/level-up notification log.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n Notification) (int64, error)
	PendingNotifications(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkNotificationShown(ctx context.Context, id int64) error
	CountNotificationsSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// Clock abstracts wall-clock time for the sweep and bookkeeping fields.
type Clock func() time.Time
