// Package memory provides in-process stores for tests and single-node
// deployments that do not need durability.
//
// Ledger updates are optimistic: the update function runs outside the lock
// against a versioned snapshot, and the commit fails with a
// TransientStoreError if another writer got there first.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/vibeloop/vibeloop/internal/domain"
)

type entry struct {
	ledger  domain.Ledger
	version uint64
}

// eventKey scopes event IDs to a user.
type eventKey struct {
	userID string
	id     string
}

// Store is a LedgerStore and NotificationStore held in memory.
type Store struct {
	mu      sync.RWMutex
	ledgers map[string]entry
	events  map[eventKey]struct{}
	journal map[string][]domain.XPEntry

	notifMu sync.Mutex
	notifs  []domain.Notification
	nextID  int64

	closed bool
}

// New creates an empty store.
func New() *Store {
	return &Store{
		ledgers: make(map[string]entry),
		events:  make(map[eventKey]struct{}),
		journal: make(map[string][]domain.XPEntry),
	}
}

var errClosed = errors.New("memory store closed")

// LoadLedger returns a copy of the stored ledger.
func (s *Store) LoadLedger(_ context.Context, userID string) (domain.LedgerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.AbsentLedger(), &domain.PersistentStoreError{Op: "load ledger", Err: errClosed}
	}
	e, ok := s.ledgers[userID]
	if !ok {
		return domain.AbsentLedger(), nil
	}
	return domain.PresentLedger(e.ledger.Clone()), nil
}

// UpdateLedger applies fn against a snapshot and commits if no other writer
// changed the ledger in the meantime.
func (s *Store) UpdateLedger(ctx context.Context, userID string, fn domain.UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return &domain.PersistentStoreError{Op: "update ledger", Err: errClosed}
	}
	snap, exists := s.ledgers[userID]
	s.mu.RUnlock()

	rec := domain.AbsentLedger()
	if exists {
		rec = domain.PresentLedger(snap.ledger.Clone())
	}

	m, err := fn(rec)
	if err != nil {
		return err
	}
	if m == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, nowExists := s.ledgers[userID]
	if nowExists != exists || cur.version != snap.version {
		return &domain.TransientStoreError{Op: "update ledger", Err: errors.New("concurrent modification")}
	}
	if m.Event != nil {
		key := eventKey{userID: userID, id: m.Event.ID}
		if _, dup := s.events[key]; dup {
			return domain.ErrDuplicateEvent
		}
		s.events[key] = struct{}{}
	}

	l := m.Ledger.Clone()
	l.UserID = userID
	s.ledgers[userID] = entry{ledger: l, version: cur.version + 1}
	s.journal[userID] = append(s.journal[userID], m.XPEntries...)
	return nil
}

// ListLedgerUserIDs pages through user IDs in ascending order.
func (s *Store) ListLedgerUserIDs(_ context.Context, afterUserID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	ids := make([]string, 0, len(s.ledgers))
	for id := range s.ledgers {
		if id > afterUserID {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// XPHistory returns the latest journal entries, newest first.
func (s *Store) XPHistory(_ context.Context, userID string, limit int) ([]domain.XPEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	j := s.journal[userID]
	out := make([]domain.XPEntry, 0, min(limit, len(j)))
	for i := len(j) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, j[i])
	}
	return out, nil
}

// Ping reports whether the store is still open.
func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

// Close marks the store closed. Data is discarded.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ─── Notifications ──────────────────────────────────────────────────────────

// InsertNotification appends a notification.
func (s *Store) InsertNotification(_ context.Context, n domain.Notification) (int64, error) {
	s.notifMu.Lock()
	defer s.notifMu.Unlock()
	s.nextID++
	n.ID = s.nextID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	s.notifs = append(s.notifs, n)
	return n.ID, nil
}

// PendingNotifications returns unshown notifications, oldest first. An empty
// userID matches everyone.
func (s *Store) PendingNotifications(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	s.notifMu.Lock()
	defer s.notifMu.Unlock()

	var out []domain.Notification
	for _, n := range s.notifs {
		if n.Shown || (userID != "" && n.UserID != userID) {
			continue
		}
		out = append(out, n)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkNotificationShown flags a notification as delivered.
func (s *Store) MarkNotificationShown(_ context.Context, id int64) error {
	s.notifMu.Lock()
	defer s.notifMu.Unlock()
	for i := range s.notifs {
		if s.notifs[i].ID == id {
			s.notifs[i].Shown = true
			return nil
		}
	}
	return nil
}

// CountNotificationsSince counts a user's notifications created at or after
// since.
func (s *Store) CountNotificationsSince(_ context.Context, userID string, since time.Time) (int, error) {
	s.notifMu.Lock()
	defer s.notifMu.Unlock()
	n := 0
	for _, x := range s.notifs {
		if x.UserID == userID && !x.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}
