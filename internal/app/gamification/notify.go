package gamification

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vibeloop/vibeloop/internal/domain"
	"github.com/vibeloop/vibeloop/internal/infra/metrics"
)

// NotificationPolicy limits how chatty the engine is. Times are UTC.
//   - MaxPerDay caps notifications per user per calendar day (0 = no cap)
//   - No notifications between QuietStart and QuietEnd ("HH:MM"); equal
//     values disable quiet hours
type NotificationPolicy struct {
	MaxPerDay  int
	QuietStart string
	QuietEnd   string
}

// DefaultNotificationPolicy allows 10 notifications per day at any hour.
func DefaultNotificationPolicy() NotificationPolicy {
	return NotificationPolicy{MaxPerDay: 10, QuietStart: "00:00", QuietEnd: "00:00"}
}

// userLockStripes bounds the lock table used to serialize the daily cap.
const userLockStripes = 64

// NotificationService stores badge and level-up notifications. Delivery
// is best-effort: a failure here never fails the ledger write that caused
// it.
//
// The daily cap check and insert run under a per-user lock, so the cap
// holds within one process. Several processes sharing a store may still
// overshoot it.
type NotificationService struct {
	store  domain.NotificationStore
	policy NotificationPolicy
	clock  domain.Clock
	locks  [userLockStripes]sync.Mutex
}

// NewNotificationService creates a notification service. A nil clock uses
// time.Now.
func NewNotificationService(store domain.NotificationStore, policy NotificationPolicy, clock domain.Clock) *NotificationService {
	if clock == nil {
		clock = time.Now
	}
	return &NotificationService{store: store, policy: policy, clock: clock}
}

// Create stores a notification if policy allows it.
// Returns the notification ID (0 if suppressed by policy) and any error.
func (n *NotificationService) Create(ctx context.Context, notif domain.Notification) (int64, error) {
	now := n.clock().UTC()

	mu := n.lockFor(notif.UserID)
	mu.Lock()
	defer mu.Unlock()

	if n.policy.MaxPerDay > 0 {
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		count, err := n.store.CountNotificationsSince(ctx, notif.UserID, dayStart)
		if err != nil {
			return 0, fmt.Errorf("count today: %w", err)
		}
		if count >= n.policy.MaxPerDay {
			metrics.NotificationsDropped.WithLabelValues("daily_cap").Inc()
			return 0, nil
		}
	}

	if n.isQuietHour(now) {
		metrics.NotificationsDropped.WithLabelValues("quiet_hours").Inc()
		return 0, nil
	}

	notif.CreatedAt = now
	notif.Shown = false

	id, err := n.store.InsertNotification(ctx, notif)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	metrics.NotificationsSent.WithLabelValues(string(notif.Kind)).Inc()
	return id, nil
}

func (n *NotificationService) lockFor(userID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &n.locks[h.Sum32()%userLockStripes]
}

// Notify is Create with errors logged and swallowed.
func (n *NotificationService) Notify(ctx context.Context, notif domain.Notification) {
	if n == nil {
		return
	}
	if _, err := n.Create(ctx, notif); err != nil {
		metrics.NotificationsDropped.WithLabelValues("store_error").Inc()
		log.Printf("[notify] dropped %s for %s: %v", notif.Kind, notif.UserID, err)
	}
}

// Pending returns a user's unshown notifications.
func (n *NotificationService) Pending(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if n == nil {
		return nil, nil
	}
	return n.store.PendingNotifications(ctx, userID, limit)
}

// MarkShown marks a notification as shown.
func (n *NotificationService) MarkShown(ctx context.Context, id int64) error {
	if n == nil {
		return nil
	}
	return n.store.MarkNotificationShown(ctx, id)
}

// isQuietHour returns true if the given time falls within quiet hours.
func (n *NotificationService) isQuietHour(t time.Time) bool {
	startHour, startMin := parseHHMM(n.policy.QuietStart)
	endHour, endMin := parseHHMM(n.policy.QuietEnd)

	timeMinutes := t.Hour()*60 + t.Minute()
	startMinutes := startHour*60 + startMin
	endMinutes := endHour*60 + endMin

	if startMinutes == endMinutes {
		return false
	}
	if startMinutes > endMinutes {
		// Wraps midnight: e.g., 22:00 to 08:00
		return timeMinutes >= startMinutes || timeMinutes < endMinutes
	}
	return timeMinutes >= startMinutes && timeMinutes < endMinutes
}

// parseHHMM parses "HH:MM" into hour and minute.
func parseHHMM(s string) (int, int) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h, m
}

// ─── Message Builders ───────────────────────────────────────────────────────

func badgeNotification(userID string, a domain.AwardedBadge) domain.Notification {
	name := a.Badge.Name
	if name == "" {
		name = a.Badge.ID
	}
	body := a.Badge.Description
	if a.Badge.XPReward > 0 {
		body = strings.TrimSpace(fmt.Sprintf("%s +%d XP", body, a.Badge.XPReward))
	}
	return domain.Notification{
		UserID:  userID,
		Kind:    domain.NotifyBadgeUnlocked,
		Title:   "Badge unlocked: " + name,
		Body:    body,
		BadgeID: a.Badge.ID,
	}
}

func levelUpNotification(userID string, level int) domain.Notification {
	return domain.Notification{
		UserID: userID,
		Kind:   domain.NotifyLevelUp,
		Title:  fmt.Sprintf("Level %d reached", level),
		Body:   fmt.Sprintf("You are now level %d. Keep the vibes going!", level),
	}
}
