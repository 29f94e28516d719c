package sqlite

import (
	"context"
	"time"

	"github.com/vibeloop/vibeloop/internal/domain"
)

// ─── Notifications ──────────────────────────────────────────────────────────

// InsertNotification stores a notification and returns its ID.
func (d *DB) InsertNotification(ctx context.Context, n domain.Notification) (int64, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, type, title, body, badge_id, created_at, shown)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, string(n.Kind), n.Title, n.Body, n.BadgeID, n.CreatedAt.UnixMilli(), n.Shown,
	)
	if err != nil {
		return 0, classify("insert notification", err)
	}
	return res.LastInsertId()
}

// PendingNotifications returns a user's unshown notifications, oldest first.
// An empty userID lists pending notifications for everyone.
func (d *DB) PendingNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, type, title, body, badge_id, created_at, shown
		 FROM notifications
		 WHERE shown = 0 AND (? = '' OR user_id = ?)
		 ORDER BY created_at ASC, id ASC LIMIT ?`,
		userID, userID, limit,
	)
	if err != nil {
		return nil, classify("pending notifications", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, classify("pending notifications", err)
		}
		out = append(out, n)
	}
	return out, classify("pending notifications", rows.Err())
}

// MarkNotificationShown flags a notification as delivered.
func (d *DB) MarkNotificationShown(ctx context.Context, id int64) error {
	_, err := d.db.ExecContext(ctx, `UPDATE notifications SET shown = 1 WHERE id = ?`, id)
	return classify("mark notification", err)
}

// CountNotificationsSince counts a user's notifications created at or after
// since.
func (d *DB) CountNotificationsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND created_at >= ?`,
		userID, since.UnixMilli(),
	).Scan(&n)
	return n, classify("count notifications", err)
}

func scanNotification(s scanner) (domain.Notification, error) {
	var n domain.Notification
	var kind string
	var createdAt int64
	err := s.Scan(&n.ID, &n.UserID, &kind, &n.Title, &n.Body, &n.BadgeID, &createdAt, &n.Shown)
	if err != nil {
		return n, err
	}
	n.Kind = domain.NotificationKind(kind)
	n.CreatedAt = time.UnixMilli(createdAt).UTC()
	return n, nil
}
