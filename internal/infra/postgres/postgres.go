// Package postgres provides a PostgreSQL LedgerStore, Catalog and
// NotificationStore backed by a pgx connection pool. Ledger updates take a
// row lock with SELECT ... FOR UPDATE so concurrent writers to one user
// serialize inside the database.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vibeloop/vibeloop/internal/domain"
)

// Options tune the connection pool.
type Options struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DB wraps a pgx pool.
type DB struct {
	pool *pgxpool.Pool
}

// Open connects to url, pings and runs migrations.
func Open(ctx context.Context, url string, opts Options) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	d := &DB{pool: pool}
	if err := d.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close releases the pool.
func (d *DB) Close() error {
	d.pool.Close()
	return nil
}

// Ping checks connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

func (d *DB) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS ledgers (
			user_id    TEXT PRIMARY KEY,
			xp         BIGINT NOT NULL DEFAULT 0,
			level      INTEGER NOT NULL DEFAULT 1,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id          TEXT NOT NULL,
			user_id     TEXT NOT NULL,
			kind        TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			payload     JSONB NOT NULL,
			applied_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_user ON events(user_id, occurred_at)`,
		`CREATE TABLE IF NOT EXISTS xp_journal (
			id        BIGSERIAL PRIMARY KEY,
			user_id   TEXT NOT NULL,
			source    TEXT NOT NULL,
			amount    BIGINT NOT NULL,
			reference TEXT NOT NULL DEFAULT '',
			balance   BIGINT NOT NULL,
			at        TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_xp_user ON xp_journal(user_id, id)`,
		`CREATE TABLE IF NOT EXISTS badge_definitions (
			id       TEXT PRIMARY KEY,
			type     TEXT NOT NULL,
			data     JSONB NOT NULL,
			position BIGSERIAL
		)`,
		`CREATE TABLE IF NOT EXISTS seasons (
			id         TEXT PRIMARY KEY,
			start_date TIMESTAMPTZ NOT NULL,
			end_date   TIMESTAMPTZ NOT NULL,
			active     BOOLEAN NOT NULL DEFAULT FALSE,
			data       JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id         BIGSERIAL PRIMARY KEY,
			user_id    TEXT NOT NULL,
			type       TEXT NOT NULL,
			title      TEXT NOT NULL,
			body       TEXT NOT NULL,
			badge_id   TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			shown      BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notif_user ON notifications(user_id, created_at)`,
	}
	for _, m := range migrations {
		if _, err := d.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Ledger Repository ──────────────────────────────────────────────────────

// LoadLedger reads a ledger without locking it.
func (d *DB) LoadLedger(ctx context.Context, userID string) (domain.LedgerRecord, error) {
	rec, err := loadLedger(ctx, d.pool, userID, false)
	if err != nil {
		return domain.AbsentLedger(), classify("load ledger", err)
	}
	return rec, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadLedger(ctx context.Context, q rowQuerier, userID string, lock bool) (domain.LedgerRecord, error) {
	query := `SELECT data FROM ledgers WHERE user_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var data []byte
	err := q.QueryRow(ctx, query, userID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AbsentLedger(), nil
	}
	if err != nil {
		return domain.AbsentLedger(), err
	}
	var l domain.Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return domain.AbsentLedger(), fmt.Errorf("decode ledger %s: %w", userID, err)
	}
	l.UserID = userID
	return domain.PresentLedger(l), nil
}

// UpdateLedger locks the user's row, applies fn and commits the event,
// ledger and journal together. Two writers racing to create the same
// ledger surface as a TransientStoreError for the loser.
func (d *DB) UpdateLedger(ctx context.Context, userID string, fn domain.UpdateFunc) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return classify("begin", err)
	}
	defer tx.Rollback(ctx)

	current, err := loadLedger(ctx, tx, userID, true)
	if err != nil {
		return classify("load ledger", err)
	}

	m, err := fn(current)
	if err != nil {
		return err
	}
	if m == nil {
		return nil
	}

	now := time.Now().UTC()

	if m.Event != nil {
		payload, err := json.Marshal(m.Event.Payload)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		tag, err := tx.Exec(ctx,
			`INSERT INTO events (id, user_id, kind, occurred_at, payload, applied_at)
			 VALUES ($1, $2, $3, $4, $5::jsonb, $6)
			 ON CONFLICT (user_id, id) DO NOTHING`,
			m.Event.ID, userID, string(m.Event.Kind), m.Event.OccurredAt, string(payload), now,
		)
		if err != nil {
			return classify("insert event", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrDuplicateEvent
		}
	}

	m.Ledger.UserID = userID
	data, err := json.Marshal(m.Ledger)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	if current.Present() {
		_, err = tx.Exec(ctx,
			`UPDATE ledgers SET xp = $2, level = $3, data = $4::jsonb, updated_at = $5 WHERE user_id = $1`,
			userID, m.Ledger.XP, m.Ledger.Level, string(data), now,
		)
		if err != nil {
			return classify("write ledger", err)
		}
	} else {
		tag, err := tx.Exec(ctx,
			`INSERT INTO ledgers (user_id, xp, level, data, updated_at)
			 VALUES ($1, $2, $3, $4::jsonb, $5)
			 ON CONFLICT (user_id) DO NOTHING`,
			userID, m.Ledger.XP, m.Ledger.Level, string(data), now,
		)
		if err != nil {
			return classify("create ledger", err)
		}
		if tag.RowsAffected() == 0 {
			return &domain.TransientStoreError{Op: "create ledger", Err: errors.New("ledger created concurrently")}
		}
	}

	for _, e := range m.XPEntries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO xp_journal (user_id, source, amount, reference, balance, at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			userID, string(e.Source), e.Amount, e.Reference, e.Balance, e.At,
		); err != nil {
			return classify("write xp journal", err)
		}
	}

	return classify("commit", tx.Commit(ctx))
}

// ListLedgerUserIDs pages through user IDs in ascending order.
func (d *DB) ListLedgerUserIDs(ctx context.Context, afterUserID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.pool.Query(ctx,
		`SELECT user_id FROM ledgers WHERE user_id > $1 ORDER BY user_id LIMIT $2`,
		afterUserID, limit,
	)
	if err != nil {
		return nil, classify("list ledgers", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return ids, classify("list ledgers", err)
}

// XPHistory returns the latest journal entries, newest first.
func (d *DB) XPHistory(ctx context.Context, userID string, limit int) ([]domain.XPEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.pool.Query(ctx,
		`SELECT source, amount, reference, balance, at
		 FROM xp_journal WHERE user_id = $1 ORDER BY id DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, classify("xp history", err)
	}
	defer rows.Close()

	var out []domain.XPEntry
	for rows.Next() {
		var e domain.XPEntry
		var source string
		if err := rows.Scan(&source, &e.Amount, &e.Reference, &e.Balance, &e.At); err != nil {
			return nil, classify("xp history", err)
		}
		e.Source = domain.XPSource(source)
		e.At = e.At.UTC()
		out = append(out, e)
	}
	return out, classify("xp history", rows.Err())
}

// ─── Catalog ────────────────────────────────────────────────────────────────

// UpsertBadge inserts or replaces a definition.
func (d *DB) UpsertBadge(ctx context.Context, b domain.BadgeDefinition) error {
	if err := b.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode badge: %w", err)
	}
	_, err = d.pool.Exec(ctx,
		`INSERT INTO badge_definitions (id, type, data) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (id) DO UPDATE SET type = EXCLUDED.type, data = EXCLUDED.data`,
		b.ID, string(b.Type), string(data),
	)
	return classify("upsert badge", err)
}

// BadgeDefinitions returns definitions of type t, or all when t is empty.
func (d *DB) BadgeDefinitions(ctx context.Context, t domain.BadgeType) ([]domain.BadgeDefinition, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT data FROM badge_definitions WHERE $1 = '' OR type = $1 ORDER BY position`,
		string(t),
	)
	if err != nil {
		return nil, classify("list badges", err)
	}
	defer rows.Close()

	var defs []domain.BadgeDefinition
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, classify("list badges", err)
		}
		var b domain.BadgeDefinition
		if err := json.Unmarshal(data, &b); err != nil {
			log.Printf("[catalog] skipping undecodable badge row: %v", err)
			continue
		}
		if err := b.Validate(); err != nil {
			log.Printf("[catalog] skipping badge: %v", err)
			continue
		}
		defs = append(defs, b)
	}
	return defs, classify("list badges", rows.Err())
}

// BadgeDetails returns one definition or ErrBadgeNotFound.
func (d *DB) BadgeDetails(ctx context.Context, badgeID string) (domain.BadgeDefinition, error) {
	var data []byte
	err := d.pool.QueryRow(ctx, `SELECT data FROM badge_definitions WHERE id = $1`, badgeID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BadgeDefinition{}, domain.ErrBadgeNotFound
	}
	if err != nil {
		return domain.BadgeDefinition{}, classify("badge details", err)
	}
	var b domain.BadgeDefinition
	if err := json.Unmarshal(data, &b); err != nil {
		return domain.BadgeDefinition{}, fmt.Errorf("decode badge %s: %w", badgeID, err)
	}
	return b, nil
}

// CountBadges returns the number of stored definitions.
func (d *DB) CountBadges(ctx context.Context) (int, error) {
	var n int
	err := d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM badge_definitions`).Scan(&n)
	return n, classify("count badges", err)
}

// UpsertSeason inserts or replaces a season.
func (d *DB) UpsertSeason(ctx context.Context, s domain.SeasonalConfiguration) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode season: %w", err)
	}
	_, err = d.pool.Exec(ctx,
		`INSERT INTO seasons (id, start_date, end_date, active, data) VALUES ($1, $2, $3, $4, $5::jsonb)
		 ON CONFLICT (id) DO UPDATE SET
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			active = EXCLUDED.active,
			data = EXCLUDED.data`,
		s.SeasonID, s.StartDate, s.EndDate, s.Active, string(data),
	)
	return classify("upsert season", err)
}

// Seasons returns every season ordered by start date.
func (d *DB) Seasons(ctx context.Context) ([]domain.SeasonalConfiguration, error) {
	rows, err := d.pool.Query(ctx, `SELECT data FROM seasons ORDER BY start_date, id`)
	if err != nil {
		return nil, classify("list seasons", err)
	}
	defer rows.Close()

	var out []domain.SeasonalConfiguration
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, classify("list seasons", err)
		}
		var s domain.SeasonalConfiguration
		if err := json.Unmarshal(data, &s); err != nil {
			log.Printf("[catalog] skipping undecodable season row: %v", err)
			continue
		}
		out = append(out, s)
	}
	return out, classify("list seasons", rows.Err())
}

// ─── Notifications ──────────────────────────────────────────────────────────

// InsertNotification stores a notification and returns its ID.
func (d *DB) InsertNotification(ctx context.Context, n domain.Notification) (int64, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	var id int64
	err := d.pool.QueryRow(ctx,
		`INSERT INTO notifications (user_id, type, title, body, badge_id, created_at, shown)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		n.UserID, string(n.Kind), n.Title, n.Body, n.BadgeID, n.CreatedAt, n.Shown,
	).Scan(&id)
	return id, classify("insert notification", err)
}

// PendingNotifications returns unshown notifications, oldest first.
func (d *DB) PendingNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.pool.Query(ctx,
		`SELECT id, user_id, type, title, body, badge_id, created_at, shown
		 FROM notifications
		 WHERE NOT shown AND ($1 = '' OR user_id = $1)
		 ORDER BY created_at, id LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, classify("pending notifications", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var kind string
		if err := rows.Scan(&n.ID, &n.UserID, &kind, &n.Title, &n.Body, &n.BadgeID, &n.CreatedAt, &n.Shown); err != nil {
			return nil, classify("pending notifications", err)
		}
		n.Kind = domain.NotificationKind(kind)
		out = append(out, n)
	}
	return out, classify("pending notifications", rows.Err())
}

// MarkNotificationShown flags a notification as delivered.
func (d *DB) MarkNotificationShown(ctx context.Context, id int64) error {
	_, err := d.pool.Exec(ctx, `UPDATE notifications SET shown = TRUE WHERE id = $1`, id)
	return classify("mark notification", err)
}

// CountNotificationsSince counts a user's notifications since a point in
// time.
func (d *DB) CountNotificationsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := d.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND created_at >= $2`,
		userID, since,
	).Scan(&n)
	return n, classify("count notifications", err)
}

// ─── Error Classification ───────────────────────────────────────────────────

// transientCodes are SQLSTATEs after which the whole transaction can be
// replayed.
var transientCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"23505": true, // unique_violation (concurrent first insert)
	"57P01": true, // admin_shutdown
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if transientCodes[pgErr.Code] {
			return &domain.TransientStoreError{Op: op, Err: err}
		}
		return &domain.PersistentStoreError{Op: op, Err: err}
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return &domain.TransientStoreError{Op: op, Err: err}
	}
	return &domain.PersistentStoreError{Op: op, Err: err}
}
