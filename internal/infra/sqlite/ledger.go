package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vibeloop/vibeloop/internal/domain"
)

// ─── Ledger Repository ──────────────────────────────────────────────────────

// LoadLedger reads a user's ledger. A missing row is AbsentLedger, not an
// error.
func (d *DB) LoadLedger(ctx context.Context, userID string) (domain.LedgerRecord, error) {
	rec, err := loadLedger(ctx, d.db, userID)
	if err != nil {
		return domain.AbsentLedger(), classify("load ledger", err)
	}
	return rec, nil
}

func loadLedger(ctx context.Context, q queryer, userID string) (domain.LedgerRecord, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM ledgers WHERE user_id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AbsentLedger(), nil
	}
	if err != nil {
		return domain.AbsentLedger(), err
	}

	var l domain.Ledger
	if err := json.Unmarshal([]byte(data), &l); err != nil {
		return domain.AbsentLedger(), fmt.Errorf("decode ledger %s: %w", userID, err)
	}
	l.UserID = userID
	return domain.PresentLedger(l), nil
}

// UpdateLedger runs one read-modify-write transaction. The event row, the
// ledger row and the XP journal are committed together or not at all. An
// event whose ID was already applied rolls back with ErrDuplicateEvent.
func (d *DB) UpdateLedger(ctx context.Context, userID string, fn domain.UpdateFunc) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin", err)
	}
	defer tx.Rollback()

	current, err := loadLedger(ctx, tx, userID)
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
		res, err := tx.ExecContext(ctx,
			`INSERT INTO events (id, user_id, kind, occurred_at, payload, applied_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id, id) DO NOTHING`,
			m.Event.ID, userID, string(m.Event.Kind),
			m.Event.OccurredAt.UnixMilli(), string(payload), now.UnixMilli(),
		)
		if err != nil {
			return classify("insert event", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrDuplicateEvent
		}
	}

	m.Ledger.UserID = userID
	data, err := json.Marshal(m.Ledger)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ledgers (user_id, xp, level, data, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			xp=excluded.xp,
			level=excluded.level,
			data=excluded.data,
			updated_at=excluded.updated_at`,
		userID, m.Ledger.XP, m.Ledger.Level, string(data), now.UnixMilli(),
	); err != nil {
		return classify("write ledger", err)
	}

	for _, e := range m.XPEntries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO xp_journal (user_id, source, amount, reference, balance, at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			userID, string(e.Source), e.Amount, e.Reference, e.Balance, e.At.UnixMilli(),
		); err != nil {
			return classify("write xp journal", err)
		}
	}

	return classify("commit", tx.Commit())
}

// ListLedgerUserIDs pages through user IDs in ascending order.
func (d *DB) ListLedgerUserIDs(ctx context.Context, afterUserID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT user_id FROM ledgers WHERE user_id > ? ORDER BY user_id LIMIT ?`,
		afterUserID, limit,
	)
	if err != nil {
		return nil, classify("list ledgers", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classify("list ledgers", err)
		}
		ids = append(ids, id)
	}
	return ids, classify("list ledgers", rows.Err())
}

// XPHistory returns the latest journal entries for a user, newest first.
func (d *DB) XPHistory(ctx context.Context, userID string, limit int) ([]domain.XPEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT source, amount, reference, balance, at
		 FROM xp_journal WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, classify("xp history", err)
	}
	defer rows.Close()

	var entries []domain.XPEntry
	for rows.Next() {
		var e domain.XPEntry
		var source string
		var at int64
		if err := rows.Scan(&source, &e.Amount, &e.Reference, &e.Balance, &at); err != nil {
			return nil, classify("xp history", err)
		}
		e.Source = domain.XPSource(source)
		e.At = time.UnixMilli(at).UTC()
		entries = append(entries, e)
	}
	return entries, classify("xp history", rows.Err())
}
