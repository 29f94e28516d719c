package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/vibeloop/vibeloop/internal/domain"
)

// ─── Badge Catalog ──────────────────────────────────────────────────────────

// UpsertBadge inserts or replaces a badge definition. Invalid definitions
// are rejected with a ConfigurationError.
func (d *DB) UpsertBadge(ctx context.Context, b domain.BadgeDefinition) error {
	if err := b.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode badge: %w", err)
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO badge_definitions (id, type, data) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET type=excluded.type, data=excluded.data`,
		b.ID, string(b.Type), string(data),
	)
	return classify("upsert badge", err)
}

// BadgeDefinitions returns definitions of type t, or all when t is empty,
// in insertion order. Rows that no longer validate are skipped.
func (d *DB) BadgeDefinitions(ctx context.Context, t domain.BadgeType) ([]domain.BadgeDefinition, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT data FROM badge_definitions WHERE ? = '' OR type = ? ORDER BY rowid`,
		string(t), string(t),
	)
	if err != nil {
		return nil, classify("list badges", err)
	}
	defer rows.Close()

	var defs []domain.BadgeDefinition
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, classify("list badges", err)
		}
		var b domain.BadgeDefinition
		if err := json.Unmarshal([]byte(data), &b); err != nil {
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
	var data string
	err := d.db.QueryRowContext(ctx,
		`SELECT data FROM badge_definitions WHERE id = ?`, badgeID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BadgeDefinition{}, domain.ErrBadgeNotFound
	}
	if err != nil {
		return domain.BadgeDefinition{}, classify("badge details", err)
	}
	var b domain.BadgeDefinition
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return domain.BadgeDefinition{}, fmt.Errorf("decode badge %s: %w", badgeID, err)
	}
	return b, nil
}

// CountBadges returns the number of stored definitions.
func (d *DB) CountBadges(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM badge_definitions`).Scan(&n)
	return n, classify("count badges", err)
}

// ─── Seasons ────────────────────────────────────────────────────────────────

// UpsertSeason inserts or replaces a season.
func (d *DB) UpsertSeason(ctx context.Context, s domain.SeasonalConfiguration) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode season: %w", err)
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO seasons (id, start_date, end_date, active, data) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			start_date=excluded.start_date,
			end_date=excluded.end_date,
			active=excluded.active,
			data=excluded.data`,
		s.SeasonID, s.StartDate.Unix(), s.EndDate.Unix(), s.Active, string(data),
	)
	return classify("upsert season", err)
}

// Seasons returns every stored season ordered by start date.
func (d *DB) Seasons(ctx context.Context) ([]domain.SeasonalConfiguration, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT data FROM seasons ORDER BY start_date, id`)
	if err != nil {
		return nil, classify("list seasons", err)
	}
	defer rows.Close()

	var seasons []domain.SeasonalConfiguration
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, classify("list seasons", err)
		}
		var s domain.SeasonalConfiguration
		if err := json.Unmarshal([]byte(data), &s); err != nil {
			log.Printf("[catalog] skipping undecodable season row: %v", err)
			continue
		}
		seasons = append(seasons, s)
	}
	return seasons, classify("list seasons", rows.Err())
}
