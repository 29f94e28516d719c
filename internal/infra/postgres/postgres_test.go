package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibeloop/vibeloop/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"unique violation", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"}), true},
		{"syntax error", &pgconn.PgError{Code: "42601"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("op", tt.err)
			assert.Equal(t, tt.transient, domain.IsTransient(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.Nil(t, classify("op", nil))
	assert.ErrorIs(t, classify("op", context.Canceled), context.Canceled)
}

// Integration tests run only when VIBELOOP_TEST_POSTGRES_URL points at a
// disposable database.
func testDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("VIBELOOP_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("VIBELOOP_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, url, Options{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() {
		for _, table := range []string{"ledgers", "events", "xp_journal", "badge_definitions", "seasons", "notifications"} {
			_, _ = db.pool.Exec(ctx, "TRUNCATE "+table)
		}
		db.Close()
	})
	return db
}

func TestUpdateLedger_Integration(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	userID := fmt.Sprintf("it-%d", time.Now().UnixNano())
	ev := &domain.EventRecord{ID: userID + "-e1", Kind: domain.EventMoodLog, OccurredAt: time.Now(), Payload: map[string]string{}}

	write := func(cur domain.LedgerRecord) (*domain.Mutation, error) {
		l := cur.OrDefault(userID)
		l.XP += 10
		return &domain.Mutation{Ledger: l, Event: ev, XPEntries: []domain.XPEntry{{Source: domain.XPMoodLog, Amount: 10, Balance: l.XP, At: time.Now()}}}, nil
	}
	require.NoError(t, db.UpdateLedger(ctx, userID, write))
	assert.ErrorIs(t, db.UpdateLedger(ctx, userID, write), domain.ErrDuplicateEvent)

	rec, err := db.LoadLedger(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.OrDefault(userID).XP)

	hist, err := db.XPHistory(ctx, userID, 5)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}
