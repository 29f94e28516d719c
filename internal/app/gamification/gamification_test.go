package gamification_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vibeloop/vibeloop/internal/app/engagement"
	"github.com/vibeloop/vibeloop/internal/app/gamification"
	"github.com/vibeloop/vibeloop/internal/domain"
	"github.com/vibeloop/vibeloop/internal/infra/memory"
)

var (
	summerStart = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	summerEnd   = time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	midSummer   = time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)
)

// flakyStore fails the first `transient` updates with a conflict and every
// update for failUser with a persistent error.
type flakyStore struct {
	*memory.Store
	mu        sync.Mutex
	transient int
	failUser  string
	calls     int
}

func (f *flakyStore) UpdateLedger(ctx context.Context, userID string, fn domain.UpdateFunc) error {
	f.mu.Lock()
	f.calls++
	if userID == f.failUser {
		f.mu.Unlock()
		return &domain.PersistentStoreError{Op: "update ledger", Err: errors.New("disk on fire")}
	}
	if f.transient > 0 {
		f.transient--
		f.mu.Unlock()
		return &domain.TransientStoreError{Op: "update ledger", Err: errors.New("conflict")}
	}
	f.mu.Unlock()
	return f.Store.UpdateLedger(ctx, userID, fn)
}

// brokenCatalog fails every read.
type brokenCatalog struct{}

func (brokenCatalog) BadgeDefinitions(context.Context, domain.BadgeType) ([]domain.BadgeDefinition, error) {
	return nil, errors.New("catalog offline")
}

func (brokenCatalog) BadgeDetails(context.Context, string) (domain.BadgeDefinition, error) {
	return domain.BadgeDefinition{}, errors.New("catalog offline")
}

func (brokenCatalog) Seasons(context.Context) ([]domain.SeasonalConfiguration, error) {
	return nil, errors.New("catalog offline")
}

// brokenNotifications fails every write.
type brokenNotifications struct{ *memory.Store }

func (brokenNotifications) InsertNotification(context.Context, domain.Notification) (int64, error) {
	return 0, errors.New("notifications offline")
}

func testCatalog(t *testing.T) *memory.Catalog {
	t.Helper()
	c := memory.NewCatalog()
	ctx := context.Background()
	badges := []domain.BadgeDefinition{
		{
			ID: "three_moods", Name: "Mood Explorer", Type: domain.BadgeMoodExplorer, XPReward: 50,
			Criteria: []domain.Criterion{{Kind: domain.CriterionDistinctMoods, Value: 3}},
		},
		{
			ID: "jazz_two", Name: "Jazz Cat", Type: domain.BadgeGenreCollector, XPReward: 20,
			Criteria: []domain.Criterion{{Kind: domain.CriterionSongsInGenre, Value: 2, Genre: "Jazz"}},
		},
		{
			ID: "summer_badge", Name: "Summer Vibes", Type: domain.BadgeSeasonalAchievement, XPReward: 100,
			Criteria: []domain.Criterion{{Kind: domain.CriterionSeasonalEvent}},
		},
	}
	for _, b := range badges {
		if err := c.UpsertBadge(ctx, b); err != nil {
			t.Fatalf("UpsertBadge(%s): %v", b.ID, err)
		}
	}
	err := c.UpsertSeason(ctx, domain.SeasonalConfiguration{
		SeasonID: "summer", StartDate: summerStart, EndDate: summerEnd, Active: true,
		RelatedBadges: []string{"summer_badge"},
	})
	if err != nil {
		t.Fatalf("UpsertSeason: %v", err)
	}
	return c
}

func testConfig() gamification.Config {
	cfg := gamification.DefaultConfig()
	cfg.Applier = gamification.ApplierOptions{MaxAttempts: 5, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
	cfg.Clock = func() time.Time { return midSummer }
	return cfg
}

func newService(t *testing.T, store domain.LedgerStore, catalog domain.Catalog, notifStore domain.NotificationStore) *gamification.Service {
	t.Helper()
	var notify *gamification.NotificationService
	if notifStore != nil {
		notify = gamification.NewNotificationService(notifStore, gamification.NotificationPolicy{}, func() time.Time { return midSummer })
	}
	return gamification.New(store, catalog, notify, testConfig())
}

func mood(user, m string, day int) domain.MoodLog {
	return domain.MoodLog{UserID: user, Mood: m, Timestamp: summerStart.AddDate(0, 0, day)}
}

func song(user, id, genre string) domain.SongPlayLog {
	return domain.SongPlayLog{UserID: user, SongID: id, Genre: genre, Timestamp: midSummer}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Ingestion
// ═══════════════════════════════════════════════════════════════════════════

func TestRecordMoodEvent_First(t *testing.T) {
	svc := newService(t, memory.New(), testCatalog(t), nil)

	out, err := svc.RecordMoodEvent(context.Background(), mood("u1", "happy", 0))
	if err != nil {
		t.Fatalf("RecordMoodEvent() error: %v", err)
	}
	if out.EventID == "" {
		t.Error("event ID should be assigned")
	}
	if out.Ledger.XP != 10 || out.XPGained != 10 || out.Ledger.MoodStreak != 1 || out.Ledger.Level != 1 {
		t.Errorf("outcome = %+v", out)
	}
}

func TestRecordMoodEvent_BadgeAndNotifications(t *testing.T) {
	store := memory.New()
	svc := newService(t, store, testCatalog(t), store)
	ctx := context.Background()

	for i, m := range []string{"happy", "sad"} {
		if _, err := svc.RecordMoodEvent(ctx, mood("u1", m, i*2)); err != nil {
			t.Fatal(err)
		}
	}
	out, err := svc.RecordMoodEvent(ctx, mood("u1", "calm", 4))
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Awarded) != 1 || out.Awarded[0].Badge.ID != "three_moods" {
		t.Fatalf("awarded = %+v", out.Awarded)
	}
	if out.Ledger.XP != 80 || out.XPGained != 60 {
		t.Errorf("xp = %d gained = %d, want 80 and 60", out.Ledger.XP, out.XPGained)
	}

	pending, err := svc.PendingNotifications(ctx, "u1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Kind != domain.NotifyBadgeUnlocked || pending[0].BadgeID != "three_moods" {
		t.Fatalf("pending = %+v", pending)
	}
	if err := svc.MarkNotificationShown(ctx, pending[0].ID); err != nil {
		t.Fatal(err)
	}
	pending, _ = svc.PendingNotifications(ctx, "u1", 10)
	if len(pending) != 0 {
		t.Errorf("pending after shown = %d", len(pending))
	}
}

func TestRecordMoodEvent_LevelUpNotification(t *testing.T) {
	store := memory.New()
	svc := newService(t, store, testCatalog(t), store)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := svc.RecordMoodEvent(ctx, mood("u1", "happy", i)); err != nil {
			t.Fatal(err)
		}
	}
	// 10 logs x 10 XP = 100 XP -> level 2.
	l, _ := svc.GetLedger(ctx, "u1")
	if l.Level != 2 {
		t.Fatalf("level = %d, want 2", l.Level)
	}
	pending, _ := svc.PendingNotifications(ctx, "u1", 10)
	found := false
	for _, n := range pending {
		if n.Kind == domain.NotifyLevelUp {
			found = true
		}
	}
	if !found {
		t.Error("expected a level_up notification")
	}
}

func TestRecordSongPlayEvent_GenreBadge(t *testing.T) {
	svc := newService(t, memory.New(), testCatalog(t), nil)
	ctx := context.Background()

	if _, err := svc.RecordSongPlayEvent(ctx, song("u1", "so-what", "Jazz")); err != nil {
		t.Fatal(err)
	}
	out, err := svc.RecordSongPlayEvent(ctx, song("u1", "take-five", "Jazz"))
	if err != nil {
		t.Fatal(err)
	}
	if out.Ledger.XP != 30 || len(out.Ledger.GenreCollectorBadges) != 1 {
		t.Errorf("xp = %d badges = %d, want 30 and 1", out.Ledger.XP, len(out.Ledger.GenreCollectorBadges))
	}
}

func TestRecordSongPlayEvent_RejectedLeavesStoreUntouched(t *testing.T) {
	store := memory.New()
	svc := newService(t, store, testCatalog(t), nil)
	ctx := context.Background()

	_, err := svc.RecordSongPlayEvent(ctx, song("u1", "x", ""))
	if !domain.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	rec, _ := store.LoadLedger(ctx, "u1")
	if rec.Present() {
		t.Error("rejected event created a ledger")
	}
}

func TestRecordEvent_DuplicateIDIsNoOp(t *testing.T) {
	svc := newService(t, memory.New(), testCatalog(t), nil)
	ctx := context.Background()

	ev := song("u1", "s1", "Pop")
	ev.ID = "play-42"
	if _, err := svc.RecordSongPlayEvent(ctx, ev); err != nil {
		t.Fatal(err)
	}
	out, err := svc.RecordSongPlayEvent(ctx, ev)
	if err != nil {
		t.Fatalf("duplicate should not error, got %v", err)
	}
	if !out.Duplicate {
		t.Error("Duplicate should be true")
	}
	if out.Ledger.XP != 5 {
		t.Errorf("xp = %d, want 5", out.Ledger.XP)
	}
}

func TestRecordEvent_SameIDDifferentUsers(t *testing.T) {
	svc := newService(t, memory.New(), testCatalog(t), nil)
	ctx := context.Background()

	for _, user := range []string{"alice", "bob"} {
		ev := mood(user, "happy", 0)
		ev.ID = "evt-1"
		out, err := svc.RecordMoodEvent(ctx, ev)
		if err != nil {
			t.Fatalf("RecordMoodEvent(%s) error: %v", user, err)
		}
		if out.Duplicate || out.Ledger.XP != 10 {
			t.Errorf("%s: duplicate=%v xp=%d, want fresh event with 10 xp", user, out.Duplicate, out.Ledger.XP)
		}
	}
}

func TestRecordSongPlayEvent_ConcurrentPlaysSum(t *testing.T) {
	store := memory.New()
	cfg := testConfig()
	cfg.Applier = gamification.ApplierOptions{MaxAttempts: 500, InitialBackoff: 100 * time.Microsecond, MaxBackoff: 2 * time.Millisecond}
	svc := gamification.New(store, testCatalog(t), nil, cfg)
	ctx := context.Background()

	const plays = 20
	var wg sync.WaitGroup
	errs := make(chan error, plays)
	for i := 0; i < plays; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordSongPlayEvent(ctx, song("u1", fmt.Sprintf("song-%d", i), "Rock"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent play failed: %v", err)
		}
	}

	l, _ := svc.GetLedger(ctx, "u1")
	if l.XP != plays*5 {
		t.Errorf("xp = %d, want %d (no lost updates)", l.XP, plays*5)
	}
	if got := l.Activity.SongsInGenre("Rock"); got != plays {
		t.Errorf("rock songs = %d, want %d", got, plays)
	}
}

func TestRecordMoodEvent_CatalogErrorStillAwardsBaseXP(t *testing.T) {
	svc := newService(t, memory.New(), brokenCatalog{}, nil)

	out, err := svc.RecordMoodEvent(context.Background(), mood("u1", "happy", 0))
	if err != nil {
		t.Fatalf("RecordMoodEvent() error: %v", err)
	}
	if out.Ledger.XP != 10 || len(out.Awarded) != 0 {
		t.Errorf("outcome = %+v", out)
	}
}

func TestRecordMoodEvent_NotificationFailureDoesNotFailWrite(t *testing.T) {
	store := memory.New()
	svc := newService(t, store, testCatalog(t), brokenNotifications{store})
	ctx := context.Background()

	for i, m := range []string{"happy", "sad", "calm"} {
		if _, err := svc.RecordMoodEvent(ctx, mood("u1", m, i)); err != nil {
			t.Fatalf("mood %d: %v", i, err)
		}
	}
	l, _ := svc.GetLedger(ctx, "u1")
	if !l.HasBadge(domain.BadgeMoodExplorer, "three_moods") {
		t.Error("badge should be committed even though notifications failed")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Applier
// ═══════════════════════════════════════════════════════════════════════════

func TestApplier_RetriesTransient(t *testing.T) {
	store := &flakyStore{Store: memory.New(), transient: 2}
	svc := newService(t, store, testCatalog(t), nil)

	out, err := svc.RecordMoodEvent(context.Background(), mood("u1", "happy", 0))
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if out.Ledger.XP != 10 {
		t.Errorf("xp = %d, want 10 (applied exactly once)", out.Ledger.XP)
	}
	if store.calls != 3 {
		t.Errorf("calls = %d, want 3", store.calls)
	}
}

func TestApplier_RetriesExhausted(t *testing.T) {
	store := &flakyStore{Store: memory.New(), transient: 100}
	svc := newService(t, store, testCatalog(t), nil)
	ctx := context.Background()

	_, err := svc.RecordMoodEvent(ctx, mood("u1", "happy", 0))
	if !errors.Is(err, domain.ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	var perr *domain.PersistentStoreError
	if !errors.As(err, &perr) {
		t.Errorf("expected PersistentStoreError, got %T", err)
	}
	if store.calls != 5 {
		t.Errorf("calls = %d, want 5", store.calls)
	}
	rec, _ := store.LoadLedger(ctx, "u1")
	if rec.Present() {
		t.Error("ledger written despite failure")
	}
}

func TestApplier_PersistentNotRetried(t *testing.T) {
	store := &flakyStore{Store: memory.New(), failUser: "u1"}
	a := gamification.NewApplier(store, gamification.ApplierOptions{MaxAttempts: 5, InitialBackoff: time.Millisecond})

	err := a.Apply(context.Background(), "test", "u1", func(domain.LedgerRecord) (*domain.Mutation, error) {
		return &domain.Mutation{Ledger: domain.NewLedger("u1")}, nil
	})
	var perr *domain.PersistentStoreError
	if !errors.As(err, &perr) || errors.Is(err, domain.ErrRetriesExhausted) {
		t.Fatalf("expected plain PersistentStoreError, got %v", err)
	}
	if store.calls != 1 {
		t.Errorf("calls = %d, want 1", store.calls)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Ledger Operations
// ═══════════════════════════════════════════════════════════════════════════

func TestGetLedger_DefaultWhenAbsent(t *testing.T) {
	svc := newService(t, memory.New(), testCatalog(t), nil)

	l, err := svc.GetLedger(context.Background(), "ghost")
	if err != nil {
		t.Fatal(err)
	}
	if l.UserID != "ghost" || l.XP != 0 || l.Level != 1 || l.CurrentStreakMultiplier != 1.0 {
		t.Errorf("default ledger = %+v", l)
	}
	if _, err := svc.GetLedger(context.Background(), ""); !domain.IsValidation(err) {
		t.Errorf("empty user should be a ValidationError, got %v", err)
	}
}

func TestInitializeUser(t *testing.T) {
	svc := newService(t, memory.New(), testCatalog(t), nil)
	ctx := context.Background()

	_, created, err := svc.InitializeUser(ctx, "u1")
	if err != nil || !created {
		t.Fatalf("first init: created=%v err=%v", created, err)
	}
	if _, err := svc.RecordMoodEvent(ctx, mood("u1", "happy", 0)); err != nil {
		t.Fatal(err)
	}
	l, created, err := svc.InitializeUser(ctx, "u1")
	if err != nil || created {
		t.Fatalf("second init: created=%v err=%v", created, err)
	}
	if l.XP != 10 {
		t.Errorf("existing ledger overwritten: xp = %d", l.XP)
	}
}

func TestMarkBadgesSeen(t *testing.T) {
	svc := newService(t, memory.New(), testCatalog(t), nil)
	ctx := context.Background()
	for i, m := range []string{"a", "b", "c"} {
		if _, err := svc.RecordMoodEvent(ctx, mood("u1", m, i)); err != nil {
			t.Fatal(err)
		}
	}

	sum, _ := svc.GetSummary(ctx, "u1")
	if sum.UnseenBadges != 1 || sum.BadgeCount != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	n, err := svc.MarkBadgesSeen(ctx, "u1", nil)
	if err != nil || n != 1 {
		t.Fatalf("MarkBadgesSeen = %d, %v", n, err)
	}
	n, _ = svc.MarkBadgesSeen(ctx, "u1", nil)
	if n != 0 {
		t.Errorf("second MarkBadgesSeen = %d, want 0", n)
	}
	sum, _ = svc.GetSummary(ctx, "u1")
	if sum.UnseenBadges != 0 {
		t.Errorf("unseen = %d, want 0", sum.UnseenBadges)
	}
}

func TestXPHistory(t *testing.T) {
	svc := newService(t, memory.New(), testCatalog(t), nil)
	ctx := context.Background()
	_, _ = svc.RecordMoodEvent(ctx, mood("u1", "happy", 0))
	_, _ = svc.RecordSongPlayEvent(ctx, song("u1", "s", "Pop"))

	hist, err := svc.XPHistory(ctx, "u1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 || hist[0].Source != domain.XPSongPlay || hist[0].Balance != 15 {
		t.Errorf("history = %+v", hist)
	}
}

func TestListBadges(t *testing.T) {
	svc := newService(t, memory.New(), testCatalog(t), nil)
	ctx := context.Background()

	all, _ := svc.ListBadges(ctx, "")
	if len(all) != 3 {
		t.Errorf("all badges = %d, want 3", len(all))
	}
	if _, err := svc.ListBadges(ctx, "nope"); !domain.IsValidation(err) {
		t.Errorf("expected ValidationError, got %v", err)
	}
	if _, err := svc.GetBadgeDetails(ctx, "missing"); !errors.Is(err, domain.ErrBadgeNotFound) {
		t.Errorf("expected ErrBadgeNotFound, got %v", err)
	}
	active, _ := svc.ListSeasons(ctx, true)
	if len(active) != 1 {
		t.Errorf("active seasons = %d, want 1", len(active))
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Seasonal Sweep
// ═══════════════════════════════════════════════════════════════════════════

func TestRunSeasonalSweep(t *testing.T) {
	store := &flakyStore{Store: memory.New()}
	svc := newService(t, store, testCatalog(t), nil)
	ctx := context.Background()

	for _, u := range []string{"alice", "bob", "carol"} {
		if _, _, err := svc.InitializeUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	store.failUser = "bob"

	report, err := svc.RunSeasonalSweep(ctx)
	if err != nil {
		t.Fatalf("RunSeasonalSweep() error: %v", err)
	}
	if report.UsersVisited != 3 || report.UsersAwarded != 2 || report.Failures != 1 {
		t.Errorf("report = %+v", report)
	}
	if report.XPAwarded != 200 || report.BadgesAwarded != 2 {
		t.Errorf("xp = %d badges = %d, want 200 and 2", report.XPAwarded, report.BadgesAwarded)
	}

	alice, _ := svc.GetLedger(ctx, "alice")
	if !alice.HasBadge(domain.BadgeSeasonalAchievement, "summer_badge") || alice.XP != 100 || alice.Level != 2 {
		t.Errorf("alice = xp %d level %d", alice.XP, alice.Level)
	}
	if !alice.SeasonalAchievements[0].EarnedAt.Equal(midSummer) {
		t.Errorf("earnedAt = %v, want sweep time", alice.SeasonalAchievements[0].EarnedAt)
	}

	again, err := svc.RunSeasonalSweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if again.UsersAwarded != 0 {
		t.Errorf("second sweep awarded %d users", again.UsersAwarded)
	}
}

func TestRunSeasonalSweep_Paging(t *testing.T) {
	store := memory.New()
	cfg := testConfig()
	cfg.SweepPageSize = 2
	cfg.SweepConcurrency = 2
	svc := gamification.New(store, testCatalog(t), nil, cfg)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, _, err := svc.InitializeUser(ctx, fmt.Sprintf("user-%02d", i)); err != nil {
			t.Fatal(err)
		}
	}

	report, err := svc.RunSeasonalSweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.UsersVisited != 5 || report.UsersAwarded != 5 {
		t.Errorf("report = %+v", report)
	}
}

func TestRunSeasonalSweep_NoActiveSeason(t *testing.T) {
	cfg := testConfig()
	cfg.Clock = func() time.Time { return summerEnd.AddDate(0, 1, 0) }
	svc := gamification.New(memory.New(), testCatalog(t), nil, cfg)

	report, err := svc.RunSeasonalSweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.ActiveSeasons) != 0 || report.UsersVisited != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestRunSeasonalSweep_ActiveDuringSeasonPredicate(t *testing.T) {
	cfg := testConfig()
	cfg.Participation = engagement.ActiveDuringSeason
	svc := gamification.New(memory.New(), testCatalog(t), nil, cfg)
	ctx := context.Background()

	if _, _, err := svc.InitializeUser(ctx, "idle"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordMoodEvent(ctx, mood("busy", "happy", 3)); err != nil {
		t.Fatal(err)
	}

	report, err := svc.RunSeasonalSweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.UsersVisited != 2 || report.UsersAwarded != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestRunSeasonalSweep_Cancelled(t *testing.T) {
	svc := newService(t, memory.New(), testCatalog(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	if _, _, err := svc.InitializeUser(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	cancel()

	_, err := svc.RunSeasonalSweep(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Notification Policy
// ═══════════════════════════════════════════════════════════════════════════

func TestNotificationPolicy_DailyCap(t *testing.T) {
	store := memory.New()
	n := gamification.NewNotificationService(store, gamification.NotificationPolicy{MaxPerDay: 1}, func() time.Time { return midSummer })
	ctx := context.Background()

	id, err := n.Create(ctx, domain.Notification{UserID: "u1", Kind: domain.NotifyLevelUp})
	if err != nil || id == 0 {
		t.Fatalf("first create: id=%d err=%v", id, err)
	}
	id, err = n.Create(ctx, domain.Notification{UserID: "u1", Kind: domain.NotifyLevelUp})
	if err != nil || id != 0 {
		t.Errorf("second create should be suppressed: id=%d err=%v", id, err)
	}
	id, _ = n.Create(ctx, domain.Notification{UserID: "u2", Kind: domain.NotifyLevelUp})
	if id == 0 {
		t.Error("cap is per user")
	}
}

func TestNotificationPolicy_DailyCapConcurrent(t *testing.T) {
	store := memory.New()
	n := gamification.NewNotificationService(store, gamification.NotificationPolicy{MaxPerDay: 3}, func() time.Time { return midSummer })
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.Notify(ctx, domain.Notification{UserID: "u1", Kind: domain.NotifyBadgeUnlocked})
		}()
	}
	wg.Wait()

	count, err := store.CountNotificationsSince(ctx, "u1", midSummer.Truncate(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("stored notifications = %d, want 3", count)
	}
}

func TestNotificationPolicy_QuietHours(t *testing.T) {
	tests := []struct {
		hour int
		want bool // suppressed
	}{
		{23, true},
		{3, true},
		{8, false},
		{14, false},
	}
	for _, tt := range tests {
		now := time.Date(2024, 7, 1, tt.hour, 0, 0, 0, time.UTC)
		n := gamification.NewNotificationService(memory.New(),
			gamification.NotificationPolicy{QuietStart: "22:00", QuietEnd: "08:00"},
			func() time.Time { return now })
		id, err := n.Create(context.Background(), domain.Notification{UserID: "u1", Kind: domain.NotifyLevelUp})
		if err != nil {
			t.Fatal(err)
		}
		if (id == 0) != tt.want {
			t.Errorf("hour %d: suppressed=%v, want %v", tt.hour, id == 0, tt.want)
		}
	}
}
