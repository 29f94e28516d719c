// Package gamification is the application layer of VibeLoop. It pairs the
// pure processors in engagement with a transactional LedgerStore, a badge
// Catalog and best-effort notifications.
package gamification

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vibeloop/vibeloop/internal/app/engagement"
	"github.com/vibeloop/vibeloop/internal/domain"
	"github.com/vibeloop/vibeloop/internal/infra/metrics"
)

// Config tunes the service.
type Config struct {
	Rules            engagement.Rules
	Applier          ApplierOptions
	Participation    engagement.SeasonPredicate
	SweepPageSize    int
	SweepConcurrency int
	Clock            domain.Clock
}

// DefaultConfig returns the stock rules and sweep settings.
func DefaultConfig() Config {
	return Config{
		Rules:            engagement.DefaultRules(),
		Applier:          DefaultApplierOptions(),
		Participation:    engagement.AlwaysParticipated,
		SweepPageSize:    200,
		SweepConcurrency: 4,
		Clock:            time.Now,
	}
}

// Service records events against user ledgers.
type Service struct {
	store   domain.LedgerStore
	catalog domain.Catalog
	notify  *NotificationService
	applier *Applier
	cfg     Config
}

// New creates the service. notify may be nil to disable notifications.
func New(store domain.LedgerStore, catalog domain.Catalog, notify *NotificationService, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.Rules.XPPerLevel <= 0 {
		cfg.Rules = def.Rules
	}
	if cfg.Participation == nil {
		cfg.Participation = def.Participation
	}
	if cfg.SweepPageSize <= 0 {
		cfg.SweepPageSize = def.SweepPageSize
	}
	if cfg.SweepConcurrency <= 0 {
		cfg.SweepConcurrency = def.SweepConcurrency
	}
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}
	return &Service{
		store:   store,
		catalog: catalog,
		notify:  notify,
		applier: NewApplier(store, cfg.Applier),
		cfg:     cfg,
	}
}

// Rules returns the XP rules in effect.
func (s *Service) Rules() engagement.Rules {
	return s.cfg.Rules
}

// Outcome is what one recorded event did to a ledger.
type Outcome struct {
	EventID       string                `json:"eventId"`
	Duplicate     bool                  `json:"duplicate"`
	Ledger        domain.Ledger         `json:"ledger"`
	XPGained      int64                 `json:"xpGained"`
	Awarded       []domain.AwardedBadge `json:"awarded"`
	PreviousLevel int                   `json:"previousLevel"`
	LeveledUp     bool                  `json:"leveledUp"`
}

func outcomeOf(eventID string, res engagement.Result) Outcome {
	var gained int64
	for _, e := range res.XPEntries {
		gained += e.Amount
	}
	return Outcome{
		EventID:       eventID,
		Ledger:        res.Ledger,
		XPGained:      gained,
		Awarded:       res.Awarded,
		PreviousLevel: res.PreviousLevel,
		LeveledUp:     res.LeveledUp(),
	}
}

// ─── Event Ingestion ────────────────────────────────────────────────────────

// RecordMoodEvent applies a mood log. An empty event ID is assigned one.
// Redelivering an already applied ID returns Duplicate=true and leaves the
// ledger untouched.
func (s *Service) RecordMoodEvent(ctx context.Context, ev domain.MoodLog) (Outcome, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	kind := string(domain.EventMoodLog)
	if err := ev.Validate(); err != nil {
		metrics.EventsProcessed.WithLabelValues(kind, "rejected").Inc()
		return Outcome{EventID: ev.ID}, err
	}

	defs := s.badgeDefinitions(ctx, domain.BadgeMoodExplorer)

	var res engagement.Result
	err := s.applier.Apply(ctx, kind, ev.UserID, func(cur domain.LedgerRecord) (*domain.Mutation, error) {
		r, err := engagement.ProcessMoodLog(s.cfg.Rules, cur.OrDefault(ev.UserID), ev, defs)
		if err != nil {
			return nil, err
		}
		res = r
		return &domain.Mutation{
			Ledger:    r.Ledger,
			Event:     &domain.EventRecord{ID: ev.ID, UserID: ev.UserID, Kind: domain.EventMoodLog, OccurredAt: ev.Timestamp, Payload: ev},
			XPEntries: r.XPEntries,
		}, nil
	})
	return s.finish(ctx, kind, ev.ID, ev.UserID, res, err)
}

// RecordSongPlayEvent applies a song play. Plays without a genre are
// rejected before the store is touched.
func (s *Service) RecordSongPlayEvent(ctx context.Context, ev domain.SongPlayLog) (Outcome, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	kind := string(domain.EventSongPlay)
	if err := ev.Validate(); err != nil {
		metrics.EventsProcessed.WithLabelValues(kind, "rejected").Inc()
		return Outcome{EventID: ev.ID}, err
	}

	defs := s.badgeDefinitions(ctx, domain.BadgeGenreCollector)

	var res engagement.Result
	err := s.applier.Apply(ctx, kind, ev.UserID, func(cur domain.LedgerRecord) (*domain.Mutation, error) {
		r, err := engagement.ProcessSongPlay(s.cfg.Rules, cur.OrDefault(ev.UserID), ev, defs)
		if err != nil {
			return nil, err
		}
		res = r
		return &domain.Mutation{
			Ledger:    r.Ledger,
			Event:     &domain.EventRecord{ID: ev.ID, UserID: ev.UserID, Kind: domain.EventSongPlay, OccurredAt: ev.Timestamp, Payload: ev},
			XPEntries: r.XPEntries,
		}, nil
	})
	return s.finish(ctx, kind, ev.ID, ev.UserID, res, err)
}

// finish turns the applier's verdict into an Outcome and fires the
// post-commit side effects.
func (s *Service) finish(ctx context.Context, kind, eventID, userID string, res engagement.Result, err error) (Outcome, error) {
	switch {
	case errors.Is(err, domain.ErrDuplicateEvent):
		metrics.EventsProcessed.WithLabelValues(kind, "duplicate").Inc()
		current, lerr := s.GetLedger(ctx, userID)
		if lerr != nil {
			return Outcome{EventID: eventID, Duplicate: true}, nil
		}
		return Outcome{EventID: eventID, Duplicate: true, Ledger: current, PreviousLevel: current.Level}, nil
	case err != nil:
		result := "failed"
		if domain.IsValidation(err) {
			result = "rejected"
		}
		metrics.EventsProcessed.WithLabelValues(kind, result).Inc()
		return Outcome{EventID: eventID}, err
	}

	metrics.EventsProcessed.WithLabelValues(kind, "applied").Inc()
	s.afterCommit(ctx, userID, res)
	return outcomeOf(eventID, res), nil
}

// afterCommit records metrics and sends notifications for a committed
// result.
func (s *Service) afterCommit(ctx context.Context, userID string, res engagement.Result) {
	for _, e := range res.XPEntries {
		metrics.XPAwarded.WithLabelValues(string(e.Source)).Add(float64(e.Amount))
	}
	for _, a := range res.Awarded {
		metrics.BadgesAwarded.WithLabelValues(string(a.Badge.Type)).Inc()
		log.Printf("[gamification] %s earned %s (+%d XP)", userID, a.Badge.ID, a.Badge.XPReward)
		s.notify.Notify(ctx, badgeNotification(userID, a))
	}
	if res.LeveledUp() {
		metrics.LevelUps.Inc()
		log.Printf("[gamification] %s reached level %d", userID, res.Ledger.Level)
		s.notify.Notify(ctx, levelUpNotification(userID, res.Ledger.Level))
	}
}

// badgeDefinitions reads one badge type from the catalog. A catalog that
// cannot be read is treated as empty so events still earn base XP.
func (s *Service) badgeDefinitions(ctx context.Context, t domain.BadgeType) []domain.BadgeDefinition {
	defs, err := s.catalog.BadgeDefinitions(ctx, t)
	if err != nil {
		log.Printf("[gamification] catalog unavailable for %s, continuing without badges: %v", t, err)
		return nil
	}
	return defs
}

// ─── Ledger Queries ─────────────────────────────────────────────────────────

// GetLedger returns the user's ledger, or the default ledger when none has
// been written yet.
func (s *Service) GetLedger(ctx context.Context, userID string) (domain.Ledger, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Ledger{}, &domain.ValidationError{Field: "userId", Reason: "required"}
	}
	rec, err := s.store.LoadLedger(ctx, userID)
	if err != nil {
		return domain.Ledger{}, err
	}
	l := rec.OrDefault(userID)
	l.UserID = userID
	return l, nil
}

// Summary is a ledger plus derived progress figures.
type Summary struct {
	Ledger        domain.Ledger `json:"ledger"`
	XPToNextLevel int64         `json:"xpToNextLevel"`
	ProgressPct   float64       `json:"progressPct"`
	BadgeCount    int           `json:"badgeCount"`
	UnseenBadges  int           `json:"unseenBadges"`
}

// GetSummary returns the ledger with level progress.
func (s *Service) GetSummary(ctx context.Context, userID string) (Summary, error) {
	l, err := s.GetLedger(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	unseen := 0
	for _, t := range domain.BadgeTypes() {
		for _, b := range *l.Badges(t) {
			if !b.Seen {
				unseen++
			}
		}
	}
	return Summary{
		Ledger:        l,
		XPToNextLevel: s.cfg.Rules.XPToNextLevel(l.XP),
		ProgressPct:   s.cfg.Rules.ProgressPct(l.XP),
		BadgeCount:    l.BadgeCount(),
		UnseenBadges:  unseen,
	}, nil
}

// InitializeUser writes the default ledger for a new user. It reports
// whether a ledger was created; an existing ledger is returned unchanged.
func (s *Service) InitializeUser(ctx context.Context, userID string) (domain.Ledger, bool, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Ledger{}, false, &domain.ValidationError{Field: "userId", Reason: "required"}
	}
	var (
		ledger  domain.Ledger
		created bool
	)
	err := s.applier.Apply(ctx, "initialize", userID, func(cur domain.LedgerRecord) (*domain.Mutation, error) {
		if l, ok := cur.Ledger(); ok {
			ledger, created = l, false
			return nil, nil
		}
		ledger, created = domain.NewLedger(userID), true
		return &domain.Mutation{Ledger: ledger}, nil
	})
	if err != nil {
		return domain.Ledger{}, false, err
	}
	if created {
		log.Printf("[gamification] initialized ledger for %s", userID)
	}
	return ledger, created, nil
}

// MarkBadgesSeen flags earned badges as seen. An empty list marks every
// badge. Returns how many badges changed.
func (s *Service) MarkBadgesSeen(ctx context.Context, userID string, badgeIDs []string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, &domain.ValidationError{Field: "userId", Reason: "required"}
	}
	want := domain.NewStringSet(badgeIDs...)

	changed := 0
	err := s.applier.Apply(ctx, "badges_seen", userID, func(cur domain.LedgerRecord) (*domain.Mutation, error) {
		changed = 0
		l, ok := cur.Ledger()
		if !ok {
			return nil, nil
		}
		for _, t := range domain.BadgeTypes() {
			coll := l.Badges(t)
			for i := range *coll {
				b := &(*coll)[i]
				if b.Seen || (len(want) > 0 && !want.Has(b.BadgeID)) {
					continue
				}
				b.Seen = true
				changed++
			}
		}
		if changed == 0 {
			return nil, nil
		}
		return &domain.Mutation{Ledger: l}, nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// XPHistory returns the latest XP grants for a user.
func (s *Service) XPHistory(ctx context.Context, userID string, limit int) ([]domain.XPEntry, error) {
	return s.store.XPHistory(ctx, userID, limit)
}

// ─── Catalog Queries ────────────────────────────────────────────────────────

// ListBadges returns the catalog, optionally filtered by type.
func (s *Service) ListBadges(ctx context.Context, t domain.BadgeType) ([]domain.BadgeDefinition, error) {
	if t != "" && !t.Valid() {
		return nil, &domain.ValidationError{Field: "type", Reason: "unknown badge type " + string(t)}
	}
	return s.catalog.BadgeDefinitions(ctx, t)
}

// GetBadgeDetails returns one badge definition or ErrBadgeNotFound.
func (s *Service) GetBadgeDetails(ctx context.Context, badgeID string) (domain.BadgeDefinition, error) {
	return s.catalog.BadgeDetails(ctx, badgeID)
}

// ListSeasons returns the configured seasons; activeOnly filters to those
// active now.
func (s *Service) ListSeasons(ctx context.Context, activeOnly bool) ([]domain.SeasonalConfiguration, error) {
	seasons, err := s.catalog.Seasons(ctx)
	if err != nil {
		return nil, err
	}
	if activeOnly {
		return engagement.ActiveSeasons(seasons, s.cfg.Clock()), nil
	}
	return seasons, nil
}

// ─── Notifications ──────────────────────────────────────────────────────────

// PendingNotifications returns a user's unshown notifications.
func (s *Service) PendingNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	return s.notify.Pending(ctx, userID, limit)
}

// MarkNotificationShown marks a notification as delivered.
func (s *Service) MarkNotificationShown(ctx context.Context, id int64) error {
	return s.notify.MarkShown(ctx, id)
}

// Ping checks the ledger store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
