package gamification

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vibeloop/vibeloop/internal/app/engagement"
	"github.com/vibeloop/vibeloop/internal/domain"
	"github.com/vibeloop/vibeloop/internal/infra/metrics"
)

// SweepReport summarizes one seasonal sweep.
type SweepReport struct {
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
	ActiveSeasons []string  `json:"activeSeasons"`
	UsersVisited  int       `json:"usersVisited"`
	UsersAwarded  int       `json:"usersAwarded"`
	BadgesAwarded int       `json:"badgesAwarded"`
	XPAwarded     int64     `json:"xpAwarded"`
	Failures      int       `json:"failures"`
}

// RunSeasonalSweep awards the badges of every active season to every
// eligible user. Users are paged in ID order and each one is updated in its
// own transaction; a failure for one user is logged and counted but does
// not stop the sweep. Cancelling ctx stops the sweep between users and
// returns the partial report with ctx's error.
func (s *Service) RunSeasonalSweep(ctx context.Context) (SweepReport, error) {
	now := s.cfg.Clock().UTC()
	report := SweepReport{StartedAt: now}
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	seasons, err := s.catalog.Seasons(ctx)
	if err != nil {
		return report, err
	}
	active := engagement.ActiveSeasons(seasons, now)
	for _, season := range active {
		report.ActiveSeasons = append(report.ActiveSeasons, season.SeasonID)
	}
	if len(active) == 0 {
		log.Printf("[sweep] no active seasons at %s", now.Format(time.RFC3339))
		report.FinishedAt = s.cfg.Clock().UTC()
		return report, nil
	}

	defs, err := s.catalog.BadgeDefinitions(ctx, domain.BadgeSeasonalAchievement)
	if err != nil {
		return report, err
	}
	badges := engagement.SeasonalBadges(active, defs)
	if len(badges) == 0 {
		log.Printf("[sweep] active seasons %v reference no seasonal badges", report.ActiveSeasons)
		report.FinishedAt = s.cfg.Clock().UTC()
		return report, nil
	}

	var mu sync.Mutex
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = s.cfg.Clock().UTC()
			return report, err
		}
		ids, err := s.store.ListLedgerUserIDs(ctx, after, s.cfg.SweepPageSize)
		if err != nil {
			report.FinishedAt = s.cfg.Clock().UTC()
			return report, err
		}
		if len(ids) == 0 {
			break
		}

		var g errgroup.Group
		g.SetLimit(s.cfg.SweepConcurrency)
		for _, userID := range ids {
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				res, err := s.sweepUser(ctx, userID, active, badges, now)

				mu.Lock()
				defer mu.Unlock()
				report.UsersVisited++
				switch {
				case err != nil:
					report.Failures++
					metrics.SweepUsers.WithLabelValues("failed").Inc()
					log.Printf("[sweep] %s: %v", userID, err)
				case res.Changed():
					report.UsersAwarded++
					report.BadgesAwarded += len(res.Awarded)
					for _, e := range res.XPEntries {
						report.XPAwarded += e.Amount
					}
					metrics.SweepUsers.WithLabelValues("awarded").Inc()
				default:
					metrics.SweepUsers.WithLabelValues("unchanged").Inc()
				}
				return nil
			})
		}
		_ = g.Wait()

		after = ids[len(ids)-1]
		if len(ids) < s.cfg.SweepPageSize {
			break
		}
	}

	report.FinishedAt = s.cfg.Clock().UTC()
	log.Printf("[sweep] seasons=%v visited=%d awarded=%d badges=%d failures=%d",
		report.ActiveSeasons, report.UsersVisited, report.UsersAwarded, report.BadgesAwarded, report.Failures)
	return report, ctx.Err()
}

// sweepUser applies ProcessSeasonal to one ledger. Users whose ledger
// disappeared or who earn nothing are left untouched.
func (s *Service) sweepUser(
	ctx context.Context,
	userID string,
	seasons []domain.SeasonalConfiguration,
	badges map[string]domain.BadgeDefinition,
	now time.Time,
) (engagement.Result, error) {
	var res engagement.Result
	err := s.applier.Apply(ctx, "seasonal", userID, func(cur domain.LedgerRecord) (*domain.Mutation, error) {
		res = engagement.Result{}
		l, ok := cur.Ledger()
		if !ok {
			return nil, nil
		}
		r := engagement.ProcessSeasonal(s.cfg.Rules, l, seasons, badges, s.cfg.Participation, now)
		if !r.Changed() {
			return nil, nil
		}
		res = r
		return &domain.Mutation{Ledger: r.Ledger, XPEntries: r.XPEntries}, nil
	})
	if err != nil {
		return engagement.Result{}, err
	}
	if res.Changed() {
		s.afterCommit(ctx, userID, res)
	}
	return res, nil
}
