// Package scheduler runs periodic jobs on a cron schedule. VibeLoop uses it
// for the seasonal badge sweep.
//
// Core concepts:
//   - One named job per Scheduler, backed by gocron
//   - Singleton mode: a run that is still going when the next tick fires
//     is not overlapped; the tick is rescheduled
//   - Each run gets a context that is cancelled on Stop or after Timeout
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config configures a cron job.
type Config struct {
	Name       string         // job name used in logs (default "job")
	Schedule   string         // 5-field cron expression (default "0 0 * * *")
	Location   *time.Location // time zone for the schedule (default UTC)
	Timeout    time.Duration  // per-run deadline, 0 = none
	RunOnStart bool           // trigger one run immediately after Start
}

// DefaultConfig runs daily at 00:00 UTC with a 30 minute deadline.
func DefaultConfig() Config {
	return Config{
		Name:     "job",
		Schedule: "0 0 * * *",
		Location: time.UTC,
		Timeout:  30 * time.Minute,
	}
}

// RunFunc is the work performed on each tick.
type RunFunc func(ctx context.Context) error

// Stats describes past and upcoming runs.
type Stats struct {
	Runs         int           `json:"runs"`
	Failures     int           `json:"failures"`
	LastRun      time.Time     `json:"last_run,omitzero"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
	NextRun      time.Time     `json:"next_run,omitzero"`
}

// Scheduler wraps a gocron scheduler holding one job.
type Scheduler struct {
	cfg  Config
	run  RunFunc
	cron gocron.Scheduler
	job  gocron.Job

	mu    sync.Mutex
	stats Stats
}

// New validates the schedule and registers the job. Nothing runs until
// Start.
func New(cfg Config, run RunFunc) (*Scheduler, error) {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Schedule == "" {
		cfg.Schedule = def.Schedule
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}

	cron, err := gocron.NewScheduler(gocron.WithLocation(cfg.Location))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	s := &Scheduler{cfg: cfg, run: run, cron: cron}
	job, err := cron.NewJob(
		gocron.CronJob(cfg.Schedule, false),
		gocron.NewTask(s.tick),
		gocron.WithName(cfg.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = cron.Shutdown()
		return nil, fmt.Errorf("schedule %s %q: %w", cfg.Name, cfg.Schedule, err)
	}
	s.job = job
	return s, nil
}

// Start begins ticking.
func (s *Scheduler) Start() {
	s.cron.Start()
	next, _ := s.job.NextRun()
	log.Printf("[scheduler] %s scheduled %q, next run %s", s.cfg.Name, s.cfg.Schedule, next.Format(time.RFC3339))
	if s.cfg.RunOnStart {
		if err := s.job.RunNow(); err != nil {
			log.Printf("[scheduler] %s initial run: %v", s.cfg.Name, err)
		}
	}
}

// Stop cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() error {
	return s.cron.Shutdown()
}

// RunNow triggers an out-of-band run. It returns once the run is queued.
func (s *Scheduler) RunNow() error {
	return s.job.RunNow()
}

// Stats returns a snapshot of run history.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	st := s.stats
	s.mu.Unlock()
	if next, err := s.job.NextRun(); err == nil {
		st.NextRun = next
	}
	return st
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := s.run(ctx)
	elapsed := time.Since(start)

	s.mu.Lock()
	s.stats.Runs++
	s.stats.LastRun = start
	s.stats.LastDuration = elapsed
	s.stats.LastError = ""
	if err != nil {
		s.stats.Failures++
		s.stats.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		log.Printf("[scheduler] %s failed after %s: %v", s.cfg.Name, elapsed, err)
		return
	}
	log.Printf("[scheduler] %s finished in %s", s.cfg.Name, elapsed)
}
