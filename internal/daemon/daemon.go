package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/vibeloop/vibeloop/internal/api"
	"github.com/vibeloop/vibeloop/internal/app/engagement"
	"github.com/vibeloop/vibeloop/internal/app/gamification"
	"github.com/vibeloop/vibeloop/internal/domain"
	"github.com/vibeloop/vibeloop/internal/health"
	"github.com/vibeloop/vibeloop/internal/infra/memory"
	"github.com/vibeloop/vibeloop/internal/infra/postgres"
	"github.com/vibeloop/vibeloop/internal/infra/scheduler"
	"github.com/vibeloop/vibeloop/internal/infra/sqlite"
)

// Store is everything the daemon needs from a storage driver.
type Store interface {
	domain.LedgerStore
	domain.Catalog
	domain.CatalogWriter
	domain.NotificationStore
	CountBadges(ctx context.Context) (int, error)
}

// memoryStore pairs the in-memory ledger store with an in-memory catalog.
type memoryStore struct {
	*memory.Store
	*memory.Catalog
}

// Daemon is the core VibeLoop runtime. It wires together all services.
type Daemon struct {
	Config    Config
	Store     Store
	Service   *gamification.Service
	Notify    *gamification.NotificationService
	Sweep     *scheduler.Scheduler
	Health    *health.Checker
	Server    *api.Server
	cancel    context.CancelFunc
	logFile   *os.File
	closeOnce sync.Once
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if _, err := SeedCatalog(ctx, store, cfg.Catalog.File); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("seed catalog: %w", err)
	}

	participation, ok := engagement.PredicateByName(cfg.Seasonal.Participation)
	if !ok {
		_ = store.Close()
		return nil, fmt.Errorf("unknown seasonal.participation %q", cfg.Seasonal.Participation)
	}

	var notify *gamification.NotificationService
	if cfg.Notifications.Enabled {
		notify = gamification.NewNotificationService(store, gamification.NotificationPolicy{
			MaxPerDay:  cfg.Notifications.MaxPerDay,
			QuietStart: cfg.Notifications.QuietStart,
			QuietEnd:   cfg.Notifications.QuietEnd,
		}, time.Now)
	}

	def := gamification.DefaultApplierOptions()
	svc := gamification.New(store, store, notify, gamification.Config{
		Rules: engagement.Rules{
			XPForMoodLog:  cfg.Rules.XPForMoodLog,
			XPForSongPlay: cfg.Rules.XPForSongPlay,
			XPPerLevel:    cfg.Rules.XPPerLevel,
		},
		Applier: gamification.ApplierOptions{
			MaxAttempts:    cfg.Applier.MaxAttempts,
			InitialBackoff: parseDuration(cfg.Applier.InitialBackoff, def.InitialBackoff),
			MaxBackoff:     parseDuration(cfg.Applier.MaxBackoff, def.MaxBackoff),
		},
		Participation:    participation,
		SweepPageSize:    cfg.Seasonal.PageSize,
		SweepConcurrency: cfg.Seasonal.Concurrency,
		Clock:            time.Now,
	})

	d := &Daemon{
		Config:  cfg,
		Store:   store,
		Service: svc,
		Notify:  notify,
	}

	// Seasonal sweep
	if cfg.Seasonal.Enabled {
		sched, err := scheduler.New(scheduler.Config{
			Name:       "seasonal-sweep",
			Schedule:   cfg.Seasonal.Schedule,
			Location:   time.UTC,
			Timeout:    parseDuration(cfg.Seasonal.Timeout, 30*time.Minute),
			RunOnStart: cfg.Seasonal.RunOnStart,
		}, d.runSweep)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		d.Sweep = sched
	}

	// Health checker; an emptied catalog is reseeded.
	d.Health = health.NewChecker(store, store, cfg.Store.Dir, func(ctx context.Context) error {
		_, err := SeedCatalog(ctx, store, cfg.Catalog.File)
		return err
	})

	// API server
	srv := api.NewServer(svc)
	srv.SetHealthChecker(d.Health)
	srv.SetRateLimit(cfg.API.RateLimit, cfg.API.RateBurst)
	srv.SetAdminToken(cfg.API.AdminToken)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}
	d.Server = srv

	return d, nil
}

// openStore opens the configured storage driver.
func openStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return memoryStore{Store: memory.New(), Catalog: memory.NewCatalog()}, nil
	case "postgres":
		db, err := postgres.Open(ctx, cfg.Store.PostgresURL, postgres.Options{MaxConns: cfg.Store.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, nil
	default:
		dir := cfg.Store.Dir
		if dir == "" {
			dir = vibeloopHome()
		}
		db, err := sqlite.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return db, nil
	}
}

// SeedReport counts what SeedCatalog wrote.
type SeedReport struct {
	Defaults int
	Badges   int
	Seasons  int
	Skipped  int
}

// SeedCatalog installs the built-in badges when the catalog has no valid
// definitions, then
// upserts every badge and season in path (if set). Invalid file entries are
// logged and skipped.
func SeedCatalog(ctx context.Context, store Store, path string) (SeedReport, error) {
	var rep SeedReport

	// Stores skip rows that no longer validate, so seeding keys off the
	// usable definitions rather than the raw row count.
	defs, err := store.BadgeDefinitions(ctx, "")
	if err != nil {
		return rep, fmt.Errorf("read catalog: %w", err)
	}
	if len(defs) == 0 {
		if n, err := store.CountBadges(ctx); err == nil && n > 0 {
			log.Printf("[daemon] catalog has %d badge rows but none are valid", n)
		}
		for _, b := range engagement.DefaultBadges() {
			if err := store.UpsertBadge(ctx, b); err != nil {
				return rep, fmt.Errorf("seed %s: %w", b.ID, err)
			}
			rep.Defaults++
		}
		log.Printf("[daemon] seeded %d default badges", rep.Defaults)
	}

	if path == "" {
		return rep, nil
	}
	file, err := engagement.LoadCatalogFile(path)
	if err != nil {
		return rep, err
	}
	for _, b := range file.Badges {
		if err := store.UpsertBadge(ctx, b); err != nil {
			if domain.IsConfiguration(err) {
				log.Printf("[daemon] skipping badge %q: %v", b.ID, err)
				rep.Skipped++
				continue
			}
			return rep, err
		}
		rep.Badges++
	}
	for _, s := range file.Seasons {
		if err := store.UpsertSeason(ctx, s); err != nil {
			if domain.IsConfiguration(err) {
				log.Printf("[daemon] skipping season %q: %v", s.SeasonID, err)
				rep.Skipped++
				continue
			}
			return rep, err
		}
		rep.Seasons++
	}
	log.Printf("[daemon] catalog %s: %d badges, %d seasons, %d skipped", path, rep.Badges, rep.Seasons, rep.Skipped)
	return rep, nil
}

// runSweep is the scheduled seasonal job.
func (d *Daemon) runSweep(ctx context.Context) error {
	report, err := d.Service.RunSeasonalSweep(ctx)
	if err != nil {
		return err
	}
	if report.Failures > 0 {
		return fmt.Errorf("%d of %d users failed", report.Failures, report.UsersVisited)
	}
	return nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.openLog(); err != nil {
		log.Printf("[daemon] WARNING: log file: %v (logging to stderr only)", err)
	}

	// Background services
	go d.Health.Run(ctx)
	go d.Server.CleanupLoop(ctx.Done())
	if d.Sweep != nil {
		d.Sweep.Start()
	}

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
	}()

	fmt.Printf("VibeLoop serving on http://%s\n", addr)
	fmt.Printf("  Store: %s\n", d.Config.Store.Driver)
	if d.Sweep != nil {
		fmt.Printf("  Seasonal sweep: %s UTC\n", d.Config.Seasonal.Schedule)
	}
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	err := httpServer.ListenAndServe()
	d.Close()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// openLog tees the standard logger into the configured log file.
func (d *Daemon) openLog() error {
	path := d.Config.Logging.File
	if path == "" || d.logFile != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	d.logFile = f
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

// Close shuts down all daemon resources. Safe to call more than once.
func (d *Daemon) Close() {
	d.closeOnce.Do(d.close)
}

func (d *Daemon) close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Sweep != nil {
		if err := d.Sweep.Stop(); err != nil {
			log.Printf("[daemon] stop scheduler: %v", err)
		}
	}
	if d.Store != nil {
		_ = d.Store.Close()
	}
	if d.logFile != nil {
		log.SetOutput(os.Stderr)
		_ = d.logFile.Close()
		d.logFile = nil
	}
}
