// Package metrics provides Prometheus metrics for VibeLoop: event
// processing, badge and XP awards, ledger transactions, seasonal sweeps,
// notifications and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Events ─────────────────────────────────────────────────────────────────

// EventsProcessed counts ingested events by kind and outcome
// (applied, duplicate, rejected, failed).
var EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vibeloop",
	Name:      "events_processed_total",
	Help:      "Total events processed by kind and result.",
}, []string{"kind", "result"})

// ─── Awards ─────────────────────────────────────────────────────────────────

// BadgesAwarded counts badges inserted into ledgers by badge type.
var BadgesAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vibeloop",
	Name:      "badges_awarded_total",
	Help:      "Total badges awarded by badge type.",
}, []string{"type"})

// XPAwarded sums XP granted by source.
var XPAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vibeloop",
	Name:      "xp_awarded_total",
	Help:      "Total XP granted by source.",
}, []string{"source"})

// LevelUps counts level boundary crossings.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "vibeloop",
	Name:      "level_ups_total",
	Help:      "Total level-ups across all users.",
})

// ─── Ledger Transactions ────────────────────────────────────────────────────

// LedgerTxRetries counts transient failures that triggered a retry.
var LedgerTxRetries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "vibeloop",
	Name:      "ledger_tx_retries_total",
	Help:      "Total ledger transaction retries after transient errors.",
})

// LedgerTxDuration tracks the full read-modify-write duration including
// retries.
var LedgerTxDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "vibeloop",
	Name:      "ledger_tx_duration_seconds",
	Help:      "Ledger transaction duration in seconds, including retries.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
}, []string{"op"})

// ─── Seasonal Sweep ─────────────────────────────────────────────────────────

// SweepUsers counts users visited by the seasonal sweep by outcome
// (awarded, unchanged, failed).
var SweepUsers = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vibeloop",
	Name:      "sweep_users_total",
	Help:      "Total users visited by seasonal sweeps by result.",
}, []string{"result"})

// SweepDuration tracks how long one seasonal sweep takes.
var SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "vibeloop",
	Name:      "sweep_duration_seconds",
	Help:      "Seasonal sweep duration in seconds.",
	Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
})

// ─── Notifications ──────────────────────────────────────────────────────────

// NotificationsSent counts stored notifications by kind.
var NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vibeloop",
	Name:      "notifications_sent_total",
	Help:      "Total notifications stored by kind.",
}, []string{"kind"})

// NotificationsDropped counts notifications suppressed by policy or lost to
// a store error.
var NotificationsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vibeloop",
	Name:      "notifications_dropped_total",
	Help:      "Total notifications not delivered by reason.",
}, []string{"reason"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "vibeloop",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vibeloop",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})
