package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestEventMetrics(t *testing.T) {
	EventsProcessed.WithLabelValues("mood_log", "applied").Inc()
	EventsProcessed.WithLabelValues("song_play", "rejected").Inc()

	if !gatheredNames(t)["vibeloop_events_processed_total"] {
		t.Error("vibeloop_events_processed_total not found")
	}
}

func TestAwardMetrics(t *testing.T) {
	BadgesAwarded.WithLabelValues("mood_explorer").Inc()
	XPAwarded.WithLabelValues("MOOD_LOG").Add(10)
	LevelUps.Inc()

	names := gatheredNames(t)
	for _, name := range []string{
		"vibeloop_badges_awarded_total",
		"vibeloop_xp_awarded_total",
		"vibeloop_level_ups_total",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestLedgerTxMetrics(t *testing.T) {
	LedgerTxRetries.Inc()
	LedgerTxDuration.WithLabelValues("mood_log").Observe(0.004)

	names := gatheredNames(t)
	if !names["vibeloop_ledger_tx_retries_total"] {
		t.Error("vibeloop_ledger_tx_retries_total not found")
	}
	if !names["vibeloop_ledger_tx_duration_seconds"] {
		t.Error("vibeloop_ledger_tx_duration_seconds not found")
	}
}

func TestSweepAndNotificationMetrics(t *testing.T) {
	SweepUsers.WithLabelValues("awarded").Add(3)
	SweepDuration.Observe(1.2)
	NotificationsSent.WithLabelValues("level_up").Inc()
	NotificationsDropped.WithLabelValues("daily_cap").Inc()
	HealthCheckStatus.WithLabelValues("store").Set(1)
	HealthRecoveries.WithLabelValues("store").Inc()

	names := gatheredNames(t)
	for _, name := range []string{
		"vibeloop_sweep_users_total",
		"vibeloop_sweep_duration_seconds",
		"vibeloop_notifications_sent_total",
		"vibeloop_notifications_dropped_total",
		"vibeloop_health_check_status",
		"vibeloop_health_recoveries_total",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestAllMetricsGatherable(t *testing.T) {
	names := gatheredNames(t)
	count := 0
	for name := range names {
		if strings.HasPrefix(name, "vibeloop_") {
			count++
		}
	}
	// Vec metrics only appear once a label set has been observed; the
	// tests above touch every collector.
	if count < 5 {
		t.Errorf("expected at least 5 vibeloop_ metrics, got %d", count)
	}
}
