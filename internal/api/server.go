// Package api provides the HTTP server for VibeLoop: event ingestion,
// ledger and catalog queries, notifications and admin triggers.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vibeloop/vibeloop/internal/app/gamification"
	"github.com/vibeloop/vibeloop/internal/health"
)

// Server is the VibeLoop HTTP API server.
type Server struct {
	svc            *gamification.Service
	health         *health.Checker
	limiter        *rateLimiter
	adminToken     string
	metricsEnabled bool
	now            func() time.Time
}

// NewServer creates a new API server.
func NewServer(svc *gamification.Service) *Server {
	return &Server{svc: svc, now: time.Now}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealthChecker reports checker results on /health.
func (s *Server) SetHealthChecker(h *health.Checker) { s.health = h }

// SetRateLimit enables per-client rate limiting. rps <= 0 disables it.
func (s *Server) SetRateLimit(rps float64, burst int) {
	if rps <= 0 {
		s.limiter = nil
		return
	}
	s.limiter = newRateLimiter(rps, burst)
}

// SetAdminToken protects /api/admin with a bearer token. Empty leaves the
// admin routes open, which is only sensible on localhost.
func (s *Server) SetAdminToken(token string) { s.adminToken = token }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)
	if s.limiter != nil {
		r.Use(s.limiter.middleware)
	}

	r.Get("/health", s.handleHealth)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/ledger", s.handleGetLedger)
			r.Post("/ledger", s.handleInitializeUser)
			r.Post("/moods", s.handleRecordMood)
			r.Post("/plays", s.handleRecordPlay)
			r.Post("/badges/seen", s.handleBadgesSeen)
			r.Get("/xp", s.handleXPHistory)
			r.Get("/notifications", s.handleNotifications)
		})

		r.Post("/notifications/{id}/shown", s.handleNotificationShown)

		r.Get("/badges", s.handleListBadges)
		r.Get("/badges/{badgeID}", s.handleBadgeDetails)
		r.Get("/seasons", s.handleListSeasons)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/seasonal-sweep", s.handleSeasonalSweep)
		})
	})

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    http.StatusText(status),
		},
	})
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin checks the bearer token when one is configured.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken != "" && r.Header.Get("Authorization") != "Bearer "+s.adminToken {
			writeError(w, http.StatusUnauthorized, "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
