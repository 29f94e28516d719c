package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vibeloop/vibeloop/internal/domain"
)

// ─── Health ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		if err := s.svc.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// ─── Events ─────────────────────────────────────────────────────────────────

type moodRequest struct {
	ID        string    `json:"id"`
	Mood      string    `json:"mood"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

type playRequest struct {
	ID             string    `json:"id"`
	SongID         string    `json:"songId"`
	Genre          string    `json:"genre"`
	Mood           string    `json:"mood"`
	DurationPlayed int       `json:"durationPlayed"`
	Timestamp      time.Time `json:"timestamp"`
}

func (s *Server) handleRecordMood(w http.ResponseWriter, r *http.Request) {
	var req moodRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = s.now().UTC()
	}
	out, err := s.svc.RecordMoodEvent(r.Context(), domain.MoodLog{
		ID:        req.ID,
		UserID:    chi.URLParam(r, "userID"),
		Mood:      req.Mood,
		Source:    req.Source,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, eventStatus(out.Duplicate), out)
}

func (s *Server) handleRecordPlay(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = s.now().UTC()
	}
	out, err := s.svc.RecordSongPlayEvent(r.Context(), domain.SongPlayLog{
		ID:             req.ID,
		UserID:         chi.URLParam(r, "userID"),
		SongID:         req.SongID,
		Genre:          req.Genre,
		Mood:           req.Mood,
		DurationPlayed: req.DurationPlayed,
		Timestamp:      req.Timestamp,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, eventStatus(out.Duplicate), out)
}

func eventStatus(duplicate bool) int {
	if duplicate {
		return http.StatusOK
	}
	return http.StatusCreated
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.GetSummary(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleInitializeUser(w http.ResponseWriter, r *http.Request) {
	l, created, err := s.svc.InitializeUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, map[string]any{"created": created, "ledger": l})
}

func (s *Server) handleBadgesSeen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BadgeIDs []string `json:"badgeIds"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	n, err := s.svc.MarkBadgesSeen(r.Context(), chi.URLParam(r, "userID"), req.BadgeIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": n})
}

func (s *Server) handleXPHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.XPHistory(r.Context(), chi.URLParam(r, "userID"), queryLimit(r, 50))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.XPEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// ─── Notifications ──────────────────────────────────────────────────────────

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	pending, err := s.svc.PendingNotifications(r.Context(), chi.URLParam(r, "userID"), queryLimit(r, 20))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if pending == nil {
		pending = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": pending})
}

func (s *Server) handleNotificationShown(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}
	if err := s.svc.MarkNotificationShown(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ─── Catalog ────────────────────────────────────────────────────────────────

func (s *Server) handleListBadges(w http.ResponseWriter, r *http.Request) {
	defs, err := s.svc.ListBadges(r.Context(), domain.BadgeType(r.URL.Query().Get("type")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if defs == nil {
		defs = []domain.BadgeDefinition{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"badges": defs})
}

func (s *Server) handleBadgeDetails(w http.ResponseWriter, r *http.Request) {
	def, err := s.svc.GetBadgeDetails(r.Context(), chi.URLParam(r, "badgeID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) handleListSeasons(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	seasons, err := s.svc.ListSeasons(r.Context(), activeOnly)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if seasons == nil {
		seasons = []domain.SeasonalConfiguration{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"seasons": seasons})
}

// ─── Admin ──────────────────────────────────────────────────────────────────

func (s *Server) handleSeasonalSweep(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.RunSeasonalSweep(r.Context())
	if err != nil {
		log.Printf("[api] seasonal sweep: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error(), "report": report})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func queryLimit(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, 500)
}

// writeServiceError maps the error taxonomy onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, domain.ErrBadgeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRetriesExhausted),
		domain.IsTransient(err),
		errors.Is(err, context.DeadlineExceeded):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Printf("[api] internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
