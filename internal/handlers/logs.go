package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/news-guard/newsguard/internal/auth"
	"github.com/rs/zerolog/log"
)

// ListLogs handles GET /v1/logs — the activity log of the authed user.
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	var cursor *time.Time
	if cursorStr := r.URL.Query().Get("cursor"); cursorStr != "" {
		if parsedCursor, err := time.Parse(time.RFC3339, cursorStr); err == nil {
			cursor = &parsedCursor
		}
	}

	entries, err := h.logs.ListByUser(r.Context(), userID, limit, cursor)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list analysis logs")
		writeJSONError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs": entries,
	})
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Health(); err != nil {
			log.Error().Err(err).Msg("Health check failed")
			writeJSONError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
