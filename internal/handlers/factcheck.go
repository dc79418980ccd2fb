package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/news-guard/newsguard/internal/auth"
	"github.com/news-guard/newsguard/internal/factcheck"
	"github.com/news-guard/newsguard/internal/models"
	"github.com/rs/zerolog/log"
)

// minImageDataLen guards against obviously truncated image payloads.
const minImageDataLen = 100

// AnalysisRunner is the service surface the handlers call.
type AnalysisRunner interface {
	AnalyzeText(ctx context.Context, userID uuid.UUID, req *models.TextCheckRequest) (factcheck.Result, error)
	AnalyzeImage(ctx context.Context, userID uuid.UUID, req *models.ImageCheckRequest) (factcheck.Result, error)
}

// LogLister lists persisted analyses for a user.
type LogLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *time.Time) ([]*models.AnalysisLog, error)
}

// HealthChecker reports backing-store health.
type HealthChecker interface {
	Health() error
}

// Handler contains all HTTP handlers
type Handler struct {
	analysis AnalysisRunner
	logs     LogLister
	db       HealthChecker
}

// NewHandler creates a new handler
func NewHandler(analysis AnalysisRunner, logs LogLister, db HealthChecker) *Handler {
	return &Handler{
		analysis: analysis,
		logs:     logs,
		db:       db,
	}
}

// CheckText handles POST /v1/factcheck/text
func (h *Handler) CheckText(w http.ResponseWriter, r *http.Request) {
	var req models.TextCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateTextRequest(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := h.analysis.AnalyzeText(r.Context(), userID, &req)
	if err != nil {
		// Precondition failures are the only errors the service surfaces.
		log.Warn().Err(err).Msg("Text fact-check rejected")
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeResult(w, result)
}

// CheckImage handles POST /v1/factcheck/image
func (h *Handler) CheckImage(w http.ResponseWriter, r *http.Request) {
	var req models.ImageCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateImageRequest(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := h.analysis.AnalyzeImage(r.Context(), userID, &req)
	if err != nil {
		log.Warn().Err(err).Msg("Image fact-check rejected")
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeResult(w, result)
}

func validateTextRequest(req *models.TextCheckRequest) error {
	if len([]rune(req.Text)) < 10 {
		return fmt.Errorf("text must be at least 10 characters long")
	}
	if req.MaxResults < 0 || req.MaxResults > 10 {
		return fmt.Errorf("max_results must be between 1 and 10")
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if req.MaxTokens < 0 || req.MaxTokens > 4000 {
		return fmt.Errorf("max_tokens must be between 1 and 4000")
	}
	return nil
}

func validateImageRequest(req *models.ImageCheckRequest) error {
	if len(req.ImageBase64) < minImageDataLen {
		return fmt.Errorf("image data must be at least %d characters long", minImageDataLen)
	}
	if !strings.HasPrefix(req.ImageBase64, "data:image/") {
		return fmt.Errorf("invalid image data format, must be a data URL starting with data:image/")
	}
	return nil
}

// writeResult writes a fact-check result with no-store caching, matching the
// API contract for analysis responses.
func writeResult(w http.ResponseWriter, result factcheck.Result) {
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
