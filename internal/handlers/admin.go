package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/news-guard/newsguard/internal/models"
	"github.com/rs/zerolog/log"
)

// UserProvisioner is the repository surface the admin handlers need for users.
type UserProvisioner interface {
	Create(ctx context.Context, user *models.User) error
	List(ctx context.Context) ([]*models.User, error)
}

// KeyIssuer mints API keys for provisioned users.
type KeyIssuer interface {
	CreateAPIKey(ctx context.Context, userID uuid.UUID, quotaChars int64, quotaPeriod string) (string, *models.APIKey, error)
}

// AdminHandler serves the token-guarded provisioning endpoints.
type AdminHandler struct {
	users       UserProvisioner
	keys        KeyIssuer
	token       string
	quotaChars  int64
	quotaPeriod string
}

// NewAdminHandler creates a new AdminHandler. New keys are issued with the
// given default quota.
func NewAdminHandler(users UserProvisioner, keys KeyIssuer, token string, quotaChars int64, quotaPeriod string) *AdminHandler {
	return &AdminHandler{
		users:       users,
		keys:        keys,
		token:       token,
		quotaChars:  quotaChars,
		quotaPeriod: quotaPeriod,
	}
}

// Middleware rejects requests whose bearer token does not match the admin
// token. The comparison is constant time.
func (h *AdminHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
			log.Warn().Msg("Admin request with invalid token")
			writeJSONError(w, http.StatusUnauthorized, "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateUser handles POST /admin/users: creates a user and issues their
// first API key with the default quota. The plain key is returned once and
// never stored.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validateEmail(req.Email); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	user := &models.User{
		ID:        uuid.New(),
		Email:     &req.Email,
		CreatedAt: time.Now(),
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		log.Error().Err(err).Msg("Failed to create user")
		writeJSONError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	plainKey, key, err := h.keys.CreateAPIKey(r.Context(), user.ID, h.quotaChars, h.quotaPeriod)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to issue API key")
		writeJSONError(w, http.StatusInternalServerError, "failed to issue api key")
		return
	}

	log.Info().Str("user_id", user.ID.String()).Str("key_id", key.ID.String()).Msg("User provisioned")
	writeJSON(w, http.StatusCreated, models.CreateUserResponse{
		User:   user,
		APIKey: plainKey,
		KeyID:  key.ID,
	})
}

// ListUsers handles GET /admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users")
		writeJSONError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return fmt.Errorf("invalid email address")
	}
	return nil
}
