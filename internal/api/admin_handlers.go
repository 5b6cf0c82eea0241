package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/draftwire/draftwire/internal/auth"
	"github.com/draftwire/draftwire/internal/models"
)

const (
	defaultCandidateLimit = 50
	maxCandidateLimit     = 200
)

// CandidateLister reads stored candidates for the admin API.
type CandidateLister interface {
	ListRecent(ctx context.Context, limit, offset int) ([]models.Candidate, error)
}

// AdminHandlers serves the operator-facing API: login plus a read-only view
// of the candidate queue.
type AdminHandlers struct {
	candidates CandidateLister
	authConfig auth.Config
	logger     *slog.Logger
}

// NewAdminHandlers creates the admin handler set.
func NewAdminHandlers(candidates CandidateLister, authConfig auth.Config, logger *slog.Logger) *AdminHandlers {
	return &AdminHandlers{
		candidates: candidates,
		authConfig: authConfig,
		logger:     logger,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HandleLogin processes POST /api/login.
func (h *AdminHandlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Password != h.authConfig.AdminPassword {
		h.logger.Warn("failed login attempt", "ip", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := auth.GenerateToken("admin", h.authConfig.JWTSecret, h.authConfig.TokenDuration)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	h.logger.Info("successful login", "ip", r.RemoteAddr)

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.authConfig.TokenDuration),
	})
}

type candidatesResponse struct {
	Candidates []models.Candidate `json:"candidates"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

// HandleListCandidates processes GET /api/candidates.
func (h *AdminHandlers) HandleListCandidates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := parseQueryInt(r, "limit", defaultCandidateLimit)
	if limit < 1 || limit > maxCandidateLimit {
		limit = defaultCandidateLimit
	}
	offset := parseQueryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	candidates, err := h.candidates.ListRecent(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list candidates", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list candidates")
		return
	}
	if candidates == nil {
		candidates = []models.Candidate{}
	}

	writeJSON(w, http.StatusOK, candidatesResponse{
		Candidates: candidates,
		Limit:      limit,
		Offset:     offset,
	})
}

func parseQueryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
