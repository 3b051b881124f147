package maintenance

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"jobboard-serverless/internal/observability"
)

// batchTimeout is a coarser per-query net for the one non-interactive batch
// path; interactive requests rely on the request ceiling alone.
const batchTimeout = 25 * time.Second

type AttemptCleaner interface {
	CleanupStaleLoginAttempts(ctx context.Context, retention time.Duration, batchSize int) (int64, error)
}

// CleanupHandler is the cron-invoked janitor for stale login-attempt rows.
// It hides behind a shared secret; with no secret configured the route does
// not exist as far as callers can tell.
type CleanupHandler struct {
	cleaner    AttemptCleaner
	logger     *observability.Logger
	cronSecret string
	retention  time.Duration
	batchSize  int
}

func NewCleanupHandler(cleaner AttemptCleaner, logger *observability.Logger, cronSecret string, retention time.Duration, batchSize int) *CleanupHandler {
	return &CleanupHandler{
		cleaner:    cleaner,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		retention:  retention,
		batchSize:  batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), batchTimeout)
	defer cancel()

	deleted, err := h.cleaner.CleanupStaleLoginAttempts(ctx, h.retention, h.batchSize)
	if err != nil {
		h.logger.Error("auth_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("auth_cleanup_completed", map[string]any{
		"deleted_login_attempts": deleted,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":                 "ok",
		"deleted_login_attempts": deleted,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
