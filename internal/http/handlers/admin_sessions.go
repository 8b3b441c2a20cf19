package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arlingtonsteamers/booking-agent/internal/session"
	"github.com/arlingtonsteamers/booking-agent/pkg/logging"
)

// SessionStore is the session surface the admin API needs.
type SessionStore interface {
	List(ctx context.Context) (map[string]*session.Session, error)
	Clear(ctx context.Context, user string) error
}

// AdminSessionsHandler exposes in-flight conversations for the dashboard.
type AdminSessionsHandler struct {
	store  SessionStore
	logger *logging.Logger
}

// NewAdminSessionsHandler creates the sessions admin handler.
func NewAdminSessionsHandler(store SessionStore, logger *logging.Logger) *AdminSessionsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminSessionsHandler{store: store, logger: logger}
}

type sessionView struct {
	UserKey      string            `json:"user"`
	Step         string            `json:"step"`
	Fields       map[string]string `json:"fields"`
	CreatedAt    string            `json:"createdAt"`
	LastActivity string            `json:"lastActivity"`
}

// List handles GET /api/sessions.
func (h *AdminSessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	views := make([]sessionView, 0, len(sessions))
	for key, sess := range sessions {
		views = append(views, sessionView{
			UserKey:      key,
			Step:         sess.Step,
			Fields:       sess.Fields,
			CreatedAt:    sess.CreatedAt.UTC().Format(time.RFC3339),
			LastActivity: sess.LastActivity.UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].UserKey < views[j].UserKey })

	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": views,
		"total":    len(views),
	})
}

// Delete handles DELETE /api/sessions/{user}, abandoning the conversation.
func (h *AdminSessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	if user == "" {
		respondError(w, http.StatusBadRequest, "missing user key")
		return
	}

	if err := h.store.Clear(r.Context(), user); err != nil {
		h.logger.Error("failed to clear session", "error", err, "user", user)
		respondError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}

	h.logger.Info("session cleared by admin", "user", user)
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
