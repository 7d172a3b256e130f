package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

// OutcomeHandler serves the settled-outcome history endpoints.
type OutcomeHandler struct {
	store  domain.OutcomeStore
	logger *slog.Logger
}

// NewOutcomeHandler creates an OutcomeHandler. store may be nil when no
// database is configured.
func NewOutcomeHandler(store domain.OutcomeStore, logger *slog.Logger) *OutcomeHandler {
	return &OutcomeHandler{
		store:  store,
		logger: logHandler(logger, "outcome"),
	}
}

// ListRecent returns outcomes settled within the requested window.
// GET /api/outcomes?hours=N&limit=N
func (h *OutcomeHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "outcome store not configured")
		return
	}

	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 24*30 {
			hours = n
		}
	}
	limit := parseLimit(r, 100, 1000)

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	outs, err := h.store.ListSince(r.Context(), since, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list outcomes failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list outcomes")
		return
	}
	if outs == nil {
		outs = []domain.ExecutionOutcome{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"since":    since.UTC().Format(time.RFC3339),
		"outcomes": outs,
	})
}
