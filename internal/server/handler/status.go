package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/oppbot/internal/catalog"
	"github.com/alanyoungcy/oppbot/internal/dispatch"
)

// MetricsSource exposes the dispatcher's runtime snapshot.
type MetricsSource interface {
	Metrics() dispatch.Metrics
}

// StatusHandler serves the runtime status endpoint: dispatcher metrics plus
// catalog composition.
type StatusHandler struct {
	metrics   MetricsSource
	catalog   *catalog.Catalog
	mode      string
	startedAt time.Time
	logger    *slog.Logger
}

// NewStatusHandler creates a StatusHandler. metrics may be nil in server-only
// mode, in which case the dispatcher section is omitted.
func NewStatusHandler(metrics MetricsSource, cat *catalog.Catalog, mode string, startedAt time.Time, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		metrics:   metrics,
		catalog:   cat,
		mode:      mode,
		startedAt: startedAt,
		logger:    logHandler(logger, "status"),
	}
}

// GetStatus returns the current runtime snapshot.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	stats := h.catalog.Stats()

	resp := map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"catalog": map[string]any{
			"total":        stats.Total,
			"active":       stats.Active,
			"by_category":  stats.ByCategory,
			"by_risk_tier": stats.ByRiskTier,
		},
	}
	if h.metrics != nil {
		resp["dispatcher"] = h.metrics.Metrics()
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetMetrics returns only the dispatcher metrics, suitable for scraping.
// GET /api/metrics
func (h *StatusHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		writeError(w, http.StatusNotImplemented, "dispatcher not running in this mode")
		return
	}
	writeJSON(w, http.StatusOK, h.metrics.Metrics())
}
