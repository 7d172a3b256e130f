package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/oppbot/internal/catalog"
	"github.com/alanyoungcy/oppbot/internal/domain"
)

// StrategyHandler serves the strategy catalog endpoints.
type StrategyHandler struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewStrategyHandler creates a StrategyHandler.
func NewStrategyHandler(cat *catalog.Catalog, logger *slog.Logger) *StrategyHandler {
	return &StrategyHandler{
		catalog: cat,
		logger:  logHandler(logger, "strategy"),
	}
}

// List returns every registered strategy.
// GET /api/strategies
func (h *StrategyHandler) List(w http.ResponseWriter, r *http.Request) {
	recs := h.catalog.List()
	if recs == nil {
		recs = []domain.StrategyRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"strategies": recs})
}

// Get returns a single strategy by ID.
// GET /api/strategies/{id}
func (h *StrategyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	rec, err := h.catalog.Get(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "strategy not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// TopPerformers returns the best strategies ranked by success rate weighted
// by total profit.
// GET /api/strategies/top?limit=N
func (h *StrategyHandler) TopPerformers(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 10, 100)
	recs := h.catalog.TopPerformers(limit)
	if recs == nil {
		recs = []domain.StrategyRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"strategies": recs})
}

// RegisterRequest is the JSON body for POST /api/strategies.
type RegisterRequest struct {
	Name              string  `json:"name"`
	Category          string  `json:"category"`
	RiskTier          string  `json:"risk_tier"`
	Priority          int     `json:"priority"`
	MinProfit         float64 `json:"min_profit"`
	MaxCost           float64 `json:"max_cost"`
	Enabled           bool    `json:"enabled"`
	SlippageTolerance float64 `json:"slippage_tolerance"`
	MaxRetries        int     `json:"max_retries"`
	TimeoutMs         int64   `json:"timeout_ms"`
}

// Register adds a new strategy to the catalog.
// POST /api/strategies
func (h *StrategyHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	id, err := h.catalog.Register(domain.StrategySpec{
		Name:      req.Name,
		Category:  domain.Category(req.Category),
		RiskTier:  domain.RiskTier(req.RiskTier),
		Priority:  req.Priority,
		MinProfit: req.MinProfit,
		MaxCost:   req.MaxCost,
		Enabled:   req.Enabled,
		Params: domain.ExecParams{
			SlippageTolerance: req.SlippageTolerance,
			MaxRetries:        req.MaxRetries,
			Timeout:           time.Duration(req.TimeoutMs) * time.Millisecond,
		},
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.InfoContext(r.Context(), "strategy registered",
		slog.String("id", id),
		slog.String("name", req.Name),
		slog.String("category", req.Category),
	)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// Activate enables a strategy.
// POST /api/strategies/{id}/activate
func (h *StrategyHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// Deactivate disables a strategy without losing its statistics.
// POST /api/strategies/{id}/deactivate
func (h *StrategyHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *StrategyHandler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id := pathParam(r, "id")

	var err error
	if enabled {
		err = h.catalog.Activate(id)
	} else {
		err = h.catalog.Deactivate(id)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "strategy not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "enabled": enabled})
}
