// Package catalog maintains the registered strategy set and its live
// performance statistics. It is the only writer of strategy counters.
package catalog

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

// Stats is a snapshot of catalog composition.
type Stats struct {
	Total      int
	Active     int
	ByCategory map[domain.Category]int
	ByRiskTier map[domain.RiskTier]int
}

// Catalog holds strategy records indexed for the three access patterns the
// dispatcher needs: by id, by category, and by enabled/priority order. It is
// safe for concurrent use.
type Catalog struct {
	mu         sync.RWMutex
	byID       map[string]*domain.StrategyRecord
	byCategory map[domain.Category][]string // ids in registration order
	order      []string                     // all ids in registration order
	logger     *slog.Logger
	now        func() time.Time
}

// New returns an empty, ready-to-use Catalog.
func New(logger *slog.Logger) *Catalog {
	return &Catalog{
		byID:       make(map[string]*domain.StrategyRecord),
		byCategory: make(map[domain.Category][]string),
		logger:     logger.With(slog.String("component", "catalog")),
		now:        time.Now,
	}
}

// Register adds a strategy from the given spec and returns its generated
// identifier.
func (c *Catalog) Register(spec domain.StrategySpec) (string, error) {
	if !spec.Category.Valid() {
		return "", fmt.Errorf("catalog: register %q: unknown category %q", spec.Name, spec.Category)
	}
	rec := &domain.StrategyRecord{
		ID:           uuid.New().String(),
		Name:         spec.Name,
		Category:     spec.Category,
		RiskTier:     spec.RiskTier,
		Priority:     spec.Priority,
		MinProfit:    spec.MinProfit,
		MaxCost:      spec.MaxCost,
		Enabled:      spec.Enabled,
		Params:       spec.Params,
		RegisteredAt: c.now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[rec.ID] = rec
	c.byCategory[rec.Category] = append(c.byCategory[rec.Category], rec.ID)
	c.order = append(c.order, rec.ID)

	c.logger.Debug("strategy registered",
		slog.String("strategy_id", rec.ID),
		slog.String("name", rec.Name),
		slog.String("category", string(rec.Category)),
		slog.Int("priority", rec.Priority),
	)
	return rec.ID, nil
}

// Get returns a copy of the record for id.
func (c *Catalog) Get(id string) (domain.StrategyRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.byID[id]
	if !ok {
		return domain.StrategyRecord{}, fmt.Errorf("catalog: strategy %s: %w", id, domain.ErrNotFound)
	}
	return *rec, nil
}

// GetByCategory returns copies of every record in the category ordered by
// priority descending. Ties keep registration order, which makes selection
// deterministic.
func (c *Catalog) GetByCategory(cat domain.Category) []domain.StrategyRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := c.byCategory[cat]
	out := make([]domain.StrategyRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, *c.byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// SelectForOpportunity returns the highest-priority enabled strategy whose
// category matches the opportunity, or ErrNotFound when no enabled strategy
// can act on it.
func (c *Catalog) SelectForOpportunity(opp domain.Opportunity) (domain.StrategyRecord, error) {
	for _, rec := range c.GetByCategory(opp.Category) {
		if rec.Enabled {
			return rec, nil
		}
	}
	return domain.StrategyRecord{}, fmt.Errorf("catalog: no enabled strategy for category %s: %w", opp.Category, domain.ErrNotFound)
}

// Activate enables the strategy. Idempotent.
func (c *Catalog) Activate(id string) error {
	return c.setEnabled(id, true)
}

// Deactivate disables the strategy without touching its historical
// counters. Idempotent.
func (c *Catalog) Deactivate(id string) error {
	return c.setEnabled(id, false)
}

func (c *Catalog) setEnabled(id string, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.byID[id]
	if !ok {
		return fmt.Errorf("catalog: strategy %s: %w", id, domain.ErrNotFound)
	}
	if rec.Enabled != enabled {
		rec.Enabled = enabled
		c.logger.Info("strategy toggled",
			slog.String("strategy_id", id),
			slog.Bool("enabled", enabled),
		)
	}
	return nil
}

// Enabled returns copies of every enabled record in registration order.
func (c *Catalog) Enabled() []domain.StrategyRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.StrategyRecord, 0, len(c.order))
	for _, id := range c.order {
		if rec := c.byID[id]; rec.Enabled {
			out = append(out, *rec)
		}
	}
	return out
}

// RecordOutcome folds a settled execution outcome into the strategy's
// running counters. It is the single mutation path for statistics; the
// incremental mean keeps AvgExecMs exact without storing every sample.
func (c *Catalog) RecordOutcome(id string, out domain.ExecutionOutcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.byID[id]
	if !ok {
		return fmt.Errorf("catalog: strategy %s: %w", id, domain.ErrNotFound)
	}

	rec.TotalTrades++
	if out.Success {
		rec.ProfitableTrades++
	}
	rec.TotalProfit += out.Profit
	rec.SuccessRate = float64(rec.ProfitableTrades) / float64(rec.TotalTrades)

	execMs := float64(out.Duration.Milliseconds())
	n := float64(rec.TotalTrades)
	rec.AvgExecMs = (rec.AvgExecMs*(n-1) + execMs) / n

	settled := out.SettledAt
	if settled.IsZero() {
		settled = c.now()
	}
	rec.LastExecutedAt = settled
	return nil
}

// TopPerformers ranks strategies with at least one trade by
// successRate × totalProfit descending, with a stable tie-break on id.
func (c *Catalog) TopPerformers(limit int) []domain.StrategyRecord {
	c.mu.RLock()
	traded := make([]domain.StrategyRecord, 0, len(c.byID))
	for _, rec := range c.byID {
		if rec.TotalTrades > 0 {
			traded = append(traded, *rec)
		}
	}
	c.mu.RUnlock()

	sort.Slice(traded, func(i, j int) bool {
		si := traded[i].SuccessRate * traded[i].TotalProfit
		sj := traded[j].SuccessRate * traded[j].TotalProfit
		if si != sj {
			return si > sj
		}
		return traded[i].ID < traded[j].ID
	})
	if limit > 0 && len(traded) > limit {
		traded = traded[:limit]
	}
	return traded
}

// Stats returns counts by category and risk tier plus total/active counts.
// The snapshot is eventually consistent with concurrent updates.
func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Stats{
		Total:      len(c.byID),
		ByCategory: make(map[domain.Category]int),
		ByRiskTier: make(map[domain.RiskTier]int),
	}
	for _, rec := range c.byID {
		s.ByCategory[rec.Category]++
		s.ByRiskTier[rec.RiskTier]++
		if rec.Enabled {
			s.Active++
		}
	}
	return s
}

// List returns copies of all records in registration order.
func (c *Catalog) List() []domain.StrategyRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.StrategyRecord, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.byID[id])
	}
	return out
}

// Restore seeds the catalog from persisted records, preserving identifiers
// and counters. Used at startup before any registration.
func (c *Catalog) Restore(recs []domain.StrategyRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range recs {
		rec := recs[i]
		if _, exists := c.byID[rec.ID]; exists {
			continue
		}
		c.byID[rec.ID] = &rec
		c.byCategory[rec.Category] = append(c.byCategory[rec.Category], rec.ID)
		c.order = append(c.order, rec.ID)
	}
}
