// Package predictor provides the baseline scoring oracle used by the
// dispatcher's confidence gate.
package predictor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

const (
	// trainWindow is how far back a training pass looks.
	trainWindow = 24 * time.Hour
	// trainLimit caps the number of outcomes loaded per training pass.
	trainLimit = 50000
	// minSamples is the per-category sample count below which the baseline
	// falls back to the neutral prior.
	minSamples = 10
	// neutralPrior is the assumed success rate with no history.
	neutralPrior = 0.5
)

// categoryStats holds observed per-category outcome counts.
type categoryStats struct {
	total     int64
	successes int64
}

func (s categoryStats) rate() float64 {
	if s.total < minSamples {
		return neutralPrior
	}
	return float64(s.successes) / float64(s.total)
}

// Baseline implements domain.Predictor with per-category success
// frequencies. Predict blends the generator's own confidence with the
// observed success rate of the opportunity's category; Train rebuilds the
// frequency table from the outcome store.
type Baseline struct {
	mu    sync.RWMutex
	stats map[domain.Category]categoryStats

	training atomic.Bool

	store   domain.OutcomeStore
	resolve func(strategyID string) (domain.Category, bool)
	logger  *slog.Logger
	now     func() time.Time
}

// NewBaseline creates a Baseline. store may be nil, in which case Train is a
// no-op and the predictor learns only from Observe calls. resolve maps a
// strategy ID back to its category for persisted outcomes.
func NewBaseline(store domain.OutcomeStore, resolve func(string) (domain.Category, bool), logger *slog.Logger) *Baseline {
	return &Baseline{
		stats:   make(map[domain.Category]categoryStats),
		store:   store,
		resolve: resolve,
		logger:  logger.With(slog.String("component", "predictor")),
		now:     time.Now,
	}
}

// Observe folds a single settled outcome into the frequency table.
func (b *Baseline) Observe(category domain.Category, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats[category]
	s.total++
	if success {
		s.successes++
	}
	b.stats[category] = s
}

// Predict returns the blended success probability for the opportunity:
// the mean of the generator's confidence and the observed category rate.
func (b *Baseline) Predict(_ context.Context, opp domain.Opportunity) (float64, error) {
	b.mu.RLock()
	rate := b.stats[opp.Category].rate()
	b.mu.RUnlock()
	return (opp.Confidence + rate) / 2, nil
}

// Train rebuilds the frequency table from recent persisted outcomes.
// Concurrent Train calls are collapsed: a call made while another is running
// returns immediately.
func (b *Baseline) Train(ctx context.Context) error {
	if b.store == nil || b.resolve == nil {
		return nil
	}
	if !b.training.CompareAndSwap(false, true) {
		return nil
	}
	defer b.training.Store(false)

	since := b.now().Add(-trainWindow)
	outs, err := b.store.ListSince(ctx, since, trainLimit)
	if err != nil {
		return fmt.Errorf("predictor: train: %w", err)
	}

	fresh := make(map[domain.Category]categoryStats)
	for _, out := range outs {
		cat, ok := b.resolve(out.StrategyID)
		if !ok {
			continue
		}
		s := fresh[cat]
		s.total++
		if out.Success {
			s.successes++
		}
		fresh[cat] = s
	}

	b.mu.Lock()
	b.stats = fresh
	b.mu.Unlock()

	b.logger.Info("predictor retrained",
		slog.Int("outcomes", len(outs)),
		slog.Int("categories", len(fresh)))
	return nil
}

// IsTraining reports whether a training pass is currently running.
func (b *Baseline) IsTraining() bool {
	return b.training.Load()
}

// Compile-time interface check.
var _ domain.Predictor = (*Baseline)(nil)
