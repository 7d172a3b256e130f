// Package executor provides execution clients for the dispatch pipeline.
// The only built-in client is a paper executor that settles opportunities
// against a simulated fill model; real venue adapters implement
// domain.ExecutionClient at the network edge.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

// PaperConfig tunes the simulated fill model.
type PaperConfig struct {
	SlippageRate float64       // fraction of estimated profit lost on a fill
	Latency      time.Duration // simulated settlement latency per execution
	DedupTTL     time.Duration // window in which a repeated opportunity ID is rejected
	Seed         int64         // 0 seeds from the clock
}

// DefaultPaperConfig returns the fill model defaults.
func DefaultPaperConfig() PaperConfig {
	return PaperConfig{
		SlippageRate: 0.01,
		Latency:      20 * time.Millisecond,
		DedupTTL:     2 * time.Minute,
	}
}

// Paper is a simulated execution client. Fills succeed with probability
// equal to the opportunity's confidence; realized profit is the estimate
// shaved by slippage. Duplicate opportunity IDs within the dedup window are
// rejected outright.
type Paper struct {
	cfg    PaperConfig
	dedup  *Dedup
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

var _ domain.ExecutionClient = (*Paper)(nil)

// NewPaper creates a paper execution client.
func NewPaper(cfg PaperConfig, logger *slog.Logger) *Paper {
	if cfg.SlippageRate < 0 {
		cfg.SlippageRate = 0
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = DefaultPaperConfig().DedupTTL
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Paper{
		cfg:    cfg,
		dedup:  NewDedup(cfg.DedupTTL),
		logger: logger.With(slog.String("component", "executor")),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Execute settles a single opportunity through the fill model. Duplicates
// and cancelled contexts return errors; a fill miss is a normal failed
// outcome, not an error.
func (p *Paper) Execute(ctx context.Context, strategyID string, opp domain.Opportunity) (domain.ExecutionOutcome, error) {
	start := time.Now()

	if p.dedup.IsDuplicate(opp.ID) {
		return domain.ExecutionOutcome{}, fmt.Errorf("executor: duplicate opportunity %s: %w", opp.ID, domain.ErrInvalidOpportunity)
	}

	if p.cfg.Latency > 0 {
		select {
		case <-ctx.Done():
			return domain.ExecutionOutcome{}, fmt.Errorf("executor: settle %s: %w", opp.ID, ctx.Err())
		case <-time.After(p.cfg.Latency):
		}
	}

	roll := p.roll()
	out := domain.ExecutionOutcome{
		OpportunityID: opp.ID,
		StrategyID:    strategyID,
		CostUnits:     opp.EstCostUnits,
		Duration:      time.Since(start),
		SettledAt:     time.Now().UTC(),
	}

	confidence := opp.Confidence
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	if roll >= confidence {
		out.FailureReason = "simulated fill miss"
		p.logger.Debug("paper fill missed",
			slog.String("opportunity_id", opp.ID),
			slog.Float64("confidence", confidence),
		)
		return out, nil
	}

	// Shave slippage off the estimate; the roll adds fill-to-fill variance.
	fill := 1 - p.cfg.SlippageRate*(0.5+roll)
	out.Success = true
	out.Profit = opp.EstProfit * fill
	out.ProfitUSD = opp.EstProfitUSD * fill
	out.TxRef = "paper-" + uuid.New().String()

	p.logger.Debug("paper fill settled",
		slog.String("opportunity_id", opp.ID),
		slog.String("strategy_id", strategyID),
		slog.Float64("profit_usd", out.ProfitUSD),
	)
	return out, nil
}

// Run garbage-collects the dedup window until the context is cancelled. It
// should be called in a goroutine alongside the dispatcher.
func (p *Paper) Run(ctx context.Context) error {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.dedup.Cleanup()
		}
	}
}

func (p *Paper) roll() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}
