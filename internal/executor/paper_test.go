package executor

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testOpportunity(id string, confidence float64) domain.Opportunity {
	return domain.Opportunity{
		ID:           id,
		Category:     domain.CategoryArbitrage,
		RiskTier:     domain.RiskTierLow,
		EstProfit:    2.0,
		EstProfitUSD: 300,
		Confidence:   confidence,
		EstCostUnits: 5,
		Assets:       []string{"SOL"},
		Venue:        "venue-a",
		CreatedAt:    time.Now().UTC(),
		ExpiresAt:    time.Now().UTC().Add(time.Minute),
	}
}

func TestPaperCertainOpportunityFills(t *testing.T) {
	p := NewPaper(PaperConfig{SlippageRate: 0.01, Seed: 1}, testLogger())

	out, err := p.Execute(context.Background(), "strat-1", testOpportunity("opp-1", 1.0))
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, "opp-1", out.OpportunityID)
	assert.Equal(t, "strat-1", out.StrategyID)
	assert.InDelta(t, 2.0, out.Profit, 2.0*0.015) // estimate minus at most 1.5% slippage
	assert.NotEmpty(t, out.TxRef)
	assert.Equal(t, 5.0, out.CostUnits)
}

func TestPaperZeroConfidenceMisses(t *testing.T) {
	p := NewPaper(PaperConfig{Seed: 1}, testLogger())

	out, err := p.Execute(context.Background(), "strat-1", testOpportunity("opp-1", 0))
	require.NoError(t, err)

	assert.False(t, out.Success)
	assert.Equal(t, "simulated fill miss", out.FailureReason)
	assert.Zero(t, out.Profit)
	assert.Empty(t, out.TxRef)
}

func TestPaperRejectsDuplicateID(t *testing.T) {
	p := NewPaper(PaperConfig{Seed: 1, DedupTTL: time.Minute}, testLogger())

	_, err := p.Execute(context.Background(), "strat-1", testOpportunity("opp-1", 1.0))
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), "strat-1", testOpportunity("opp-1", 1.0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidOpportunity))
}

func TestPaperHonorsContextDuringLatency(t *testing.T) {
	p := NewPaper(PaperConfig{Seed: 1, Latency: time.Second}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Execute(ctx, "strat-1", testOpportunity("opp-1", 1.0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDedupExpiry(t *testing.T) {
	d := NewDedup(10 * time.Millisecond)

	require.False(t, d.IsDuplicate("a"))
	require.True(t, d.IsDuplicate("a"))

	time.Sleep(20 * time.Millisecond)
	assert.False(t, d.IsDuplicate("a"))
}

func TestDedupCleanup(t *testing.T) {
	d := NewDedup(time.Nanosecond)

	require.False(t, d.IsDuplicate("a"))
	time.Sleep(time.Millisecond)
	d.Cleanup()

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Empty(t, d.seen)
}
