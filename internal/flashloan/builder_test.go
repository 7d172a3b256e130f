package flashloan

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

type fakeOracle struct {
	sigs []domain.PriceDiscrepancy
	err  error
}

func (f *fakeOracle) CurrentPrice(ctx context.Context, asset string) (float64, error) {
	return 0, domain.ErrPriceUnavailable
}

func (f *fakeOracle) FindDiscrepancies(ctx context.Context, minSpreadPct float64) ([]domain.PriceDiscrepancy, error) {
	return f.sigs, f.err
}

func newBuilder(cfg Config) *Builder {
	return NewBuilder(cfg, &fakeOracle{}, slog.New(slog.DiscardHandler))
}

func sig(buy, sell, spreadPct float64) domain.PriceDiscrepancy {
	return domain.PriceDiscrepancy{
		Asset:      "SOL",
		BuyVenue:   "raydium",
		SellVenue:  "orca",
		BuyPrice:   buy,
		SellPrice:  sell,
		SpreadPct:  spreadPct,
		ObservedAt: time.Now(),
	}
}

func TestBuildViableCandidate(t *testing.T) {
	// Loan 100 at a 1% spread: gross 1.00, fee 0.09, gas 0.50,
	// slippage 0.005 → net 0.405.
	b := newBuilder(DefaultConfig())

	opp := b.Build(sig(1.00, 1.01, 1.0))
	require.NotNil(t, opp)

	assert.InDelta(t, 0.405, opp.NetProfit, 1e-9)
	assert.Equal(t, domain.CategoryFlashLoan, opp.Category)
	assert.Equal(t, 100.0, opp.LoanAmount)
	assert.True(t, opp.ExpiresAt.After(opp.CreatedAt))

	require.Len(t, opp.Steps, 4)
	assert.Equal(t, domain.StepBorrow, opp.Steps[0].Kind)
	assert.Equal(t, domain.StepSwap, opp.Steps[1].Kind)
	assert.Equal(t, "raydium", opp.Steps[1].Venue)
	assert.Equal(t, domain.StepSwap, opp.Steps[2].Kind)
	assert.Equal(t, "orca", opp.Steps[2].Venue)
	assert.Equal(t, domain.StepRepay, opp.Steps[3].Kind)
	// Repay covers the loan plus the flash-loan fee.
	assert.InDelta(t, 100.09, opp.Steps[3].InputAmount, 1e-9)
}

func TestBuildRejectsUnprofitableLoan(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoanAmount = 10 // gross 0.10, gas alone eats it
	b := newBuilder(cfg)

	assert.Nil(t, b.Build(sig(1.00, 1.01, 1.0)))
}

func TestBuildNeverReturnsNonPositiveNet(t *testing.T) {
	b := newBuilder(DefaultConfig())
	cases := []domain.PriceDiscrepancy{
		sig(1.00, 1.00, 0),    // no spread
		sig(1.01, 1.00, -1),   // inverted
		sig(0, 1.01, 1),       // bad quote
		sig(1.00, 1.0005, 0.05), // spread too thin to cover gas
	}
	for _, s := range cases {
		opp := b.Build(s)
		if opp != nil {
			assert.Greater(t, opp.NetProfit, 0.0)
		}
	}
}

func TestBuildDisabledGate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	b := newBuilder(cfg)
	assert.Nil(t, b.Build(sig(1.00, 1.05, 5.0)))
}

func TestBuildConfidenceBreakpoints(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoanAmount = 1000
	b := newBuilder(cfg)

	// Spread 2.5% on loan 1000: gross 25, net well above 1 → 0.5+0.3+0.2,
	// capped at 0.95.
	opp := b.Build(sig(1.00, 1.025, 2.5))
	require.NotNil(t, opp)
	assert.InDelta(t, 0.95, opp.Confidence, 1e-9)
}

func TestBuildRiskCeilingSuppresses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoanAmount = 50000
	cfg.MaxRisk = 0.4 // loan >10000 alone contributes 0.3 on top of base
	b := newBuilder(cfg)

	assert.Nil(t, b.Build(sig(1.00, 1.01, 1.0)))
}

func TestBuildMinProfitGate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinProfit = 1.0 // example candidate nets only 0.405
	b := newBuilder(cfg)

	assert.Nil(t, b.Build(sig(1.00, 1.01, 1.0)))
}

func TestScanBuildsViableOnly(t *testing.T) {
	oracle := &fakeOracle{sigs: []domain.PriceDiscrepancy{
		sig(1.00, 1.01, 1.0),  // viable
		sig(1.00, 1.001, 0.1), // too thin
	}}
	b := NewBuilder(DefaultConfig(), oracle, slog.New(slog.DiscardHandler))

	opps, err := b.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.InDelta(t, 0.405, opps[0].NetProfit, 1e-9)
}

func TestScanDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	b := NewBuilder(cfg, &fakeOracle{sigs: []domain.PriceDiscrepancy{sig(1.00, 1.05, 5)}}, slog.New(slog.DiscardHandler))

	opps, err := b.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)
}
