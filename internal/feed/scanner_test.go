package feed

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

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testSignal() domain.PriceDiscrepancy {
	return domain.PriceDiscrepancy{
		Asset:      "SOL",
		BuyVenue:   "venue-a",
		SellVenue:  "venue-b",
		BuyPrice:   100,
		SellPrice:  101,
		SpreadPct:  1.0,
		ObservedAt: time.Now().UTC(),
	}
}

func arbRecord() domain.StrategyRecord {
	return domain.StrategyRecord{ID: "s1", Category: domain.CategoryArbitrage}
}

func TestScannerShapesArbitrage(t *testing.T) {
	oracle := &fakeOracle{sigs: []domain.PriceDiscrepancy{testSignal()}}
	s := NewScanner(oracle, ScannerConfig{Notional: 100, TTL: 10 * time.Second}, testLogger())

	opps, err := s.Analyze(context.Background(), arbRecord())
	require.NoError(t, err)
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, domain.CategoryArbitrage, opp.Category)
	assert.InDelta(t, 1.0, opp.EstProfitUSD, 1e-9) // 100 * (101-100)/100
	assert.InDelta(t, 0.6, opp.Confidence, 1e-9)   // 0.5 + 1.0/10
	assert.Equal(t, []string{"SOL"}, opp.Assets)
	assert.Equal(t, "venue-a", opp.Metadata["buy_venue"])
	assert.False(t, opp.Expired(time.Now()))
	require.NoError(t, opp.Validate())
}

func TestScannerShapesMarketMaking(t *testing.T) {
	oracle := &fakeOracle{sigs: []domain.PriceDiscrepancy{testSignal()}}
	s := NewScanner(oracle, ScannerConfig{Notional: 100}, testLogger())

	opps, err := s.Analyze(context.Background(), domain.StrategyRecord{
		ID: "s2", Category: domain.CategoryMarketMaking,
	})
	require.NoError(t, err)
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, domain.CategoryMarketMaking, opp.Category)
	assert.InDelta(t, 0.5, opp.EstProfitUSD, 1e-9) // half the 1% spread on 100
	assert.Less(t, opp.Confidence, 0.6)            // discounted vs arbitrage
}

func TestScannerSkipsUnshapedCategories(t *testing.T) {
	oracle := &fakeOracle{sigs: []domain.PriceDiscrepancy{testSignal()}}
	s := NewScanner(oracle, DefaultScannerConfig(), testLogger())

	for _, cat := range []domain.Category{
		domain.CategoryFlashLoan,
		domain.CategoryLiquidation,
		domain.CategorySandwich,
		domain.CategoryFrontrun,
	} {
		opps, err := s.Analyze(context.Background(), domain.StrategyRecord{ID: "s", Category: cat})
		require.NoError(t, err)
		assert.Empty(t, opps, string(cat))
	}
}

func TestScannerPropagatesOracleError(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("redis down")}
	s := NewScanner(oracle, DefaultScannerConfig(), testLogger())

	_, err := s.Analyze(context.Background(), arbRecord())
	require.Error(t, err)
}

func TestScannerDropsNonPositiveEdges(t *testing.T) {
	inverted := testSignal()
	inverted.BuyPrice = 101
	inverted.SellPrice = 100
	oracle := &fakeOracle{sigs: []domain.PriceDiscrepancy{inverted}}
	s := NewScanner(oracle, DefaultScannerConfig(), testLogger())

	opps, err := s.Analyze(context.Background(), arbRecord())
	require.NoError(t, err)
	assert.Empty(t, opps)
}
