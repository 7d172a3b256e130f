package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oppbot/internal/catalog"
	"github.com/alanyoungcy/oppbot/internal/decision"
	"github.com/alanyoungcy/oppbot/internal/domain"
	"github.com/alanyoungcy/oppbot/internal/flashloan"
)

type fakeExec struct {
	mu      sync.Mutex
	calls   []string // strategy ids, in settlement order
	succeed bool
	profit  float64
}

func (f *fakeExec) Execute(ctx context.Context, strategyID string, opp domain.Opportunity) (domain.ExecutionOutcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, strategyID)
	f.mu.Unlock()
	return domain.ExecutionOutcome{
		Success:   f.succeed,
		Profit:    f.profit,
		ProfitUSD: f.profit,
		Duration:  time.Millisecond,
	}, nil
}

func (f *fakeExec) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePredictor struct {
	prob     float64
	training atomic.Bool
	trains   atomic.Int32
}

func (f *fakePredictor) Predict(ctx context.Context, opp domain.Opportunity) (float64, error) {
	return f.prob, nil
}

func (f *fakePredictor) Train(ctx context.Context) error {
	f.trains.Add(1)
	return nil
}

func (f *fakePredictor) IsTraining() bool { return f.training.Load() }

type fakeDiscOracle struct {
	sigs []domain.PriceDiscrepancy
}

func (f *fakeDiscOracle) CurrentPrice(ctx context.Context, asset string) (float64, error) {
	return 0, domain.ErrPriceUnavailable
}

func (f *fakeDiscOracle) FindDiscrepancies(ctx context.Context, minSpreadPct float64) ([]domain.PriceDiscrepancy, error) {
	return f.sigs, nil
}

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.CycleInterval = 5 * time.Millisecond
	cfg.ConfidenceThreshold = 0.7
	return cfg
}

func newFixture(t *testing.T, exec *fakeExec) (*Engine, *catalog.Catalog, string) {
	t.Helper()
	cat := catalog.New(testLogger())
	id, err := cat.Register(domain.StrategySpec{
		Name:     "arb-main",
		Category: domain.CategoryArbitrage,
		RiskTier: domain.RiskTierLow,
		Priority: 5,
		Enabled:  true,
	})
	require.NoError(t, err)

	dec := decision.NewEngine(testLogger())
	eng := New(testConfig(), cat, dec, exec, testLogger())
	return eng, cat, id
}

func goodOpp(id string) domain.Opportunity {
	now := time.Now()
	return domain.Opportunity{
		ID:           id,
		Category:     domain.CategoryArbitrage,
		RiskTier:     domain.RiskTierLow,
		Confidence:   0.9,
		EstProfit:    0.5,
		EstProfitUSD: 50,
		EstCostUnits: 0.0001,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Minute),
	}
}

func TestEnqueueRejectsMalformed(t *testing.T) {
	eng, _, _ := newFixture(t, &fakeExec{})
	err := eng.Enqueue(domain.Opportunity{ID: "", Category: domain.CategoryArbitrage})
	assert.ErrorIs(t, err, domain.ErrInvalidOpportunity)

	bad := goodOpp("x")
	bad.ExpiresAt = bad.CreatedAt.Add(-time.Second)
	assert.ErrorIs(t, eng.Enqueue(bad), domain.ErrInvalidOpportunity)
}

func TestDispatchExecutesAcceptedOpportunity(t *testing.T) {
	exec := &fakeExec{succeed: true, profit: 1.5}
	eng, cat, stratID := newFixture(t, exec)

	eng.Start(context.Background())
	defer eng.Stop()

	require.NoError(t, eng.Enqueue(goodOpp("opp-1")))

	require.Eventually(t, func() bool {
		return exec.callCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		rec, _ := cat.Get(stratID)
		return rec.TotalTrades == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec, _ := cat.Get(stratID)
	assert.EqualValues(t, 1, rec.ProfitableTrades)
	assert.InDelta(t, 1.5, rec.TotalProfit, 1e-9)

	m := eng.Metrics()
	assert.True(t, m.Running)
	assert.EqualValues(t, 1, m.TotalTrades)
}

func TestDispatchRejectsBelowPredictorThreshold(t *testing.T) {
	exec := &fakeExec{succeed: true}
	eng, cat, stratID := newFixture(t, exec)
	eng.SetPredictor(&fakePredictor{prob: 0.2})

	eng.Start(context.Background())
	defer eng.Stop()

	require.NoError(t, eng.Enqueue(goodOpp("opp-low")))

	require.Eventually(t, func() bool {
		return eng.Metrics().TotalTrades == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Zero(t, exec.callCount(), "gated opportunity must never reach execution")
	rec, _ := cat.Get(stratID)
	assert.Zero(t, rec.TotalTrades, "strategy counters untouched by gate rejections")
}

func TestDispatchRejectsWhenNoStrategyMatches(t *testing.T) {
	exec := &fakeExec{succeed: true}
	eng, _, _ := newFixture(t, exec)
	eng.SetPredictor(&fakePredictor{prob: 0.99})

	eng.Start(context.Background())
	defer eng.Stop()

	opp := goodOpp("opp-orphan")
	opp.Category = domain.CategoryLiquidation // nothing registered for it
	require.NoError(t, eng.Enqueue(opp))

	require.Eventually(t, func() bool {
		return eng.Metrics().TotalTrades == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, exec.callCount())
}

func TestDispatchSelectsHighestPriorityStrategy(t *testing.T) {
	exec := &fakeExec{succeed: true}
	eng, cat, _ := newFixture(t, exec)
	top, err := cat.Register(domain.StrategySpec{
		Name:     "arb-priority",
		Category: domain.CategoryArbitrage,
		Priority: 99,
		Enabled:  true,
	})
	require.NoError(t, err)
	eng.SetPredictor(&fakePredictor{prob: 0.99})

	eng.Start(context.Background())
	defer eng.Stop()

	require.NoError(t, eng.Enqueue(goodOpp("opp-pri")))
	require.Eventually(t, func() bool {
		return exec.callCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	exec.mu.Lock()
	defer exec.mu.Unlock()
	assert.Equal(t, top, exec.calls[0])
}

func TestExpiredOpportunityDiscarded(t *testing.T) {
	exec := &fakeExec{succeed: true}
	eng, _, _ := newFixture(t, exec)

	opp := goodOpp("opp-exp")
	opp.CreatedAt = time.Now().Add(-2 * time.Minute)
	opp.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, eng.Enqueue(opp))

	eng.Start(context.Background())
	defer eng.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, exec.callCount())
}

func TestQueueFullDropsVisibleInMetrics(t *testing.T) {
	exec := &fakeExec{}
	cat := catalog.New(testLogger())
	dec := decision.NewEngine(testLogger())
	cfg := testConfig()
	cfg.QueueCapacity = 2
	eng := New(cfg, cat, dec, exec, testLogger())

	// Engine not started: queue fills and the third enqueue is dropped
	// without blocking or erroring.
	require.NoError(t, eng.Enqueue(goodOpp("a")))
	require.NoError(t, eng.Enqueue(goodOpp("b")))
	require.NoError(t, eng.Enqueue(goodOpp("c")))

	m := eng.Metrics()
	assert.Equal(t, 2, m.QueueDepth)
	assert.EqualValues(t, 1, m.Dropped)
}

func TestStartIsIdempotentAndStopPreservesCounters(t *testing.T) {
	exec := &fakeExec{succeed: true}
	eng, _, _ := newFixture(t, exec)

	ctx := context.Background()
	eng.Start(ctx)
	eng.Start(ctx) // no-op

	require.NoError(t, eng.Enqueue(goodOpp("opp-1")))
	require.Eventually(t, func() bool {
		return eng.Metrics().TotalTrades == 1
	}, 2*time.Second, 10*time.Millisecond)

	eng.Stop()
	eng.Stop() // idempotent
	assert.False(t, eng.Metrics().Running)

	// Counters survive a restart.
	eng.Start(ctx)
	defer eng.Stop()
	require.NoError(t, eng.Enqueue(goodOpp("opp-2")))
	require.Eventually(t, func() bool {
		return eng.Metrics().TotalTrades == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGeneratorFeedsQueue(t *testing.T) {
	exec := &fakeExec{succeed: true}
	eng, _, _ := newFixture(t, exec)
	eng.SetPredictor(&fakePredictor{prob: 0.99})

	var n atomic.Int32
	eng.SetGenerator(generatorFunc(func(ctx context.Context, rec domain.StrategyRecord) ([]domain.Opportunity, error) {
		if n.Add(1) > 1 {
			return nil, nil
		}
		return []domain.Opportunity{goodOpp("opp-gen")}, nil
	}))

	cfg := eng.cfg
	cfg.GeneratorInterval = 10 * time.Millisecond
	eng.cfg = cfg

	eng.Start(context.Background())
	defer eng.Stop()

	require.Eventually(t, func() bool {
		return exec.callCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

type generatorFunc func(ctx context.Context, rec domain.StrategyRecord) ([]domain.Opportunity, error)

func (f generatorFunc) Analyze(ctx context.Context, rec domain.StrategyRecord) ([]domain.Opportunity, error) {
	return f(ctx, rec)
}

func TestTrainerTriggersAfterSampleThreshold(t *testing.T) {
	exec := &fakeExec{succeed: true}
	eng, _, _ := newFixture(t, exec)

	pred := &fakePredictor{prob: 0.99}
	eng.SetPredictor(pred)
	cfg := eng.cfg
	cfg.TrainInterval = 10 * time.Millisecond
	cfg.TrainMinSamples = 1
	eng.cfg = cfg

	eng.Start(context.Background())
	defer eng.Stop()

	require.NoError(t, eng.Enqueue(goodOpp("opp-1")))

	require.Eventually(t, func() bool {
		return pred.trains.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFlashLoanMonitorQueuesAndExecutes(t *testing.T) {
	exec := &fakeExec{succeed: true, profit: 0.4}
	cat := catalog.New(testLogger())
	_, err := cat.Register(domain.StrategySpec{
		Name:     "fl-exec",
		Category: domain.CategoryFlashLoan,
		Priority: 1,
		Enabled:  true,
	})
	require.NoError(t, err)

	dec := decision.NewEngine(testLogger())
	cfg := testConfig()
	cfg.ScanInterval = 10 * time.Millisecond
	eng := New(cfg, cat, dec, exec, testLogger())
	eng.SetPredictor(&fakePredictor{prob: 0.99})

	oracle := &fakeDiscOracle{sigs: []domain.PriceDiscrepancy{{
		Asset:     "SOL",
		BuyVenue:  "raydium",
		SellVenue: "orca",
		BuyPrice:  1.00,
		SellPrice: 1.01,
		SpreadPct: 1.0,
	}}}
	eng.SetFlashLoanBuilder(flashloan.NewBuilder(flashloan.DefaultConfig(), oracle, testLogger()))

	eng.Start(context.Background())
	defer eng.Stop()

	require.Eventually(t, func() bool {
		return exec.callCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}
