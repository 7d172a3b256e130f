package catalog

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func spec(name string, cat domain.Category, priority int, enabled bool) domain.StrategySpec {
	return domain.StrategySpec{
		Name:     name,
		Category: cat,
		RiskTier: domain.RiskTierMedium,
		Priority: priority,
		Enabled:  enabled,
	}
}

func TestRegisterAndGet(t *testing.T) {
	c := New(testLogger())

	id, err := c.Register(spec("arb-fast", domain.CategoryArbitrage, 10, true))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := c.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "arb-fast", rec.Name)
	assert.Equal(t, domain.CategoryArbitrage, rec.Category)
	assert.True(t, rec.Enabled)
}

func TestRegisterRejectsUnknownCategory(t *testing.T) {
	c := New(testLogger())
	_, err := c.Register(domain.StrategySpec{Name: "bad", Category: "wat"})
	require.Error(t, err)
}

func TestGetByCategoryPriorityOrder(t *testing.T) {
	c := New(testLogger())
	low, _ := c.Register(spec("low", domain.CategoryArbitrage, 1, true))
	high, _ := c.Register(spec("high", domain.CategoryArbitrage, 9, true))
	midA, _ := c.Register(spec("mid-a", domain.CategoryArbitrage, 5, true))
	midB, _ := c.Register(spec("mid-b", domain.CategoryArbitrage, 5, true))

	got := c.GetByCategory(domain.CategoryArbitrage)
	require.Len(t, got, 4)
	assert.Equal(t, high, got[0].ID)
	// Equal priority keeps registration order.
	assert.Equal(t, midA, got[1].ID)
	assert.Equal(t, midB, got[2].ID)
	assert.Equal(t, low, got[3].ID)
}

func TestSelectForOpportunitySkipsDisabled(t *testing.T) {
	c := New(testLogger())
	top, _ := c.Register(spec("top", domain.CategoryLiquidation, 9, true))
	backup, _ := c.Register(spec("backup", domain.CategoryLiquidation, 1, true))

	opp := domain.Opportunity{Category: domain.CategoryLiquidation}

	rec, err := c.SelectForOpportunity(opp)
	require.NoError(t, err)
	assert.Equal(t, top, rec.ID)

	require.NoError(t, c.Deactivate(top))
	rec, err = c.SelectForOpportunity(opp)
	require.NoError(t, err)
	assert.Equal(t, backup, rec.ID)

	require.NoError(t, c.Deactivate(backup))
	_, err = c.SelectForOpportunity(opp)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestActivateDeactivateIdempotent(t *testing.T) {
	c := New(testLogger())
	id, _ := c.Register(spec("s", domain.CategoryFrontrun, 1, true))

	require.NoError(t, c.Deactivate(id))
	require.NoError(t, c.Deactivate(id))
	rec, _ := c.Get(id)
	assert.False(t, rec.Enabled)

	require.NoError(t, c.Activate(id))
	require.NoError(t, c.Activate(id))
	rec, _ = c.Get(id)
	assert.True(t, rec.Enabled)

	assert.ErrorIs(t, c.Activate("nope"), domain.ErrNotFound)
}

func TestRecordOutcomeUpdatesCounters(t *testing.T) {
	c := New(testLogger())
	id, _ := c.Register(spec("s", domain.CategoryFlashLoan, 1, true))

	require.NoError(t, c.RecordOutcome(id, domain.ExecutionOutcome{
		Success:  true,
		Profit:   2.0,
		Duration: 100 * time.Millisecond,
	}))
	require.NoError(t, c.RecordOutcome(id, domain.ExecutionOutcome{
		Success:  false,
		Profit:   -0.5,
		Duration: 300 * time.Millisecond,
	}))

	rec, _ := c.Get(id)
	assert.EqualValues(t, 2, rec.TotalTrades)
	assert.EqualValues(t, 1, rec.ProfitableTrades)
	assert.InDelta(t, 0.5, rec.SuccessRate, 1e-9)
	assert.InDelta(t, 1.5, rec.TotalProfit, 1e-9)
	assert.InDelta(t, 200, rec.AvgExecMs, 1e-9)
	assert.False(t, rec.LastExecutedAt.IsZero())
}

func TestRecordOutcomeConcurrentNoLostUpdates(t *testing.T) {
	c := New(testLogger())
	id, _ := c.Register(spec("s", domain.CategoryArbitrage, 1, true))

	const workers = 8
	const perWorker = 250
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_ = c.RecordOutcome(id, domain.ExecutionOutcome{
					Success:  i%2 == 0,
					Profit:   1.0,
					Duration: 10 * time.Millisecond,
				})
			}
		}()
	}
	wg.Wait()

	rec, _ := c.Get(id)
	assert.EqualValues(t, workers*perWorker, rec.TotalTrades)
	assert.EqualValues(t, workers*perWorker/2, rec.ProfitableTrades)
	assert.InDelta(t, float64(workers*perWorker), rec.TotalProfit, 1e-6)
	assert.InDelta(t, 10, rec.AvgExecMs, 1e-6)
}

func TestTopPerformers(t *testing.T) {
	c := New(testLogger())
	a, _ := c.Register(spec("a", domain.CategoryArbitrage, 1, true))
	b, _ := c.Register(spec("b", domain.CategoryArbitrage, 1, true))
	_, _ = c.Register(spec("never-traded", domain.CategoryArbitrage, 1, true))

	// a: 100% success, profit 1.0 → score 1.0
	require.NoError(t, c.RecordOutcome(a, domain.ExecutionOutcome{Success: true, Profit: 1.0}))
	// b: 100% success, profit 5.0 → score 5.0
	require.NoError(t, c.RecordOutcome(b, domain.ExecutionOutcome{Success: true, Profit: 5.0}))

	top := c.TopPerformers(10)
	require.Len(t, top, 2, "untraded strategies are excluded")
	assert.Equal(t, b, top[0].ID)
	assert.Equal(t, a, top[1].ID)

	assert.Len(t, c.TopPerformers(1), 1)
}

func TestStats(t *testing.T) {
	c := New(testLogger())
	id, _ := c.Register(spec("a", domain.CategoryArbitrage, 1, true))
	_, _ = c.Register(spec("b", domain.CategoryFrontrun, 1, true))
	require.NoError(t, c.Deactivate(id))

	s := c.Stats()
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.Active)
	assert.Equal(t, 1, s.ByCategory[domain.CategoryArbitrage])
	assert.Equal(t, 1, s.ByCategory[domain.CategoryFrontrun])
	assert.Equal(t, 2, s.ByRiskTier[domain.RiskTierMedium])
}

func TestRestorePreservesCounters(t *testing.T) {
	c := New(testLogger())
	c.Restore([]domain.StrategyRecord{{
		ID:          "persisted-1",
		Name:        "old",
		Category:    domain.CategoryLiquidation,
		Enabled:     true,
		TotalTrades: 42,
		TotalProfit: 7.5,
		SuccessRate: 0.8,
	}})

	rec, err := c.Get("persisted-1")
	require.NoError(t, err)
	assert.EqualValues(t, 42, rec.TotalTrades)
	assert.InDelta(t, 7.5, rec.TotalProfit, 1e-9)
}
