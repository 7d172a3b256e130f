package predictor

import (
	"context"
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

func TestPredictNeutralPriorWithoutHistory(t *testing.T) {
	b := NewBaseline(nil, nil, testLogger())

	p, err := b.Predict(context.Background(), domain.Opportunity{
		Category:   domain.CategoryArbitrage,
		Confidence: 0.9,
	})
	require.NoError(t, err)
	// (0.9 + 0.5) / 2
	assert.InDelta(t, 0.7, p, 1e-9)
}

func TestPredictUsesObservedRate(t *testing.T) {
	b := NewBaseline(nil, nil, testLogger())
	for i := 0; i < 20; i++ {
		b.Observe(domain.CategoryArbitrage, i < 16) // 80% success
	}

	p, err := b.Predict(context.Background(), domain.Opportunity{
		Category:   domain.CategoryArbitrage,
		Confidence: 0.6,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, p, 1e-9) // (0.6 + 0.8) / 2
}

func TestPredictIgnoresSparseHistory(t *testing.T) {
	b := NewBaseline(nil, nil, testLogger())
	// Fewer than minSamples observations keep the neutral prior.
	for i := 0; i < minSamples-1; i++ {
		b.Observe(domain.CategoryFrontrun, false)
	}

	p, err := b.Predict(context.Background(), domain.Opportunity{
		Category:   domain.CategoryFrontrun,
		Confidence: 0.5,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 1e-9)
}

type fakeOutcomeStore struct {
	outs []domain.ExecutionOutcome
}

func (f *fakeOutcomeStore) Create(context.Context, domain.ExecutionOutcome) error { return nil }

func (f *fakeOutcomeStore) ListSince(_ context.Context, _ time.Time, _ int) ([]domain.ExecutionOutcome, error) {
	return f.outs, nil
}

func (f *fakeOutcomeStore) ListBefore(_ context.Context, _ time.Time, _ int) ([]domain.ExecutionOutcome, error) {
	return nil, nil
}

func (f *fakeOutcomeStore) DeleteBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func TestTrainRebuildsFromStore(t *testing.T) {
	store := &fakeOutcomeStore{}
	for i := 0; i < 12; i++ {
		store.outs = append(store.outs, domain.ExecutionOutcome{
			StrategyID: "arb-1",
			Success:    i < 3, // 25% success
		})
	}

	resolve := func(id string) (domain.Category, bool) {
		if id == "arb-1" {
			return domain.CategoryArbitrage, true
		}
		return "", false
	}

	b := NewBaseline(store, resolve, testLogger())
	// Pre-train state that the rebuild must discard.
	for i := 0; i < 20; i++ {
		b.Observe(domain.CategoryArbitrage, true)
	}

	require.NoError(t, b.Train(context.Background()))
	assert.False(t, b.IsTraining())

	p, err := b.Predict(context.Background(), domain.Opportunity{
		Category:   domain.CategoryArbitrage,
		Confidence: 0.75,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 1e-9) // (0.75 + 0.25) / 2
}

func TestTrainWithoutStoreIsNoop(t *testing.T) {
	b := NewBaseline(nil, nil, testLogger())
	require.NoError(t, b.Train(context.Background()))
	assert.False(t, b.IsTraining())
}
