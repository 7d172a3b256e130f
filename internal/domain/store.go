package domain

import (
	"context"
	"time"
)

// StrategyStore persists strategy specs and periodic counter snapshots so
// that a restart does not lose lifetime statistics.
type StrategyStore interface {
	Upsert(ctx context.Context, rec StrategyRecord) error
	Get(ctx context.Context, id string) (StrategyRecord, error)
	List(ctx context.Context) ([]StrategyRecord, error)
}

// OutcomeStore persists settled execution outcomes.
type OutcomeStore interface {
	Create(ctx context.Context, out ExecutionOutcome) error
	ListSince(ctx context.Context, since time.Time, limit int) ([]ExecutionOutcome, error)
	// ListBefore returns outcomes settled before the cutoff, for archival.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]ExecutionOutcome, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
