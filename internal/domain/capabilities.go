package domain

import "context"

// ExecutionClient submits an opportunity for execution on behalf of a
// strategy and waits for settlement. Implementations live at the network
// edge; the dispatcher treats any error as a failed outcome and never
// retries automatically.
type ExecutionClient interface {
	Execute(ctx context.Context, strategyID string, opp Opportunity) (ExecutionOutcome, error)
}

// PriceOracle supplies live prices and raw cross-venue discrepancy signals.
type PriceOracle interface {
	// CurrentPrice returns the latest known price for the asset, or
	// ErrPriceUnavailable when no quote is known.
	CurrentPrice(ctx context.Context, asset string) (float64, error)
	// FindDiscrepancies returns raw cross-venue signals whose spread is at
	// least minSpreadPct percent.
	FindDiscrepancies(ctx context.Context, minSpreadPct float64) ([]PriceDiscrepancy, error)
}

// Predictor is the external scoring oracle. The dispatcher consults Predict
// as the pre-execution confidence gate and triggers Train once enough fresh
// samples have accumulated.
type Predictor interface {
	Predict(ctx context.Context, opp Opportunity) (float64, error)
	Train(ctx context.Context) error
	IsTraining() bool
}

// Wallet exposes balance queries and transfers for the withdrawal utility.
// The core pipeline never moves funds itself.
type Wallet interface {
	Balance(ctx context.Context, venue string) (float64, error)
	Transfer(ctx context.Context, venue, destination string, amount float64) (string, error)
}
