package domain

import "time"

// ExecParams are the per-strategy execution tuning knobs.
type ExecParams struct {
	SlippageTolerance float64       `json:"slippage_tolerance"` // fraction, e.g. 0.005
	MaxRetries        int           `json:"max_retries"`
	Timeout           time.Duration `json:"timeout_ns"`
}

// StrategySpec is the caller-supplied definition used to register a
// strategy. The catalog assigns the identifier.
type StrategySpec struct {
	Name        string
	Category    Category
	RiskTier    RiskTier
	Priority    int // higher wins ties on category match
	MinProfit   float64
	MaxCost     float64
	Enabled     bool
	Params      ExecParams
}

// StrategyRecord is a registered strategy together with its live performance
// counters. Records are owned exclusively by the catalog: counters change
// only through RecordOutcome and a record is never deleted, only disabled.
type StrategyRecord struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Category  Category   `json:"category"`
	RiskTier  RiskTier   `json:"risk_tier"`
	Priority  int        `json:"priority"`
	MinProfit float64    `json:"min_profit"`
	MaxCost   float64    `json:"max_cost"`
	Enabled   bool       `json:"enabled"`
	Params    ExecParams `json:"params"`

	TotalTrades      int64     `json:"total_trades"`
	ProfitableTrades int64     `json:"profitable_trades"`
	TotalProfit      float64   `json:"total_profit"`
	SuccessRate      float64   `json:"success_rate"`
	AvgExecMs        float64   `json:"avg_exec_ms"`
	LastExecutedAt   time.Time `json:"last_executed_at"`
	RegisteredAt     time.Time `json:"registered_at"`
}

// PerformanceHistory is the per-category aggregate view consumed read-only
// by the decision engine. SuccessRate covers the most recent window of
// outcomes (capped at 100); TotalTrades counts everything ever recorded.
type PerformanceHistory struct {
	Category    Category
	SuccessRate float64
	AvgProfit   float64
	TotalTrades int64
}
