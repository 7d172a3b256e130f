package domain

import "time"

// ExecutionOutcome is the immutable result of running a strategy against an
// opportunity. Failed gate checks and failed executions both produce an
// outcome so that throughput metrics and strategy statistics stay honest.
type ExecutionOutcome struct {
	OpportunityID string        `json:"opportunity_id"`
	StrategyID    string        `json:"strategy_id"`
	Success       bool          `json:"success"`
	Profit        float64       `json:"profit"` // realized, native unit
	ProfitUSD     float64       `json:"profit_usd"`
	CostUnits     float64       `json:"cost_units"` // cost actually consumed
	Duration      time.Duration `json:"duration_ns"`
	FailureReason string        `json:"failure_reason,omitempty"`
	TxRef         string        `json:"tx_ref,omitempty"` // external transaction reference, if any
	SettledAt     time.Time     `json:"settled_at"`
}
