package domain

import "time"

// Event channel names published on the signal bus and mirrored by the
// websocket hub.
const (
	EventTradeExecuted    = "trade_executed"
	EventFlashLoanSuccess = "flashloan_success"
	EventOpportunityDrop  = "opportunity_dropped"
)

// StreamTrades is the durable stream that mirrors trade_executed events for
// polling consumers.
const StreamTrades = "stream:trades"

// TradeExecutedEvent is emitted after every settled execution, successful
// or not.
type TradeExecutedEvent struct {
	Event       string    `json:"event"`
	Opportunity string    `json:"opportunity_id"`
	Category    Category  `json:"category"`
	StrategyID  string    `json:"strategy_id"`
	Success     bool      `json:"success"`
	Profit      float64   `json:"profit"`
	ProfitUSD   float64   `json:"profit_usd"`
	DurationMs  int64     `json:"duration_ms"`
	Reason      string    `json:"reason,omitempty"`
	TxRef       string    `json:"tx_ref,omitempty"`
	SettledAt   time.Time `json:"settled_at"`
}

// FlashLoanEvent is emitted when a flash-loan opportunity settles
// profitably.
type FlashLoanEvent struct {
	Event      string    `json:"event"`
	Asset      string    `json:"asset"`
	LoanAmount float64   `json:"loan_amount"`
	NetProfit  float64   `json:"net_profit"`
	BuyVenue   string    `json:"buy_venue"`
	SellVenue  string    `json:"sell_venue"`
	TxRef      string    `json:"tx_ref,omitempty"`
	SettledAt  time.Time `json:"settled_at"`
}
