package domain

import "time"

// Category identifies the family of strategies able to act on an opportunity.
type Category string

const (
	CategoryArbitrage    Category = "arbitrage"
	CategoryMarketMaking Category = "market_making"
	CategoryLiquidation  Category = "liquidation"
	CategoryFlashLoan    Category = "flash_loan"
	CategorySandwich     Category = "sandwich"
	CategoryFrontrun     Category = "frontrun"
)

// Categories lists every valid category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryArbitrage,
		CategoryMarketMaking,
		CategoryLiquidation,
		CategoryFlashLoan,
		CategorySandwich,
		CategoryFrontrun,
	}
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	switch c {
	case CategoryArbitrage, CategoryMarketMaking, CategoryLiquidation,
		CategoryFlashLoan, CategorySandwich, CategoryFrontrun:
		return true
	}
	return false
}

// BaseRisk returns the fixed per-category risk floor used by the decision
// engine. Adversarial categories carry a higher floor.
func (c Category) BaseRisk() float64 {
	switch c {
	case CategoryArbitrage:
		return 0.2
	case CategoryMarketMaking:
		return 0.3
	case CategoryLiquidation:
		return 0.5
	case CategoryFlashLoan:
		return 0.6
	case CategorySandwich:
		return 0.8
	case CategoryFrontrun:
		return 0.9
	}
	return 0.5
}

// Complementary returns categories that pair well with c. Used by the
// decision engine to recommend companion strategies.
func (c Category) Complementary() []Category {
	switch c {
	case CategoryFlashLoan:
		return []Category{CategoryArbitrage, CategoryLiquidation}
	case CategoryArbitrage:
		return []Category{CategoryFlashLoan, CategoryMarketMaking}
	case CategoryLiquidation:
		return []Category{CategoryFlashLoan}
	case CategorySandwich:
		return []Category{CategoryFrontrun}
	case CategoryFrontrun:
		return []Category{CategorySandwich}
	case CategoryMarketMaking:
		return []Category{CategoryArbitrage}
	}
	return nil
}

// RiskTier buckets strategies and opportunities by tolerated downside.
type RiskTier string

const (
	RiskTierLow      RiskTier = "low"
	RiskTierMedium   RiskTier = "medium"
	RiskTierHigh     RiskTier = "high"
	RiskTierCritical RiskTier = "critical"
)

// Opportunity is a detected, time-bounded candidate action. It is immutable
// once created: the dispatcher consumes it exactly once on accept or
// discards it on reject/expiry.
type Opportunity struct {
	ID              string
	Category        Category
	RiskTier        RiskTier
	EstProfit       float64 // native unit (e.g. SOL)
	EstProfitUSD    float64
	Confidence      float64 // [0,1], generator's own estimate
	EstCostUnits    float64 // execution cost in native cost units (e.g. gas)
	Assets          []string
	Venue           string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	Metadata        map[string]string
}

// Expired reports whether the opportunity is past its expiry at time now.
func (o Opportunity) Expired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
}

// TimeToExpiry returns the remaining lifetime at time now. Negative when
// already expired.
func (o Opportunity) TimeToExpiry(now time.Time) time.Duration {
	return o.ExpiresAt.Sub(now)
}

// Age returns how long ago the opportunity was created.
func (o Opportunity) Age(now time.Time) time.Duration {
	return now.Sub(o.CreatedAt)
}

// Validate checks structural invariants. Malformed opportunities are
// discarded by the dispatcher without retry.
func (o Opportunity) Validate() error {
	if o.ID == "" {
		return ErrInvalidOpportunity
	}
	if !o.Category.Valid() {
		return ErrInvalidOpportunity
	}
	if o.ExpiresAt.Before(o.CreatedAt) {
		return ErrInvalidOpportunity
	}
	return nil
}

// PriceDiscrepancy is a raw cross-venue price signal produced by the price
// oracle. The flash-loan builder turns viable discrepancies into fully
// specified opportunities.
type PriceDiscrepancy struct {
	Asset      string
	BuyVenue   string
	SellVenue  string
	BuyPrice   float64
	SellPrice  float64
	SpreadPct  float64
	ObservedAt time.Time
}
