// Package flashloan constructs fully specified borrowed-capital
// opportunities from raw cross-venue price discrepancies.
package flashloan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

// Config holds the builder's sizing, fee, and feasibility parameters.
type Config struct {
	Enabled       bool
	LoanAmount    float64 // units of the loan asset borrowed per attempt
	LoanAsset     string
	FeeRate       float64 // flash-loan fee as a fraction of the loan, e.g. 0.0009
	GasCost       float64 // fixed execution cost estimate, quote units
	SlippageRate  float64 // expected slippage as a fraction of gross profit
	StepSlippage  float64 // per-step slippage tolerance
	MinSpreadPct  float64 // scan threshold handed to the price oracle
	MinProfit     float64 // feasibility: minimum net profit, quote units
	MinConfidence float64 // feasibility: minimum derived confidence
	MaxRisk       float64 // feasibility: risk ceiling
	CostUnitPrice float64 // quote price of one execution-cost unit
	TTL           time.Duration
}

// DefaultConfig returns the builder defaults used when config leaves the
// section empty.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		LoanAmount:    100,
		LoanAsset:     "USDC",
		FeeRate:       0.0009,
		GasCost:       0.5,
		SlippageRate:  0.005,
		StepSlippage:  0.005,
		MinSpreadPct:  0.3,
		MinProfit:     0.1,
		MinConfidence: 0.6,
		MaxRisk:       0.8,
		CostUnitPrice: 150,
		TTL:           10 * time.Second,
	}
}

// Builder turns price discrepancies into flash-loan opportunities. A
// candidate that nets out unprofitable, or fails the feasibility gate,
// yields nil rather than an error: not-viable is a normal outcome, not a
// failure.
type Builder struct {
	cfg    Config
	oracle domain.PriceOracle
	logger *slog.Logger
	now    func() time.Time
}

// NewBuilder creates a Builder over the given price oracle.
func NewBuilder(cfg Config, oracle domain.PriceOracle, logger *slog.Logger) *Builder {
	return &Builder{
		cfg:    cfg,
		oracle: oracle,
		logger: logger.With(slog.String("component", "flashloan_builder")),
		now:    time.Now,
	}
}

// Build sizes and nets out a single discrepancy. It returns nil when the
// candidate is not viable.
func (b *Builder) Build(sig domain.PriceDiscrepancy) *domain.FlashLoanOpportunity {
	if !b.cfg.Enabled {
		return nil
	}
	if sig.SellPrice <= sig.BuyPrice || sig.BuyPrice <= 0 {
		return nil
	}

	loan := b.cfg.LoanAmount
	gross := loan * (sig.SellPrice - sig.BuyPrice)
	fee := loan * b.cfg.FeeRate
	slippage := gross * b.cfg.SlippageRate
	net := gross - fee - b.cfg.GasCost - slippage
	if net <= 0 {
		return nil
	}

	confidence := b.confidence(sig.SpreadPct, net)
	risk := b.riskScore(loan, sig.SpreadPct)

	if net < b.cfg.MinProfit || confidence < b.cfg.MinConfidence || risk > b.cfg.MaxRisk {
		b.logger.Debug("flash loan candidate suppressed",
			slog.String("asset", sig.Asset),
			slog.Float64("net_profit", net),
			slog.Float64("confidence", confidence),
			slog.Float64("risk", risk),
		)
		return nil
	}

	now := b.now()
	boughtUnits := loan / sig.BuyPrice
	opp := &domain.FlashLoanOpportunity{
		Opportunity: domain.Opportunity{
			ID:           uuid.New().String(),
			Category:     domain.CategoryFlashLoan,
			RiskTier:     tierForRisk(risk),
			EstProfit:    net / sig.SellPrice,
			EstProfitUSD: net,
			Confidence:   confidence,
			EstCostUnits: b.cfg.GasCost / b.cfg.CostUnitPrice,
			Assets:       []string{b.cfg.LoanAsset, sig.Asset},
			Venue:        sig.BuyVenue,
			CreatedAt:    now,
			ExpiresAt:    now.Add(b.cfg.TTL),
			Metadata: map[string]string{
				"buy_venue":  sig.BuyVenue,
				"sell_venue": sig.SellVenue,
				"spread_pct": fmt.Sprintf("%.4f", sig.SpreadPct),
			},
		},
		LoanAmount: loan,
		LoanAsset:  b.cfg.LoanAsset,
		NetProfit:  net,
		RiskScore:  risk,
		Steps: []domain.LoanStep{
			{
				Kind:        domain.StepBorrow,
				Venue:       "lending_pool",
				InputAsset:  b.cfg.LoanAsset,
				OutputAsset: b.cfg.LoanAsset,
				InputAmount: loan,
				OutputAmount: loan,
			},
			{
				Kind:              domain.StepSwap,
				Venue:             sig.BuyVenue,
				InputAsset:        b.cfg.LoanAsset,
				InputAmount:       loan,
				OutputAsset:       sig.Asset,
				OutputAmount:      boughtUnits,
				SlippageTolerance: b.cfg.StepSlippage,
			},
			{
				Kind:              domain.StepSwap,
				Venue:             sig.SellVenue,
				InputAsset:        sig.Asset,
				InputAmount:       boughtUnits,
				OutputAsset:       b.cfg.LoanAsset,
				OutputAmount:      boughtUnits * sig.SellPrice,
				SlippageTolerance: b.cfg.StepSlippage,
			},
			{
				Kind:         domain.StepRepay,
				Venue:        "lending_pool",
				InputAsset:   b.cfg.LoanAsset,
				InputAmount:  loan + fee,
				OutputAsset:  b.cfg.LoanAsset,
				OutputAmount: 0,
			},
		},
	}
	return opp
}

// Scan asks the price oracle for fresh discrepancies and builds every viable
// candidate.
func (b *Builder) Scan(ctx context.Context) ([]*domain.FlashLoanOpportunity, error) {
	if !b.cfg.Enabled {
		return nil, nil
	}
	sigs, err := b.oracle.FindDiscrepancies(ctx, b.cfg.MinSpreadPct)
	if err != nil {
		return nil, fmt.Errorf("flashloan: scan: %w", err)
	}
	var opps []*domain.FlashLoanOpportunity
	for _, sig := range sigs {
		if opp := b.Build(sig); opp != nil {
			opps = append(opps, opp)
		}
	}
	return opps, nil
}

// confidence derives a [0.5, 0.95] score from spread magnitude and net
// profit magnitude via fixed breakpoints.
func (b *Builder) confidence(spreadPct, net float64) float64 {
	c := 0.5
	switch {
	case spreadPct > 2.0:
		c += 0.3
	case spreadPct > 1.0:
		c += 0.2
	case spreadPct > 0.5:
		c += 0.1
	}
	switch {
	case net > 1.0:
		c += 0.2
	case net > 0.5:
		c += 0.1
	}
	if c > 0.95 {
		c = 0.95
	}
	return c
}

// riskScore grows with loan size and shrinks with spread width.
func (b *Builder) riskScore(loan, spreadPct float64) float64 {
	r := 0.2
	switch {
	case loan > 10000:
		r += 0.3
	case loan > 1000:
		r += 0.2
	case loan > 100:
		r += 0.1
	}
	switch {
	case spreadPct < 0.5:
		r += 0.3
	case spreadPct < 1.0:
		r += 0.2
	case spreadPct < 2.0:
		r += 0.1
	}
	if r > 1 {
		r = 1
	}
	return r
}

func tierForRisk(r float64) domain.RiskTier {
	switch {
	case r < 0.3:
		return domain.RiskTierLow
	case r < 0.55:
		return domain.RiskTierMedium
	case r < 0.75:
		return domain.RiskTierHigh
	default:
		return domain.RiskTierCritical
	}
}
