// Package feed turns raw market signals into queueable opportunities. The
// scanner is the dispatcher's generation hook: one Analyze call per enabled
// strategy per generation tick.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

// ScannerConfig tunes opportunity shaping.
type ScannerConfig struct {
	MinSpreadPct float64       // discrepancy threshold handed to the oracle
	Notional     float64       // quote units committed per candidate
	TTL          time.Duration // candidate lifetime
}

// DefaultScannerConfig returns the shaping defaults.
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		MinSpreadPct: 0.2,
		Notional:     100,
		TTL:          10 * time.Second,
	}
}

// Scanner converts cross-venue price discrepancies into opportunities for
// the categories it knows how to shape. Flash-loan candidates are not
// produced here; the leveraged builder runs its own scan.
type Scanner struct {
	oracle domain.PriceOracle
	cfg    ScannerConfig
	logger *slog.Logger
}

// NewScanner creates a Scanner over the given price oracle.
func NewScanner(oracle domain.PriceOracle, cfg ScannerConfig, logger *slog.Logger) *Scanner {
	if cfg.MinSpreadPct <= 0 {
		cfg.MinSpreadPct = DefaultScannerConfig().MinSpreadPct
	}
	if cfg.Notional <= 0 {
		cfg.Notional = DefaultScannerConfig().Notional
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultScannerConfig().TTL
	}
	return &Scanner{
		oracle: oracle,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "feed")),
	}
}

// Analyze returns fresh candidates for the strategy's category. Categories
// without a shaping rule yield nothing.
func (s *Scanner) Analyze(ctx context.Context, rec domain.StrategyRecord) ([]domain.Opportunity, error) {
	switch rec.Category {
	case domain.CategoryArbitrage, domain.CategoryMarketMaking:
	default:
		return nil, nil
	}

	sigs, err := s.oracle.FindDiscrepancies(ctx, s.cfg.MinSpreadPct)
	if err != nil {
		return nil, fmt.Errorf("feed: scan discrepancies: %w", err)
	}

	now := time.Now().UTC()
	opps := make([]domain.Opportunity, 0, len(sigs))
	for _, sig := range sigs {
		var opp domain.Opportunity
		switch rec.Category {
		case domain.CategoryArbitrage:
			opp = s.shapeArbitrage(sig, now)
		case domain.CategoryMarketMaking:
			opp = s.shapeMarketMaking(sig, now)
		}
		if opp.EstProfitUSD <= 0 {
			continue
		}
		opps = append(opps, opp)
	}

	if len(opps) > 0 {
		s.logger.Debug("scanner produced candidates",
			slog.String("category", string(rec.Category)),
			slog.Int("count", len(opps)),
		)
	}
	return opps, nil
}

// shapeArbitrage commits the notional on the cheap venue and unwinds on the
// expensive one; profit is the captured spread.
func (s *Scanner) shapeArbitrage(sig domain.PriceDiscrepancy, now time.Time) domain.Opportunity {
	profit := s.cfg.Notional * (sig.SellPrice - sig.BuyPrice) / sig.BuyPrice
	return domain.Opportunity{
		ID:           uuid.New().String(),
		Category:     domain.CategoryArbitrage,
		RiskTier:     domain.RiskTierLow,
		EstProfit:    profit,
		EstProfitUSD: profit,
		Confidence:   spreadConfidence(sig.SpreadPct),
		EstCostUnits: 2, // one leg per venue
		Assets:       []string{sig.Asset},
		Venue:        sig.BuyVenue,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.TTL),
		Metadata: map[string]string{
			"buy_venue":  sig.BuyVenue,
			"sell_venue": sig.SellVenue,
		},
	}
}

// shapeMarketMaking quotes both sides inside the observed spread and earns
// half of it on a round trip. Wider spreads mean thinner books, so the
// confidence discount is steeper than for arbitrage.
func (s *Scanner) shapeMarketMaking(sig domain.PriceDiscrepancy, now time.Time) domain.Opportunity {
	profit := s.cfg.Notional * sig.SpreadPct / 100 / 2
	return domain.Opportunity{
		ID:           uuid.New().String(),
		Category:     domain.CategoryMarketMaking,
		RiskTier:     domain.RiskTierMedium,
		EstProfit:    profit,
		EstProfitUSD: profit,
		Confidence:   spreadConfidence(sig.SpreadPct) * 0.8,
		EstCostUnits: 2,
		Assets:       []string{sig.Asset},
		Venue:        sig.SellVenue,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.TTL),
		Metadata: map[string]string{
			"quote_venue": sig.SellVenue,
		},
	}
}

// spreadConfidence maps a spread percentage to [0.5, 0.95]: wider observed
// spreads survive fills more often, with diminishing returns past ~5%.
func spreadConfidence(spreadPct float64) float64 {
	if spreadPct <= 0 {
		return 0.5
	}
	c := 0.5 + spreadPct/10
	if c > 0.95 {
		c = 0.95
	}
	return c
}
