// Package decision scores opportunities through a multi-factor model and
// produces accept/reject verdicts with a reasoned confidence.
package decision

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

// Accept-rule thresholds. The high-risk clause can be bypassed by very high
// confidence; that mirrors the reviewed policy table and is pinned by tests.
const (
	minAcceptConfidence   = 0.60
	highRiskCutoff        = 0.70
	highRiskConfFloor     = 0.85
	elevatedRiskCutoff    = 0.50
	elevatedRiskConfFloor = 0.75
	minProfitUSD          = 1.0
	minNetMarginUSD       = 0.5
)

// Factor weights for the blended confidence.
const (
	weightRisk        = 0.25
	weightProfitProb  = 0.30
	weightMarket      = 0.15
	weightReliability = 0.20
	weightTiming      = 0.10
)

// denomFloor guards every profit/cost division against zero and negative
// denominators.
const denomFloor = 1e-9

// MarketScorer supplies the market-condition score in [0,1] for a given
// evaluation time. Injectable so tests and richer external signals can
// replace the time-of-day baseline.
type MarketScorer func(t time.Time) float64

// Option configures an Engine.
type Option func(*Engine)

// WithMarketScorer replaces the default time-of-day market-condition
// baseline.
func WithMarketScorer(s MarketScorer) Option {
	return func(e *Engine) { e.marketScore = s }
}

// WithCostUnitPrice sets the USD price of one execution-cost unit used to
// normalize costs against profit.
func WithCostUnitPrice(p float64) Option {
	return func(e *Engine) { e.costUnitPrice = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine is the multi-factor scoring component. Evaluate is a pure function
// over its inputs and the engine-held rolling performance windows, which are
// mutated only through UpdatePerformance.
type Engine struct {
	history       *historyBook
	marketScore   MarketScorer
	costUnitPrice float64
	now           func() time.Time
	logger        *slog.Logger
}

// NewEngine creates an Engine with the time-of-day market baseline and the
// given USD price per cost unit.
func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		history:       newHistoryBook(),
		marketScore:   timeOfDayScore,
		costUnitPrice: 150.0,
		now:           time.Now,
		logger:        logger.With(slog.String("component", "decision_engine")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate scores the opportunity and returns a verdict. When hist is nil
// the engine's own rolling window for the opportunity's category is used.
func (e *Engine) Evaluate(opp domain.Opportunity, hist *domain.PerformanceHistory) domain.Decision {
	now := e.now()

	var h domain.PerformanceHistory
	hasHistory := false
	if hist != nil {
		h = *hist
		hasHistory = h.TotalTrades > 0
	} else {
		h, hasHistory = e.history.view(opp.Category)
	}

	costUSD := opp.EstCostUnits * e.costUnitPrice

	risk, riskFactors := e.riskScore(opp, costUSD, now)
	profitProb := e.profitProbability(opp, h, hasHistory, costUSD)
	market := clamp01(e.marketScore(now))
	reliability := e.reliability(opp.Category, h, hasHistory)
	timing := e.timingScore(opp, now)

	confidence := clamp01((1-risk)*weightRisk +
		profitProb*weightProfitProb +
		market*weightMarket +
		reliability*weightReliability +
		timing*weightTiming)

	accept, rationale := e.verdict(opp, risk, confidence, costUSD)

	return domain.Decision{
		Accept:      accept,
		Confidence:  confidence,
		Rationale:   rationale,
		Recommended: append([]domain.Category{opp.Category}, opp.Category.Complementary()...),
		Risk: domain.RiskAssessment{
			Tier:    riskTier(risk),
			Score:   risk,
			Factors: riskFactors,
		},
		ExpectedProfit: opp.EstProfitUSD,
		EvaluatedAt:    now,
	}
}

// UpdatePerformance records an outcome into the rolling window for the
// category. Safe to call concurrently from multiple outcome producers.
func (e *Engine) UpdatePerformance(cat domain.Category, success bool, profit float64) {
	e.history.record(cat, success, profit)
}

// History exposes the current per-category aggregate, mainly for metrics.
func (e *Engine) History(cat domain.Category) (domain.PerformanceHistory, bool) {
	return e.history.view(cat)
}

func (e *Engine) riskScore(opp domain.Opportunity, costUSD float64, now time.Time) (float64, []string) {
	var factors []string
	risk := opp.Category.BaseRisk()
	factors = append(factors, fmt.Sprintf("category %s base risk %.2f", opp.Category, opp.Category.BaseRisk()))

	costRatio := costUSD / math.Max(opp.EstProfitUSD, denomFloor)
	costComponent := math.Min(costRatio/100, 0.3)
	if costComponent > 0 {
		risk += costComponent
		factors = append(factors, fmt.Sprintf("cost ratio %.2f", costRatio))
	}

	tte := opp.TimeToExpiry(now)
	switch {
	case tte < time.Second:
		risk += 0.3
		factors = append(factors, "expires in under 1s")
	case tte < 5*time.Second:
		risk += 0.2
		factors = append(factors, "expires in under 5s")
	case tte < 10*time.Second:
		risk += 0.1
		factors = append(factors, "expires in under 10s")
	}

	risk += (1 - clamp01(opp.Confidence)) * 0.3
	if opp.Confidence < 0.7 {
		factors = append(factors, fmt.Sprintf("low source confidence %.2f", opp.Confidence))
	}

	return clamp01(risk), factors
}

func (e *Engine) profitProbability(opp domain.Opportunity, h domain.PerformanceHistory, hasHistory bool, costUSD float64) float64 {
	p := clamp01(opp.Confidence)
	if hasHistory {
		p = (p + h.SuccessRate) / 2
	}

	margin := opp.EstProfitUSD / math.Max(costUSD, denomFloor)
	switch {
	case margin > 5:
		p += 0.10
	case margin > 2:
		p += 0.05
	case margin < 1.2:
		p -= 0.20
	}
	return clamp01(p)
}

// reliabilityDefaults are used until a category has ten recorded trades.
var reliabilityDefaults = map[domain.Category]float64{
	domain.CategoryArbitrage:    0.80,
	domain.CategoryMarketMaking: 0.75,
	domain.CategoryLiquidation:  0.70,
	domain.CategoryFlashLoan:    0.70,
	domain.CategorySandwich:     0.65,
	domain.CategoryFrontrun:     0.60,
}

func (e *Engine) reliability(cat domain.Category, h domain.PerformanceHistory, hasHistory bool) float64 {
	if hasHistory && h.TotalTrades >= 10 {
		return clamp01(h.SuccessRate)
	}
	if d, ok := reliabilityDefaults[cat]; ok {
		return d
	}
	return 0.6
}

func (e *Engine) timingScore(opp domain.Opportunity, now time.Time) float64 {
	score := 1.0

	age := opp.Age(now)
	if age > 5*time.Second {
		score -= 0.3
	} else if age > 2*time.Second {
		score -= 0.1
	}

	tte := opp.TimeToExpiry(now)
	if tte < time.Second {
		score -= 0.4
	} else if tte < 3*time.Second {
		score -= 0.2
	}
	return clamp01(score)
}

func (e *Engine) verdict(opp domain.Opportunity, risk, confidence, costUSD float64) (bool, []string) {
	var rationale []string
	accept := true

	if confidence < minAcceptConfidence {
		accept = false
		rationale = append(rationale, fmt.Sprintf("confidence %.2f below minimum %.2f", confidence, minAcceptConfidence))
	} else {
		rationale = append(rationale, fmt.Sprintf("confidence %.2f meets minimum", confidence))
	}

	if risk > highRiskCutoff && confidence < highRiskConfFloor {
		accept = false
		rationale = append(rationale, fmt.Sprintf("risk %.2f too high for confidence %.2f", risk, confidence))
	}
	if risk > elevatedRiskCutoff && confidence < elevatedRiskConfFloor {
		accept = false
		rationale = append(rationale, fmt.Sprintf("elevated risk %.2f requires confidence >= %.2f", risk, elevatedRiskConfFloor))
	}

	if opp.EstProfitUSD < minProfitUSD {
		accept = false
		rationale = append(rationale, fmt.Sprintf("expected profit $%.2f below $%.2f minimum", opp.EstProfitUSD, minProfitUSD))
	}

	netMargin := opp.EstProfitUSD - costUSD
	if netMargin < minNetMarginUSD {
		accept = false
		rationale = append(rationale, fmt.Sprintf("net margin $%.2f below $%.2f minimum", netMargin, minNetMarginUSD))
	} else {
		rationale = append(rationale, fmt.Sprintf("net margin $%.2f after costs", netMargin))
	}

	if accept {
		rationale = append(rationale, "all acceptance checks passed")
	}
	return accept, rationale
}

func riskTier(score float64) domain.RiskTier {
	switch {
	case score < 0.3:
		return domain.RiskTierLow
	case score < 0.55:
		return domain.RiskTierMedium
	case score < 0.75:
		return domain.RiskTierHigh
	default:
		return domain.RiskTierCritical
	}
}

// timeOfDayScore is the default market-condition baseline. Overlap of the
// US and EU sessions scores highest; the dead zone around 04:00-08:00 UTC
// lowest.
func timeOfDayScore(t time.Time) float64 {
	switch h := t.UTC().Hour(); {
	case h >= 13 && h < 17:
		return 0.9
	case h >= 8 && h < 13:
		return 0.7
	case h >= 17 && h < 22:
		return 0.65
	case h >= 22 || h < 4:
		return 0.5
	default:
		return 0.4
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
