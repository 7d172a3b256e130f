package domain

import "time"

// RiskAssessment is the risk component of a decision.
type RiskAssessment struct {
	Tier    RiskTier
	Score   float64 // [0,1]
	Factors []string
}

// Decision is the transient verdict the decision engine produces for a
// single opportunity. It is not persisted.
type Decision struct {
	Accept         bool
	Confidence     float64 // [0,1]
	Rationale      []string
	Recommended    []Category
	Risk           RiskAssessment
	ExpectedProfit float64 // USD
	EvaluatedAt    time.Time
}
