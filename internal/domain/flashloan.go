package domain

// StepKind enumerates the actions inside a flash-loan sequence.
type StepKind string

const (
	StepBorrow   StepKind = "borrow"
	StepSwap     StepKind = "swap"
	StepRepay    StepKind = "repay"
	StepTransfer StepKind = "transfer"
)

// LoanStep is one leg of an atomic flash-loan execution. Amounts are
// expected values; the execution capability settles the real ones.
type LoanStep struct {
	Kind              StepKind
	Venue             string
	InputAsset        string
	InputAmount       float64
	OutputAsset       string
	OutputAmount      float64
	SlippageTolerance float64
}

// FlashLoanOpportunity specializes Opportunity with borrowed-capital
// details. The builder only ever constructs instances whose NetProfit is
// positive; a non-viable candidate yields no object at all.
type FlashLoanOpportunity struct {
	Opportunity

	LoanAmount float64
	LoanAsset  string
	Steps      []LoanStep
	NetProfit  float64 // after fee, gas and slippage
	RiskScore  float64 // [0,1]
}
