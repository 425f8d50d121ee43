package adjustment

// Threshold decides whether an adjustment amount needs human approval before
// the ledger may be mutated. Pure; the boundary comes from configuration.
type Threshold struct {
	amount float64
}

// NewThreshold builds a Threshold with the configured boundary.
func NewThreshold(amount float64) Threshold {
	return Threshold{amount: amount}
}

// RequiresApproval reports whether amount is at or above the boundary.
func (t Threshold) RequiresApproval(amount float64) bool {
	return amount >= t.amount
}
