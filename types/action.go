package types

// RiskLevel classifies how dangerous a proposed action is. It drives both the
// human-in-the-loop auto-approval policy and the informational
// requires-approval flag passed to the sandbox.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether r is one of the three defined risk levels.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// Action is a typed, risk-tagged unit of work an agent proposes to perform,
// pending optional approval and optional sandboxed execution.
type Action struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload"`
	Risk    RiskLevel `json:"risk"`
}
