// Package risk classifies a single transaction attempt against a fixed,
// ordered rule set. Rules are mutually exclusive by priority: the first
// match wins and later rules are never consulted.
package risk

import "github.com/shopspring/decimal"

const (
	FlagHighRisk   = "HIGH_RISK"
	FlagSuspicious = "SUSPICIOUS"

	RuleHighAmount = "Rule1"
	RuleFrequency  = "Rule2"
)

// highAmountThreshold is in currency units; amounts strictly above it
// trigger Rule1 regardless of user history.
var highAmountThreshold = decimal.NewFromInt(20000)

// frequencyThreshold counts prior committed transactions; a user with 3
// already on record triggers Rule2 on the 4th submission.
const frequencyThreshold = 3

// Verdict is the {risk_flag, rule_triggered} pair. Both fields are nil for
// a clean transaction, both set otherwise — never one without the other.
type Verdict struct {
	RiskFlag      *string
	RuleTriggered *string
}

// Flagged reports whether the verdict carries a risk flag.
func (v Verdict) Flagged() bool { return v.RiskFlag != nil }

// Evaluate maps an amount and the submitter's prior transaction count to a
// verdict. Pure and total: no storage access, no failure mode.
func Evaluate(amount decimal.Decimal, priorCount int64) Verdict {
	if amount.GreaterThan(highAmountThreshold) {
		return flagged(FlagHighRisk, RuleHighAmount)
	}
	if priorCount >= frequencyThreshold {
		return flagged(FlagSuspicious, RuleFrequency)
	}
	return Verdict{}
}

func flagged(flag, rule string) Verdict {
	return Verdict{RiskFlag: &flag, RuleTriggered: &rule}
}
