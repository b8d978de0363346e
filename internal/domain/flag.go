package domain

// Severity classifies how serious a compliance finding is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for comparison; higher is more severe.
var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the ordering value of the severity (unknown severities rank
// lowest).
func (s Severity) Rank() int {
	return severityRank[s]
}

// Flag is one structured finding emitted when a rule's condition is
// satisfied against an account record. Flags are immutable once produced.
type Flag struct {
	RuleID             string   `json:"ruleId"`
	RuleName           string   `json:"ruleName"`
	Severity           Severity `json:"severity"`
	Explanation        string   `json:"explanation"`
	LegalCitations     []string `json:"legalCitations"`
	SuggestedEvidence  []string `json:"suggestedEvidence,omitempty"`
	SuccessProbability float64  `json:"successProbability,omitempty"`
}

// Diagnostic records a non-fatal fault raised inside a single rule's
// evaluation. Diagnostics never abort the evaluation of remaining rules.
type Diagnostic struct {
	RuleID string `json:"ruleId"`
	Detail string `json:"detail"`
}
