package domain

// CustomRuleConfig defines a tenant-authored compliance rule evaluated
// alongside the builtin catalog. The expression is CEL over the account
// attribute map; a truthy result emits a flag with the configured
// severity and explanation.
type CustomRuleConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression to evaluate against the record
	Expression string `json:"expression"`

	Severity    Severity `json:"severity"`
	Explanation string   `json:"explanation"`
	Citations   []string `json:"citations,omitempty"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}
