package domain

import "time"

// Audit is the complete persisted result of evaluating one account record:
// the flag list, the aggregate risk profile, and processing metadata.
type Audit struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	AccountID string    `json:"accountId"`
	Timestamp time.Time `json:"timestamp"`

	Flags       []Flag       `json:"flags"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	Risk        RiskProfile  `json:"risk"`

	Metadata AuditMetadata `json:"metadata"`
}

// AuditMetadata carries processing information for one audit.
type AuditMetadata struct {
	TraceID        string `json:"traceId"`
	RulesEvaluated int    `json:"rulesEvaluated"`
	RulesMs        int64  `json:"rulesMs"`
	TotalMs        int64  `json:"totalMs"`
	EngineVersion  string `json:"engineVersion"`
	CacheHit       bool   `json:"cacheHit,omitempty"`
}

// ShouldAlert reports whether the audit warrants an alert: litigation
// potential or a critical risk level.
func (a *Audit) ShouldAlert() bool {
	return a.Risk.LitigationPotential || a.Risk.RiskLevel == RiskCritical
}

// BatchResult is the output of evaluating N records from one input
// document: per-account flag lists keyed by account id, plus the shared
// cross-account duplicate flags.
type BatchResult struct {
	PerAccount  map[string][]Flag      `json:"perAccount"`
	GlobalFlags []Flag                 `json:"globalFlags"`
	Risks       map[string]RiskProfile `json:"risks,omitempty"`
}
