package domain

import "time"

// DeltaClassification labels the field-specific meaning of a snapshot
// change.
type DeltaClassification string

const (
	// DeltaReAging marks a DOFD that moved later in time between pulls.
	// Heuristic signal for human review, not a legal conclusion.
	DeltaReAging DeltaClassification = "re-aging-candidate"

	// DeltaBalanceInflation marks a balance increase with no documented
	// fee or interest basis.
	DeltaBalanceInflation DeltaClassification = "balance-inflation-candidate"

	// DeltaReinsertion marks a status flip from closed/paid back to open.
	DeltaReinsertion DeltaClassification = "reinsertion-candidate"

	// DeltaGeneric covers all other material changes.
	DeltaGeneric DeltaClassification = "generic-change"
)

// DeltaResult is emitted when a tracked field materially differs between
// two snapshots of the same account. Cosmetic (whitespace/casing)
// differences are never reported.
type DeltaResult struct {
	Field          string              `json:"field"`
	OldValue       string              `json:"oldValue"`
	NewValue       string              `json:"newValue"`
	Classification DeltaClassification `json:"classification"`
}

// Snapshot pairs an account record with the time it was captured into
// history. Series analysis orders snapshots by CapturedAt, never by any
// date field inside the record.
type Snapshot struct {
	AccountID  string        `json:"accountId"`
	TenantID   string        `json:"tenantId,omitempty"`
	Record     AccountRecord `json:"record"`
	CapturedAt time.Time     `json:"capturedAt"`
}

// SeriesInsight is a cross-snapshot pattern derived from at least two
// historical snapshots plus the current record.
type SeriesInsight struct {
	Kind        string   `json:"kind"`
	Field       string   `json:"field,omitempty"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	SpanPulls   int      `json:"spanPulls"`
}

// Series insight kinds.
const (
	InsightDOFDDrift       = "dofd-drift"
	InsightBalanceGrowth   = "balance-growth"
	InsightReinsertionLoop = "reinsertion-loop"
)
