package risk

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// EngineVersion is stamped into every audit's metadata.
const EngineVersion = "kestrel-1.0"

// Processor assembles evaluation output into a persisted audit: it
// aggregates the flag list into a risk profile and stamps processing
// metadata.
type Processor struct{}

// NewProcessor creates a new audit processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// AuditInput contains all data needed to assemble an audit.
type AuditInput struct {
	TenantID       string
	AccountID      string
	TraceID        string
	Flags          []domain.Flag
	Diagnostics    []domain.Diagnostic
	RulesEvaluated int
	RulesMs        int64
	StartTime      time.Time
}

// rulesEvaluated falls back to the flag count when the caller did not
// track the catalog size.
func (in *AuditInput) rulesEvaluated() int {
	if in.RulesEvaluated > 0 {
		return in.RulesEvaluated
	}
	return len(in.Flags)
}

// Process aggregates the flags and produces the final audit.
func (p *Processor) Process(ctx context.Context, input *AuditInput) *domain.Audit {
	audit := &domain.Audit{
		ID:          uuid.New().String(),
		TenantID:    input.TenantID,
		AccountID:   input.AccountID,
		Timestamp:   time.Now().UTC(),
		Flags:       input.Flags,
		Diagnostics: input.Diagnostics,
		Risk:        Aggregate(input.Flags),
	}

	audit.Metadata = domain.AuditMetadata{
		TraceID:        input.TraceID,
		RulesEvaluated: input.rulesEvaluated(),
		RulesMs:        input.RulesMs,
		TotalMs:        time.Since(input.StartTime).Milliseconds(),
		EngineVersion:  EngineVersion,
	}

	return audit
}
