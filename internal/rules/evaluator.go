// Package rules implements the forensic rule catalog and its evaluators: the
// builtin catalog, the contextual (advanced) catalog, and the CEL-based
// custom rule engine for tenant-defined checks.
package rules

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/reference"
)

// Evaluator runs the rule catalogs against a single account record. It is
// safe for concurrent use; all mutable state lives in the optional custom
// engine, which synchronizes itself.
type Evaluator struct {
	catalog  []Rule
	advanced []AdvancedRule
	ref      *reference.Tables
	custom   *CustomEngine
	now      func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithNow overrides the reference clock. Tests use this to pin window
// arithmetic to a fixed instant.
func WithNow(fn func() time.Time) Option {
	return func(e *Evaluator) { e.now = fn }
}

// WithReference substitutes the reference tables.
func WithReference(t *reference.Tables) Option {
	return func(e *Evaluator) { e.ref = t }
}

// WithCustomEngine attaches a CEL custom rule engine.
func WithCustomEngine(ce *CustomEngine) Option {
	return func(e *Evaluator) { e.custom = ce }
}

// NewEvaluator builds an evaluator over the builtin and contextual catalogs.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		catalog:  Catalog(),
		advanced: AdvancedCatalog(),
		ref:      reference.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs the builtin catalog only. Malformed records never produce an
// error: rules that cannot read their inputs are skipped, and a rule that
// panics is isolated and surfaced as a diagnostic.
func (e *Evaluator) Evaluate(record domain.AccountRecord) ([]domain.Flag, []domain.Diagnostic) {
	rctx := &Context{Now: e.now(), Reference: e.ref}
	return e.evaluateCatalog(record, rctx)
}

// EvaluateWithContext runs the builtin catalog, then the contextual catalog
// with root-suppression against the builtin flags, then any loaded custom
// rules for the tenant. The merged flag set is deduplicated by rule id.
func (e *Evaluator) EvaluateWithContext(ctx context.Context, tenantID string, record domain.AccountRecord, rctx *Context) ([]domain.Flag, []domain.Diagnostic) {
	if rctx == nil {
		rctx = &Context{}
	}
	if rctx.Now.IsZero() {
		rctx.Now = e.now()
	}
	if rctx.Reference == nil {
		rctx.Reference = e.ref
	}

	flags, diags := e.evaluateCatalog(record, rctx)

	fired := make(map[string]bool, len(flags))
	for _, f := range flags {
		fired[f.RuleID] = true
	}

	for i := range e.advanced {
		adv := &e.advanced[i]
		if adv.RootID != "" && fired[adv.RootID] {
			continue
		}
		flag, diag := e.evaluateOne(&adv.Rule, record, rctx)
		if diag != nil {
			diags = append(diags, *diag)
		}
		if flag != nil {
			flags = append(flags, *flag)
		}
	}

	if e.custom != nil {
		customFlags, customDiags := e.custom.EvaluateAll(ctx, tenantID, record)
		flags = append(flags, customFlags...)
		diags = append(diags, customDiags...)
	}

	return dedupFlags(flags), diags
}

func (e *Evaluator) evaluateCatalog(record domain.AccountRecord, rctx *Context) ([]domain.Flag, []domain.Diagnostic) {
	var flags []domain.Flag
	var diags []domain.Diagnostic

	for i := range e.catalog {
		flag, diag := e.evaluateOne(&e.catalog[i], record, rctx)
		if diag != nil {
			diags = append(diags, *diag)
		}
		if flag != nil {
			flags = append(flags, *flag)
		}
	}

	return dedupFlags(flags), diags
}

// evaluateOne applies a single rule behind a recover boundary so one faulty
// rule cannot take down the whole evaluation.
func (e *Evaluator) evaluateOne(rule *Rule, record domain.AccountRecord, rctx *Context) (flag *domain.Flag, diag *domain.Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			flag = nil
			diag = &domain.Diagnostic{
				RuleID: rule.ID,
				Detail: fmt.Sprintf("rule panicked: %v", r),
			}
		}
	}()

	if !rule.Predicate(record, rctx) {
		return nil, nil
	}

	f := domain.Flag{
		RuleID:             rule.ID,
		RuleName:           rule.Name,
		Severity:           rule.Severity(record, rctx),
		Explanation:        rule.Explain(record, rctx),
		LegalCitations:     rctx.tables().CitationsFor(rule.ID),
		SuggestedEvidence:  rule.EvidenceHints,
		SuccessProbability: rule.SuccessProbability,
	}
	return &f, nil
}

// dedupFlags collapses duplicate rule ids, keeping the highest severity per
// id, and orders the output by rule id. Sorting by id is the only
// order-sensitive step and makes the result independent of evaluation order.
func dedupFlags(flags []domain.Flag) []domain.Flag {
	if len(flags) <= 1 {
		return flags
	}

	byID := make(map[string]int, len(flags))
	out := flags[:0]
	for _, f := range flags {
		if idx, ok := byID[f.RuleID]; ok {
			if f.Severity.Rank() > out[idx].Severity.Rank() {
				out[idx] = f
			}
			continue
		}
		byID[f.RuleID] = len(out)
		out = append(out, f)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out
}
