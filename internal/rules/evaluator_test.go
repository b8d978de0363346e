package rules

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// fixedNow pins window arithmetic for reproducible assertions.
var fixedNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestEvaluator(opts ...Option) *Evaluator {
	opts = append([]Option{WithNow(func() time.Time { return fixedNow })}, opts...)
	return NewEvaluator(opts...)
}

func flagIDs(flags []domain.Flag) []string {
	ids := make([]string, 0, len(flags))
	for _, f := range flags {
		ids = append(ids, f.RuleID)
	}
	return ids
}

func hasFlag(flags []domain.Flag, id string) bool {
	for _, f := range flags {
		if f.RuleID == id {
			return true
		}
	}
	return false
}

func TestCatalogRules(t *testing.T) {
	eval := newTestEvaluator()

	tests := []struct {
		name     string
		record   domain.AccountRecord
		want     string
		severity domain.Severity
	}{
		{
			name: "B1 delinquency before opening",
			record: domain.AccountRecord{
				domain.FieldDateOpened: "2020-01-01",
				domain.FieldDOFD:       "2019-01-01",
			},
			want:     "B1",
			severity: domain.SeverityHigh,
		},
		{
			name: "B2 re-aged collection",
			record: domain.AccountRecord{
				domain.FieldAccountType: "collection",
				domain.FieldDateOpened:  "2021-01-01",
				domain.FieldDOFD:        "2022-06-01",
			},
			want:     "B2",
			severity: domain.SeverityHigh,
		},
		{
			name: "B3 delinquency after charge-off",
			record: domain.AccountRecord{
				domain.FieldChargeOffDate: "2021-03-01",
				domain.FieldDOFD:          "2021-09-15",
			},
			want:     "B3",
			severity: domain.SeverityHigh,
		},
		{
			name: "B4 negative account missing delinquency date",
			record: domain.AccountRecord{
				domain.FieldAccountStatus: "charge-off",
				domain.FieldDateOpened:    "2022-01-01",
			},
			want:     "B4",
			severity: domain.SeverityMedium,
		},
		{
			name: "D1 balance on paid account",
			record: domain.AccountRecord{
				domain.FieldAccountStatus:  "Paid",
				domain.FieldCurrentBalance: "450.00",
			},
			want:     "D1",
			severity: domain.SeverityHigh,
		},
		{
			name: "D1 reads currentValue fallback",
			record: domain.AccountRecord{
				domain.FieldAccountStatus: "Closed",
				domain.FieldCurrentValue:  "$1,200",
			},
			want:     "D1",
			severity: domain.SeverityHigh,
		},
		{
			name: "D2 balance more than double original",
			record: domain.AccountRecord{
				domain.FieldCurrentBalance: "2500",
				domain.FieldOriginalAmount: "1000",
			},
			want:     "D2",
			severity: domain.SeverityMedium,
		},
		{
			name: "K6 past reporting window",
			record: domain.AccountRecord{
				domain.FieldDOFD: "2015-01-01",
			},
			want:     "K6",
			severity: domain.SeverityHigh,
		},
		{
			name: "K7 removal date passed",
			record: domain.AccountRecord{
				domain.FieldEstimatedRemovalDate: "2023-11-01",
			},
			want:     "K7",
			severity: domain.SeverityHigh,
		},
		{
			name: "P1 history contradicts paid status",
			record: domain.AccountRecord{
				domain.FieldAccountStatus:  "Paid",
				domain.FieldPaymentHistory: "32110000",
			},
			want:     "P1",
			severity: domain.SeverityLow,
		},
		{
			name: "S1 limitations expired",
			record: domain.AccountRecord{
				domain.FieldStateCode:       "CA",
				domain.FieldDateLastPayment: "2018-02-01",
			},
			want:     "S1",
			severity: domain.SeverityHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags, diags := eval.Evaluate(tt.record)
			if len(diags) != 0 {
				t.Fatalf("unexpected diagnostics: %+v", diags)
			}
			if !hasFlag(flags, tt.want) {
				t.Fatalf("expected flag %s, got %v", tt.want, flagIDs(flags))
			}
			for _, f := range flags {
				if f.RuleID == tt.want && f.Severity != tt.severity {
					t.Errorf("flag %s severity = %s, want %s", tt.want, f.Severity, tt.severity)
				}
			}
		})
	}
}

func TestCleanRecordProducesNoFlags(t *testing.T) {
	eval := newTestEvaluator()

	record := domain.AccountRecord{
		domain.FieldDateOpened:     "2022-01-01",
		domain.FieldDOFD:           "2022-03-01",
		domain.FieldAccountStatus:  "open",
		domain.FieldCurrentBalance: "500.00",
		domain.FieldOriginalAmount: "1000.00",
	}

	flags, diags := eval.Evaluate(record)
	if len(flags) != 0 {
		t.Errorf("expected no flags, got %v", flagIDs(flags))
	}
	if len(diags) != 0 {
		t.Errorf("expected no diagnostics, got %+v", diags)
	}
}

func TestMalformedDatesSkipSilently(t *testing.T) {
	eval := newTestEvaluator()

	// Unparseable dates must never become sentinel values: the chronology
	// rules simply do not fire.
	record := domain.AccountRecord{
		domain.FieldDateOpened: "not-a-date",
		domain.FieldDOFD:       "13/45/9999",
	}

	flags, diags := eval.Evaluate(record)
	for _, id := range []string{"B1", "B2", "B3", "K6"} {
		if hasFlag(flags, id) {
			t.Errorf("rule %s fired on unparseable dates", id)
		}
	}
	if len(diags) != 0 {
		t.Errorf("malformed input produced diagnostics: %+v", diags)
	}
}

func TestEmptyRecord(t *testing.T) {
	eval := newTestEvaluator()

	flags, diags := eval.Evaluate(domain.AccountRecord{})
	if len(flags) != 0 || len(diags) != 0 {
		t.Errorf("empty record: flags=%v diags=%+v", flagIDs(flags), diags)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	eval := newTestEvaluator()

	record := domain.AccountRecord{
		domain.FieldAccountType:    "collection",
		domain.FieldDateOpened:     "2020-01-01",
		domain.FieldDOFD:           "2015-06-01",
		domain.FieldAccountStatus:  "paid",
		domain.FieldCurrentBalance: "750",
	}

	first, _ := eval.Evaluate(record)
	for i := 0; i < 10; i++ {
		again, _ := eval.Evaluate(record)
		if !reflect.DeepEqual(flagIDs(first), flagIDs(again)) {
			t.Fatalf("run %d differs: %v vs %v", i, flagIDs(first), flagIDs(again))
		}
	}
}

func TestRulePanicIsolated(t *testing.T) {
	eval := newTestEvaluator()
	eval.catalog = append([]Rule{
		{
			ID:       "Z9",
			Name:     "Faulty rule",
			Severity: sev(domain.SeverityLow),
			Predicate: func(domain.AccountRecord, *Context) bool {
				panic("boom")
			},
			Explain: func(domain.AccountRecord, *Context) string { return "" },
		},
	}, eval.catalog...)

	record := domain.AccountRecord{
		domain.FieldDateOpened: "2020-01-01",
		domain.FieldDOFD:       "2019-01-01",
	}

	flags, diags := eval.Evaluate(record)
	if !hasFlag(flags, "B1") {
		t.Errorf("healthy rule suppressed by faulty rule: %v", flagIDs(flags))
	}
	if len(diags) != 1 || diags[0].RuleID != "Z9" {
		t.Fatalf("expected one Z9 diagnostic, got %+v", diags)
	}
}

func TestDedupKeepsHigherSeverity(t *testing.T) {
	flags := []domain.Flag{
		{RuleID: "S1", Severity: domain.SeverityMedium},
		{RuleID: "B1", Severity: domain.SeverityHigh},
		{RuleID: "S1", Severity: domain.SeverityHigh},
	}

	out := dedupFlags(flags)
	if len(out) != 2 {
		t.Fatalf("expected 2 flags, got %d", len(out))
	}
	if out[0].RuleID != "B1" || out[1].RuleID != "S1" {
		t.Errorf("flags not ordered by rule id: %v", flagIDs(out))
	}
	if out[1].Severity != domain.SeverityHigh {
		t.Errorf("dedup kept lower severity: %s", out[1].Severity)
	}
}

func TestFlagsCarryCitations(t *testing.T) {
	eval := newTestEvaluator()

	record := domain.AccountRecord{
		domain.FieldDateOpened: "2020-01-01",
		domain.FieldDOFD:       "2019-01-01",
	}

	flags, _ := eval.Evaluate(record)
	if len(flags) == 0 {
		t.Fatal("expected flags")
	}
	for _, f := range flags {
		if len(f.LegalCitations) == 0 {
			t.Errorf("flag %s has no citations", f.RuleID)
		}
	}
}

func TestAdvancedSuppressedByRoot(t *testing.T) {
	eval := newTestEvaluator()

	// S1 fires from the record's own state code, so the contextual J1
	// covering the same violation must be suppressed.
	record := domain.AccountRecord{
		domain.FieldStateCode:       "CA",
		domain.FieldDateLastPayment: "2015-01-01",
	}
	rctx := &Context{Jurisdiction: "CA"}

	flags, _ := eval.EvaluateWithContext(context.Background(), "tenant-a", record, rctx)
	if !hasFlag(flags, "S1") {
		t.Fatalf("expected S1, got %v", flagIDs(flags))
	}
	if hasFlag(flags, "J1") {
		t.Errorf("J1 not suppressed by root S1: %v", flagIDs(flags))
	}
}

func TestAdvancedJurisdictionFallback(t *testing.T) {
	eval := newTestEvaluator()

	// No state on the record: S1 is skipped and the contextual rule
	// carries the caller-supplied jurisdiction instead.
	record := domain.AccountRecord{
		domain.FieldDateLastPayment: "2015-01-01",
	}
	rctx := &Context{Jurisdiction: "NY"}

	flags, _ := eval.EvaluateWithContext(context.Background(), "tenant-a", record, rctx)
	if hasFlag(flags, "S1") {
		t.Errorf("S1 fired without a jurisdiction on the record")
	}
	if !hasFlag(flags, "J1") {
		t.Fatalf("expected J1, got %v", flagIDs(flags))
	}
}

func TestAdvancedHistoricalDrift(t *testing.T) {
	eval := newTestEvaluator()

	record := domain.AccountRecord{
		domain.FieldAccountStatus: "open",
		domain.FieldDOFD:          "2021-06-01",
	}
	rctx := &Context{
		History: []*domain.Snapshot{
			{Record: domain.AccountRecord{domain.FieldDOFD: "2020-01-01"}},
		},
	}

	flags, _ := eval.EvaluateWithContext(context.Background(), "tenant-a", record, rctx)
	if !hasFlag(flags, "H1") {
		t.Fatalf("expected H1, got %v", flagIDs(flags))
	}
}

func TestAdvancedCrossBureauDisagreement(t *testing.T) {
	eval := newTestEvaluator()

	record := domain.AccountRecord{domain.FieldDOFD: "2021-06-01"}
	rctx := &Context{
		CrossBureau: []domain.AccountRecord{
			{domain.FieldDOFD: "2020-09-01"},
		},
	}

	flags, _ := eval.EvaluateWithContext(context.Background(), "tenant-a", record, rctx)
	if !hasFlag(flags, "X1") {
		t.Fatalf("expected X1, got %v", flagIDs(flags))
	}
}

func TestAdvancedKnownCollector(t *testing.T) {
	eval := newTestEvaluator()

	record := domain.AccountRecord{
		domain.FieldFurnisher: "Midland Credit Management, Inc.",
	}

	flags, _ := eval.EvaluateWithContext(context.Background(), "tenant-a", record, nil)
	if !hasFlag(flags, "C1") {
		t.Fatalf("expected C1, got %v", flagIDs(flags))
	}
}
