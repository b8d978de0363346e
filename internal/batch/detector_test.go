package batch

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rules"
)

var fixedNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestDetector() *Detector {
	eval := rules.NewEvaluator(rules.WithNow(func() time.Time { return fixedNow }))
	return NewDetector(eval, nil, 4)
}

func countFlags(flags []domain.Flag, id string) int {
	n := 0
	for _, f := range flags {
		if f.RuleID == id {
			n++
		}
	}
	return n
}

func TestDuplicateDetection(t *testing.T) {
	detector := newTestDetector()

	records := []domain.AccountRecord{
		{
			domain.FieldAccountID:      "A",
			domain.FieldFurnisher:      "Chase Bank",
			domain.FieldCurrentBalance: "$1,000.00",
		},
		{
			domain.FieldAccountID:      "B",
			domain.FieldFurnisher:      "Chase Bank N.A.",
			domain.FieldCurrentBalance: "1000",
		},
		{
			domain.FieldAccountID:      "C",
			domain.FieldFurnisher:      "Chase Bank",
			domain.FieldCurrentBalance: "2500.00",
		},
	}

	result := detector.EvaluateBatch(context.Background(), records)

	for _, id := range []string{"A", "B"} {
		if countFlags(result.PerAccount[id], "DUP1") != 1 {
			t.Errorf("account %s: expected one DUP1 flag, got %v", id, result.PerAccount[id])
		}
	}
	if countFlags(result.PerAccount["C"], "DUP1") != 0 {
		t.Errorf("account C flagged despite different balance: %v", result.PerAccount["C"])
	}
	if len(result.GlobalFlags) != 1 || result.GlobalFlags[0].RuleID != "DUP1" {
		t.Fatalf("expected one global DUP1 flag, got %+v", result.GlobalFlags)
	}
}

func TestDuplicateDetectionOrderIndependent(t *testing.T) {
	detector := newTestDetector()

	records := []domain.AccountRecord{
		{domain.FieldAccountID: "A", domain.FieldFurnisher: "Acme Collections", domain.FieldCurrentBalance: "750"},
		{domain.FieldAccountID: "B", domain.FieldFurnisher: "ACME COLLECTIONS LLC", domain.FieldCurrentBalance: "750.00"},
		{domain.FieldAccountID: "C", domain.FieldFurnisher: "Other Creditor", domain.FieldCurrentBalance: "750"},
	}
	reversed := []domain.AccountRecord{records[2], records[1], records[0]}

	forward := detector.EvaluateBatch(context.Background(), records)
	backward := detector.EvaluateBatch(context.Background(), reversed)

	for _, id := range []string{"A", "B", "C"} {
		if countFlags(forward.PerAccount[id], "DUP1") != countFlags(backward.PerAccount[id], "DUP1") {
			t.Errorf("account %s: duplicate flagging depends on input order", id)
		}
	}
}

func TestNonParticipants(t *testing.T) {
	detector := newTestDetector()

	// Zero balances and too-short names never correlate.
	records := []domain.AccountRecord{
		{domain.FieldAccountID: "A", domain.FieldFurnisher: "Chase Bank", domain.FieldCurrentBalance: "0"},
		{domain.FieldAccountID: "B", domain.FieldFurnisher: "Chase Bank", domain.FieldCurrentBalance: "0.00"},
		{domain.FieldAccountID: "C", domain.FieldFurnisher: "AB", domain.FieldCurrentBalance: "500"},
		{domain.FieldAccountID: "D", domain.FieldFurnisher: "AB", domain.FieldCurrentBalance: "500"},
		{domain.FieldAccountID: "E"},
	}

	result := detector.EvaluateBatch(context.Background(), records)
	if len(result.GlobalFlags) != 0 {
		t.Errorf("expected no duplicate groups, got %+v", result.GlobalFlags)
	}
}

func TestBatchRunsCatalogPerRecord(t *testing.T) {
	detector := newTestDetector()

	records := []domain.AccountRecord{
		{
			domain.FieldAccountID:  "bad-dates",
			domain.FieldDateOpened: "2020-01-01",
			domain.FieldDOFD:       "2019-01-01",
		},
		{
			domain.FieldAccountID:      "clean",
			domain.FieldDateOpened:     "2022-01-01",
			domain.FieldAccountStatus:  "open",
			domain.FieldCurrentBalance: "100",
		},
	}

	result := detector.EvaluateBatch(context.Background(), records)
	if countFlags(result.PerAccount["bad-dates"], "B1") != 1 {
		t.Errorf("B1 missing for bad-dates: %v", result.PerAccount["bad-dates"])
	}
	if len(result.PerAccount["clean"]) != 0 {
		t.Errorf("clean record flagged: %v", result.PerAccount["clean"])
	}
}

func TestBatchRiskIncludesDuplicateFlag(t *testing.T) {
	detector := newTestDetector()

	records := []domain.AccountRecord{
		{domain.FieldAccountID: "A", domain.FieldFurnisher: "Acme Collections", domain.FieldCurrentBalance: "750"},
		{domain.FieldAccountID: "B", domain.FieldFurnisher: "Acme Collections", domain.FieldCurrentBalance: "750"},
	}

	result := detector.EvaluateBatch(context.Background(), records)
	risk := result.Risks["A"]
	if risk.OverallScore != 75 {
		t.Errorf("score = %d, want 75 (one high-severity duplicate flag)", risk.OverallScore)
	}
	if risk.DisputeStrength != domain.DisputeStrong {
		t.Errorf("strength = %s, want strong", risk.DisputeStrength)
	}
}

func TestEmptyBatch(t *testing.T) {
	detector := newTestDetector()

	result := detector.EvaluateBatch(context.Background(), nil)
	if len(result.PerAccount) != 0 || len(result.GlobalFlags) != 0 {
		t.Errorf("empty batch produced output: %+v", result)
	}
}

func TestPositionalIDs(t *testing.T) {
	detector := newTestDetector()

	records := []domain.AccountRecord{
		{domain.FieldCurrentBalance: "100"},
		{domain.FieldCurrentBalance: "200"},
	}

	result := detector.EvaluateBatch(context.Background(), records)
	for _, id := range []string{"record-1", "record-2"} {
		if _, ok := result.PerAccount[id]; !ok {
			t.Errorf("missing positional id %s: %v", id, result.PerAccount)
		}
	}
}
