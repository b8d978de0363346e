package rules

import (
	"context"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestCustomEngineCreation(t *testing.T) {
	engine, err := NewCustomEngine(5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
}

func TestCustomLoadRule(t *testing.T) {
	engine, _ := NewCustomEngine(5)
	defer engine.Close()

	rule := &domain.CustomRuleConfig{
		ID:         "cust-001",
		TenantID:   "tenant-a",
		Name:       "High balance collection",
		Expression: `balance > 5000.0 && account_type == "collection"`,
		Severity:   domain.SeverityMedium,
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}
	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule, got %d", engine.RulesCount())
	}
}

func TestCustomLoadInvalidRule(t *testing.T) {
	engine, _ := NewCustomEngine(5)
	defer engine.Close()

	tests := []struct {
		name       string
		expression string
	}{
		{"syntax error", "balance >>> 100"},
		{"unknown variable", "velocity > 10"},
		{"non-bool output", "balance + 1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engine.LoadRule(&domain.CustomRuleConfig{
				ID:         "bad",
				TenantID:   "tenant-a",
				Expression: tt.expression,
				Enabled:    true,
			})
			if err == nil {
				t.Error("expected compile error")
			}
		})
	}

	if engine.RulesCount() != 0 {
		t.Errorf("invalid rules were loaded: %d", engine.RulesCount())
	}
}

func TestCustomEvaluateAll(t *testing.T) {
	engine, _ := NewCustomEngine(5)
	defer engine.Close()

	err := engine.LoadRules([]*domain.CustomRuleConfig{
		{
			ID:          "cust-001",
			TenantID:    "tenant-a",
			Name:        "Inflated balance",
			Expression:  "original_amount > 0.0 && balance > original_amount * 1.5",
			Severity:    domain.SeverityMedium,
			Explanation: "balance exceeds original by more than 50%",
			Enabled:     true,
		},
		{
			ID:         "cust-002",
			TenantID:   "tenant-a",
			Name:       "Texas tradeline",
			Expression: `state == "TX"`,
			Severity:   domain.SeverityLow,
			Enabled:    true,
		},
		{
			ID:         "cust-900",
			TenantID:   "tenant-b",
			Name:       "Other tenant's rule",
			Expression: "balance > 0.0",
			Severity:   domain.SeverityHigh,
			Enabled:    true,
		},
	})
	if err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	record := domain.AccountRecord{
		domain.FieldCurrentBalance: "2000",
		domain.FieldOriginalAmount: "1000",
		domain.FieldStateCode:      "ca",
	}

	flags, diags := engine.EvaluateAll(context.Background(), "tenant-a", record)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
	if len(flags) != 1 || flags[0].RuleID != "cust-001" {
		t.Fatalf("expected only cust-001, got %v", flagIDs(flags))
	}
	if flags[0].Explanation != "balance exceeds original by more than 50%" {
		t.Errorf("explanation not carried: %q", flags[0].Explanation)
	}
	if len(flags[0].LegalCitations) == 0 {
		t.Errorf("custom flag missing citation fallback")
	}
}

func TestCustomTenantIsolation(t *testing.T) {
	engine, _ := NewCustomEngine(5)
	defer engine.Close()

	engine.LoadRule(&domain.CustomRuleConfig{
		ID:         "cust-900",
		TenantID:   "tenant-b",
		Expression: "balance > 0.0",
		Severity:   domain.SeverityHigh,
		Enabled:    true,
	})

	record := domain.AccountRecord{domain.FieldCurrentBalance: "100"}

	flags, _ := engine.EvaluateAll(context.Background(), "tenant-a", record)
	if len(flags) != 0 {
		t.Errorf("tenant-a saw tenant-b's rules: %v", flagIDs(flags))
	}
}

func TestCustomReloadRules(t *testing.T) {
	engine, _ := NewCustomEngine(5)
	defer engine.Close()

	engine.LoadRule(&domain.CustomRuleConfig{
		ID:         "old",
		TenantID:   "tenant-a",
		Expression: "balance > 0.0",
		Severity:   domain.SeverityLow,
		Enabled:    true,
	})

	err := engine.ReloadRules([]*domain.CustomRuleConfig{
		{
			ID:         "new",
			TenantID:   "tenant-a",
			Expression: "balance > 100.0",
			Severity:   domain.SeverityLow,
			Enabled:    true,
		},
		{
			ID:         "disabled",
			TenantID:   "tenant-a",
			Expression: "balance > 0.0",
			Severity:   domain.SeverityLow,
			Enabled:    false,
		},
	})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule after reload, got %d", engine.RulesCount())
	}

	record := domain.AccountRecord{domain.FieldCurrentBalance: "50"}
	flags, _ := engine.EvaluateAll(context.Background(), "tenant-a", record)
	if len(flags) != 0 {
		t.Errorf("stale rule still firing: %v", flagIDs(flags))
	}
}

func TestCustomRuleAccountMapAccess(t *testing.T) {
	engine, _ := NewCustomEngine(5)
	defer engine.Close()

	engine.LoadRule(&domain.CustomRuleConfig{
		ID:         "cust-map",
		TenantID:   "tenant-a",
		Expression: `"originalCreditor" in account && account["originalCreditor"] == ""`,
		Severity:   domain.SeverityLow,
		Enabled:    true,
	})

	record := domain.AccountRecord{domain.FieldOriginalCreditor: ""}
	flags, diags := engine.EvaluateAll(context.Background(), "tenant-a", record)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
	if len(flags) != 1 {
		t.Fatalf("expected map-access rule to fire, got %v", flagIDs(flags))
	}
}
