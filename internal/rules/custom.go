package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// CustomEngine is the CEL-based engine for tenant-authored rules. Rules are
// compiled once at load time and evaluated in parallel per record.
type CustomEngine struct {
	mu         sync.RWMutex
	env        *cel.Env
	compiled   map[string]map[string]*compiledRule // tenantID -> ruleID
	maxWorkers int
}

// compiledRule holds a pre-compiled CEL program.
type compiledRule struct {
	Config  *domain.CustomRuleConfig
	Program cel.Program
}

// NewCustomEngine creates a CEL engine with the account evaluation
// environment.
func NewCustomEngine(maxWorkers int) (*CustomEngine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// Expose the raw attribute map plus promoted typed fields so simple
	// expressions stay simple: balance > original_amount * 2.0, etc.
	env, err := cel.NewEnv(
		cel.Variable("account", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("balance", cel.DoubleType),
		cel.Variable("original_amount", cel.DoubleType),
		cel.Variable("status", cel.StringType),
		cel.Variable("account_type", cel.StringType),
		cel.Variable("furnisher", cel.StringType),
		cel.Variable("state", cel.StringType),
		cel.Variable("age_days", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &CustomEngine{
		env:        env,
		compiled:   make(map[string]map[string]*compiledRule),
		maxWorkers: maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without mutating loaded engine rules.
func (e *CustomEngine) ValidateRule(cfg *domain.CustomRuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine under its tenant.
func (e *CustomEngine) LoadRule(cfg *domain.CustomRuleConfig) error {
	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tenant := e.compiled[cfg.TenantID]
	if tenant == nil {
		tenant = make(map[string]*compiledRule)
		e.compiled[cfg.TenantID] = tenant
	}
	tenant[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules, skipping disabled ones.
func (e *CustomEngine) LoadRules(configs []*domain.CustomRuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones. This enables
// hot-reloading of rules from the database.
func (e *CustomEngine) ReloadRules(configs []*domain.CustomRuleConfig) error {
	fresh := make(map[string]map[string]*compiledRule)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		tenant := fresh[cfg.TenantID]
		if tenant == nil {
			tenant = make(map[string]*compiledRule)
			fresh[cfg.TenantID] = tenant
		}
		tenant[cfg.ID] = compiled
	}

	e.mu.Lock()
	e.compiled = fresh
	e.mu.Unlock()

	return nil
}

// RulesCount returns the number of loaded rules across all tenants.
func (e *CustomEngine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for _, tenant := range e.compiled {
		n += len(tenant)
	}
	return n
}

// EvaluateAll evaluates the tenant's loaded rules in parallel against one
// record. Expression errors become diagnostics, never evaluation failures.
func (e *CustomEngine) EvaluateAll(ctx context.Context, tenantID string, record domain.AccountRecord) ([]domain.Flag, []domain.Diagnostic) {
	e.mu.RLock()
	rules := make([]*compiledRule, 0, len(e.compiled[tenantID]))
	for _, rule := range e.compiled[tenantID] {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	activation := buildActivation(record)

	flagsByIdx := make([]*domain.Flag, len(rules))
	diagsByIdx := make([]*domain.Diagnostic, len(rules))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *compiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			flagsByIdx[idx], diagsByIdx[idx] = evaluateCustomRule(r, activation)
		}(i, rule)
	}

	wg.Wait()

	var flags []domain.Flag
	var diags []domain.Diagnostic
	for i := range rules {
		if flagsByIdx[i] != nil {
			flags = append(flags, *flagsByIdx[i])
		}
		if diagsByIdx[i] != nil {
			diags = append(diags, *diagsByIdx[i])
		}
	}
	return flags, diags
}

// Close cleans up the engine.
func (e *CustomEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]map[string]*compiledRule)
	return nil
}

func (e *CustomEngine) compileRule(cfg *domain.CustomRuleConfig) (*compiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &compiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}

func evaluateCustomRule(rule *compiledRule, activation map[string]any) (*domain.Flag, *domain.Diagnostic) {
	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		return nil, &domain.Diagnostic{
			RuleID: rule.Config.ID,
			Detail: fmt.Sprintf("evaluation error: %v", err),
		}
	}

	if !truthy(out) {
		return nil, nil
	}

	citations := rule.Config.Citations
	if len(citations) == 0 {
		citations = []string{defaultTables.GenericCitation}
	}

	return &domain.Flag{
		RuleID:         rule.Config.ID,
		RuleName:       rule.Config.Name,
		Severity:       rule.Config.Severity,
		Explanation:    rule.Config.Explanation,
		LegalCitations: citations,
	}, nil
}

func buildActivation(record domain.AccountRecord) map[string]any {
	balance, _ := record.Balance()
	original, _ := record.Amount(domain.FieldOriginalAmount)
	state, _ := record.Jurisdiction()

	ageDays := int64(-1)
	if dofd, ok := record.Date(domain.FieldDOFD); ok {
		ageDays = int64(time.Now().UTC().Sub(dofd).Hours() / 24)
	}

	return map[string]any{
		"account":         map[string]string(record),
		"balance":         balance,
		"original_amount": original,
		"status":          record[domain.FieldAccountStatus],
		"account_type":    record[domain.FieldAccountType],
		"furnisher":       record[domain.FieldFurnisher],
		"state":           state,
		"age_days":        ageDays,
	}
}

func truthy(val ref.Val) bool {
	b, ok := val.(types.Bool)
	return ok && bool(b)
}
