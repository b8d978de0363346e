// Package batch evaluates a document's worth of account records
// concurrently and correlates them for duplicate tradeline reporting.
package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/reference"
	"github.com/opensource-finance/kestrel/internal/risk"
	"github.com/opensource-finance/kestrel/internal/rules"
)

const (
	// duplicatePrefixLen bounds the normalized creditor prefix used for
	// correlation, so "Chase Bank" and "Chase Bank N.A." group together.
	duplicatePrefixLen = 12

	// minCreditorNameLen guards against grouping on near-empty names.
	minCreditorNameLen = 4

	// duplicateRuleID identifies the shared duplicate-reporting flag.
	duplicateRuleID = "DUP1"
)

// Detector runs per-record evaluation in parallel and then the
// cross-account correlation pass. Correlation is a strict barrier: it
// starts only after every record's evaluation finished.
type Detector struct {
	eval       *rules.Evaluator
	ref        *reference.Tables
	maxWorkers int
}

// NewDetector builds a detector around an evaluator.
func NewDetector(eval *rules.Evaluator, ref *reference.Tables, maxWorkers int) *Detector {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	if ref == nil {
		ref = reference.Default()
	}
	return &Detector{eval: eval, ref: ref, maxWorkers: maxWorkers}
}

// EvaluateBatch audits every record and appends the shared duplicate flag
// to each member of a duplicate group. Output is independent of input
// order: per-account flags are keyed by account id and global flags are
// ordered by correlation key.
func (d *Detector) EvaluateBatch(ctx context.Context, records []domain.AccountRecord) *domain.BatchResult {
	ids := assignIDs(records)

	flagsByIdx := make([][]domain.Flag, len(records))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, d.maxWorkers)

	for i := range records {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			flags, _ := d.eval.Evaluate(records[idx])
			flagsByIdx[idx] = flags
		}(i)
	}

	wg.Wait()

	result := &domain.BatchResult{
		PerAccount: make(map[string][]domain.Flag, len(records)),
		Risks:      make(map[string]domain.RiskProfile, len(records)),
	}
	for i, id := range ids {
		result.PerAccount[id] = flagsByIdx[i]
	}

	d.correlate(records, ids, result)

	for id, flags := range result.PerAccount {
		result.Risks[id] = risk.Aggregate(flags)
	}

	return result
}

// correlate groups records by cleaned balance plus normalized creditor
// prefix and flags every member of a group with two or more records.
func (d *Detector) correlate(records []domain.AccountRecord, ids []string, result *domain.BatchResult) {
	groups := make(map[string][]int)
	for i, record := range records {
		key, ok := correlationKey(record)
		if !ok {
			continue
		}
		groups[key] = append(groups[key], i)
	}

	keys := make([]string, 0, len(groups))
	for key, members := range groups {
		if len(members) >= 2 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		members := groups[key]
		flag := d.duplicateFlag(records[members[0]], len(members))
		for _, idx := range members {
			id := ids[idx]
			result.PerAccount[id] = append(result.PerAccount[id], flag)
		}
		result.GlobalFlags = append(result.GlobalFlags, flag)
	}
}

func (d *Detector) duplicateFlag(sample domain.AccountRecord, count int) domain.Flag {
	creditor := creditorName(sample)
	balance, _ := sample.Balance()
	return domain.Flag{
		RuleID:   duplicateRuleID,
		RuleName: "Same debt reported multiple times",
		Severity: domain.SeverityHigh,
		Explanation: fmt.Sprintf("%d tradelines report the same debt (%s, balance %.2f); a single obligation may appear on a report only once",
			count, creditor, balance),
		LegalCitations: d.ref.CitationsFor(duplicateRuleID),
		SuggestedEvidence: []string{
			"full report showing each duplicate entry",
			"debt validation identifying the single underlying obligation",
		},
		SuccessProbability: 0.8,
	}
}

// correlationKey builds the duplicate-grouping key. Records without a
// nonzero parseable balance or a usable creditor name do not participate.
func correlationKey(record domain.AccountRecord) (string, bool) {
	raw, ok := record.Get(domain.FieldCurrentBalance)
	if !ok {
		raw, ok = record.Get(domain.FieldCurrentValue)
		if !ok {
			return "", false
		}
	}
	balanceKey := domain.CleanBalanceKey(raw)
	if balanceKey == "" {
		return "", false
	}

	name := domain.NormalizeCreditorName(creditorName(record), duplicatePrefixLen)
	if len(name) < minCreditorNameLen {
		return "", false
	}

	return balanceKey + "|" + name, true
}

func creditorName(record domain.AccountRecord) string {
	if v, ok := record.Get(domain.FieldFurnisher); ok {
		return v
	}
	v, _ := record.Get(domain.FieldOriginalCreditor)
	return v
}

// assignIDs gives every record a stable identifier: its own accountId when
// present and unique, a positional id otherwise.
func assignIDs(records []domain.AccountRecord) []string {
	ids := make([]string, len(records))
	seen := make(map[string]bool, len(records))
	for i, record := range records {
		id, ok := record.Get(domain.FieldAccountID)
		if !ok || seen[id] {
			id = fmt.Sprintf("record-%d", i+1)
		}
		seen[id] = true
		ids[i] = id
	}
	return ids
}
