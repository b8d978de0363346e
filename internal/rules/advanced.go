package rules

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// AdvancedRule is a contextual catalog entry. Contextual rules consume
// auxiliary inputs (snapshot history, cross-bureau pulls, caller-supplied
// jurisdiction) that the builtin catalog never touches. RootID names the
// builtin rule covering the same logical violation; when the root fired on
// this record the contextual rule is suppressed to avoid double-flagging.
type AdvancedRule struct {
	Rule
	RootID string
}

// AdvancedCatalog returns the contextual rule catalog in canonical order.
func AdvancedCatalog() []AdvancedRule {
	return []AdvancedRule{
		{
			RootID: "S1",
			Rule: Rule{
				ID:   "J1",
				Name: "Limitations expired under supplied jurisdiction",
				Severity: func(r domain.AccountRecord, rctx *Context) domain.Severity {
					expiry, ok := solExpiryIn(r, rctx, rctx.Jurisdiction)
					if ok && rctx.now().After(expiry.AddDate(1, 0, 0)) {
						return domain.SeverityHigh
					}
					return domain.SeverityMedium
				},
				Predicate: func(r domain.AccountRecord, rctx *Context) bool {
					if rctx == nil || rctx.Jurisdiction == "" {
						return false
					}
					expiry, ok := solExpiryIn(r, rctx, rctx.Jurisdiction)
					if !ok {
						return false
					}
					return rctx.now().After(expiry)
				},
				Explain: func(r domain.AccountRecord, rctx *Context) string {
					expiry, _ := solExpiryIn(r, rctx, rctx.Jurisdiction)
					return fmt.Sprintf("under the consumer's jurisdiction %s the limitations period ran out on %s",
						rctx.Jurisdiction, expiry.Format("2006-01-02"))
				},
				EvidenceHints: []string{
					"proof of residence in the claimed jurisdiction",
					"record of the last payment date",
				},
				SuccessProbability: 0.6,
			},
		},
		{
			RootID: "B2",
			Rule: Rule{
				ID:       "H1",
				Name:     "Delinquency date drifted across pulls",
				Severity: sev(domain.SeverityHigh),
				Predicate: func(r domain.AccountRecord, rctx *Context) bool {
					if rctx == nil || len(rctx.History) == 0 {
						return false
					}
					current, ok := r.Date(domain.FieldDOFD)
					if !ok {
						return false
					}
					for _, snap := range rctx.History {
						prior, ok := snap.Record.Date(domain.FieldDOFD)
						if ok && prior.Before(current) {
							return true
						}
					}
					return false
				},
				Explain: func(r domain.AccountRecord, rctx *Context) string {
					return fmt.Sprintf("a prior pull of this account reported an earlier delinquency date than the current %s; moving the date forward restarts the reporting clock",
						r[domain.FieldDOFD])
				},
				EvidenceHints: []string{
					"archived credit reports showing the earlier delinquency date",
				},
				SuccessProbability: 0.85,
			},
		},
		{
			Rule: Rule{
				ID:       "X1",
				Name:     "Bureaus disagree on delinquency date",
				Severity: sev(domain.SeverityMedium),
				Predicate: func(r domain.AccountRecord, rctx *Context) bool {
					if rctx == nil || len(rctx.CrossBureau) == 0 {
						return false
					}
					current, ok := r.Date(domain.FieldDOFD)
					if !ok {
						return false
					}
					for _, other := range rctx.CrossBureau {
						theirs, ok := other.Date(domain.FieldDOFD)
						if ok && !theirs.Equal(current) {
							return true
						}
					}
					return false
				},
				Explain: func(r domain.AccountRecord, _ *Context) string {
					return fmt.Sprintf("another bureau reports a different delinquency date than %s for the same tradeline; at most one can be accurate",
						r[domain.FieldDOFD])
				},
				EvidenceHints: []string{
					"side-by-side reports from each bureau",
				},
				SuccessProbability: 0.7,
			},
		},
		{
			Rule: Rule{
				ID:       "C1",
				Name:     "Known high-risk collector",
				Severity: sev(domain.SeverityLow),
				Predicate: func(r domain.AccountRecord, rctx *Context) bool {
					name, ok := r.Get(domain.FieldFurnisher)
					if !ok {
						return false
					}
					profile, ok := rctx.tables().CollectorFor(domain.NormalizeCreditorName(name, 0))
					return ok && (profile.Litigious || profile.RiskTier == "aggressive")
				},
				Explain: func(r domain.AccountRecord, rctx *Context) string {
					profile, _ := rctx.tables().CollectorFor(domain.NormalizeCreditorName(r[domain.FieldFurnisher], 0))
					detail := profile.Notes
					if detail == "" {
						detail = "known litigation-prone collector"
					}
					return fmt.Sprintf("furnisher matches known collector %s (%s): %s", profile.Name, profile.RiskTier, detail)
				},
				EvidenceHints: []string{
					"collection letters and call logs from this furnisher",
				},
				SuccessProbability: 0.4,
			},
		},
	}
}
