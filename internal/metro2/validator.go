// Package metro2 validates account records against the structural
// consistency requirements of the Metro 2 reporting format. It checks
// internal coherence only; it never judges whether the tradeline belongs on
// the report.
package metro2

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Score deductions per issue class.
const (
	baselineScore  = 100
	deductCritical = 15
	deductStandard = 10
	deductWarning  = 3
)

// Validate runs every structural check against one record and scores the
// result. Like the rule catalog, it never errors on malformed input: an
// unreadable field is itself a finding.
func Validate(record domain.AccountRecord) *domain.Metro2Report {
	report := &domain.Metro2Report{}

	checkDateFormats(record, report)
	checkChronology(record, report)
	checkRequiredFields(record, report)
	checkBalanceConsistency(record, report)
	checkStatusConsistency(record, report)

	score := baselineScore
	for _, issue := range report.Errors {
		if issue.Critical {
			score -= deductCritical
		} else {
			score -= deductStandard
		}
	}
	score -= deductWarning * len(report.Warnings)
	if score < 0 {
		score = 0
	}
	report.ComplianceScore = score
	report.Level = levelFor(score)

	return report
}

func levelFor(score int) domain.Metro2Level {
	switch {
	case score >= 90:
		return domain.Metro2Compliant
	case score >= 70:
		return domain.Metro2MinorIssues
	case score >= 50:
		return domain.Metro2MajorIssues
	default:
		return domain.Metro2NonCompliant
	}
}

var recordDateFields = []string{
	domain.FieldDateOpened,
	domain.FieldDOFD,
	domain.FieldChargeOffDate,
	domain.FieldDateLastPayment,
	domain.FieldEstimatedRemovalDate,
}

// checkDateFormats flags populated date fields that do not parse.
func checkDateFormats(record domain.AccountRecord, report *domain.Metro2Report) {
	for _, field := range recordDateFields {
		raw, ok := record.Get(field)
		if !ok {
			continue
		}
		if _, parsed := domain.ParseDate(raw); !parsed {
			report.Errors = append(report.Errors, domain.Metro2Issue{
				Code:   "M2-DATE",
				Field:  field,
				Detail: fmt.Sprintf("value %q is not a recognizable date", raw),
			})
		}
	}
}

// checkChronology flags impossible date orderings.
func checkChronology(record domain.AccountRecord, report *domain.Metro2Report) {
	opened, hasOpened := record.Date(domain.FieldDateOpened)
	dofd, hasDOFD := record.Date(domain.FieldDOFD)
	chargedOff, hasChargeOff := record.Date(domain.FieldChargeOffDate)
	removal, hasRemoval := record.Date(domain.FieldEstimatedRemovalDate)

	if hasOpened && hasDOFD && dofd.Before(opened) {
		report.Errors = append(report.Errors, domain.Metro2Issue{
			Code:     "M2-CHRON-DOFD",
			Field:    domain.FieldDOFD,
			Detail:   "date of first delinquency precedes the account open date",
			Critical: true,
		})
	}
	if hasDOFD && hasChargeOff && chargedOff.Before(dofd) {
		report.Errors = append(report.Errors, domain.Metro2Issue{
			Code:     "M2-CHRON-CO",
			Field:    domain.FieldChargeOffDate,
			Detail:   "charge-off date precedes the date of first delinquency",
			Critical: true,
		})
	}
	if hasDOFD && hasRemoval && removal.Before(dofd) {
		report.Warnings = append(report.Warnings, domain.Metro2Issue{
			Code:   "M2-CHRON-RM",
			Field:  domain.FieldEstimatedRemovalDate,
			Detail: "estimated removal date precedes the date of first delinquency",
		})
	}
}

// checkRequiredFields flags omissions the format requires for the record's
// classification.
func checkRequiredFields(record domain.AccountRecord, report *domain.Metro2Report) {
	if _, ok := record.Get(domain.FieldAccountStatus); !ok {
		report.Warnings = append(report.Warnings, domain.Metro2Issue{
			Code:   "M2-REQ-STATUS",
			Field:  domain.FieldAccountStatus,
			Detail: "account status is not reported",
		})
	}

	if record.IsCollectionOrChargeOff() {
		if _, ok := record.Get(domain.FieldDOFD); !ok {
			report.Errors = append(report.Errors, domain.Metro2Issue{
				Code:     "M2-REQ-DOFD",
				Field:    domain.FieldDOFD,
				Detail:   "collection/charge-off must report the date of first delinquency",
				Critical: true,
			})
		}
		if _, ok := record.Get(domain.FieldOriginalCreditor); !ok {
			report.Warnings = append(report.Warnings, domain.Metro2Issue{
				Code:   "M2-REQ-OC",
				Field:  domain.FieldOriginalCreditor,
				Detail: "collection tradeline should identify the original creditor",
			})
		}
	}
}

// checkBalanceConsistency flags balances that contradict the account state.
func checkBalanceConsistency(record domain.AccountRecord, report *domain.Metro2Report) {
	bal, ok := record.Balance()
	if !ok {
		return
	}

	if bal < 0 {
		report.Errors = append(report.Errors, domain.Metro2Issue{
			Code:   "M2-BAL-NEG",
			Field:  domain.FieldCurrentBalance,
			Detail: fmt.Sprintf("negative balance %.2f is not reportable", bal),
		})
	}

	if bal != 0 && record.IsPaidOrClosed() {
		report.Errors = append(report.Errors, domain.Metro2Issue{
			Code:     "M2-BAL-PAID",
			Field:    domain.FieldCurrentBalance,
			Detail:   fmt.Sprintf("status %q requires a zero balance, got %.2f", record[domain.FieldAccountStatus], bal),
			Critical: true,
		})
	}
}

// checkStatusConsistency cross-checks the status against the charge-off
// date field.
func checkStatusConsistency(record domain.AccountRecord, report *domain.Metro2Report) {
	_, hasChargeOffDate := record.Get(domain.FieldChargeOffDate)
	isChargeOff := record.IsCollectionOrChargeOff()

	if hasChargeOffDate && !isChargeOff {
		report.Errors = append(report.Errors, domain.Metro2Issue{
			Code:   "M2-STATUS-CO",
			Field:  domain.FieldAccountStatus,
			Detail: "charge-off date is reported but the status is not a charge-off or collection",
		})
	}
	if isChargeOff && !hasChargeOffDate {
		report.Warnings = append(report.Warnings, domain.Metro2Issue{
			Code:   "M2-STATUS-CODATE",
			Field:  domain.FieldChargeOffDate,
			Detail: "charge-off/collection status without a charge-off date",
		})
	}
}
