// Package delta compares snapshots of the same tradeline across pulls:
// pairwise field diffs with forensic classification, and longitudinal
// pattern analysis over an ordered snapshot series.
package delta

import (
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// trackedFields are the attributes compared between snapshots, in output
// order. Fields outside this list never produce deltas.
var trackedFields = []string{
	domain.FieldDateOpened,
	domain.FieldDOFD,
	domain.FieldChargeOffDate,
	domain.FieldDateLastPayment,
	domain.FieldEstimatedRemovalDate,
	domain.FieldCurrentBalance,
	domain.FieldOriginalAmount,
	domain.FieldAccountType,
	domain.FieldAccountStatus,
	domain.FieldPaymentHistory,
	domain.FieldFurnisher,
	domain.FieldOriginalCreditor,
}

var dateFields = map[string]bool{
	domain.FieldDateOpened:           true,
	domain.FieldDOFD:                 true,
	domain.FieldChargeOffDate:        true,
	domain.FieldDateLastPayment:      true,
	domain.FieldEstimatedRemovalDate: true,
}

var amountFields = map[string]bool{
	domain.FieldCurrentBalance: true,
	domain.FieldOriginalAmount: true,
}

// CompareSnapshots diffs two pulls of the same account, older first. Only
// material differences are reported: values equal after normalization (and
// dates or amounts equal after parsing) are not changes, and a field
// becoming populated is only a change when the new value contradicts the
// older snapshot. Comparing a record with itself yields nothing.
func CompareSnapshots(older, newer domain.AccountRecord) []domain.DeltaResult {
	var deltas []domain.DeltaResult

	for _, field := range trackedFields {
		oldVal, oldOK := lookup(older, field)
		newVal, newOK := lookup(newer, field)

		switch {
		case !oldOK && !newOK:
			continue
		case !oldOK:
			if !presenceContradicts(field, older) {
				continue
			}
		case !newOK:
			// Bureaus drop fields during routine maintenance; absence
			// alone is not treated as a change to the tradeline.
			continue
		default:
			if equivalent(field, oldVal, newVal) {
				continue
			}
		}

		deltas = append(deltas, domain.DeltaResult{
			Field:          field,
			OldValue:       oldVal,
			NewValue:       newVal,
			Classification: classify(field, oldVal, newVal, older),
		})
	}

	return deltas
}

// lookup reads a field, folding the currentValue alias into currentBalance
// so the two spellings diff against each other.
func lookup(record domain.AccountRecord, field string) (string, bool) {
	if field == domain.FieldCurrentBalance {
		if v, ok := record.Get(domain.FieldCurrentBalance); ok {
			return v, true
		}
		return record.Get(domain.FieldCurrentValue)
	}
	return record.Get(field)
}

// equivalent reports whether two values are the same after normalization:
// dates compare by calendar day, amounts numerically, everything else by
// collapsed-whitespace case-folded text.
func equivalent(field, oldVal, newVal string) bool {
	if dateFields[field] {
		a, aok := domain.ParseDate(oldVal)
		b, bok := domain.ParseDate(newVal)
		if aok && bok {
			return a.Equal(b)
		}
	}
	if amountFields[field] {
		a, aerr := domain.ParseAmount(oldVal)
		b, berr := domain.ParseAmount(newVal)
		if aerr == nil && berr == nil {
			return a == b
		}
	}
	return domain.NormalizeValue(oldVal) == domain.NormalizeValue(newVal)
}

// presenceContradicts reports whether a newly-populated field asserts
// something the older snapshot contradicted. A charge-off date appearing on
// an account previously reported open is a change; most fields becoming
// populated are consistent with prior silence.
func presenceContradicts(field string, older domain.AccountRecord) bool {
	switch field {
	case domain.FieldChargeOffDate:
		_, hadStatus := older.Get(domain.FieldAccountStatus)
		return hadStatus && !older.IsCollectionOrChargeOff()
	default:
		return false
	}
}

func classify(field, oldVal, newVal string, older domain.AccountRecord) domain.DeltaClassification {
	switch field {
	case domain.FieldDOFD:
		a, aok := domain.ParseDate(oldVal)
		b, bok := domain.ParseDate(newVal)
		if aok && bok && b.After(a) {
			return domain.DeltaReAging
		}
	case domain.FieldCurrentBalance:
		a, aerr := domain.ParseAmount(oldVal)
		b, berr := domain.ParseAmount(newVal)
		if aerr == nil && berr == nil && b > a {
			return domain.DeltaBalanceInflation
		}
	case domain.FieldAccountStatus:
		if older.IsPaidOrClosed() && statusReopened(newVal) {
			return domain.DeltaReinsertion
		}
	}
	return domain.DeltaGeneric
}

func statusReopened(status string) bool {
	norm := domain.NormalizeValue(status)
	for _, marker := range []string{"open", "current", "active", "collection"} {
		if strings.Contains(norm, marker) {
			return true
		}
	}
	return false
}
