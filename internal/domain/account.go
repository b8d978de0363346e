// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"
)

// AccountRecord is one normalized credit/debt tradeline as produced by the
// upstream extraction pipeline. Keys come from a fixed vocabulary (the Field*
// constants); all values are strings. Absent fields are semantically
// meaningful to some rules, so callers must not fill in placeholder values.
type AccountRecord map[string]string

// Attribute keys consumed by the rule catalog.
const (
	FieldAccountID            = "accountId"
	FieldDateOpened           = "dateOpened"
	FieldDOFD                 = "dofd"
	FieldChargeOffDate        = "chargeOffDate"
	FieldDateLastPayment      = "dateLastPayment"
	FieldEstimatedRemovalDate = "estimatedRemovalDate"
	FieldCurrentBalance       = "currentBalance"
	FieldCurrentValue         = "currentValue"
	FieldOriginalAmount       = "originalAmount"
	FieldAccountType          = "accountType"
	FieldAccountStatus        = "accountStatus"
	FieldPaymentHistory       = "paymentHistory"
	FieldFurnisher            = "furnisherOrCollector"
	FieldOriginalCreditor     = "originalCreditor"
	FieldStateCode            = "stateCode"
	FieldJurisdictionCode     = "jurisdictionCode"
)

// Get returns the trimmed value for key and whether it is present and
// non-empty after trimming.
func (r AccountRecord) Get(key string) (string, bool) {
	v := strings.TrimSpace(r[key])
	return v, v != ""
}

// Date parses the named field as a calendar date. Returns false when the
// field is absent or unparseable; callers must skip, never substitute a
// sentinel value.
func (r AccountRecord) Date(key string) (time.Time, bool) {
	v, ok := r.Get(key)
	if !ok {
		return time.Time{}, false
	}
	return ParseDate(v)
}

// Balance returns the numeric current balance, reading currentBalance first
// and falling back to currentValue.
func (r AccountRecord) Balance() (float64, bool) {
	for _, key := range []string{FieldCurrentBalance, FieldCurrentValue} {
		if v, ok := r.Get(key); ok {
			if f, err := ParseAmount(v); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// Amount parses the named field as a monetary amount.
func (r AccountRecord) Amount(key string) (float64, bool) {
	v, ok := r.Get(key)
	if !ok {
		return 0, false
	}
	f, err := ParseAmount(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Jurisdiction returns the two-letter jurisdiction code, reading
// jurisdictionCode first and falling back to stateCode.
func (r AccountRecord) Jurisdiction() (string, bool) {
	for _, key := range []string{FieldJurisdictionCode, FieldStateCode} {
		if v, ok := r.Get(key); ok {
			return strings.ToUpper(v), true
		}
	}
	return "", false
}

// IsCollectionOrChargeOff reports whether the account's type or status
// classifies it as a collection or charged-off tradeline.
func (r AccountRecord) IsCollectionOrChargeOff() bool {
	for _, key := range []string{FieldAccountType, FieldAccountStatus} {
		v := strings.ToLower(r[key])
		if strings.Contains(v, "collection") || strings.Contains(v, "charge") {
			return true
		}
	}
	return false
}

// IsPaidOrClosed reports whether the account status indicates a paid or
// closed tradeline.
func (r AccountRecord) IsPaidOrClosed() bool {
	v := strings.ToLower(r[FieldAccountStatus])
	return strings.Contains(v, "paid") || strings.Contains(v, "closed") ||
		strings.Contains(v, "settled")
}

// IsNegative reports whether the account carries a derogatory
// classification (collection, charge-off, late, delinquent, repossession).
func (r AccountRecord) IsNegative() bool {
	if r.IsCollectionOrChargeOff() {
		return true
	}
	for _, key := range []string{FieldAccountType, FieldAccountStatus} {
		v := strings.ToLower(r[key])
		for _, marker := range []string{"late", "delinquen", "derogatory", "repossess", "default"} {
			if strings.Contains(v, marker) {
				return true
			}
		}
	}
	return false
}

// PaymentHistoryShowsDelinquency inspects a Metro2-style payment history
// grid, most recent month first. Codes 1-6 mark 30-180+ day lates, G marks
// collection, L marks charge-off. Only the most recent cell matters here:
// old lates on a since-cured account are legitimate history.
func PaymentHistoryShowsDelinquency(grid string) bool {
	grid = strings.TrimSpace(strings.ToUpper(grid))
	if grid == "" {
		return false
	}
	c := grid[0]
	return (c >= '1' && c <= '6') || c == 'G' || c == 'L'
}

// Clone returns a shallow copy of the record.
func (r AccountRecord) Clone() AccountRecord {
	out := make(AccountRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ParseAmount parses a monetary string, tolerating currency symbols,
// thousands separators, and surrounding whitespace.
func ParseAmount(s string) (float64, error) {
	cleaned := strings.Map(func(c rune) rune {
		switch {
		case c >= '0' && c <= '9', c == '.', c == '-':
			return c
		default:
			return -1
		}
	}, s)
	return strconv.ParseFloat(cleaned, 64)
}

// CleanBalanceKey canonicalizes a balance string for cross-account
// correlation: "$1,000.00" and "1000.00" produce the same key. Returns ""
// when the value does not parse or is zero.
func CleanBalanceKey(s string) string {
	f, err := ParseAmount(s)
	if err != nil || f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// NormalizeCreditorName lowercases, strips non-alphanumerics, and truncates
// to the correlation prefix length.
func NormalizeCreditorName(s string, prefixLen int) string {
	var b strings.Builder
	for _, c := range strings.ToLower(s) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	out := b.String()
	if prefixLen > 0 && len(out) > prefixLen {
		out = out[:prefixLen]
	}
	return out
}

// Fingerprint returns a stable content hash of the record, used to key
// cached audit results. Key order never affects the result.
func (r AccountRecord) Fingerprint() string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(r[k]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeValue canonicalizes a field value for delta comparison:
// whitespace is collapsed and case is folded, so cosmetic differences are
// not reported as changes.
func NormalizeValue(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
