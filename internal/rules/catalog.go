package rules

import (
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/reference"
)

// Context carries the auxiliary inputs a rule may consult in addition to the
// record itself. Every field is optional; a rule that needs a missing input
// simply does not fire.
type Context struct {
	// Now is the reference time for all age and window arithmetic.
	Now time.Time

	// Jurisdiction overrides the record's own state code when set.
	Jurisdiction string

	// History holds prior pulls of the same account, oldest first.
	History []*domain.Snapshot

	// CrossBureau holds the same tradeline as reported by other bureaus.
	CrossBureau []domain.AccountRecord

	// Reference supplies the citation, limitations, and collector tables.
	// Nil falls back to the built-in defaults.
	Reference *reference.Tables
}

func (c *Context) tables() *reference.Tables {
	if c == nil || c.Reference == nil {
		return defaultTables
	}
	return c.Reference
}

var defaultTables = reference.Default()

func (c *Context) now() time.Time {
	if c == nil || c.Now.IsZero() {
		return time.Now().UTC()
	}
	return c.Now
}

// Rule is a single catalog entry. Predicate reports whether the violation is
// present; when any input it needs is missing or unparseable it returns
// false and the rule is skipped.
type Rule struct {
	ID                 string
	Name               string
	Severity           func(record domain.AccountRecord, rctx *Context) domain.Severity
	Predicate          func(record domain.AccountRecord, rctx *Context) bool
	Explain            func(record domain.AccountRecord, rctx *Context) string
	EvidenceHints      []string
	SuccessProbability float64
}

// reportingWindow is the federal limit on how long most derogatory items may
// appear: seven years plus the 180-day run-up from delinquency to placement.
const (
	reportingWindowYears = 7
	reportingWindowDays  = 180
)

// reAgingGapMonths is the minimum DOFD-after-open gap that indicates the
// delinquency date was moved rather than misreported.
const reAgingGapMonths = 6

func sev(s domain.Severity) func(domain.AccountRecord, *Context) domain.Severity {
	return func(domain.AccountRecord, *Context) domain.Severity { return s }
}

// Catalog returns the builtin rule catalog in its canonical order.
func Catalog() []Rule {
	return []Rule{
		{
			ID:       "B1",
			Name:     "Delinquency predates account opening",
			Severity: sev(domain.SeverityHigh),
			Predicate: func(r domain.AccountRecord, _ *Context) bool {
				opened, ok := r.Date(domain.FieldDateOpened)
				if !ok {
					return false
				}
				dofd, ok := r.Date(domain.FieldDOFD)
				if !ok {
					return false
				}
				return dofd.Before(opened)
			},
			Explain: func(r domain.AccountRecord, _ *Context) string {
				return fmt.Sprintf("date of first delinquency %s precedes the account open date %s, which is chronologically impossible",
					r[domain.FieldDOFD], r[domain.FieldDateOpened])
			},
			EvidenceHints: []string{
				"original account agreement showing the open date",
				"earliest statement reflecting the first missed payment",
			},
			SuccessProbability: 0.9,
		},
		{
			ID:       "B2",
			Name:     "Re-aged delinquency date",
			Severity: sev(domain.SeverityHigh),
			Predicate: func(r domain.AccountRecord, _ *Context) bool {
				if !r.IsCollectionOrChargeOff() {
					return false
				}
				opened, ok := r.Date(domain.FieldDateOpened)
				if !ok {
					return false
				}
				dofd, ok := r.Date(domain.FieldDOFD)
				if !ok {
					return false
				}
				return dofd.After(opened.AddDate(0, reAgingGapMonths, 0))
			},
			Explain: func(r domain.AccountRecord, _ *Context) string {
				return fmt.Sprintf("collection/charge-off reports delinquency date %s more than %d months after opening %s, consistent with re-aging to extend the reporting window",
					r[domain.FieldDOFD], reAgingGapMonths, r[domain.FieldDateOpened])
			},
			EvidenceHints: []string{
				"historical credit reports showing the earlier delinquency date",
				"payment records from the original creditor",
			},
			SuccessProbability: 0.85,
		},
		{
			ID:       "B3",
			Name:     "Delinquency after charge-off",
			Severity: sev(domain.SeverityHigh),
			Predicate: func(r domain.AccountRecord, _ *Context) bool {
				chargedOff, ok := r.Date(domain.FieldChargeOffDate)
				if !ok {
					return false
				}
				dofd, ok := r.Date(domain.FieldDOFD)
				if !ok {
					return false
				}
				return dofd.After(chargedOff)
			},
			Explain: func(r domain.AccountRecord, _ *Context) string {
				return fmt.Sprintf("delinquency date %s falls after the charge-off date %s; an account cannot first go delinquent after it was already charged off",
					r[domain.FieldDOFD], r[domain.FieldChargeOffDate])
			},
			EvidenceHints: []string{
				"charge-off notice from the original creditor",
			},
			SuccessProbability: 0.88,
		},
		{
			ID:       "B4",
			Name:     "Negative account missing delinquency date",
			Severity: sev(domain.SeverityMedium),
			Predicate: func(r domain.AccountRecord, _ *Context) bool {
				if !r.IsNegative() {
					return false
				}
				_, ok := r.Get(domain.FieldDOFD)
				return !ok
			},
			Explain: func(r domain.AccountRecord, _ *Context) string {
				return "derogatory tradeline omits the date of first delinquency, making the reporting window unverifiable"
			},
			EvidenceHints: []string{
				"request method of verification from the bureau",
			},
			SuccessProbability: 0.7,
		},
		{
			ID:       "D1",
			Name:     "Balance reported on settled account",
			Severity: sev(domain.SeverityHigh),
			Predicate: func(r domain.AccountRecord, _ *Context) bool {
				if !r.IsPaidOrClosed() {
					return false
				}
				bal, ok := r.Balance()
				return ok && bal != 0
			},
			Explain: func(r domain.AccountRecord, _ *Context) string {
				bal, _ := r.Balance()
				return fmt.Sprintf("account status %q is inconsistent with a reported balance of %.2f; a settled account must report zero",
					r[domain.FieldAccountStatus], bal)
			},
			EvidenceHints: []string{
				"payoff or settlement letter",
				"final statement showing zero balance",
			},
			SuccessProbability: 0.92,
		},
		{
			ID:       "D2",
			Name:     "Balance grossly exceeds original amount",
			Severity: sev(domain.SeverityMedium),
			Predicate: func(r domain.AccountRecord, _ *Context) bool {
				bal, ok := r.Balance()
				if !ok || bal <= 0 {
					return false
				}
				orig, ok := r.Amount(domain.FieldOriginalAmount)
				if !ok || orig <= 0 {
					return false
				}
				return bal > orig*2
			},
			Explain: func(r domain.AccountRecord, _ *Context) string {
				bal, _ := r.Balance()
				orig, _ := r.Amount(domain.FieldOriginalAmount)
				return fmt.Sprintf("reported balance %.2f is more than double the original amount %.2f, suggesting unauthorized fees or interest", bal, orig)
			},
			EvidenceHints: []string{
				"itemized accounting of the claimed balance",
				"original contract showing permitted fees and interest",
			},
			SuccessProbability: 0.65,
		},
		{
			ID:       "K6",
			Name:     "Reporting window exceeded",
			Severity: sev(domain.SeverityHigh),
			Predicate: func(r domain.AccountRecord, rctx *Context) bool {
				dofd, ok := r.Date(domain.FieldDOFD)
				if !ok {
					return false
				}
				expiry := dofd.AddDate(reportingWindowYears, 0, reportingWindowDays)
				return rctx.now().After(expiry)
			},
			Explain: func(r domain.AccountRecord, rctx *Context) string {
				dofd, _ := r.Date(domain.FieldDOFD)
				expiry := dofd.AddDate(reportingWindowYears, 0, reportingWindowDays)
				return fmt.Sprintf("item is past the maximum reporting window: delinquency %s places the removal deadline at %s",
					dofd.Format("2006-01-02"), expiry.Format("2006-01-02"))
			},
			EvidenceHints: []string{
				"credit report page showing the delinquency date",
			},
			SuccessProbability: 0.95,
		},
		{
			ID:       "K7",
			Name:     "Stated removal date already passed",
			Severity: sev(domain.SeverityHigh),
			Predicate: func(r domain.AccountRecord, rctx *Context) bool {
				removal, ok := r.Date(domain.FieldEstimatedRemovalDate)
				if !ok {
					return false
				}
				return rctx.now().After(removal)
			},
			Explain: func(r domain.AccountRecord, _ *Context) string {
				return fmt.Sprintf("bureau's own estimated removal date %s has passed but the item is still reporting",
					r[domain.FieldEstimatedRemovalDate])
			},
			EvidenceHints: []string{
				"credit report page showing the estimated removal date",
			},
			SuccessProbability: 0.93,
		},
		{
			ID:       "P1",
			Name:     "Payment history contradicts status",
			Severity: sev(domain.SeverityLow),
			Predicate: func(r domain.AccountRecord, _ *Context) bool {
				if !r.IsPaidOrClosed() {
					return false
				}
				return domain.PaymentHistoryShowsDelinquency(r[domain.FieldPaymentHistory])
			},
			Explain: func(r domain.AccountRecord, _ *Context) string {
				return fmt.Sprintf("payment history grid %q shows ongoing delinquency on an account reported as %q",
					r[domain.FieldPaymentHistory], r[domain.FieldAccountStatus])
			},
			EvidenceHints: []string{
				"bank statements covering the disputed months",
			},
			SuccessProbability: 0.55,
		},
		{
			ID:   "S1",
			Name: "Statute of limitations expired",
			Severity: func(r domain.AccountRecord, rctx *Context) domain.Severity {
				code, _ := r.Jurisdiction()
				expiry, ok := solExpiryIn(r, rctx, code)
				if ok && rctx.now().After(expiry.AddDate(1, 0, 0)) {
					return domain.SeverityHigh
				}
				return domain.SeverityMedium
			},
			Predicate: func(r domain.AccountRecord, rctx *Context) bool {
				code, ok := r.Jurisdiction()
				if !ok {
					return false
				}
				expiry, ok := solExpiryIn(r, rctx, code)
				if !ok {
					return false
				}
				return rctx.now().After(expiry)
			},
			Explain: func(r domain.AccountRecord, rctx *Context) string {
				code, _ := r.Jurisdiction()
				expiry, _ := solExpiryIn(r, rctx, code)
				return fmt.Sprintf("the %s statute of limitations on this debt ran out on %s; collection suits and some collection activity are time-barred",
					code, expiry.Format("2006-01-02"))
			},
			EvidenceHints: []string{
				"record of the last payment date",
				"jurisdiction's limitations statute for written contracts",
			},
			SuccessProbability: 0.6,
		},
	}
}

// solExpiryIn computes when the limitations period ran out under the given
// jurisdiction. The last payment date is the accrual point; when it is
// missing the delinquency date serves as a conservative substitute.
func solExpiryIn(r domain.AccountRecord, rctx *Context, code string) (time.Time, bool) {
	last, ok := r.Date(domain.FieldDateLastPayment)
	if !ok {
		last, ok = r.Date(domain.FieldDOFD)
		if !ok {
			return time.Time{}, false
		}
	}
	years, ok := rctx.tables().LimitationsYears(code)
	if !ok {
		return time.Time{}, false
	}
	return last.AddDate(years, 0, 0), true
}
