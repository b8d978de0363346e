// Package reference holds the immutable lookup tables consumed by the rule
// catalog: legal citations, jurisdiction limitations periods, and known
// collector profiles. Tables are loaded once and shared read-only; tests
// substitute fixture tables through the same struct.
package reference

import "strings"

// Tables bundles all reference data injected into the evaluators.
type Tables struct {
	// Citations maps rule id to the legal citations attached to its flags.
	Citations map[string][]string

	// GenericCitation is used when a rule id has no citation entry.
	GenericCitation string

	// Limitations maps a two-letter jurisdiction code to the
	// statute-of-limitations period (years, written contracts).
	Limitations map[string]int

	// Collectors maps a normalized collector name prefix to its known
	// risk profile.
	Collectors map[string]CollectorProfile
}

// CollectorProfile describes a known debt collector's litigation posture.
type CollectorProfile struct {
	Name      string `json:"name"`
	RiskTier  string `json:"riskTier"` // "low", "elevated", "aggressive"
	Litigious bool   `json:"litigious"`
	Notes     string `json:"notes,omitempty"`
}

// CitationsFor returns the citations for a rule id, falling back to the
// generic citation when the table has no entry. A missing entry is a
// configuration fault but never fatal.
func (t *Tables) CitationsFor(ruleID string) []string {
	if cites, ok := t.Citations[ruleID]; ok && len(cites) > 0 {
		out := make([]string, len(cites))
		copy(out, cites)
		return out
	}
	return []string{t.GenericCitation}
}

// LimitationsYears returns the SOL period for a jurisdiction code and
// whether the jurisdiction is known.
func (t *Tables) LimitationsYears(code string) (int, bool) {
	years, ok := t.Limitations[strings.ToUpper(strings.TrimSpace(code))]
	return years, ok
}

// CollectorFor returns the known profile matching a furnisher name, if any.
// Matching uses the same normalized-prefix scheme as duplicate detection.
func (t *Tables) CollectorFor(normalizedName string) (CollectorProfile, bool) {
	for prefix, profile := range t.Collectors {
		if prefix != "" && strings.HasPrefix(normalizedName, prefix) {
			return profile, true
		}
	}
	return CollectorProfile{}, false
}

// Default returns the built-in reference tables.
func Default() *Tables {
	return &Tables{
		GenericCitation: "15 U.S.C. §1681e(b) (FCRA §607(b) - reasonable procedures for accuracy)",
		Citations: map[string][]string{
			"B1": {
				"15 U.S.C. §1681s-2(a)(5) (FCRA §623(a)(5) - duty to report accurate delinquency date)",
				"15 U.S.C. §1681e(b) (FCRA §607(b))",
			},
			"B2": {
				"15 U.S.C. §1681s-2(a)(5) (FCRA §623(a)(5))",
				"15 U.S.C. §1681c(c) (FCRA §605(c) - running of reporting period)",
			},
			"B3": {
				"15 U.S.C. §1681s-2(a)(5) (FCRA §623(a)(5))",
			},
			"B4": {
				"15 U.S.C. §1681s-2(a)(5) (FCRA §623(a)(5))",
			},
			"D1": {
				"15 U.S.C. §1681s-2(a)(2) (FCRA §623(a)(2) - duty to correct and update)",
			},
			"D2": {
				"15 U.S.C. §1692f(1) (FDCPA §808(1) - collection of unauthorized amounts)",
			},
			"K6": {
				"15 U.S.C. §1681c(a)(4) (FCRA §605(a)(4) - obsolete information)",
				"15 U.S.C. §1681c(c)(1) (FCRA §605(c)(1))",
			},
			"K7": {
				"15 U.S.C. §1681c(a)(4) (FCRA §605(a)(4))",
			},
			"P1": {
				"15 U.S.C. §1681e(b) (FCRA §607(b))",
			},
			"S1": {
				"15 U.S.C. §1692e(2)(A) (FDCPA §807(2)(A) - false representation of legal status)",
			},
			"J1": {
				"15 U.S.C. §1692e(2)(A) (FDCPA §807(2)(A))",
			},
			"H1": {
				"15 U.S.C. §1681s-2(a)(5) (FCRA §623(a)(5))",
				"15 U.S.C. §1681c(c) (FCRA §605(c))",
			},
			"X1": {
				"15 U.S.C. §1681e(b) (FCRA §607(b))",
			},
			"C1": {
				"15 U.S.C. §1692d (FDCPA §806 - harassment or abuse)",
			},
			"DUP1": {
				"15 U.S.C. §1681e(b) (FCRA §607(b))",
				"15 U.S.C. §1692e(2)(A) (FDCPA §807(2)(A))",
			},
		},
		Limitations: map[string]int{
			"AL": 6, "AK": 3, "AZ": 6, "AR": 5, "CA": 4, "CO": 6, "CT": 6,
			"DE": 3, "DC": 3, "FL": 5, "GA": 6, "HI": 6, "ID": 5, "IL": 10,
			"IN": 6, "IA": 10, "KS": 5, "KY": 10, "LA": 10, "ME": 6,
			"MD": 3, "MA": 6, "MI": 6, "MN": 6, "MS": 3, "MO": 10,
			"MT": 8, "NE": 5, "NV": 6, "NH": 3, "NJ": 6, "NM": 6, "NY": 6,
			"NC": 3, "ND": 6, "OH": 8, "OK": 5, "OR": 6, "PA": 4, "RI": 10,
			"SC": 3, "SD": 6, "TN": 6, "TX": 4, "UT": 6, "VT": 6, "VA": 5,
			"WA": 6, "WV": 10, "WI": 6, "WY": 10,
		},
		Collectors: map[string]CollectorProfile{
			"portfoliorecovery": {
				Name:      "Portfolio Recovery Associates",
				RiskTier:  "aggressive",
				Litigious: true,
				Notes:     "High-volume suit filer; frequently lacks original account documentation.",
			},
			"midlandcredit": {
				Name:      "Midland Credit Management",
				RiskTier:  "aggressive",
				Litigious: true,
				Notes:     "Subject to multiple CFPB consent orders over time-barred collection.",
			},
			"lvnvfunding": {
				Name:      "LVNV Funding",
				RiskTier:  "aggressive",
				Litigious: true,
				Notes:     "Debt buyer; chain-of-title documentation is commonly incomplete.",
			},
			"cavalryspv": {
				Name:      "Cavalry SPV",
				RiskTier:  "elevated",
				Litigious: true,
			},
			"jeffersoncapital": {
				Name:      "Jefferson Capital Systems",
				RiskTier:  "elevated",
				Litigious: false,
			},
			"enhancedrecovery": {
				Name:      "Enhanced Recovery Company",
				RiskTier:  "elevated",
				Litigious: false,
				Notes:     "Telecom/utility collections; re-aging complaints recur in public dockets.",
			},
		},
	}
}
