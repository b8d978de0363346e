package domain

// Metro2Level buckets a structural compliance score.
type Metro2Level string

const (
	Metro2Compliant    Metro2Level = "compliant"
	Metro2MinorIssues  Metro2Level = "minor_issues"
	Metro2MajorIssues  Metro2Level = "major_issues"
	Metro2NonCompliant Metro2Level = "non_compliant"
)

// Metro2Issue is one structural/format violation found by the validator.
type Metro2Issue struct {
	Code     string `json:"code"`
	Field    string `json:"field,omitempty"`
	Detail   string `json:"detail"`
	Critical bool   `json:"critical,omitempty"`
}

// Metro2Report is the result of validating one record against the
// structural rule set.
type Metro2Report struct {
	Errors          []Metro2Issue `json:"errors"`
	Warnings        []Metro2Issue `json:"warnings"`
	ComplianceScore int           `json:"complianceScore"` // 0-100
	Level           Metro2Level   `json:"level"`
}
