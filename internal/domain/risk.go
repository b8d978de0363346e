package domain

// RiskLevel buckets the aggregate score of an audited tradeline.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// DisputeStrength grades how strong a dispute built on the flags would be.
type DisputeStrength string

const (
	DisputeWeak       DisputeStrength = "weak"
	DisputeModerate   DisputeStrength = "moderate"
	DisputeStrong     DisputeStrength = "strong"
	DisputeDefinitive DisputeStrength = "definitive"
)

// RiskProfile is the aggregate assessment computed from all flags for one
// account. It is a pure function of the flag list.
type RiskProfile struct {
	OverallScore        int             `json:"overallScore"` // 0-100, lower is worse
	RiskLevel           RiskLevel       `json:"riskLevel"`
	DisputeStrength     DisputeStrength `json:"disputeStrength"`
	LitigationPotential bool            `json:"litigationPotential"`
	RecommendedApproach string          `json:"recommendedApproach"`
}
