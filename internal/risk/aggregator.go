// Package risk turns a set of compliance flags into a single risk profile:
// an overall score, a risk band, dispute strength, and litigation potential.
package risk

import "github.com/opensource-finance/kestrel/internal/domain"

// Penalty per flag severity, subtracted from the baseline score.
const (
	baselineScore   = 100
	penaltyCritical = 40
	penaltyHigh     = 25
	penaltyMedium   = 10
	penaltyLow      = 3
)

// willfulPatternRule is the flag whose presence alone indicates a willful
// reporting pattern and therefore litigation potential.
const willfulPatternRule = "B2"

// obsolescenceRule marks an item past the federal reporting window; combined
// with multiple high-severity findings it makes a dispute near-certain.
const obsolescenceRule = "K6"

// Aggregate folds a deduplicated flag set into a risk profile. It is a pure
// function of the flags: the same set always yields the same profile.
func Aggregate(flags []domain.Flag) domain.RiskProfile {
	score := baselineScore
	highCount := 0
	hasObsolete := false
	hasWillful := false

	for _, f := range flags {
		switch f.Severity {
		case domain.SeverityCritical:
			score -= penaltyCritical
			highCount++
		case domain.SeverityHigh:
			score -= penaltyHigh
			highCount++
		case domain.SeverityMedium:
			score -= penaltyMedium
		case domain.SeverityLow:
			score -= penaltyLow
		}
		if f.RuleID == obsolescenceRule {
			hasObsolete = true
		}
		if f.RuleID == willfulPatternRule {
			hasWillful = true
		}
	}

	if score < 0 {
		score = 0
	}
	if score > baselineScore {
		score = baselineScore
	}

	strength := disputeStrength(len(flags), highCount, hasObsolete)

	return domain.RiskProfile{
		OverallScore:        score,
		RiskLevel:           levelFor(score),
		DisputeStrength:     strength,
		LitigationPotential: highCount >= 2 || hasWillful,
		RecommendedApproach: approachFor(strength),
	}
}

func levelFor(score int) domain.RiskLevel {
	switch {
	case score >= 85:
		return domain.RiskLow
	case score >= 65:
		return domain.RiskMedium
	case score >= 40:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}

func disputeStrength(total, highCount int, hasObsolete bool) domain.DisputeStrength {
	switch {
	case highCount >= 2 && hasObsolete:
		return domain.DisputeDefinitive
	case highCount >= 1:
		return domain.DisputeStrong
	case total > 0:
		return domain.DisputeModerate
	default:
		return domain.DisputeWeak
	}
}

func approachFor(strength domain.DisputeStrength) string {
	switch strength {
	case domain.DisputeDefinitive:
		return "Demand immediate deletion citing the reporting-window violation; escalate to a CFPB complaint if the bureau verifies."
	case domain.DisputeStrong:
		return "Dispute with the bureau and the furnisher in parallel, citing each high-severity violation with its supporting statute."
	case domain.DisputeModerate:
		return "Dispute with supporting documentation and request the bureau's method of verification."
	default:
		return "No actionable violations found; monitor the tradeline and request debt validation before engaging."
	}
}
