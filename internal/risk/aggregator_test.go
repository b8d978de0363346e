package risk

import (
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func high(id string) domain.Flag {
	return domain.Flag{RuleID: id, Severity: domain.SeverityHigh}
}

func TestAggregateNoFlags(t *testing.T) {
	profile := Aggregate(nil)

	if profile.OverallScore != 100 {
		t.Errorf("score = %d, want 100", profile.OverallScore)
	}
	if profile.RiskLevel != domain.RiskLow {
		t.Errorf("level = %s, want low", profile.RiskLevel)
	}
	if profile.DisputeStrength != domain.DisputeWeak {
		t.Errorf("strength = %s, want weak", profile.DisputeStrength)
	}
	if profile.LitigationPotential {
		t.Error("litigation potential without flags")
	}
}

func TestAggregateScoring(t *testing.T) {
	tests := []struct {
		name      string
		flags     []domain.Flag
		wantScore int
		wantLevel domain.RiskLevel
	}{
		{
			name:      "single low",
			flags:     []domain.Flag{{RuleID: "P1", Severity: domain.SeverityLow}},
			wantScore: 97,
			wantLevel: domain.RiskLow,
		},
		{
			name:      "single medium",
			flags:     []domain.Flag{{RuleID: "B4", Severity: domain.SeverityMedium}},
			wantScore: 90,
			wantLevel: domain.RiskLow,
		},
		{
			name:      "single high",
			flags:     []domain.Flag{high("B1")},
			wantScore: 75,
			wantLevel: domain.RiskMedium,
		},
		{
			name:      "two high",
			flags:     []domain.Flag{high("B1"), high("D1")},
			wantScore: 50,
			wantLevel: domain.RiskHigh,
		},
		{
			name:      "critical plus high",
			flags:     []domain.Flag{{RuleID: "Z1", Severity: domain.SeverityCritical}, high("B1")},
			wantScore: 35,
			wantLevel: domain.RiskCritical,
		},
		{
			name: "floor at zero",
			flags: []domain.Flag{
				{RuleID: "Z1", Severity: domain.SeverityCritical},
				{RuleID: "Z2", Severity: domain.SeverityCritical},
				high("B1"), high("B2"), high("D1"),
			},
			wantScore: 0,
			wantLevel: domain.RiskCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := Aggregate(tt.flags)
			if profile.OverallScore != tt.wantScore {
				t.Errorf("score = %d, want %d", profile.OverallScore, tt.wantScore)
			}
			if profile.RiskLevel != tt.wantLevel {
				t.Errorf("level = %s, want %s", profile.RiskLevel, tt.wantLevel)
			}
		})
	}
}

func TestDisputeStrengthLadder(t *testing.T) {
	tests := []struct {
		name  string
		flags []domain.Flag
		want  domain.DisputeStrength
	}{
		{
			name:  "no flags is weak",
			flags: nil,
			want:  domain.DisputeWeak,
		},
		{
			name:  "only low severity is moderate",
			flags: []domain.Flag{{RuleID: "P1", Severity: domain.SeverityLow}},
			want:  domain.DisputeModerate,
		},
		{
			name:  "one high is strong",
			flags: []domain.Flag{high("B1")},
			want:  domain.DisputeStrong,
		},
		{
			name:  "two high without obsolescence stays strong",
			flags: []domain.Flag{high("B1"), high("D1")},
			want:  domain.DisputeStrong,
		},
		{
			name:  "two high with expired window is definitive",
			flags: []domain.Flag{high("B1"), high("K6")},
			want:  domain.DisputeDefinitive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := Aggregate(tt.flags)
			if profile.DisputeStrength != tt.want {
				t.Errorf("strength = %s, want %s", profile.DisputeStrength, tt.want)
			}
			if profile.RecommendedApproach == "" {
				t.Error("empty recommended approach")
			}
		})
	}
}

func TestLitigationPotential(t *testing.T) {
	tests := []struct {
		name  string
		flags []domain.Flag
		want  bool
	}{
		{"two high severity", []domain.Flag{high("B1"), high("D1")}, true},
		{"willful pattern alone", []domain.Flag{high("B2")}, true},
		{"one ordinary high", []domain.Flag{high("B1")}, false},
		{"medium only", []domain.Flag{{RuleID: "B4", Severity: domain.SeverityMedium}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Aggregate(tt.flags).LitigationPotential; got != tt.want {
				t.Errorf("litigation = %v, want %v", got, tt.want)
			}
		})
	}
}

// Adding a flag must never raise the score.
func TestScoreMonotonicity(t *testing.T) {
	flags := []domain.Flag{
		{RuleID: "P1", Severity: domain.SeverityLow},
		{RuleID: "B4", Severity: domain.SeverityMedium},
		high("B1"),
		high("K6"),
		{RuleID: "Z1", Severity: domain.SeverityCritical},
	}

	prev := Aggregate(nil).OverallScore
	for i := 1; i <= len(flags); i++ {
		score := Aggregate(flags[:i]).OverallScore
		if score > prev {
			t.Fatalf("score rose from %d to %d after adding flag %d", prev, score, i)
		}
		prev = score
	}
}
