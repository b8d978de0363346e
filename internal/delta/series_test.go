package delta

import (
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func snap(capturedAt string, record domain.AccountRecord) *domain.Snapshot {
	ts, err := time.Parse("2006-01-02", capturedAt)
	if err != nil {
		panic(err)
	}
	return &domain.Snapshot{AccountID: "acct-1", Record: record, CapturedAt: ts}
}

func hasInsight(insights []domain.SeriesInsight, kind string) bool {
	for _, in := range insights {
		if in.Kind == kind {
			return true
		}
	}
	return false
}

func TestSeriesRequiresTwoSnapshots(t *testing.T) {
	history := []*domain.Snapshot{
		snap("2023-01-01", domain.AccountRecord{domain.FieldDOFD: "2019-01-01"}),
	}
	current := domain.AccountRecord{domain.FieldDOFD: "2022-01-01"}

	if insights := CompareSeries(history, current); insights != nil {
		t.Errorf("series analysis ran with one snapshot: %+v", insights)
	}
	if insights := CompareSeries(nil, current); insights != nil {
		t.Errorf("series analysis ran with no history: %+v", insights)
	}
}

func TestDOFDDriftAcrossPulls(t *testing.T) {
	history := []*domain.Snapshot{
		snap("2023-01-01", domain.AccountRecord{domain.FieldDOFD: "2019-01-01"}),
		snap("2023-06-01", domain.AccountRecord{domain.FieldDOFD: "2020-01-01"}),
	}
	current := domain.AccountRecord{domain.FieldDOFD: "2021-01-01"}

	insights := CompareSeries(history, current)
	if !hasInsight(insights, domain.InsightDOFDDrift) {
		t.Fatalf("expected dofd-drift insight, got %+v", insights)
	}
	for _, in := range insights {
		if in.Kind == domain.InsightDOFDDrift {
			if in.Severity != domain.SeverityHigh {
				t.Errorf("drift severity = %s, want high", in.Severity)
			}
			if in.SpanPulls != 3 {
				t.Errorf("drift span = %d, want 3", in.SpanPulls)
			}
		}
	}
}

func TestStableDOFDYieldsNoDrift(t *testing.T) {
	history := []*domain.Snapshot{
		snap("2023-01-01", domain.AccountRecord{domain.FieldDOFD: "2019-01-01"}),
		snap("2023-06-01", domain.AccountRecord{domain.FieldDOFD: "2019-01-01"}),
	}
	current := domain.AccountRecord{domain.FieldDOFD: "2019-01-01"}

	if insights := CompareSeries(history, current); hasInsight(insights, domain.InsightDOFDDrift) {
		t.Errorf("stable DOFD produced drift insight: %+v", insights)
	}
}

func TestSeriesOrderedByCaptureTime(t *testing.T) {
	// Input order is newest-first; ordering by CapturedAt must still see
	// the drift as forward movement.
	history := []*domain.Snapshot{
		snap("2023-06-01", domain.AccountRecord{domain.FieldDOFD: "2020-01-01"}),
		snap("2023-01-01", domain.AccountRecord{domain.FieldDOFD: "2019-01-01"}),
	}
	current := domain.AccountRecord{domain.FieldDOFD: "2021-01-01"}

	insights := CompareSeries(history, current)
	if !hasInsight(insights, domain.InsightDOFDDrift) {
		t.Fatalf("capture-time ordering not applied: %+v", insights)
	}
}

func TestBalanceGrowthNeedsThreeConsecutivePulls(t *testing.T) {
	growing := []*domain.Snapshot{
		snap("2023-01-01", domain.AccountRecord{domain.FieldCurrentBalance: "1000"}),
		snap("2023-06-01", domain.AccountRecord{domain.FieldCurrentBalance: "1100"}),
	}
	current := domain.AccountRecord{domain.FieldCurrentBalance: "1250"}

	insights := CompareSeries(growing, current)
	if !hasInsight(insights, domain.InsightBalanceGrowth) {
		t.Fatalf("expected balance-growth insight, got %+v", insights)
	}

	// One increase between two pulls is not a pattern.
	flat := []*domain.Snapshot{
		snap("2023-01-01", domain.AccountRecord{domain.FieldCurrentBalance: "1000"}),
		snap("2023-06-01", domain.AccountRecord{domain.FieldCurrentBalance: "1000"}),
	}
	insights = CompareSeries(flat, current)
	if hasInsight(insights, domain.InsightBalanceGrowth) {
		t.Errorf("single increase reported as growth pattern: %+v", insights)
	}
}

func TestReinsertionLoop(t *testing.T) {
	history := []*domain.Snapshot{
		snap("2023-01-01", domain.AccountRecord{domain.FieldAccountStatus: "open"}),
		snap("2023-04-01", domain.AccountRecord{domain.FieldAccountStatus: "paid, closed"}),
	}
	current := domain.AccountRecord{domain.FieldAccountStatus: "open"}

	insights := CompareSeries(history, current)
	if !hasInsight(insights, domain.InsightReinsertionLoop) {
		t.Fatalf("expected reinsertion-loop insight, got %+v", insights)
	}
}

func TestHealthySeriesYieldsNoInsights(t *testing.T) {
	history := []*domain.Snapshot{
		snap("2023-01-01", domain.AccountRecord{
			domain.FieldDOFD:           "2020-01-01",
			domain.FieldCurrentBalance: "900",
			domain.FieldAccountStatus:  "open",
		}),
		snap("2023-06-01", domain.AccountRecord{
			domain.FieldDOFD:           "2020-01-01",
			domain.FieldCurrentBalance: "800",
			domain.FieldAccountStatus:  "open",
		}),
	}
	current := domain.AccountRecord{
		domain.FieldDOFD:           "2020-01-01",
		domain.FieldCurrentBalance: "700",
		domain.FieldAccountStatus:  "paid, closed",
	}

	if insights := CompareSeries(history, current); len(insights) != 0 {
		t.Errorf("healthy series produced insights: %+v", insights)
	}
}
