package history

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// stubRepo implements domain.Repository over an in-memory snapshot list.
type stubRepo struct {
	snapshots []*domain.Snapshot
}

func (r *stubRepo) SaveSnapshot(_ context.Context, _ string, snap *domain.Snapshot) error {
	r.snapshots = append(r.snapshots, snap)
	return nil
}

func (r *stubRepo) ListSnapshots(_ context.Context, tenantID, accountID string) ([]*domain.Snapshot, error) {
	var out []*domain.Snapshot
	for _, snap := range r.snapshots {
		if snap.TenantID == tenantID && snap.AccountID == accountID {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (r *stubRepo) SaveAudit(context.Context, string, *domain.Audit) error { return nil }
func (r *stubRepo) GetAudit(context.Context, string, string) (*domain.Audit, error) {
	return nil, nil
}
func (r *stubRepo) SaveCustomRule(context.Context, string, *domain.CustomRuleConfig) error {
	return nil
}
func (r *stubRepo) GetCustomRule(context.Context, string, string) (*domain.CustomRuleConfig, error) {
	return nil, nil
}
func (r *stubRepo) ListCustomRules(context.Context, string) ([]*domain.CustomRuleConfig, error) {
	return nil, nil
}
func (r *stubRepo) ListEnabledCustomRules(context.Context) ([]*domain.CustomRuleConfig, error) {
	return nil, nil
}
func (r *stubRepo) Ping(context.Context) error { return nil }
func (r *stubRepo) Close() error               { return nil }

func TestGetHistoryOrdersByCaptureTime(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)
	ctx := context.Background()

	later := &domain.Snapshot{
		AccountID:  "acct-1",
		TenantID:   "tenant-a",
		Record:     domain.AccountRecord{domain.FieldDOFD: "2021-01-01"},
		CapturedAt: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	earlier := &domain.Snapshot{
		AccountID:  "acct-1",
		TenantID:   "tenant-a",
		Record:     domain.AccountRecord{domain.FieldDOFD: "2020-01-01"},
		CapturedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := svc.Record(ctx, "tenant-a", later); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := svc.Record(ctx, "tenant-a", earlier); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	snaps, err := svc.GetHistory(ctx, "tenant-a", "acct-1")
	if err != nil {
		t.Fatalf("get history failed: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if !snaps[0].CapturedAt.Before(snaps[1].CapturedAt) {
		t.Error("snapshots not ordered oldest first")
	}
}

func TestGetHistoryTenantIsolation(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)
	ctx := context.Background()

	svc.Record(ctx, "tenant-a", &domain.Snapshot{
		AccountID:  "acct-1",
		TenantID:   "tenant-a",
		Record:     domain.AccountRecord{},
		CapturedAt: time.Now(),
	})

	snaps, err := svc.GetHistory(ctx, "tenant-b", "acct-1")
	if err != nil {
		t.Fatalf("get history failed: %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("tenant-b saw tenant-a's snapshots: %d", len(snaps))
	}
}

func TestGetHistoryValidation(t *testing.T) {
	svc := NewService(&stubRepo{})

	if _, err := svc.GetHistory(context.Background(), "", "acct-1"); err == nil {
		t.Error("expected error for missing tenant id")
	}
	if _, err := svc.GetHistory(context.Background(), "tenant-a", ""); err == nil {
		t.Error("expected error for missing account id")
	}
}
