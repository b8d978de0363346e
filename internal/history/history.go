// Package history provides access to an account's snapshot timeline for the
// contextual rule pass and the series comparator.
package history

import (
	"context"
	"fmt"
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Service reads snapshot history through the repository.
type Service struct {
	repo domain.Repository
}

// NewService creates a new history service.
func NewService(repo domain.Repository) *Service {
	return &Service{repo: repo}
}

// GetHistory returns every stored snapshot for an account ordered by capture
// time, oldest first.
func (s *Service) GetHistory(ctx context.Context, tenantID, accountID string) ([]*domain.Snapshot, error) {
	if tenantID == "" || accountID == "" {
		return nil, fmt.Errorf("tenantID and accountID are required")
	}
	if s.repo == nil {
		return nil, fmt.Errorf("no data source available")
	}

	snaps, err := s.repo.ListSnapshots(ctx, tenantID, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].CapturedAt.Before(snaps[j].CapturedAt)
	})

	return snaps, nil
}

// Record stores a new snapshot of the account as seen during an audit.
func (s *Service) Record(ctx context.Context, tenantID string, snap *domain.Snapshot) error {
	if s.repo == nil {
		return fmt.Errorf("no data source available")
	}
	return s.repo.SaveSnapshot(ctx, tenantID, snap)
}

// Getter is the history lookup signature consumed by evaluation callers.
type Getter func(ctx context.Context, tenantID, accountID string) ([]*domain.Snapshot, error)

// GetHistoryGetter returns a Getter bound to this service.
func (s *Service) GetHistoryGetter() Getter {
	return s.GetHistory
}
