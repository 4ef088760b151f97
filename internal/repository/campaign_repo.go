package repository

import (
	"context"

	"github.com/mailforge/campaign-pipeline/internal/domain"
)

// CampaignRepository defines all persistence operations for campaigns.
// The pgx implementation is in pg_campaign_repo.go; tests use a
// hand-written mock (mock_campaign_repo.go).
type CampaignRepository interface {
	Create(ctx context.Context, c *domain.Campaign) error
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context, userID string, f domain.ListFilter) ([]*domain.Campaign, int, error)
	Update(ctx context.Context, c *domain.Campaign) error
	Delete(ctx context.Context, id string) error

	UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error

	// MarkReady atomically persists the READY status together with the
	// recipient count measured at prepare time.
	MarkReady(ctx context.Context, id string, totalRecipients int) error

	// UpdateCounts writes the derived sent/failed counters. Only the
	// aggregator calls this.
	UpdateCounts(ctx context.Context, id string, sent, failed int) error

	// FindActive returns campaigns in QUEUED or SENDING, for the settle
	// sweep.
	FindActive(ctx context.Context) ([]*domain.Campaign, error)
}
