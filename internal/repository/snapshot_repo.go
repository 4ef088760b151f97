package repository

import (
	"context"

	"github.com/mailforge/campaign-pipeline/internal/domain"
)

// SenderSnapshotRepository stores the sender read model. Only the replicator
// writes; the orchestrator reads at dispatch time so the send path needs no
// synchronous call to the owning service.
type SenderSnapshotRepository interface {
	Upsert(ctx context.Context, s *domain.SenderSnapshot) error
	GetByEmailAndUser(ctx context.Context, fromEmail, userID string) (*domain.SenderSnapshot, error)
}

// RecipientSnapshotRepository stores the recipient read model.
type RecipientSnapshotRepository interface {
	Upsert(ctx context.Context, r *domain.RecipientSnapshot) error
	ListByCampaign(ctx context.Context, campaignID string) ([]*domain.RecipientSnapshot, error)
	CountByCampaign(ctx context.Context, campaignID string) (int, error)
}
