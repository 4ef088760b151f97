// Package replicator keeps the local sender and recipient read models in
// sync with their owning services by consuming their change events.
package replicator

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/mailforge/campaign-pipeline/internal/domain"
	"github.com/mailforge/campaign-pipeline/internal/eventbus"
	"github.com/mailforge/campaign-pipeline/internal/repository"
)

// SenderReplicator applies sender.created / sender.updated events to the
// sender snapshot table. Malformed events are logged and dropped; the next
// well-formed event for the same sender repairs the snapshot.
type SenderReplicator struct {
	repo   repository.SenderSnapshotRepository
	logger *zap.Logger
}

func NewSenderReplicator(repo repository.SenderSnapshotRepository, logger *zap.Logger) *SenderReplicator {
	return &SenderReplicator{repo: repo, logger: logger}
}

// Start subscribes to the sender topics on the bus.
func (r *SenderReplicator) Start(bus *eventbus.Bus) {
	bus.Subscribe(domain.TopicSenderCreated, r.handle)
	bus.Subscribe(domain.TopicSenderUpdated, r.handle)
}

func (r *SenderReplicator) handle(payload []byte) {
	var ev domain.SenderEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		r.logger.Warn("malformed sender event, dropping", zap.Error(err))
		return
	}
	if ev.SenderID == "" || ev.UserID == "" || ev.FromEmail == "" {
		r.logger.Warn("sender event missing required fields, dropping",
			zap.String("sender_id", ev.SenderID))
		return
	}

	active := true
	if ev.IsActive != nil {
		active = *ev.IsActive
	}
	now := time.Now().UTC()
	snap := &domain.SenderSnapshot{
		SenderID:     ev.SenderID,
		UserID:       ev.UserID,
		FromEmail:    ev.FromEmail,
		Name:         ev.Name,
		SMTPHost:     ev.SMTPHost,
		SMTPPort:     ev.SMTPPort,
		SMTPUser:     ev.SMTPUser,
		SMTPPassword: ev.SMTPPassword,
		IsActive:     active,
		LastSyncedAt: now,
	}
	if err := r.repo.Upsert(context.Background(), snap); err != nil {
		r.logger.Error("sender snapshot upsert failed",
			zap.String("sender_id", ev.SenderID), zap.Error(err))
		return
	}
	r.logger.Info("sender snapshot synced",
		zap.String("sender_id", ev.SenderID),
		zap.String("from_email", ev.FromEmail))
}

// RecipientReplicator applies recipient.created / recipient.updated events
// to the recipient snapshot table.
type RecipientReplicator struct {
	repo   repository.RecipientSnapshotRepository
	logger *zap.Logger
}

func NewRecipientReplicator(repo repository.RecipientSnapshotRepository, logger *zap.Logger) *RecipientReplicator {
	return &RecipientReplicator{repo: repo, logger: logger}
}

// Start subscribes to the recipient topics on the bus.
func (r *RecipientReplicator) Start(bus *eventbus.Bus) {
	bus.Subscribe(domain.TopicRecipientCreated, r.handle)
	bus.Subscribe(domain.TopicRecipientUpdated, r.handle)
}

func (r *RecipientReplicator) handle(payload []byte) {
	var ev domain.RecipientEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		r.logger.Warn("malformed recipient event, dropping", zap.Error(err))
		return
	}
	if ev.ID == "" || ev.CampaignID == "" || ev.Email == "" {
		r.logger.Warn("recipient event missing required fields, dropping",
			zap.String("id", ev.ID))
		return
	}

	var name *string
	if ev.Name != "" {
		name = &ev.Name
	}
	snap := &domain.RecipientSnapshot{
		ID:           ev.ID,
		CampaignID:   ev.CampaignID,
		Email:        ev.Email,
		Name:         name,
		Metadata:     ev.Metadata,
		LastSyncedAt: time.Now().UTC(),
	}
	if err := r.repo.Upsert(context.Background(), snap); err != nil {
		r.logger.Error("recipient snapshot upsert failed",
			zap.String("id", ev.ID), zap.Error(err))
		return
	}
	r.logger.Info("recipient snapshot synced",
		zap.String("id", ev.ID),
		zap.String("campaign_id", ev.CampaignID))
}
