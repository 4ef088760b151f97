// Package aggregator derives campaign progress from the send log. It is the
// only writer of sent/failed counters and of the derived statuses SENDING,
// COMPLETED, and FAILED.
package aggregator

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/mailforge/campaign-pipeline/internal/domain"
	"github.com/mailforge/campaign-pipeline/internal/eventbus"
	"github.com/mailforge/campaign-pipeline/internal/repository"
)

// Aggregator settles campaign progress. It reacts to email.sent and
// email.failed events, and additionally sweeps all active campaigns on a
// timer so that dropped events only delay settlement instead of losing it.
type Aggregator struct {
	campaigns repository.CampaignRepository
	sendLogs  repository.SendLogRepository
	logger    *zap.Logger
}

func New(campaigns repository.CampaignRepository, sendLogs repository.SendLogRepository, logger *zap.Logger) *Aggregator {
	return &Aggregator{campaigns: campaigns, sendLogs: sendLogs, logger: logger}
}

// Start subscribes to the email outcome topics on the bus.
func (a *Aggregator) Start(bus *eventbus.Bus) {
	bus.Subscribe(domain.TopicEmailSent, a.handleOutcome)
	bus.Subscribe(domain.TopicEmailFailed, a.handleOutcome)
}

// handleOutcome only needs campaignId; sent and failed payloads share that
// field, so both topics route through one handler.
func (a *Aggregator) handleOutcome(payload []byte) {
	var ev struct {
		CampaignID string `json:"campaignId"`
	}
	if err := json.Unmarshal(payload, &ev); err != nil || ev.CampaignID == "" {
		a.logger.Warn("malformed outcome event, dropping", zap.Error(err))
		return
	}
	if err := a.Settle(context.Background(), ev.CampaignID); err != nil {
		a.logger.Error("settle failed",
			zap.String("campaign_id", ev.CampaignID), zap.Error(err))
	}
}

// Settle recomputes a campaign's counters from the send log and applies the
// derived status:
//
//   - every recipient settled and all failed     -> FAILED
//   - every recipient settled, at least one sent -> COMPLETED
//   - QUEUED with at least one settled           -> SENDING
//
// Counters always come from Stats, never from incrementing in memory, so a
// settle after restart or duplicate events converges to the same result.
func (a *Aggregator) Settle(ctx context.Context, campaignID string) error {
	camp, err := a.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if camp.Status.Terminal() {
		return nil
	}

	stats, err := a.sendLogs.Stats(ctx, campaignID)
	if err != nil {
		return err
	}
	if err := a.campaigns.UpdateCounts(ctx, campaignID, stats.Sent, stats.Failed); err != nil {
		return err
	}

	total := camp.TotalRecipients
	if total > 0 && stats.Pending == 0 && stats.Settled() == total {
		final := domain.StatusCompleted
		if stats.Failed == total {
			final = domain.StatusFailed
		}
		if err := a.campaigns.UpdateStatus(ctx, campaignID, final); err != nil {
			return err
		}
		a.logger.Info("campaign settled",
			zap.String("campaign_id", campaignID),
			zap.String("status", string(final)),
			zap.Int("sent", stats.Sent),
			zap.Int("failed", stats.Failed))
		return nil
	}

	if camp.Status == domain.StatusQueued && stats.Settled() > 0 {
		if err := a.campaigns.UpdateStatus(ctx, campaignID, domain.StatusSending); err != nil {
			return err
		}
		a.logger.Info("campaign sending",
			zap.String("campaign_id", campaignID),
			zap.Int("settled", stats.Settled()))
	}
	return nil
}

// Run sweeps every active campaign on each tick until ctx is cancelled.
// The sweep backstops the event path: a campaign whose final outcome event
// was dropped still settles within one interval.
func (a *Aggregator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep(ctx)
		}
	}
}

func (a *Aggregator) sweep(ctx context.Context) {
	active, err := a.campaigns.FindActive(ctx)
	if err != nil {
		a.logger.Error("settle sweep: listing active campaigns failed", zap.Error(err))
		return
	}
	for _, c := range active {
		if err := a.Settle(ctx, c.ID); err != nil {
			a.logger.Error("settle sweep failed",
				zap.String("campaign_id", c.ID), zap.Error(err))
		}
	}
}
