package repository

import (
	"context"
	"time"

	"github.com/mailforge/campaign-pipeline/internal/domain"
)

// SendLogRepository persists per-recipient send log entries.
//
// ClaimOrSkip is the dedup gate: a single atomic insert that is a no-op when
// a row for (campaignID, recipientEmail) already exists. It substitutes for
// a distributed lock across concurrent workers and process restarts;
// everything downstream of a successful claim may assume it runs exactly
// once per logical send.
type SendLogRepository interface {
	// ClaimOrSkip inserts a PENDING entry, ignoring conflicts on
	// (campaign_id, recipient_email). claimed is false whenever the row
	// already exists, whatever its status or originating job: existence
	// alone means the logical send was handled, so at most one SMTP
	// submission and one outcome event can ever occur per pair.
	ClaimOrSkip(ctx context.Context, campaignID, recipientEmail, jobID, recipientID string) (claimed bool, id string, err error)

	MarkSending(ctx context.Context, campaignID, recipientEmail string, attempts int) error
	MarkSent(ctx context.Context, campaignID, recipientEmail, providerMessageID string, sentAt time.Time, attempts int) error
	MarkFailed(ctx context.Context, campaignID, recipientEmail, errMsg string, failedAt time.Time, attempts int) error

	// Stats recomputes {sent, failed, pending} for a campaign from the
	// log table, not from in-memory counters, so the numbers survive
	// worker restarts.
	Stats(ctx context.Context, campaignID string) (domain.SendStats, error)
}
