package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mailforge/campaign-pipeline/internal/domain"
)

type pgSendLogRepository struct {
	pool *pgxpool.Pool
}

// NewPgSendLogRepository returns a SendLogRepository backed by PostgreSQL.
func NewPgSendLogRepository(pool *pgxpool.Pool) SendLogRepository {
	return &pgSendLogRepository{pool: pool}
}

// ClaimOrSkip relies on the unique index over (campaign_id, recipient_email):
// ON CONFLICT DO NOTHING makes the insert a silent no-op when the pair was
// already claimed, and RETURNING id distinguishes the two outcomes in a
// single round trip. Two workers racing on the same pair cannot both see a
// returned row.
func (r *pgSendLogRepository) ClaimOrSkip(ctx context.Context, campaignID, recipientEmail, jobID, recipientID string) (bool, string, error) {
	id := uuid.New().String()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO send_logs
			(id, job_id, campaign_id, recipient_id, recipient_email, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, NOW(), NOW())
		ON CONFLICT (campaign_id, recipient_email) DO NOTHING
		RETURNING id`,
		id, jobID, campaignID, recipientID, recipientEmail, domain.SendPending)

	var insertedID string
	err := row.Scan(&insertedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("claim send log: %w", err)
	}
	return true, insertedID, nil
}

func (r *pgSendLogRepository) MarkSending(ctx context.Context, campaignID, recipientEmail string, attempts int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE send_logs
		SET status = $1, attempts = $2, updated_at = NOW()
		WHERE campaign_id = $3 AND recipient_email = $4`,
		domain.SendSending, attempts, campaignID, recipientEmail)
	return err
}

func (r *pgSendLogRepository) MarkSent(ctx context.Context, campaignID, recipientEmail, providerMessageID string, sentAt time.Time, attempts int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE send_logs
		SET status = $1, provider_message_id = $2, sent_at = $3, attempts = $4,
		    error = NULL, updated_at = NOW()
		WHERE campaign_id = $5 AND recipient_email = $6`,
		domain.SendSent, providerMessageID, sentAt, attempts, campaignID, recipientEmail)
	return err
}

func (r *pgSendLogRepository) MarkFailed(ctx context.Context, campaignID, recipientEmail, errMsg string, failedAt time.Time, attempts int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE send_logs
		SET status = $1, error = $2, failed_at = $3, attempts = $4, updated_at = NOW()
		WHERE campaign_id = $5 AND recipient_email = $6`,
		domain.SendFailed, errMsg, failedAt, attempts, campaignID, recipientEmail)
	return err
}

func (r *pgSendLogRepository) Stats(ctx context.Context, campaignID string) (domain.SendStats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM send_logs
		WHERE campaign_id = $1
		GROUP BY status`, campaignID)
	if err != nil {
		return domain.SendStats{}, fmt.Errorf("send log stats: %w", err)
	}
	defer rows.Close()

	var stats domain.SendStats
	for rows.Next() {
		var status domain.SendLogStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return domain.SendStats{}, err
		}
		switch status {
		case domain.SendSent:
			stats.Sent = count
		case domain.SendFailed:
			stats.Failed = count
		case domain.SendPending, domain.SendSending:
			stats.Pending += count
		}
	}
	return stats, rows.Err()
}
