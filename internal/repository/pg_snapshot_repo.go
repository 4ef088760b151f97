package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mailforge/campaign-pipeline/internal/domain"
)

type pgSenderSnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewPgSenderSnapshotRepository returns a SenderSnapshotRepository backed by
// PostgreSQL.
func NewPgSenderSnapshotRepository(pool *pgxpool.Pool) SenderSnapshotRepository {
	return &pgSenderSnapshotRepository{pool: pool}
}

// Upsert is a keyed upsert on the origin sender id: the replicator is the
// single writer per row, so last-write-wins on the full column set is safe.
func (r *pgSenderSnapshotRepository) Upsert(ctx context.Context, s *domain.SenderSnapshot) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sender_snapshots
			(sender_id, user_id, from_email, name, smtp_host, smtp_port,
			 smtp_user, smtp_password, is_active, last_synced_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW())
		ON CONFLICT (sender_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			from_email = EXCLUDED.from_email,
			name = EXCLUDED.name,
			smtp_host = EXCLUDED.smtp_host,
			smtp_port = EXCLUDED.smtp_port,
			smtp_user = EXCLUDED.smtp_user,
			smtp_password = EXCLUDED.smtp_password,
			is_active = EXCLUDED.is_active,
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = NOW()`,
		s.SenderID, s.UserID, s.FromEmail, s.Name, s.SMTPHost, s.SMTPPort,
		s.SMTPUser, s.SMTPPassword, s.IsActive, s.LastSyncedAt)
	if err != nil {
		return fmt.Errorf("upsert sender snapshot: %w", err)
	}
	return nil
}

func (r *pgSenderSnapshotRepository) GetByEmailAndUser(ctx context.Context, fromEmail, userID string) (*domain.SenderSnapshot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT sender_id, user_id, from_email, name, smtp_host, smtp_port,
		       smtp_user, smtp_password, is_active, last_synced_at, created_at, updated_at
		FROM sender_snapshots
		WHERE from_email = $1 AND user_id = $2`, fromEmail, userID)

	var s domain.SenderSnapshot
	err := row.Scan(
		&s.SenderID, &s.UserID, &s.FromEmail, &s.Name, &s.SMTPHost, &s.SMTPPort,
		&s.SMTPUser, &s.SMTPPassword, &s.IsActive, &s.LastSyncedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sender snapshot: %w", err)
	}
	return &s, nil
}

type pgRecipientSnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewPgRecipientSnapshotRepository returns a RecipientSnapshotRepository
// backed by PostgreSQL.
func NewPgRecipientSnapshotRepository(pool *pgxpool.Pool) RecipientSnapshotRepository {
	return &pgRecipientSnapshotRepository{pool: pool}
}

func (r *pgRecipientSnapshotRepository) Upsert(ctx context.Context, rs *domain.RecipientSnapshot) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO recipient_snapshots
			(id, campaign_id, email, name, metadata, last_synced_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())
		ON CONFLICT (id) DO UPDATE SET
			campaign_id = EXCLUDED.campaign_id,
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			metadata = EXCLUDED.metadata,
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = NOW()`,
		rs.ID, rs.CampaignID, rs.Email, rs.Name, rs.Metadata, rs.LastSyncedAt)
	if err != nil {
		return fmt.Errorf("upsert recipient snapshot: %w", err)
	}
	return nil
}

func (r *pgRecipientSnapshotRepository) ListByCampaign(ctx context.Context, campaignID string) ([]*domain.RecipientSnapshot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, campaign_id, email, name, metadata, last_synced_at, created_at, updated_at
		FROM recipient_snapshots
		WHERE campaign_id = $1
		ORDER BY created_at ASC`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list recipient snapshots: %w", err)
	}
	defer rows.Close()

	var result []*domain.RecipientSnapshot
	for rows.Next() {
		var rs domain.RecipientSnapshot
		if err := rows.Scan(
			&rs.ID, &rs.CampaignID, &rs.Email, &rs.Name, &rs.Metadata,
			&rs.LastSyncedAt, &rs.CreatedAt, &rs.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &rs)
	}
	return result, rows.Err()
}

func (r *pgRecipientSnapshotRepository) CountByCampaign(ctx context.Context, campaignID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM recipient_snapshots WHERE campaign_id = $1`, campaignID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recipient snapshots: %w", err)
	}
	return count, nil
}
