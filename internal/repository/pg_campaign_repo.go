package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mailforge/campaign-pipeline/internal/domain"
)

type pgCampaignRepository struct {
	pool *pgxpool.Pool
}

// NewPgCampaignRepository returns a CampaignRepository backed by PostgreSQL.
func NewPgCampaignRepository(pool *pgxpool.Pool) CampaignRepository {
	return &pgCampaignRepository{pool: pool}
}

const campaignColumns = `id, user_id, name, subject, body_html, body_text, sender_email,
	       status, total_recipients, sent_count, failed_count, created_at, updated_at`

func (r *pgCampaignRepository) Create(ctx context.Context, c *domain.Campaign) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO campaigns
			(id, user_id, name, subject, body_html, body_text, sender_email,
			 status, total_recipients, sent_count, failed_count, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		c.ID, c.UserID, c.Name, c.Subject, c.BodyHTML, c.BodyText, c.SenderEmail,
		c.Status, c.TotalRecipients, c.SentCount, c.FailedCount, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func (r *pgCampaignRepository) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)

	c, err := scanCampaign(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return c, err
}

func (r *pgCampaignRepository) List(ctx context.Context, userID string, f domain.ListFilter) ([]*domain.Campaign, int, error) {
	conditions := []string{"user_id = $1"}
	args := []any{userID}
	if f.Status != nil {
		args = append(args, *f.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM campaigns"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	offset := (f.Page - 1) * f.Limit
	args = append(args, f.Limit, offset)
	query := fmt.Sprintf(`SELECT `+campaignColumns+` FROM campaigns%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns, err := scanCampaigns(rows)
	return campaigns, total, err
}

func (r *pgCampaignRepository) Update(ctx context.Context, c *domain.Campaign) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns
		SET name = $1, subject = $2, body_html = $3, body_text = $4,
		    sender_email = $5, updated_at = NOW()
		WHERE id = $6`,
		c.Name, c.Subject, c.BodyHTML, c.BodyText, c.SenderEmail, c.ID)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgCampaignRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgCampaignRepository) UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}

func (r *pgCampaignRepository) MarkReady(ctx context.Context, id string, totalRecipients int) error {
	// Status and snapshot count are written in one statement so a crash
	// cannot leave a READY campaign without its locked-in count.
	_, err := r.pool.Exec(ctx, `
		UPDATE campaigns
		SET status = $1, total_recipients = $2, updated_at = NOW()
		WHERE id = $3`,
		domain.StatusReady, totalRecipients, id)
	return err
}

func (r *pgCampaignRepository) UpdateCounts(ctx context.Context, id string, sent, failed int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaigns
		SET sent_count = $1, failed_count = $2, updated_at = NOW()
		WHERE id = $3`, sent, failed, id)
	return err
}

func (r *pgCampaignRepository) FindActive(ctx context.Context) ([]*domain.Campaign, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+campaignColumns+` FROM campaigns
		 WHERE status IN ($1, $2)
		 LIMIT 500`,
		domain.StatusQueued, domain.StatusSending)
	if err != nil {
		return nil, fmt.Errorf("find active campaigns: %w", err)
	}
	defer rows.Close()
	return scanCampaigns(rows)
}

// ---- helpers ----

func scanCampaign(row pgx.Row) (*domain.Campaign, error) {
	var c domain.Campaign
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Subject, &c.BodyHTML, &c.BodyText,
		&c.SenderEmail, &c.Status, &c.TotalRecipients, &c.SentCount,
		&c.FailedCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCampaigns(rows pgx.Rows) ([]*domain.Campaign, error) {
	var result []*domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
