package domain

import "time"

// SenderSnapshot is the local read model of a sender master record,
// refreshed only by the replicator on sender.* events. It may lag the
// owning service; the send path tolerates that staleness by design.
type SenderSnapshot struct {
	SenderID     string    `json:"sender_id"`
	UserID       string    `json:"user_id"`
	FromEmail    string    `json:"from_email"`
	Name         string    `json:"name"`
	SMTPHost     string    `json:"smtp_host"`
	SMTPPort     int       `json:"smtp_port"`
	SMTPUser     string    `json:"smtp_user"`
	SMTPPassword string    `json:"-"` // encrypted, never serialized outward
	IsActive     bool      `json:"is_active"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RecipientSnapshot is the local read model of a recipient master record.
type RecipientSnapshot struct {
	ID           string         `json:"id"`
	CampaignID   string         `json:"campaign_id"`
	Email        string         `json:"email"`
	Name         *string        `json:"name,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	LastSyncedAt time.Time      `json:"last_synced_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
