package domain

import "time"

// SendLogStatus tracks the per-recipient send pipeline.
type SendLogStatus string

const (
	SendPending SendLogStatus = "PENDING"
	SendSending SendLogStatus = "SENDING"
	SendSent    SendLogStatus = "SENT"
	SendFailed  SendLogStatus = "FAILED"
)

// SendLog is one row per (campaign, recipient email). The unique constraint
// on that pair is the only mutual-exclusion primitive in the system: the
// worker's insert-or-skip against it is what makes sends idempotent across
// concurrent workers, retries, and restarts.
type SendLog struct {
	ID                string        `json:"id"`
	JobID             string        `json:"job_id"`
	CampaignID        string        `json:"campaign_id"`
	RecipientID       string        `json:"recipient_id"`
	RecipientEmail    string        `json:"recipient_email"`
	Status            SendLogStatus `json:"status"`
	ProviderMessageID *string       `json:"provider_message_id,omitempty"`
	Error             *string       `json:"error,omitempty"`
	Attempts          int           `json:"attempts"`
	SentAt            *time.Time    `json:"sent_at,omitempty"`
	FailedAt          *time.Time    `json:"failed_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// SendStats are per-campaign counts recomputed from the send log.
type SendStats struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}

// Settled is the number of entries in a terminal state.
func (s SendStats) Settled() int { return s.Sent + s.Failed }
