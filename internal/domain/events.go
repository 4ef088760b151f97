package domain

import "time"

// Event topics carried by the bus. Sender and recipient topics are published
// by the owning services; email topics by the worker.
const (
	TopicSenderCreated    = "sender.created"
	TopicSenderUpdated    = "sender.updated"
	TopicRecipientCreated = "recipient.created"
	TopicRecipientUpdated = "recipient.updated"
	TopicEmailSent        = "email.sent"
	TopicEmailFailed      = "email.failed"
)

// SenderEvent is the payload of sender.created / sender.updated.
type SenderEvent struct {
	SenderID     string `json:"senderId"`
	UserID       string `json:"userId"`
	FromEmail    string `json:"fromEmail"`
	Name         string `json:"name"`
	SMTPHost     string `json:"smtpHost"`
	SMTPPort     int    `json:"smtpPort"`
	SMTPUser     string `json:"smtpUser"`
	SMTPPassword string `json:"smtpPassword"`
	IsActive     *bool  `json:"isActive,omitempty"`
}

// RecipientEvent is the payload of recipient.created / recipient.updated.
type RecipientEvent struct {
	ID         string         `json:"id"`
	CampaignID string         `json:"campaignId"`
	Email      string         `json:"email"`
	Name       string         `json:"name,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// EmailSentEvent is the payload of email.sent.
type EmailSentEvent struct {
	CampaignID     string    `json:"campaignId"`
	JobID          string    `json:"jobId"`
	RecipientEmail string    `json:"recipientEmail"`
	SentAt         time.Time `json:"sentAt"`
	Attempts       int       `json:"attempts"`
}

// EmailFailedEvent is the payload of email.failed.
type EmailFailedEvent struct {
	CampaignID     string    `json:"campaignId"`
	JobID          string    `json:"jobId"`
	RecipientEmail string    `json:"recipientEmail"`
	Error          string    `json:"error"`
	FailedAt       time.Time `json:"failedAt"`
	Attempts       int       `json:"attempts"`
}
