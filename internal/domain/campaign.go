package domain

import "time"

// CampaignStatus tracks the lifecycle of a campaign.
type CampaignStatus string

const (
	StatusDraft     CampaignStatus = "DRAFT"
	StatusReady     CampaignStatus = "READY"
	StatusQueued    CampaignStatus = "QUEUED"
	StatusSending   CampaignStatus = "SENDING"
	StatusCompleted CampaignStatus = "COMPLETED"
	StatusFailed    CampaignStatus = "FAILED"
)

func (s CampaignStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusReady, StatusQueued, StatusSending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is defined for the status.
func (s CampaignStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CampaignAction is an externally requested state transition.
type CampaignAction string

const (
	ActionUpdate  CampaignAction = "update"
	ActionDelete  CampaignAction = "delete"
	ActionPrepare CampaignAction = "prepare"
	ActionStart   CampaignAction = "start"
)

// Allowed is the total transition function over (status x action).
// QUEUED and SENDING accept no external actions: only the aggregator moves
// campaigns out of those states, by writing derived statuses directly.
func Allowed(s CampaignStatus, a CampaignAction) bool {
	switch s {
	case StatusDraft:
		return a == ActionUpdate || a == ActionDelete || a == ActionPrepare
	case StatusReady:
		return a == ActionStart
	case StatusQueued, StatusSending, StatusCompleted, StatusFailed:
		return false
	}
	return false
}

func CanUpdate(s CampaignStatus) bool  { return Allowed(s, ActionUpdate) }
func CanDelete(s CampaignStatus) bool  { return Allowed(s, ActionDelete) }
func CanPrepare(s CampaignStatus) bool { return Allowed(s, ActionPrepare) }
func CanStart(s CampaignStatus) bool   { return Allowed(s, ActionStart) }

// EnsureTransition returns a *ConflictError when the action is not legal
// in the current status, nil otherwise.
func EnsureTransition(s CampaignStatus, a CampaignAction) error {
	if !Allowed(s, a) {
		return &ConflictError{Status: s, Action: a}
	}
	return nil
}

// Campaign is the core domain entity. sentCount and failedCount are derived
// by the aggregator from the send log; they are never written by the
// orchestrator.
type Campaign struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Name            string         `json:"name"`
	Subject         string         `json:"subject"`
	BodyHTML        string         `json:"body_html"`
	BodyText        string         `json:"body_text"`
	SenderEmail     string         `json:"sender_email"`
	Status          CampaignStatus `json:"status"`
	TotalRecipients int            `json:"total_recipients"`
	SentCount       int            `json:"sent_count"`
	FailedCount     int            `json:"failed_count"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// CreateCampaignRequest is the inbound payload for creating a campaign.
type CreateCampaignRequest struct {
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	BodyHTML    string `json:"body_html"`
	BodyText    string `json:"body_text"`
	SenderEmail string `json:"sender_email"`
}

// UpdateCampaignRequest carries optional field updates; nil means unchanged.
type UpdateCampaignRequest struct {
	Name        *string `json:"name,omitempty"`
	Subject     *string `json:"subject,omitempty"`
	BodyHTML    *string `json:"body_html,omitempty"`
	BodyText    *string `json:"body_text,omitempty"`
	SenderEmail *string `json:"sender_email,omitempty"`
}

// ListFilter holds query parameters for paginated campaign listing.
type ListFilter struct {
	Status *CampaignStatus
	Page   int
	Limit  int
}
