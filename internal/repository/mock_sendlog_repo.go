package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mailforge/campaign-pipeline/internal/domain"
)

// MockSendLogRepository is an in-memory SendLogRepository for unit tests.
// The claim map keyed by (campaignID, recipientEmail) reproduces the unique
// constraint that backs the dedup gate in PostgreSQL.
type MockSendLogRepository struct {
	mu      sync.Mutex
	entries map[string]*domain.SendLog

	ClaimErr       error
	MarkSendingErr error
	MarkSentErr    error
	MarkFailedErr  error
	StatsErr       error
}

func NewMockSendLogRepository() *MockSendLogRepository {
	return &MockSendLogRepository{entries: make(map[string]*domain.SendLog)}
}

func logKey(campaignID, recipientEmail string) string {
	return campaignID + "|" + recipientEmail
}

func (m *MockSendLogRepository) ClaimOrSkip(_ context.Context, campaignID, recipientEmail, jobID, recipientID string) (bool, string, error) {
	if m.ClaimErr != nil {
		return false, "", m.ClaimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := logKey(campaignID, recipientEmail)
	if _, exists := m.entries[key]; exists {
		return false, "", nil
	}
	now := time.Now().UTC()
	entry := &domain.SendLog{
		ID:             uuid.New().String(),
		JobID:          jobID,
		CampaignID:     campaignID,
		RecipientID:    recipientID,
		RecipientEmail: recipientEmail,
		Status:         domain.SendPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.entries[key] = entry
	return true, entry.ID, nil
}

func (m *MockSendLogRepository) MarkSending(_ context.Context, campaignID, recipientEmail string, attempts int) error {
	if m.MarkSendingErr != nil {
		return m.MarkSendingErr
	}
	return m.update(campaignID, recipientEmail, func(e *domain.SendLog) {
		e.Status = domain.SendSending
		e.Attempts = attempts
	})
}

func (m *MockSendLogRepository) MarkSent(_ context.Context, campaignID, recipientEmail, providerMessageID string, sentAt time.Time, attempts int) error {
	if m.MarkSentErr != nil {
		return m.MarkSentErr
	}
	return m.update(campaignID, recipientEmail, func(e *domain.SendLog) {
		e.Status = domain.SendSent
		e.ProviderMessageID = &providerMessageID
		e.SentAt = &sentAt
		e.Attempts = attempts
		e.Error = nil
	})
}

func (m *MockSendLogRepository) MarkFailed(_ context.Context, campaignID, recipientEmail, errMsg string, failedAt time.Time, attempts int) error {
	if m.MarkFailedErr != nil {
		return m.MarkFailedErr
	}
	return m.update(campaignID, recipientEmail, func(e *domain.SendLog) {
		e.Status = domain.SendFailed
		e.Error = &errMsg
		e.FailedAt = &failedAt
		e.Attempts = attempts
	})
}

func (m *MockSendLogRepository) Stats(_ context.Context, campaignID string) (domain.SendStats, error) {
	if m.StatsErr != nil {
		return domain.SendStats{}, m.StatsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats domain.SendStats
	for _, e := range m.entries {
		if e.CampaignID != campaignID {
			continue
		}
		switch e.Status {
		case domain.SendSent:
			stats.Sent++
		case domain.SendFailed:
			stats.Failed++
		default:
			stats.Pending++
		}
	}
	return stats, nil
}

// Get returns the stored entry, for test assertions.
func (m *MockSendLogRepository) Get(campaignID, recipientEmail string) (*domain.SendLog, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[logKey(campaignID, recipientEmail)]
	if !ok {
		return nil, false
	}
	clone := *e
	return &clone, true
}

// Seed inserts an entry directly, bypassing the claim, for test setup.
func (m *MockSendLogRepository) Seed(e *domain.SendLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *e
	m.entries[logKey(e.CampaignID, e.RecipientEmail)] = &clone
}

// Len reports the number of stored entries, for idempotency assertions.
func (m *MockSendLogRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MockSendLogRepository) update(campaignID, recipientEmail string, fn func(*domain.SendLog)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[logKey(campaignID, recipientEmail)]
	if !ok {
		return fmt.Errorf("send log entry not found for %s/%s", campaignID, recipientEmail)
	}
	fn(e)
	e.UpdatedAt = time.Now().UTC()
	return nil
}
