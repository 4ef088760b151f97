package repository

import (
	"context"
	"sync"

	"github.com/mailforge/campaign-pipeline/internal/domain"
)

// MockCampaignRepository is a hand-written, in-memory implementation of
// CampaignRepository used in unit tests. No mock-generation library needed.
type MockCampaignRepository struct {
	mu        sync.RWMutex
	campaigns map[string]*domain.Campaign

	// Optional error overrides — set in tests to simulate failure paths.
	CreateErr       error
	GetByIDErr      error
	UpdateStatusErr error
	UpdateCountsErr error
}

func NewMockCampaignRepository() *MockCampaignRepository {
	return &MockCampaignRepository{campaigns: make(map[string]*domain.Campaign)}
}

func (m *MockCampaignRepository) Create(_ context.Context, c *domain.Campaign) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *c
	m.campaigns[c.ID] = &clone
	return nil
}

func (m *MockCampaignRepository) GetByID(_ context.Context, id string) (*domain.Campaign, error) {
	if m.GetByIDErr != nil {
		return nil, m.GetByIDErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (m *MockCampaignRepository) List(_ context.Context, userID string, _ domain.ListFilter) ([]*domain.Campaign, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Campaign
	for _, c := range m.campaigns {
		if c.UserID == userID {
			clone := *c
			result = append(result, &clone)
		}
	}
	return result, len(result), nil
}

func (m *MockCampaignRepository) Update(_ context.Context, c *domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.campaigns[c.ID]
	if !ok {
		return domain.ErrNotFound
	}
	existing.Name = c.Name
	existing.Subject = c.Subject
	existing.BodyHTML = c.BodyHTML
	existing.BodyText = c.BodyText
	existing.SenderEmail = c.SenderEmail
	return nil
}

func (m *MockCampaignRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.campaigns, id)
	return nil
}

func (m *MockCampaignRepository) UpdateStatus(_ context.Context, id string, status domain.CampaignStatus) error {
	if m.UpdateStatusErr != nil {
		return m.UpdateStatusErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[id]; ok {
		c.Status = status
	}
	return nil
}

func (m *MockCampaignRepository) MarkReady(_ context.Context, id string, totalRecipients int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[id]; ok {
		c.Status = domain.StatusReady
		c.TotalRecipients = totalRecipients
	}
	return nil
}

func (m *MockCampaignRepository) UpdateCounts(_ context.Context, id string, sent, failed int) error {
	if m.UpdateCountsErr != nil {
		return m.UpdateCountsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[id]; ok {
		c.SentCount = sent
		c.FailedCount = failed
	}
	return nil
}

func (m *MockCampaignRepository) FindActive(_ context.Context) ([]*domain.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Campaign
	for _, c := range m.campaigns {
		if c.Status == domain.StatusQueued || c.Status == domain.StatusSending {
			clone := *c
			result = append(result, &clone)
		}
	}
	return result, nil
}
