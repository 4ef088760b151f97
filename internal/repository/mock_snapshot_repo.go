package repository

import (
	"context"
	"sync"

	"github.com/mailforge/campaign-pipeline/internal/domain"
)

// MockSenderSnapshotRepository is an in-memory SenderSnapshotRepository for
// unit tests.
type MockSenderSnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[string]*domain.SenderSnapshot // keyed by origin sender id

	UpsertErr error
}

func NewMockSenderSnapshotRepository() *MockSenderSnapshotRepository {
	return &MockSenderSnapshotRepository{snapshots: make(map[string]*domain.SenderSnapshot)}
}

func (m *MockSenderSnapshotRepository) Upsert(_ context.Context, s *domain.SenderSnapshot) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *s
	m.snapshots[s.SenderID] = &clone
	return nil
}

func (m *MockSenderSnapshotRepository) GetByEmailAndUser(_ context.Context, fromEmail, userID string) (*domain.SenderSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.snapshots {
		if s.FromEmail == fromEmail && s.UserID == userID {
			clone := *s
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

// GetBySenderID returns a snapshot by origin id, for test assertions.
func (m *MockSenderSnapshotRepository) GetBySenderID(senderID string) (*domain.SenderSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snapshots[senderID]
	if !ok {
		return nil, false
	}
	clone := *s
	return &clone, true
}

// MockRecipientSnapshotRepository is an in-memory
// RecipientSnapshotRepository for unit tests.
type MockRecipientSnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[string]*domain.RecipientSnapshot // keyed by origin recipient id

	UpsertErr error
	CountErr  error
}

func NewMockRecipientSnapshotRepository() *MockRecipientSnapshotRepository {
	return &MockRecipientSnapshotRepository{snapshots: make(map[string]*domain.RecipientSnapshot)}
}

func (m *MockRecipientSnapshotRepository) Upsert(_ context.Context, r *domain.RecipientSnapshot) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *r
	m.snapshots[r.ID] = &clone
	return nil
}

func (m *MockRecipientSnapshotRepository) ListByCampaign(_ context.Context, campaignID string) ([]*domain.RecipientSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.RecipientSnapshot
	for _, r := range m.snapshots {
		if r.CampaignID == campaignID {
			clone := *r
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (m *MockRecipientSnapshotRepository) CountByCampaign(_ context.Context, campaignID string) (int, error) {
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, r := range m.snapshots {
		if r.CampaignID == campaignID {
			count++
		}
	}
	return count, nil
}

// GetByID returns a snapshot by origin id, for test assertions.
func (m *MockRecipientSnapshotRepository) GetByID(id string) (*domain.RecipientSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.snapshots[id]
	if !ok {
		return nil, false
	}
	clone := *r
	return &clone, true
}
