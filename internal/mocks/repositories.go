package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/seu-repo/pdv-core/internal/domain"
)

// MockTicketRepository is a mock implementation of TicketRepository
type MockTicketRepository struct {
	SaveFunc                func(ctx context.Context, t *domain.Ticket) error
	FindByIDFunc            func(ctx context.Context, id string) (*domain.Ticket, error)
	FindAllFunc             func(ctx context.Context) ([]domain.Ticket, error)
	FindBySyncStatusFunc    func(ctx context.Context, statuses ...domain.SyncStatus) ([]domain.Ticket, error)
	FindByBusinessDateFunc  func(ctx context.Context, locationID, businessDate string) ([]domain.Ticket, error)
	MarkSyncingFunc         func(ctx context.Context, id string, from ...domain.SyncStatus) (bool, error)
	ReleaseStaleSyncingFunc func(ctx context.Context, olderThan time.Duration) (int64, error)
	UpdateSyncResultFunc    func(ctx context.Context, t *domain.Ticket) error
	CountByStatusFunc       func(ctx context.Context) (domain.SyncStats, error)
}

func (m *MockTicketRepository) Save(ctx context.Context, t *domain.Ticket) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, t)
	}
	return nil
}

func (m *MockTicketRepository) FindByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockTicketRepository) FindAll(ctx context.Context) ([]domain.Ticket, error) {
	if m.FindAllFunc != nil {
		return m.FindAllFunc(ctx)
	}
	return nil, nil
}

func (m *MockTicketRepository) FindBySyncStatus(ctx context.Context, statuses ...domain.SyncStatus) ([]domain.Ticket, error) {
	if m.FindBySyncStatusFunc != nil {
		return m.FindBySyncStatusFunc(ctx, statuses...)
	}
	return nil, nil
}

func (m *MockTicketRepository) FindByBusinessDate(ctx context.Context, locationID, businessDate string) ([]domain.Ticket, error) {
	if m.FindByBusinessDateFunc != nil {
		return m.FindByBusinessDateFunc(ctx, locationID, businessDate)
	}
	return nil, nil
}

func (m *MockTicketRepository) MarkSyncing(ctx context.Context, id string, from ...domain.SyncStatus) (bool, error) {
	if m.MarkSyncingFunc != nil {
		return m.MarkSyncingFunc(ctx, id, from...)
	}
	return true, nil
}

func (m *MockTicketRepository) ReleaseStaleSyncing(ctx context.Context, olderThan time.Duration) (int64, error) {
	if m.ReleaseStaleSyncingFunc != nil {
		return m.ReleaseStaleSyncingFunc(ctx, olderThan)
	}
	return 0, nil
}

func (m *MockTicketRepository) UpdateSyncResult(ctx context.Context, t *domain.Ticket) error {
	if m.UpdateSyncResultFunc != nil {
		return m.UpdateSyncResultFunc(ctx, t)
	}
	return nil
}

func (m *MockTicketRepository) CountByStatus(ctx context.Context) (domain.SyncStats, error) {
	if m.CountByStatusFunc != nil {
		return m.CountByStatusFunc(ctx)
	}
	return domain.SyncStats{}, nil
}

// InMemoryTicketRepository is a map-backed TicketRepository for tests that
// need real state transitions, including the MarkSyncing guard.
type InMemoryTicketRepository struct {
	mu      sync.Mutex
	Tickets map[string]*domain.Ticket
}

func NewInMemoryTicketRepository() *InMemoryTicketRepository {
	return &InMemoryTicketRepository{Tickets: make(map[string]*domain.Ticket)}
}

func (r *InMemoryTicketRepository) Save(ctx context.Context, t *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.Tickets[t.ID] = &cp
	return nil
}

func (r *InMemoryTicketRepository) FindByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.Tickets[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *InMemoryTicketRepository) FindAll(ctx context.Context) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Ticket, 0, len(r.Tickets))
	for _, t := range r.Tickets {
		out = append(out, *t)
	}
	return out, nil
}

func (r *InMemoryTicketRepository) FindBySyncStatus(ctx context.Context, statuses ...domain.SyncStatus) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.Tickets {
		for _, s := range statuses {
			if t.SyncStatus == s {
				out = append(out, *t)
				break
			}
		}
	}
	return out, nil
}

func (r *InMemoryTicketRepository) FindByBusinessDate(ctx context.Context, locationID, businessDate string) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.Tickets {
		if t.LocationID == locationID && t.BusinessDate == businessDate {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *InMemoryTicketRepository) MarkSyncing(ctx context.Context, id string, from ...domain.SyncStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.Tickets[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if t.SyncStatus == s {
			t.SyncStatus = domain.SyncStatusSyncing
			now := time.Now()
			t.SyncingAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (r *InMemoryTicketRepository) ReleaseStaleSyncing(ctx context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var released int64
	for _, t := range r.Tickets {
		if t.SyncStatus != domain.SyncStatusSyncing {
			continue
		}
		if t.SyncingAt == nil || t.SyncingAt.Before(cutoff) {
			t.SyncStatus = domain.SyncStatusPending
			t.SyncingAt = nil
			released++
		}
	}
	return released, nil
}

func (r *InMemoryTicketRepository) UpdateSyncResult(ctx context.Context, t *domain.Ticket) error {
	t.SyncingAt = nil
	return r.Save(ctx, t)
}

func (r *InMemoryTicketRepository) CountByStatus(ctx context.Context) (domain.SyncStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats domain.SyncStats
	for _, t := range r.Tickets {
		switch t.SyncStatus {
		case domain.SyncStatusSynced:
			stats.Synced++
		case domain.SyncStatusFailed:
			stats.Failed++
		default:
			stats.Pending++
		}
	}
	return stats, nil
}

// MockQueueTokenRepository is a mock implementation of QueueTokenRepository
type MockQueueTokenRepository struct {
	mu           sync.Mutex
	max          map[string]int
	MaxTokenFunc func(ctx context.Context, locationID, businessDate string) (int, error)
	SaveFunc     func(ctx context.Context, token *domain.QueueToken) error
}

func NewMockQueueTokenRepository() *MockQueueTokenRepository {
	return &MockQueueTokenRepository{max: make(map[string]int)}
}

func (m *MockQueueTokenRepository) MaxToken(ctx context.Context, locationID, businessDate string) (int, error) {
	if m.MaxTokenFunc != nil {
		return m.MaxTokenFunc(ctx, locationID, businessDate)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.max[locationID+"|"+businessDate], nil
}

func (m *MockQueueTokenRepository) Save(ctx context.Context, token *domain.QueueToken) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := token.LocationID + "|" + token.BusinessDate
	if token.TokenNumber > m.max[key] {
		m.max[key] = token.TokenNumber
	}
	return nil
}

// MockWorkdayRepository is a mock implementation of WorkdayRepository
type MockWorkdayRepository struct {
	SaveFunc     func(ctx context.Context, w *domain.Workday) error
	FindOpenFunc func(ctx context.Context, locationID string) (*domain.Workday, error)
	FindByIDFunc func(ctx context.Context, id string) (*domain.Workday, error)
}

func (m *MockWorkdayRepository) Save(ctx context.Context, w *domain.Workday) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, w)
	}
	return nil
}

func (m *MockWorkdayRepository) FindOpen(ctx context.Context, locationID string) (*domain.Workday, error) {
	if m.FindOpenFunc != nil {
		return m.FindOpenFunc(ctx, locationID)
	}
	return nil, nil
}

func (m *MockWorkdayRepository) FindByID(ctx context.Context, id string) (*domain.Workday, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}
