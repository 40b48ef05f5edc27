package ticket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seu-repo/pdv-core/internal/domain"
	"github.com/seu-repo/pdv-core/internal/observability/telemetry"
	"github.com/seu-repo/pdv-core/internal/ports"
)

// StatsCacheKey caches the sync counters between status writes.
const StatsCacheKey = "pdv:sync_stats"

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrEmptyTicket    = errors.New("ticket has no items")
)

// Service is the durable local ticket store. Creating a ticket never
// touches the network; sync status is mutated afterwards by the sync
// engine through UpdateSyncStatus/the repository.
type Service struct {
	tickets  ports.TicketRepository
	tokens   ports.QueueTokenRepository
	cache    ports.Cache
	statsTTL time.Duration
	log      *zap.Logger

	// mu guards the lock table; each entry serializes queue numbering for
	// one (location, business date) pair.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(tickets ports.TicketRepository, tokens ports.QueueTokenRepository, cache ports.Cache, statsTTL time.Duration, log *zap.Logger) *Service {
	if statsTTL == 0 {
		statsTTL = 10 * time.Second
	}
	return &Service{
		tickets:  tickets,
		tokens:   tokens,
		cache:    cache,
		statsTTL: statsTTL,
		log:      log,
		locks:    make(map[string]*sync.Mutex),
	}
}

// CreateLocal assigns the ticket its identity and queue position and
// persists it as PENDING. It fails only on storage errors, which are
// fatal to the checkout and surfaced to the operator.
func (s *Service) CreateLocal(ctx context.Context, t *domain.Ticket) (string, error) {
	if len(t.Items) == 0 {
		return "", ErrEmptyTicket
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.SyncStatus = domain.SyncStatusPending
	t.SyncAttempts = 0
	t.SyncError = ""
	t.SyncedAt = nil
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	number, err := s.issueToken(ctx, t.LocationID, t.BusinessDate, t.ID)
	if err != nil {
		return "", fmt.Errorf("failed to issue queue number: %w", err)
	}
	t.TokenNumber = number

	if err := s.tickets.Save(ctx, t); err != nil {
		return "", fmt.Errorf("failed to persist ticket: %w", err)
	}

	telemetry.TicketsCreated.Inc()
	s.invalidateStats(ctx)

	s.log.Info("ticket created locally",
		zap.String("ticket_id", t.ID),
		zap.Int("token_number", t.TokenNumber),
		zap.Int64("total_cents", t.TotalCents),
	)
	return t.ID, nil
}

// UpdateSyncStatus applies a sync transition. It is idempotent: repeating
// a terminal status leaves the ticket unchanged, and synced_at is stamped
// only on the first transition to SYNCED.
func (s *Service) UpdateSyncStatus(ctx context.Context, id string, status domain.SyncStatus, syncErr string) error {
	t, err := s.tickets.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrTicketNotFound
	}

	if t.SyncStatus == status && t.SyncError == syncErr {
		return nil
	}

	t.SyncStatus = status
	t.SyncError = syncErr
	if status == domain.SyncStatusSynced && t.SyncedAt == nil {
		now := time.Now()
		t.SyncedAt = &now
	}

	if err := s.tickets.UpdateSyncResult(ctx, t); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	return nil
}

func (s *Service) GetAll(ctx context.Context) ([]domain.Ticket, error) {
	return s.tickets.FindAll(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.tickets.FindByID(ctx, id)
}

// SyncStats returns pending/failed/synced counters, served from the cache
// between status writes. Cache trouble falls back to the database.
func (s *Service) SyncStats(ctx context.Context) (domain.SyncStats, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, StatsCacheKey); err == nil {
			var stats domain.SyncStats
			if json.Unmarshal([]byte(raw), &stats) == nil {
				return stats, nil
			}
		}
	}

	stats, err := s.tickets.CountByStatus(ctx)
	if err != nil {
		return stats, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, StatsCacheKey, string(raw), s.statsTTL); err != nil {
				s.log.Debug("failed to cache sync stats", zap.Error(err))
			}
		}
	}
	return stats, nil
}

// NextQueueNumber issues the next queue position for the pair. Numbering
// starts at 1 for the first ticket of a new business date.
func (s *Service) NextQueueNumber(ctx context.Context, locationID, businessDate string) (int, error) {
	return s.issueToken(ctx, locationID, businessDate, "")
}

func (s *Service) issueToken(ctx context.Context, locationID, businessDate, ticketID string) (int, error) {
	lock := s.pairLock(locationID, businessDate)
	lock.Lock()
	defer lock.Unlock()

	max, err := s.tokens.MaxToken(ctx, locationID, businessDate)
	if err != nil {
		return 0, err
	}

	token := &domain.QueueToken{
		LocationID:   locationID,
		BusinessDate: businessDate,
		TokenNumber:  max + 1,
		TicketID:     ticketID,
		CreatedAt:    time.Now(),
	}
	if err := s.tokens.Save(ctx, token); err != nil {
		// Under the pair lock a duplicate number means the invariant is
		// broken somewhere else; fail loudly.
		return 0, fmt.Errorf("queue token %d for %s/%s rejected: %w",
			token.TokenNumber, locationID, businessDate, err)
	}
	return token.TokenNumber, nil
}

func (s *Service) pairLock(locationID, businessDate string) *sync.Mutex {
	key := locationID + "|" + businessDate
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[key] == nil {
		s.locks[key] = &sync.Mutex{}
	}
	return s.locks[key]
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, StatsCacheKey); err != nil {
		s.log.Debug("failed to invalidate stats cache", zap.Error(err))
	}
}
