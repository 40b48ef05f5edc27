package ports

import (
	"context"
	"time"

	"github.com/seu-repo/pdv-core/internal/domain"
)

// TicketRepository persists tickets in local storage. Write failures here
// are local durability failures and are always surfaced to the caller.
type TicketRepository interface {
	Save(ctx context.Context, t *domain.Ticket) error
	FindByID(ctx context.Context, id string) (*domain.Ticket, error)
	FindAll(ctx context.Context) ([]domain.Ticket, error)
	FindBySyncStatus(ctx context.Context, statuses ...domain.SyncStatus) ([]domain.Ticket, error)
	FindByBusinessDate(ctx context.Context, locationID, businessDate string) ([]domain.Ticket, error)

	// MarkSyncing transitions id to SYNCING only when its current status
	// is one of from, and reports whether the transition was taken. This
	// is the at-most-one-in-flight guard for concurrent sync passes.
	MarkSyncing(ctx context.Context, id string, from ...domain.SyncStatus) (bool, error)

	// ReleaseStaleSyncing returns SYNCING tickets whose claim is older
	// than olderThan to PENDING, reporting how many were released. This
	// recovers tickets abandoned by a crash between the claim and the
	// result write.
	ReleaseStaleSyncing(ctx context.Context, olderThan time.Duration) (int64, error)

	UpdateSyncResult(ctx context.Context, t *domain.Ticket) error
	CountByStatus(ctx context.Context) (domain.SyncStats, error)
}

// QueueTokenRepository persists issued queue positions.
type QueueTokenRepository interface {
	// MaxToken returns the highest token number issued for the pair, or 0
	// when the business date has no tickets yet.
	MaxToken(ctx context.Context, locationID, businessDate string) (int, error)
	Save(ctx context.Context, token *domain.QueueToken) error
}

// WorkdayRepository persists workday records.
type WorkdayRepository interface {
	Save(ctx context.Context, w *domain.Workday) error
	FindOpen(ctx context.Context, locationID string) (*domain.Workday, error)
	FindByID(ctx context.Context, id string) (*domain.Workday, error)
}
