package postgres

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/pdv-core/internal/domain"
	"github.com/seu-repo/pdv-core/internal/ports"
)

type TicketRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewTicketRepository(db *gorm.DB, log *zap.Logger) ports.TicketRepository {
	return &TicketRepository{
		db:  db,
		log: log,
	}
}

func (r *TicketRepository) Save(ctx context.Context, t *domain.Ticket) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *TicketRepository) FindByID(ctx context.Context, id string) (*domain.Ticket, error) {
	var t domain.Ticket
	err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *TicketRepository) FindAll(ctx context.Context) ([]domain.Ticket, error) {
	var tickets []domain.Ticket
	err := r.db.WithContext(ctx).Order("created_at desc").Find(&tickets).Error
	return tickets, err
}

func (r *TicketRepository) FindBySyncStatus(ctx context.Context, statuses ...domain.SyncStatus) ([]domain.Ticket, error) {
	var tickets []domain.Ticket
	err := r.db.WithContext(ctx).
		Where("sync_status IN ?", statuses).
		Order("created_at asc").
		Find(&tickets).Error
	return tickets, err
}

func (r *TicketRepository) FindByBusinessDate(ctx context.Context, locationID, businessDate string) ([]domain.Ticket, error) {
	var tickets []domain.Ticket
	err := r.db.WithContext(ctx).
		Where("location_id = ? AND business_date = ?", locationID, businessDate).
		Order("token_number asc").
		Find(&tickets).Error
	return tickets, err
}

// MarkSyncing is a compare-and-set: the UPDATE only matches while the
// ticket still holds one of the expected statuses, so two concurrent sync
// passes cannot both claim the same ticket.
func (r *TicketRepository) MarkSyncing(ctx context.Context, id string, from ...domain.SyncStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Ticket{}).
		Where("id = ? AND sync_status IN ?", id, from).
		Updates(map[string]interface{}{
			"sync_status": domain.SyncStatusSyncing,
			"syncing_at":  time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseStaleSyncing returns abandoned claims to PENDING. A missing
// syncing_at stamp counts as stale: it can only mean the claim predates
// the stamping or the row was written by hand.
func (r *TicketRepository) ReleaseStaleSyncing(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := r.db.WithContext(ctx).
		Model(&domain.Ticket{}).
		Where("sync_status = ? AND (syncing_at IS NULL OR syncing_at < ?)", domain.SyncStatusSyncing, cutoff).
		Updates(map[string]interface{}{
			"sync_status": domain.SyncStatusPending,
			"syncing_at":  nil,
		})
	return res.RowsAffected, res.Error
}

func (r *TicketRepository) UpdateSyncResult(ctx context.Context, t *domain.Ticket) error {
	return r.db.WithContext(ctx).
		Model(&domain.Ticket{}).
		Where("id = ?", t.ID).
		Updates(map[string]interface{}{
			"sync_status":   t.SyncStatus,
			"sync_attempts": t.SyncAttempts,
			"sync_error":    t.SyncError,
			"remote_id":     t.RemoteID,
			"synced_at":     t.SyncedAt,
			"syncing_at":    nil,
		}).Error
}

func (r *TicketRepository) CountByStatus(ctx context.Context) (domain.SyncStats, error) {
	var stats domain.SyncStats
	type row struct {
		SyncStatus domain.SyncStatus
		N          int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&domain.Ticket{}).
		Select("sync_status, count(*) as n").
		Group("sync_status").
		Scan(&rows).Error
	if err != nil {
		return stats, err
	}
	for _, rw := range rows {
		switch rw.SyncStatus {
		case domain.SyncStatusPending, domain.SyncStatusSyncing:
			stats.Pending += rw.N
		case domain.SyncStatusFailed:
			stats.Failed += rw.N
		case domain.SyncStatusSynced:
			stats.Synced += rw.N
		}
	}
	return stats, nil
}
