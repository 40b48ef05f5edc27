package postgres

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/pdv-core/internal/domain"
	"github.com/seu-repo/pdv-core/internal/ports"
)

type WorkdayRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewWorkdayRepository(db *gorm.DB, log *zap.Logger) ports.WorkdayRepository {
	return &WorkdayRepository{
		db:  db,
		log: log,
	}
}

func (r *WorkdayRepository) Save(ctx context.Context, w *domain.Workday) error {
	return r.db.WithContext(ctx).Save(w).Error
}

func (r *WorkdayRepository) FindOpen(ctx context.Context, locationID string) (*domain.Workday, error) {
	var w domain.Workday
	err := r.db.WithContext(ctx).
		Where("location_id = ? AND closed_at IS NULL", locationID).
		Order("opened_at desc").
		First(&w).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

func (r *WorkdayRepository) FindByID(ctx context.Context, id string) (*domain.Workday, error) {
	var w domain.Workday
	err := r.db.WithContext(ctx).First(&w, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}
