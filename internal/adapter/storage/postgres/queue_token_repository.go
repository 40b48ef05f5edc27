package postgres

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/pdv-core/internal/domain"
	"github.com/seu-repo/pdv-core/internal/ports"
)

type QueueTokenRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewQueueTokenRepository(db *gorm.DB, log *zap.Logger) ports.QueueTokenRepository {
	return &QueueTokenRepository{
		db:  db,
		log: log,
	}
}

func (r *QueueTokenRepository) MaxToken(ctx context.Context, locationID, businessDate string) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&domain.QueueToken{}).
		Where("location_id = ? AND business_date = ?", locationID, businessDate).
		Select("COALESCE(MAX(token_number), 0)").
		Scan(&max).Error
	return max, err
}

// Save inserts the issued token. The composite primary key rejects a
// duplicate number for the same location and business date, which should
// be impossible under the service-level lock; if it happens anyway it is
// surfaced as a hard error.
func (r *QueueTokenRepository) Save(ctx context.Context, token *domain.QueueToken) error {
	err := r.db.WithContext(ctx).Create(token).Error
	if err != nil {
		r.log.Error("queue token insert failed",
			zap.String("location_id", token.LocationID),
			zap.String("business_date", token.BusinessDate),
			zap.Int("token_number", token.TokenNumber),
			zap.Error(err),
		)
	}
	return err
}
