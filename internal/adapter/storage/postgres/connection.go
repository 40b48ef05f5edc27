package postgres

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/seu-repo/pdv-core/internal/domain"
)

// NewConnection initializes the local PostgreSQL connection using GORM.
// The database lives on the terminal itself; losing it is a local
// durability failure, not a network condition.
func NewConnection(url string, maxOpen, maxIdle int, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(url), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}

	log.Info("Successfully connected to local PostgreSQL")
	return db, nil
}

// RunMigrations creates the ticket, queue token and workday tables.
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Ticket{},
		&domain.QueueToken{},
		&domain.Workday{},
	)
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
