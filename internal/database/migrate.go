package database

import (
	"fmt"

	"github.com/xpanvictor/telly/internal/repository/usage"
	"gorm.io/gorm"
)

func MigrateDB(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&usage.UserBalanceEntity{},
		&usage.UsageRecordEntity{},
		&usage.PaymentEntity{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
