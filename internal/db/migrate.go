package db

import (
	"fmt"

	"github.com/avnova/sqyros/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table the service owns.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.UserProfile{},
		&models.UsageLog{},
		&models.MonthlyUsage{},
		&models.RuntimeSetting{},
	); errMigrate != nil {
		return fmt.Errorf("db: auto migrate: %w", errMigrate)
	}
	return nil
}
