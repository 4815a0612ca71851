package onboarding

import (
	"database/sql"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Migrate creates or updates the onboarding_records table on an existing
// connection pool.
func Migrate(db *sql.DB) error {
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("open gorm session: %w", err)
	}
	if err := gdb.AutoMigrate(&recordRow{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
