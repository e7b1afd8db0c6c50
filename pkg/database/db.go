package database

import (
	"fmt"
	"log/slog"

	"coolmon/pkg/config"
	"coolmon/pkg/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect initializes the database connection
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("Connected to database", "component", "Database")
	return db, nil
}

// Migrate creates or updates the schema, including the partial unique
// index that backs alert deduplication.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.HeatExchanger{},
		&models.Reading{},
		&models.Alert{},
		&models.SystemSettings{},
	)
}
