// internal/database/db.go
package database

import (
	"fmt"
	"log"

	"social-service/internal/config"
	"social-service/pkg/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects to Postgres and migrates the full schema.
func Open(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName, cfg.DBSSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	log.Println("✅ Database connected & migrated")
	return db, nil
}

// Migrate runs AutoMigrate for every entity (safe in dev; use migrations in prod).
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.UserSession{},
		&models.RefreshToken{},
		&models.PasswordResetToken{},
		&models.Post{},
		&models.Comment{},
		&models.Like{},
		&models.Share{},
		&models.Follow{},
		&models.Message{},
		&models.Notification{},
		&models.MediaAttachment{},
		&models.ProcessingJob{},
	)
}
