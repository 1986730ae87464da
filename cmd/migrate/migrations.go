package main

import (
	"gorm.io/gorm"

	"github.com/rfp-studio/engine/internal/models"
)

// registerModels returns all models that need migration
func registerModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.RFP{},
		&models.Document{},
		&models.Notification{},
	}
}

// runMigrations executes all database migrations
func runMigrations(db *gorm.DB) error {
	// gen_random_uuid() defaults need pgcrypto before the tables exist.
	if err := enableUUIDExtension(db); err != nil {
		return err
	}

	if err := db.AutoMigrate(registerModels()...); err != nil {
		return err
	}

	return runCustomMigrations(db)
}

// runCustomMigrations handles schema changes AutoMigrate can't handle
func runCustomMigrations(db *gorm.DB) error {
	migrations := []func(*gorm.DB) error{
		addResponseIndexes,
		addNotificationIndexes,
	}

	for _, migration := range migrations {
		if err := migration(db); err != nil {
			return err
		}
	}

	return nil
}

func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error
}

// addResponseIndexes speeds up "has this supplier responded" containment checks.
func addResponseIndexes(db *gorm.DB) error {
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_rfps_responses
		ON rfps USING GIN (responses jsonb_path_ops)
	`).Error
}

func addNotificationIndexes(db *gorm.DB) error {
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_notifications_unread
		ON notifications(user_id, created_at DESC)
		WHERE is_read = false
	`).Error
}
