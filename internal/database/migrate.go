package database

import (
	"fmt"

	"gorm.io/gorm"

	"socialsync/internal/model"
	"socialsync/pkg/log"
)

// Models every table owned by this service
func Models() []interface{} {
	return []interface{}{
		&model.PlatformCatalogEntry{},
		&model.ShareRecord{},
		&model.EngagementMetric{},
		&model.PlatformConnection{},
	}
}

// AutoMigrate auto migrate database table schema
func AutoMigrate(db *gorm.DB) error {
	log.Info("Starting database migration...")

	for _, m := range Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", m, err)
		}
		log.Infof("Migrated model: %T", m)
	}

	log.Info("Database migration completed successfully")
	return nil
}

// CheckTables returns an error naming the first missing table
func CheckTables(db *gorm.DB) error {
	migrator := db.Migrator()
	for _, m := range Models() {
		if !migrator.HasTable(m) {
			return fmt.Errorf("table for %T does not exist", m)
		}
	}
	return nil
}
