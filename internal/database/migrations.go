package database

import (
	"errors"
	"time"

	"github.com/lumetrymedia/stickerbooth/backend/internal/submissions"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationClearOrphanedProcessingMarkers = "2026-08-10_clear_orphaned_processing_markers"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationClearOrphanedProcessingMarkers, apply: clearOrphanedProcessingMarkers},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Rows that finished or were rolled back before the watchdog existed can
// still carry a processing_started_at marker, which would confuse staleness
// checks if the row ever re-enters processing.
func clearOrphanedProcessingMarkers(db *gorm.DB) error {
	return db.Model(&submissions.Submission{}).
		Where("status <> ? AND processing_started_at IS NOT NULL", submissions.StatusProcessing).
		Update("processing_started_at", nil).Error
}
