package database

import (
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/lumetrymedia/stickerbooth/backend/internal/submissions"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsClearsOrphanedProcessingMarkers(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&submissions.Submission{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	startedAt := time.Now().UTC().Add(-time.Hour)
	completed := submissions.Submission{
		ID:                  "sub-completed",
		EventID:             "event-1",
		Name:                "Avery",
		PhotoURL:            "https://cdn.example.com/photos/a.jpg",
		Status:              submissions.StatusCompleted,
		ProcessingStartedAt: &startedAt,
		CreatedAt:           time.Now().UTC(),
	}
	active := submissions.Submission{
		ID:                  "sub-active",
		EventID:             "event-1",
		Name:                "Blake",
		PhotoURL:            "https://cdn.example.com/photos/b.jpg",
		Status:              submissions.StatusProcessing,
		ProcessingStartedAt: &startedAt,
		CreatedAt:           time.Now().UTC(),
	}
	if err := database.Create(&completed).Error; err != nil {
		testContext.Fatalf("failed to insert completed submission: %v", err)
	}
	if err := database.Create(&active).Error; err != nil {
		testContext.Fatalf("failed to insert processing submission: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var storedCompleted submissions.Submission
	if err := database.Where("id = ?", completed.ID).Take(&storedCompleted).Error; err != nil {
		testContext.Fatalf("failed to reload completed submission: %v", err)
	}
	if storedCompleted.ProcessingStartedAt != nil {
		testContext.Fatalf("expected processing marker to be cleared on completed submission")
	}

	var storedActive submissions.Submission
	if err := database.Where("id = ?", active.ID).Take(&storedActive).Error; err != nil {
		testContext.Fatalf("failed to reload processing submission: %v", err)
	}
	if storedActive.ProcessingStartedAt == nil {
		testContext.Fatalf("expected processing marker to remain on active submission")
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationClearOrphanedProcessingMarkers).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}
