package database

import (
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clearfield-labs/noteloop/internal/syncer"
)

func TestApplyMigrationsBackfillsLedgerTitles(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&syncer.ProcessedFile{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	row := syncer.ProcessedFile{
		FolderID:    "folder-1",
		FileID:      "file-1",
		Title:       "",
		ProcessedAt: time.Now(),
	}
	if err := database.Create(&row).Error; err != nil {
		testContext.Fatalf("failed to insert ledger row: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored syncer.ProcessedFile
	if err := database.Where("file_id = ?", "file-1").Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload ledger row: %v", err)
	}
	if stored.Title != "Untitled" {
		testContext.Fatalf("expected backfilled title, got %q", stored.Title)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationBackfillLedgerTitles).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestOpenSQLiteRequiresPath(testContext *testing.T) {
	if _, err := OpenSQLite("", zap.NewNop()); err == nil {
		testContext.Fatalf("expected error for empty path")
	}
}

func TestOpenSQLiteInitializesSchema(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "app.db")

	database, err := OpenSQLite(databasePath, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}

	for _, table := range []string{"processed_files", "chat_conversations", "chat_messages", "user_identities", "db_migrations"} {
		if !database.Migrator().HasTable(table) {
			testContext.Fatalf("expected table %s to exist", table)
		}
	}
}
