package database

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrationManager_ApplyMigrations(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrationManager(db)

	if err := m.ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}

	for _, table := range []string{"rooms", "chat_messages", "schema_migrations"} {
		exists, err := m.tableExists(table)
		if err != nil {
			t.Fatalf("tableExists(%s) failed: %v", table, err)
		}
		if !exists {
			t.Errorf("Expected table %s to exist after migration", table)
		}
	}
}

func TestMigrationManager_ApplyMigrationsIdempotent(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrationManager(db)

	if err := m.ApplyMigrations(); err != nil {
		t.Fatalf("First ApplyMigrations failed: %v", err)
	}
	if err := m.ApplyMigrations(); err != nil {
		t.Fatalf("Second ApplyMigrations failed: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("Failed to count migrations: %v", err)
	}
	if count != len(builtinMigrations) {
		t.Errorf("Expected %d applied migrations, got %d", len(builtinMigrations), count)
	}
}

func TestSchemaValidator(t *testing.T) {
	db := openTestDB(t)

	validator := NewSchemaValidator(db)
	if err := validator.ValidateTablesExist(); err == nil {
		t.Error("Expected validation to fail before migration")
	}

	if err := NewMigrationManager(db).ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}

	if err := validator.ValidateTablesExist(); err != nil {
		t.Errorf("Expected tables to validate after migration: %v", err)
	}
	if err := validator.ValidateIndexes(); err != nil {
		t.Errorf("Expected indexes to validate after migration: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config must validate: %v", err)
	}

	bad := DefaultConfig()
	bad.DatabasePath = ""
	if err := bad.Validate(); err == nil {
		t.Error("Expected empty path to fail validation")
	}

	bad = DefaultConfig()
	bad.MaxConnections = 0
	if err := bad.Validate(); err == nil {
		t.Error("Expected zero max connections to fail validation")
	}
}
