package shared

import (
	"testing"
)

func TestRunMigrations(t *testing.T) {
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()

	if err := RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	for _, table := range []string{"servers", "accounts", "sync_jobs", "sync_logs"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("expected table %s to exist: %v", table, err)
		}
	}

	var value int
	if err := db.QueryRow("SELECT value FROM sync_jobs_sequence WHERE id = 1").Scan(&value); err != nil {
		t.Fatalf("expected seeded sequence table: %v", err)
	}
	if value != 0 {
		t.Errorf("expected sequence seeded at 0, got %d", value)
	}
}

func TestRunMigrationsIdempotent(t *testing.T) {
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()

	if err := RunMigrations(db); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if err := RunMigrations(db); err != nil {
		t.Fatalf("second run should be a no-op: %v", err)
	}
}

func TestRollbackMigration(t *testing.T) {
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()

	if err := RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	if err := RollbackMigration(db); err != nil {
		t.Fatalf("failed to rollback: %v", err)
	}

	var name string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='sync_jobs'").Scan(&name)
	if err == nil {
		t.Error("expected sync_jobs table dropped after rollback")
	}

	if err := RollbackMigration(db); err == nil {
		t.Error("expected error when nothing left to rollback")
	}
}

func TestRemoveComments(t *testing.T) {
	in := "-- leading comment\nSELECT 1; -- trailing\n\nSELECT 2"
	out := removeComments(in)
	if out != "SELECT 1;\nSELECT 2" {
		t.Errorf("unexpected result: %q", out)
	}
}
