package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Database.Path != "davsync.db" {
		t.Errorf("unexpected database path: %s", config.Database.Path)
	}
	if config.Server.Port != 5000 {
		t.Errorf("unexpected server port: %d", config.Server.Port)
	}
	if !config.Sync.MigrateCalendars || !config.Sync.MigrateContacts {
		t.Error("calendars and contacts should migrate by default")
	}
	if config.Sync.SkipDummyEvents {
		t.Error("dummy skipping should be off by default")
	}
	if config.Sync.UploadRate != 5.0 {
		t.Errorf("unexpected upload rate: %v", config.Sync.UploadRate)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("parses a full config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")

		content := `
[database]
path = "test.db"
max_open_conns = 3
max_idle_conns = 1

[server]
host = "0.0.0.0"
port = 8080

[source]
url = "https://mail.example.com"
username = "alice"
password = "secret"
server_type = "Carbonio"
verify_ssl = false

[sync]
migrate_calendars = true
migrate_contacts = false
skip_dummy_events = true
upload_rate = 2.5
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		config, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "test.db" {
			t.Errorf("unexpected database path: %s", config.Database.Path)
		}
		if config.Server.Port != 8080 {
			t.Errorf("unexpected port: %d", config.Server.Port)
		}
		if config.Source.ServerType != "Carbonio" || config.Source.VerifySSL {
			t.Errorf("unexpected source endpoint: %+v", config.Source)
		}
		if config.Sync.MigrateContacts {
			t.Error("expected contacts disabled")
		}
		if config.Sync.UploadRate != 2.5 {
			t.Errorf("unexpected upload rate: %v", config.Sync.UploadRate)
		}
	})

	t.Run("missing file returns an error", func(t *testing.T) {
		if _, err := LoadConfig("/nonexistent/config.toml"); err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("invalid TOML returns an error", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "bad.toml")
		if err := os.WriteFile(path, []byte("not [valid toml"), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Fatal("expected parse error")
		}
	})
}

func TestCreateConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if err := CreateConfigFile(path); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("created config does not parse: %v", err)
	}
	if config.Database.Path == "" {
		t.Error("created config should carry defaults")
	}

	if err := CreateConfigFile(path); err == nil {
		t.Error("expected error when config file already exists")
	}
}
