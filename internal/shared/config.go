package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database    DatabaseConfig `toml:"database"`
	Server      ServerConfig   `toml:"server"`
	Source      EndpointConfig `toml:"source"`
	Destination EndpointConfig `toml:"destination"`
	Sync        SyncConfig     `toml:"sync"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings for the administrative API.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// EndpointConfig describes one CalDAV/CardDAV endpoint for one-shot runs.
//
// PrincipalPath may contain a {username} placeholder. When empty, a default
// is derived from ServerType (Carbonio, Zimbra, Nextcloud, Mailcow, SOGo).
type EndpointConfig struct {
	URL           string `toml:"url"`
	Username      string `toml:"username"`
	Password      string `toml:"password"`
	PrincipalPath string `toml:"principal_path"`
	ServerType    string `toml:"server_type"`
	VerifySSL     bool   `toml:"verify_ssl"`
}

// SyncConfig contains default migration flags for one-shot runs.
type SyncConfig struct {
	MigrateCalendars  bool    `toml:"migrate_calendars"`
	MigrateContacts   bool    `toml:"migrate_contacts"`
	CreateCollections bool    `toml:"create_collections"`
	SkipDummyEvents   bool    `toml:"skip_dummy_events"`
	UploadRate        float64 `toml:"upload_rate"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
