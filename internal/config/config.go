// Package config provides YAML-based configuration loading for reqtrack.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level reqtrack configuration, loaded from reqtrack.yaml.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Backup   BackupConfig   `yaml:"backup"`
}

// DatabaseConfig selects the persistence backend. Driver is "sqlite"
// (default, file-backed) or "mysql".
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`     // sqlite file path
	Host     string `yaml:"host"`     // mysql only
	Port     int    `yaml:"port"`     // mysql only
	Database string `yaml:"database"` // mysql only
	User     string `yaml:"user"`     // mysql only
	Password string `yaml:"password"` // mysql only
}

// StorageConfig holds filesystem roots for the CAS, the git-backed file
// store, and backups.
type StorageConfig struct {
	CASRoot string `yaml:"cas_root"`
	GitRoot string `yaml:"git_root"`
	Root    string `yaml:"root"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// BackupConfig controls scheduled backups and retention sweeps.
type BackupConfig struct {
	Schedule    string `yaml:"schedule"` // 5-field cron expression; empty disables
	KeepDays    int    `yaml:"keep_days"`
	HistoryDays int    `yaml:"history_days"` // task history retention
}

// Load reads a YAML config file from path and returns a validated Config.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Parse(nil)
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "reqtrack.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Database == "" {
		c.Database.Database = "reqtrack"
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Storage.CASRoot == "" {
		c.Storage.CASRoot = "blobs"
	}
	if c.Storage.GitRoot == "" {
		c.Storage.GitRoot = "git_repo"
	}
	if c.Storage.Root == "" {
		c.Storage.Root = "storage"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Backup.KeepDays == 0 {
		c.Backup.KeepDays = 30
	}
	if c.Backup.HistoryDays == 0 {
		c.Backup.HistoryDays = 90
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.Backup.KeepDays < 0 {
		errs = append(errs, "backup.keep_days must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// CASRootPath returns the absolute CAS root directory.
func (c *Config) CASRootPath() string {
	return absPath(c.Storage.CASRoot)
}

// GitRootPath returns the absolute root of the git-backed file store.
func (c *Config) GitRootPath() string {
	return absPath(c.Storage.GitRoot)
}

// StorageRootPath returns the absolute storage root directory.
func (c *Config) StorageRootPath() string {
	return absPath(c.Storage.Root)
}

// BackupRootPath returns the directory backups are written under.
func (c *Config) BackupRootPath() string {
	return filepath.Join(c.StorageRootPath(), "backups")
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
