package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fullYAML = `
database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  database: reqtrack_prod
  user: reqtrack
  password: s3cret

storage:
  cas_root: /var/lib/reqtrack/blobs
  git_root: /var/lib/reqtrack/git_repo
  root: /var/lib/reqtrack/storage

server:
  port: 9090

backup:
  schedule: "0 3 * * *"
  keep_days: 14
  history_days: 30
`

const minimalYAML = `
database:
  driver: sqlite
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "mysql")
	}
	if cfg.Database.Host != "10.0.0.5" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "10.0.0.5")
	}
	if cfg.Database.Port != 3307 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 3307)
	}
	if cfg.Database.Database != "reqtrack_prod" {
		t.Errorf("Database.Database = %q, want %q", cfg.Database.Database, "reqtrack_prod")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Backup.Schedule != "0 3 * * *" {
		t.Errorf("Backup.Schedule = %q, want %q", cfg.Backup.Schedule, "0 3 * * *")
	}
	if cfg.Backup.KeepDays != 14 {
		t.Errorf("Backup.KeepDays = %d, want 14", cfg.Backup.KeepDays)
	}
	if cfg.Backup.HistoryDays != 30 {
		t.Errorf("Backup.HistoryDays = %d, want 30", cfg.Backup.HistoryDays)
	}
	if cfg.Storage.GitRoot != "/var/lib/reqtrack/git_repo" {
		t.Errorf("Storage.GitRoot = %q, want /var/lib/reqtrack/git_repo", cfg.Storage.GitRoot)
	}
}

func TestParse_MinimalAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "sqlite")
	}
	if cfg.Database.Path != "reqtrack.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "reqtrack.db")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Backup.KeepDays != 30 {
		t.Errorf("Backup.KeepDays = %d, want 30", cfg.Backup.KeepDays)
	}
	if cfg.Backup.HistoryDays != 90 {
		t.Errorf("Backup.HistoryDays = %d, want 90", cfg.Backup.HistoryDays)
	}
	if cfg.Storage.CASRoot != "blobs" {
		t.Errorf("Storage.CASRoot = %q, want %q", cfg.Storage.CASRoot, "blobs")
	}
}

func TestParse_EmptyYieldsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
}

func TestParse_UnsupportedDriver(t *testing.T) {
	_, err := Parse([]byte("database:\n  driver: postgres\n"))
	if err == nil {
		t.Fatal("expected error for unsupported driver, got nil")
	}
	if !strings.Contains(err.Error(), "driver") {
		t.Errorf("error %q does not mention driver", err)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("database: [not a map"))
	if err == nil {
		t.Fatal("expected parse error, got nil")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reqtrack.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want mysql", cfg.Database.Driver)
	}
}

func TestGitRootDefault(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.GitRoot != "git_repo" {
		t.Errorf("Storage.GitRoot = %q, want git_repo", cfg.Storage.GitRoot)
	}
	if cfg.GitRootPath() != absPath("git_repo") {
		t.Errorf("GitRootPath() = %q", cfg.GitRootPath())
	}
}

func TestBackupRootPath(t *testing.T) {
	cfg, err := Parse([]byte("storage:\n  root: /var/lib/reqtrack/storage\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join("/var/lib/reqtrack/storage", "backups")
	if cfg.BackupRootPath() != want {
		t.Errorf("BackupRootPath() = %q, want %q", cfg.BackupRootPath(), want)
	}
}
