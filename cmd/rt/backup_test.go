package main

import (
	"strings"
	"testing"
)

func TestBackupCreateListRestore(t *testing.T) {
	cfg := writeTestConfig(t)
	initDB(t, cfg)

	out, err := runCLI(t, "backup", "create", "-c", cfg, "--name", "cli_backup")
	if err != nil {
		t.Fatalf("backup create failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Created backup cli_backup") {
		t.Errorf("output = %s", out)
	}

	out, err = runCLI(t, "backup", "list", "-c", cfg)
	if err != nil {
		t.Fatalf("backup list failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "cli_backup") {
		t.Errorf("output = %s", out)
	}

	out, err = runCLI(t, "backup", "restore", "-c", cfg, "cli_backup")
	if err != nil {
		t.Fatalf("backup restore failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Restored backup cli_backup") {
		t.Errorf("output = %s", out)
	}
}

func TestBackupRestore_Missing(t *testing.T) {
	cfg := writeTestConfig(t)
	initDB(t, cfg)

	if _, err := runCLI(t, "backup", "restore", "-c", cfg, "ghost"); err == nil {
		t.Error("expected error restoring missing backup")
	}
}

func TestBackupCleanup(t *testing.T) {
	cfg := writeTestConfig(t)
	initDB(t, cfg)
	runCLI(t, "backup", "create", "-c", cfg, "--name", "fresh")

	out, err := runCLI(t, "backup", "cleanup", "-c", cfg, "--keep-days", "30")
	if err != nil {
		t.Fatalf("backup cleanup failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Deleted 0 old backups") {
		t.Errorf("output = %s", out)
	}
}

func TestBackupList_Empty(t *testing.T) {
	cfg := writeTestConfig(t)
	initDB(t, cfg)

	out, err := runCLI(t, "backup", "list", "-c", cfg)
	if err != nil {
		t.Fatalf("backup list failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "No backups found.") {
		t.Errorf("output = %s", out)
	}
}
