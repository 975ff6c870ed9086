package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// writeTestConfig creates a config pointing at sqlite files under a temp dir
// and returns the config path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	cfg := fmt.Sprintf(`database:
  driver: sqlite
  path: %s
storage:
  cas_root: %s
  root: %s
`,
		filepath.Join(base, "reqtrack.db"),
		filepath.Join(base, "blobs"),
		filepath.Join(base, "storage"))

	path := filepath.Join(base, "reqtrack.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// runCLI executes the root command with args and returns its combined output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "rt dev") {
		t.Errorf("expected output to contain 'rt dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestRootCmdHelp(t *testing.T) {
	out, err := runCLI(t, "--help")
	if err != nil {
		t.Fatalf("help command failed: %v", err)
	}
	if !strings.Contains(out, "Reqtrack") {
		t.Errorf("expected help to contain 'Reqtrack', got: %s", out)
	}
	for _, sub := range []string{"version", "db", "serve", "task", "backup"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to list %q subcommand", sub)
		}
	}
}

func TestExecuteSuccess(t *testing.T) {
	code := execute(newRootCmd())
	if code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestExecuteError(t *testing.T) {
	cmd := &cobra.Command{
		Use:           "failing",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("intentional error")
		},
	}
	code := execute(cmd)
	if code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
}
