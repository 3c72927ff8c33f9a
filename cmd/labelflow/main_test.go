package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()

	base := t.TempDir()
	configPath := filepath.Join(base, "labelflow.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
storage_root = %q
`,
		filepath.Join(base, "data"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "storage"),
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v\n%s", err, out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	_, err = runCommand(t, "config", "init", "--path", target)
	if err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestTaskListEmpty(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", configPath, "task", "list")
	if err != nil {
		t.Fatalf("task list: %v\n%s", err, out)
	}
	if !strings.Contains(out, "No tasks found") {
		t.Fatalf("output = %q, want empty-list notice", out)
	}
}

func TestAlertListEmpty(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", configPath, "alert", "list")
	if err != nil {
		t.Fatalf("alert list: %v\n%s", err, out)
	}
	if !strings.Contains(out, "No alerts") {
		t.Fatalf("output = %q, want empty-list notice", out)
	}
}

func TestTaskCompleteRequiresUser(t *testing.T) {
	configPath := writeTestConfig(t)

	_, err := runCommand(t, "--config", configPath, "task", "complete", "1")
	if err == nil {
		t.Fatal("expected error without --user")
	}
}

func TestTaskShowInvalidID(t *testing.T) {
	configPath := writeTestConfig(t)

	_, err := runCommand(t, "--config", configPath, "task", "show", "abc")
	if err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}
