package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	dwmcp "github.com/warelens/dwmcp"
)

func TestDoctorValidConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := validServerConfig()
	path := writeConfigFile(t, dir, cfg)

	var buf bytes.Buffer
	err := doctor(&buf, false, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()

	// All checks should pass
	if strings.Contains(output, "✗") {
		t.Fatalf("expected all checks to pass, but found failures in output:\n%s", output)
	}

	// Should contain pass marks
	if !strings.Contains(output, "✓") {
		t.Fatalf("expected pass marks (✓) in output:\n%s", output)
	}

	// Should contain config checks
	if !strings.Contains(output, "Config file readable") {
		t.Fatalf("expected 'Config file readable' check in output:\n%s", output)
	}
	if !strings.Contains(output, "Config file is valid JSON") {
		t.Fatalf("expected 'Config file is valid JSON' check in output:\n%s", output)
	}
	if !strings.Contains(output, "connection.dbname is set") {
		t.Fatalf("expected 'connection.dbname is set' check in output:\n%s", output)
	}
	if !strings.Contains(output, "server.port is > 0") {
		t.Fatalf("expected 'server.port is > 0' check in output:\n%s", output)
	}
	if !strings.Contains(output, "All regex patterns compile") {
		t.Fatalf("expected 'All regex patterns compile' check in output:\n%s", output)
	}

	// Should contain agent snippets
	if !strings.Contains(output, "Claude Code") {
		t.Fatalf("expected Claude Code snippet in output:\n%s", output)
	}
	if !strings.Contains(output, "claude mcp add --transport http warehouse") {
		t.Fatalf("expected 'claude mcp add --transport http warehouse' command in output:\n%s", output)
	}
	// Server name in snippets should be "warehouse" for AI agent discoverability
	if !strings.Contains(output, `"warehouse"`) {
		t.Fatalf("expected server name 'warehouse' in agent snippets:\n%s", output)
	}
	if !strings.Contains(output, "Gemini CLI") {
		t.Fatalf("expected Gemini CLI snippet in output:\n%s", output)
	}
	if !strings.Contains(output, "OpenCode") {
		t.Fatalf("expected OpenCode snippet in output:\n%s", output)
	}
	if !strings.Contains(output, "Cursor") {
		t.Fatalf("expected Cursor snippet in output:\n%s", output)
	}
	if !strings.Contains(output, "Windsurf") {
		t.Fatalf("expected Windsurf snippet in output:\n%s", output)
	}
	if !strings.Contains(output, "Copilot CLI") {
		t.Fatalf("expected Copilot CLI snippet in output:\n%s", output)
	}
}

func TestDoctorMissingConfig(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := doctor(&buf, false, "/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "✗") {
		t.Fatalf("expected failure mark for missing config:\n%s", output)
	}
	if !strings.Contains(output, "Fix the issues above") {
		t.Fatalf("expected fix guidance in output:\n%s", output)
	}
	if strings.Contains(output, "Agent Connection Snippets") {
		t.Fatalf("expected no agent snippets when checks fail:\n%s", output)
	}
}

func TestDoctorInvalidJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	var buf bytes.Buffer
	if err := doctor(&buf, false, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "Config file is valid JSON") {
		t.Fatalf("expected JSON check in output:\n%s", output)
	}
	if !strings.Contains(output, "✗") {
		t.Fatalf("expected failure mark for invalid JSON:\n%s", output)
	}
}

func TestDoctorMissingDBName(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := validServerConfig()
	cfg.Connection.DBName = ""
	path := writeConfigFile(t, dir, cfg)

	var buf bytes.Buffer
	if err := doctor(&buf, false, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "✗ connection.dbname is set") {
		t.Fatalf("expected dbname failure in output:\n%s", output)
	}
}

func TestDoctorBadRegexInErrorPrompts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := validServerConfig()
	cfg.ErrorPrompts = []dwmcp.ErrorPromptRule{
		{Pattern: "[invalid", Message: "broken"},
	}
	path := writeConfigFile(t, dir, cfg)

	var buf bytes.Buffer
	if err := doctor(&buf, false, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "error_prompts[0] regex compiles") {
		t.Fatalf("expected regex failure for error prompt rule:\n%s", output)
	}
	if strings.Contains(output, "All regex patterns compile") {
		t.Fatalf("expected regex summary to be suppressed on failure:\n%s", output)
	}
}

func TestDoctorBadRegexInMasking(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := validServerConfig()
	cfg.Masking = []dwmcp.MaskingRule{
		{Pattern: "(unclosed", Replacement: "X"},
	}
	path := writeConfigFile(t, dir, cfg)

	var buf bytes.Buffer
	if err := doctor(&buf, false, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "masking[0] regex compiles") {
		t.Fatalf("expected regex failure for masking rule:\n%s", output)
	}
}

func TestDoctorHealthCheckPathRequired(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := validServerConfig()
	cfg.Server.HealthCheckEnabled = true
	cfg.Server.HealthCheckPath = ""
	path := writeConfigFile(t, dir, cfg)

	var buf bytes.Buffer
	if err := doctor(&buf, false, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "health_check_path is set") {
		t.Fatalf("expected health check path check in output:\n%s", output)
	}
	if !strings.Contains(output, "✗") {
		t.Fatalf("expected failure mark for missing health check path:\n%s", output)
	}
}
