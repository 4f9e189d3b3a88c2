package mask

import (
	"strings"
	"testing"
)

func TestNewErrorsOnInvalidRegex(t *testing.T) {
	t.Parallel()
	_, err := New([]Rule{{Pattern: `[invalid`, Replacement: "X"}})
	if err == nil {
		t.Fatal("expected error for invalid regex pattern")
	}
	if !strings.Contains(err.Error(), "invalid regex pattern") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHasRules(t *testing.T) {
	t.Parallel()
	empty, err := New(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty.HasRules() {
		t.Fatal("expected no rules")
	}

	m, err := New([]Rule{{Pattern: `\d`, Replacement: "*"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.HasRules() {
		t.Fatal("expected rules")
	}
}

func TestRowsMasksStringValues(t *testing.T) {
	t.Parallel()
	m, err := New([]Rule{
		{Pattern: `\b\d{12,19}\b`, Replacement: "[ACCOUNT]"},
		{Pattern: `[\w.+-]+@[\w-]+\.[\w.]+`, Replacement: "[EMAIL]"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := []map[string]any{
		{"account": "4111111111111111", "email": "jo@example.com", "amount": 42.5},
	}
	m.Rows(rows)

	if rows[0]["account"] != "[ACCOUNT]" {
		t.Fatalf("expected account masked, got: %v", rows[0]["account"])
	}
	if rows[0]["email"] != "[EMAIL]" {
		t.Fatalf("expected email masked, got: %v", rows[0]["email"])
	}
	if rows[0]["amount"] != 42.5 {
		t.Fatalf("expected non-string value untouched, got: %v", rows[0]["amount"])
	}
}

func TestRowsRecursesIntoNestedValues(t *testing.T) {
	t.Parallel()
	m, err := New([]Rule{{Pattern: `secret`, Replacement: "[MASKED]"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := []map[string]any{
		{
			"payload": map[string]any{
				"note": "the secret value",
				"tags": []any{"secret", 7, nil},
			},
		},
	}
	m.Rows(rows)

	payload := rows[0]["payload"].(map[string]any)
	if payload["note"] != "the [MASKED] value" {
		t.Fatalf("expected nested map masked, got: %v", payload["note"])
	}
	tags := payload["tags"].([]any)
	if tags[0] != "[MASKED]" {
		t.Fatalf("expected nested slice masked, got: %v", tags[0])
	}
	if tags[1] != 7 || tags[2] != nil {
		t.Fatalf("expected non-string slice elements untouched, got: %v", tags)
	}
}

func TestRowsNoRulesIsPassthrough(t *testing.T) {
	t.Parallel()
	m, err := New(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := []map[string]any{{"v": "untouched"}}
	out := m.Rows(rows)
	if out[0]["v"] != "untouched" {
		t.Fatalf("expected passthrough, got: %v", out[0]["v"])
	}
}
