package guard

import (
	"errors"
	"strings"
	"testing"
)

func expectPanic(t *testing.T, substr string) {
	t.Helper()
	r := recover()
	if r == nil {
		t.Fatal("expected panic, got none")
	}
	msg, ok := r.(string)
	if !ok {
		t.Fatalf("expected string panic, got %T: %v", r, r)
	}
	if !strings.Contains(msg, substr) {
		t.Fatalf("expected panic containing %q, got: %s", substr, msg)
	}
}

func TestNewPanicsOnZeroLimit(t *testing.T) {
	t.Parallel()
	defer expectPanic(t, "default limit must be > 0")
	New(0)
}

func TestNewPanicsOnNegativeLimit(t *testing.T) {
	t.Parallel()
	defer expectPanic(t, "default limit must be > 0")
	New(-5)
}

func TestRejectsNonSelect(t *testing.T) {
	t.Parallel()
	g := New(200)
	_, err := g.Sanitize("EXPLAIN SELECT 1")
	if err == nil {
		t.Fatal("expected rejection for non-SELECT query")
	}
	var rejected *RejectedQueryError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedQueryError, got %T", err)
	}
	if rejected.Reason != "only SELECT queries allowed" {
		t.Fatalf("unexpected reason: %s", rejected.Reason)
	}
}

func TestRejectsDeniedKeywords(t *testing.T) {
	t.Parallel()
	g := New(200)
	cases := []struct {
		sql     string
		keyword string
	}{
		{"select 1; DROP TABLE x", "drop"},
		{"select * from t where name = 'update me'", "update"},
		{"SELECT pg_sleep(1); DELETE FROM t", "delete"},
		{"select * from t; insert into t values (1)", "insert"},
		{"select 1; alter table t add column c int", "alter"},
		{"select 1; truncate t", "truncate"},
		{"select 1; create table evil (id int)", "create"},
	}
	for _, c := range cases {
		_, err := g.Sanitize(c.sql)
		if err == nil {
			t.Fatalf("expected rejection for %q", c.sql)
		}
		if !strings.Contains(err.Error(), c.keyword) {
			t.Fatalf("expected reason for %q to contain %q, got: %v", c.sql, c.keyword, err)
		}
	}
}

func TestSelectCheckPrecedesKeywordCheck(t *testing.T) {
	t.Parallel()
	g := New(200)
	// A statement that both lacks the SELECT prefix and contains a denied
	// keyword is rejected for the missing prefix: the prefix check runs
	// first.
	_, err := g.Sanitize("DROP TABLE x")
	if err == nil {
		t.Fatal("expected rejection")
	}
	var rejected *RejectedQueryError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedQueryError, got %T", err)
	}
	if rejected.Reason != "only SELECT queries allowed" {
		t.Fatalf("unexpected reason: %s", rejected.Reason)
	}
}

func TestRejectsCrossJoin(t *testing.T) {
	t.Parallel()
	g := New(200)
	_, err := g.Sanitize("SELECT * FROM a CROSS JOIN b")
	if err == nil {
		t.Fatal("expected rejection for cross join")
	}
	if !strings.Contains(err.Error(), "query blocked for safety") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRejectsCommaJoin(t *testing.T) {
	t.Parallel()
	g := New(200)
	_, err := g.Sanitize("SELECT * FROM a, b")
	if err == nil {
		t.Fatal("expected rejection for comma-separated table list")
	}
	if !strings.Contains(err.Error(), "query blocked for safety") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAppendsLimitWhenAbsent(t *testing.T) {
	t.Parallel()
	g := New(200)
	safe, err := g.Sanitize("select * from t")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(safe.Cleaned, "LIMIT 200") {
		t.Fatalf("expected cleaned text to end in LIMIT 200, got: %s", safe.Cleaned)
	}
	if !safe.AppliedLimit {
		t.Fatal("expected AppliedLimit to be true")
	}
}

func TestStripsTrailingSemicolonBeforeLimit(t *testing.T) {
	t.Parallel()
	g := New(200)
	safe, err := g.Sanitize("select * from t;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if safe.Cleaned != "select * from t LIMIT 200" {
		t.Fatalf("unexpected cleaned text: %s", safe.Cleaned)
	}
}

func TestKeepsExistingLimit(t *testing.T) {
	t.Parallel()
	g := New(200)
	safe, err := g.Sanitize("select * from t limit 5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if safe.Cleaned != "select * from t limit 5" {
		t.Fatalf("expected cleaned text unchanged, got: %s", safe.Cleaned)
	}
	if safe.AppliedLimit {
		t.Fatal("expected AppliedLimit to be false")
	}
}

func TestPreservesOriginalCasing(t *testing.T) {
	t.Parallel()
	g := New(50)
	safe, err := g.Sanitize("SELECT Id FROM gold.customers WHERE Id = 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(safe.Cleaned, "SELECT Id FROM gold.customers") {
		t.Fatalf("expected original casing preserved, got: %s", safe.Cleaned)
	}
	if !strings.HasSuffix(safe.Cleaned, "LIMIT 50") {
		t.Fatalf("expected configured limit appended, got: %s", safe.Cleaned)
	}
}

func TestRejectedQueryErrorMessage(t *testing.T) {
	t.Parallel()
	err := &RejectedQueryError{Reason: "only SELECT queries allowed"}
	if err.Error() != "query rejected: only SELECT queries allowed" {
		t.Fatalf("unexpected error message: %s", err.Error())
	}
}
