package session

import (
	"fmt"
	"sync"
	"testing"
)

func TestNewIsEmpty(t *testing.T) {
	t.Parallel()
	c := New()
	if c.LastSchema() != "" || c.LastTable() != "" {
		t.Fatalf("expected empty context, got schema=%q table=%q", c.LastSchema(), c.LastTable())
	}
}

func TestUpdateBoth(t *testing.T) {
	t.Parallel()
	c := New()
	c.Update("gold", "monthly_portfolio_metrics")
	if c.LastSchema() != "gold" {
		t.Fatalf("unexpected schema: %s", c.LastSchema())
	}
	if c.LastTable() != "monthly_portfolio_metrics" {
		t.Fatalf("unexpected table: %s", c.LastTable())
	}
}

func TestUpdatePartialKeepsPriorValue(t *testing.T) {
	t.Parallel()
	c := New()
	c.Update("gold", "metrics")
	c.Update("collections_us", "")
	if c.LastSchema() != "collections_us" {
		t.Fatalf("unexpected schema: %s", c.LastSchema())
	}
	if c.LastTable() != "metrics" {
		t.Fatalf("expected table to survive a schema-only update, got: %s", c.LastTable())
	}

	c.Update("", "accounts")
	if c.LastSchema() != "collections_us" {
		t.Fatalf("expected schema to survive a table-only update, got: %s", c.LastSchema())
	}
	if c.LastTable() != "accounts" {
		t.Fatalf("unexpected table: %s", c.LastTable())
	}
}

func TestUpdateEmptyIsNoop(t *testing.T) {
	t.Parallel()
	c := New()
	c.Update("gold", "metrics")
	c.Update("", "")
	if c.LastSchema() != "gold" || c.LastTable() != "metrics" {
		t.Fatalf("expected empty update to be a no-op, got schema=%q table=%q", c.LastSchema(), c.LastTable())
	}
}

func TestConcurrentUpdates(t *testing.T) {
	t.Parallel()
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Update(fmt.Sprintf("schema%d", n), fmt.Sprintf("table%d", n))
				c.LastSchema()
				c.LastTable()
			}
		}(i)
	}
	wg.Wait()

	// Last-writer-wins: some writer's values must be present.
	if c.LastSchema() == "" || c.LastTable() == "" {
		t.Fatal("expected non-empty context after concurrent updates")
	}
}
