// Package session tracks the last schema and table a caller touched, used
// to disambiguate underspecified follow-up queries. Updates from concurrent
// callers are last-writer-wins with no causal ordering — the context is a
// convenience heuristic, never relied upon for correctness.
package session

import "sync"

// Context is a shared mutable (lastSchema, lastTable) pair. It survives for
// the life of the server process and is shared by all callers; cleared only
// at restart.
type Context struct {
	mu         sync.RWMutex
	lastSchema string
	lastTable  string
}

// New returns an empty Context.
func New() *Context {
	return &Context{}
}

// Update overwrites whichever of the two values is non-empty; an empty
// argument leaves the prior value untouched.
func (c *Context) Update(schema, table string) {
	if schema == "" && table == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if schema != "" {
		c.lastSchema = schema
	}
	if table != "" {
		c.lastTable = table
	}
}

// LastSchema returns the most recently touched schema, or "".
func (c *Context) LastSchema() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSchema
}

// LastTable returns the most recently touched table, or "".
func (c *Context) LastTable() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastTable
}
