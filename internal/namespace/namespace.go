// Package namespace holds the execution context shared by every fragment the
// bridge runs.
//
// There is exactly one Context per process and it is never reset: values set
// by one request stay visible to the next. Requests reach it one at a time on
// the bridge's scheduling loop, but goroutines started by executed code may
// touch it at any moment, so every method is safe for concurrent use.
package namespace

import (
	"sort"
	"sync"
)

// Well-known entries.
const (
	KeyName       = "name"        // marks the context as a top-level script
	KeyReturn     = "return"      // value reported as ExecutionResult.return
	KeySession    = "session"     // the shared session
	KeyShow       = "show"        // rendering capability
	KeyPushTarget = "push_target" // present only while a WebSocket is registered
)

// MainName is the value of KeyName.
const MainName = "main"

// Context maps identifiers to values.
type Context struct {
	mu   sync.RWMutex
	vars map[string]any
}

// New returns a Context seeded with the top-level script marker.
func New() *Context {
	return &Context{
		vars: map[string]any{KeyName: MainName},
	}
}

// Get returns the value stored under name.
func (c *Context) Get(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vars[name]
	return v, ok
}

// Set stores v under name, replacing any previous value.
func (c *Context) Set(name string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vars[name] = v
}

// Delete removes name. Deleting a missing entry is a no-op.
func (c *Context) Delete(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.vars, name)
}

// CompareAndDelete removes name only while it still holds old, and reports
// whether it did.
func (c *Context) CompareAndDelete(name string, old any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.vars[name]; !ok || v != old {
		return false
	}
	delete(c.vars, name)
	return true
}

// Has reports whether name is present.
func (c *Context) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.vars[name]
	return ok
}

// Keys returns the entry names in sorted order.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.vars))
	for k := range c.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vars)
}
