// Package tools catalogs the external grounding capabilities available to
// the agent. Tool business logic lives elsewhere (or nowhere yet); the
// catalog only knows names, parameter schemas and an invoker.
package tools

import (
	"context"
	"sync"
)

// StatusNotImplemented is the sentinel status a stub tool reports. The
// engine treats it as a normal, non-fatal execution outcome.
const StatusNotImplemented = "not_implemented"

// Definition describes a tool for the planning prompt.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Invoker executes a tool. Implementations return a result mapping; a tool
// that is not yet implemented must return a StatusNotImplemented result,
// never an error.
type Invoker func(ctx context.Context, params map[string]any) (map[string]any, error)

// Tool pairs a definition with its invoker.
type Tool struct {
	Definition
	Invoke Invoker
}

// Catalog is the registered tool set, immutable order of registration.
type Catalog struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{tools: make(map[string]Tool)}
}

// Register adds a tool. Re-registering a name replaces the invoker but keeps
// the original position.
func (c *Catalog) Register(def Definition, invoke Invoker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tools[def.Name]; !exists {
		c.order = append(c.order, def.Name)
	}
	c.tools[def.Name] = Tool{Definition: def, Invoke: invoke}
}

// Get returns a tool by name.
func (c *Catalog) Get(name string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tool, ok := c.tools[name]
	return tool, ok
}

// Names returns tool names in registration order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Definitions returns all definitions in registration order.
func (c *Catalog) Definitions() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	defs := make([]Definition, 0, len(c.order))
	for _, name := range c.order {
		defs = append(defs, c.tools[name].Definition)
	}
	return defs
}

// Len returns the number of registered tools.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// NotImplemented returns an invoker that reports the not-implemented
// sentinel for the named tool.
func NotImplemented(name string) Invoker {
	return func(ctx context.Context, params map[string]any) (map[string]any, error) {
		return map[string]any{
			"status":  StatusNotImplemented,
			"tool":    name,
			"message": "Tool " + name + " is not implemented yet",
		}, nil
	}
}
