// Package toolcatalog implements the single authoritative tool catalogue
// and its dispatch protocol, adapted from the teacher's MCP tools
// registry and tools/call handling (see DESIGN.md). Resources, prompts,
// and completion are dropped here since the document-assembly tool
// surface has no use for them; list-and-call remain, generalized with a
// requires_auth flag and a group-injection step the teacher's chat tools
// never needed.
package toolcatalog

import (
	"context"
	"sync"
)

// Spec describes one catalogue entry for discovery (tools/list, help).
type Spec struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	InputSchema  map[string]any `json:"input_schema"`
	RequiresAuth bool           `json:"requires_auth"`
}

// Handler implements one tool's behavior. group is "" when the call was
// token-optional and no credential was supplied.
type Handler func(ctx context.Context, group string, args map[string]any) (any, error)

// Catalogue is the authoritative, order-preserving registry of tools.
type Catalogue struct {
	mu       sync.RWMutex
	order    []string
	specs    map[string]Spec
	handlers map[string]Handler
}

func NewCatalogue() *Catalogue {
	return &Catalogue{
		specs:    map[string]Spec{},
		handlers: map[string]Handler{},
	}
}

// Register adds one tool. Re-registering a name replaces it in place,
// preserving its original position in List().
func (c *Catalogue) Register(spec Spec, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.specs[spec.Name]; !exists {
		c.order = append(c.order, spec.Name)
	}
	c.specs[spec.Name] = spec
	c.handlers[spec.Name] = handler
}

// List returns every registered tool spec, in registration order.
func (c *Catalogue) List() []Spec {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Spec, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.specs[name])
	}
	return out
}

func (c *Catalogue) lookup(name string) (Spec, Handler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	spec, ok := c.specs[name]
	if !ok {
		return Spec{}, nil, false
	}
	return spec, c.handlers[name], true
}
