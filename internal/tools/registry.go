// Package tools implements the tool registry and the dispatch pipeline
// that stands between the reasoning loop and tool handlers: lookup,
// rate limiting, input validation, permission checks, risk assessment,
// approval gating, execution, and audit logging.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Handler executes a tool call with already-validated input.
type Handler func(ctx context.Context, input map[string]any) (string, error)

// Definition describes one registered tool.
type Definition struct {
	// Name is globally unique within the registry.
	Name string

	Description string

	// Schema is a JSON Schema document validating the tool's input.
	// Empty means any input is accepted.
	Schema json.RawMessage

	Handler Handler

	// Dangerous forces human approval regardless of assessed risk.
	Dangerous bool

	// RateLimitPerMinute and RateLimitPerHour cap dispatches per agent.
	// Zero disables the respective window.
	RateLimitPerMinute int
	RateLimitPerHour   int

	// RequiredPermissions lists permission tags that must all be
	// grantable under the calling agent's allow/deny tool patterns.
	RequiredPermissions []string

	compiled *jsonschema.Schema
}

// Registry holds tool definitions. Registration happens at process
// start; dispatch afterward only reads, so the map is effectively
// immutable once the process is serving.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Definition
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Definition)}
}

// Register adds a tool definition, compiling its input schema. A tool
// with the same name replaces the previous registration.
func (r *Registry) Register(def *Definition) error {
	if def == nil || def.Name == "" {
		return fmt.Errorf("tool definition requires a name")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s requires a handler", def.Name)
	}
	if len(def.Schema) > 0 {
		compiled, err := jsonschema.CompileString(def.Name+".schema.json", string(def.Schema))
		if err != nil {
			return fmt.Errorf("compile schema for %s: %w", def.Name, err)
		}
		def.compiled = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = def
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// List returns all definitions sorted by name.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, 0, len(r.tools))
	for _, def := range r.tools {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Catalog returns the definitions an agent may see, filtered by its
// allow/deny patterns. The catalog is what gets handed to the
// completion provider as the tool list.
func (r *Registry) Catalog(allow, deny []string) []*Definition {
	all := r.List()
	out := make([]*Definition, 0, len(all))
	for _, def := range all {
		if Allowed(allow, deny, def.Name) {
			out = append(out, def)
		}
	}
	return out
}
