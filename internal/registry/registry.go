// Package registry maps tool names from manifests onto the compiled
// backends that implement them.
//
// The registry is populated once during application startup and then
// only read, so lookups need no locking. Registration failures are
// programming errors and panic.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kqclabs/kqc/internal/backend"
	"github.com/kqclabs/kqc/internal/manifest"
	"github.com/kqclabs/kqc/internal/suggest"
)

// Registry holds the registered backends of one application instance.
type Registry struct {
	backends map[string]backend.Backend
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		backends: make(map[string]backend.Backend),
	}
}

// Register adds a backend under its own name.
func (r *Registry) Register(b backend.Backend) {
	name := b.Name()
	if name == "" {
		panic("backend with empty name registered")
	}
	if _, exists := r.backends[name]; exists {
		panic(fmt.Sprintf("backend with name '%s' already registered", name))
	}
	slog.Debug("Registering backend.", "name", name)
	r.backends[name] = b
}

// Lookup resolves a tool name to its backend. A miss wraps
// manifest.ErrUnknownTool and names the closest registered tool.
func (r *Registry) Lookup(name string) (backend.Backend, error) {
	if b, ok := r.backends[name]; ok {
		return b, nil
	}
	if near, ok := suggest.Closest(name, r.Names()); ok {
		return nil, fmt.Errorf("%w %q, did you mean %q?", manifest.ErrUnknownTool, name, near)
	}
	return nil, fmt.Errorf("%w %q, registered: %s", manifest.ErrUnknownTool, name, strings.Join(r.Names(), ", "))
}

// Names lists the registered tools in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
