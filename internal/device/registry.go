package device

import (
	"sort"
	"sync"

	"github.com/Chiassonastraypatrick/velox/internal/util"
)

// Launchable is a host-callable dispatch entry point for a named compute
// kernel. The execution planner looks kernels up by symbolic name rather than
// by a language-level symbol.
type Launchable interface {
	Call(s *Stream, numBlocks, sharedBytes int, args interface{}) error
}

// Registry maps symbolic names to launchable entry points. It is populated
// during process or module initialization (single writer) and read-only
// thereafter (many readers).
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Launchable
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Register adds an entry under name. The registry is append-only: registering
// the same name twice is a programming error.
func (r *Registry) Register(name string, e Launchable) {
	util.AssertNotNil(e, "kernel entry")
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = make(map[string]Launchable)
	}
	_, dup := r.entries[name]
	util.Assert(!dup, "kernel %q registered twice", name)
	r.entries[name] = e
}

// Lookup returns the named entry, or (nil, false) if not registered.
func (r *Registry) Lookup(name string) (Launchable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Names returns all registered names in deterministic order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// Register adds an entry to the process-wide registry.
func Register(name string, e Launchable) { defaultRegistry.Register(name, e) }

// Lookup consults the process-wide registry.
func Lookup(name string) (Launchable, bool) { return defaultRegistry.Lookup(name) }

// Names lists the process-wide registry in deterministic order.
func Names() []string { return defaultRegistry.Names() }
