// Package transform maps block type identifiers to markup transformers and
// provides the built-in transformer set plus the graceful fallback.
package transform

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/madebyaris/wp-block-to-html/internal/blocks"
)

// Context is handed to every transformer invocation. ConvertChildren is
// bound to the engine and recurses with the caller's options; Classes and
// HydrationAttr resolve against the caller's framework and hydration
// configuration.
type Context struct {
	// ConvertChildren converts the given nodes and returns their combined
	// markup in document order.
	ConvertChildren func(children []*blocks.Node) (string, error)
	// Classes returns the resolved class string for a node's attributes.
	Classes func(n *blocks.Node) string
	// HydrationAttr returns the structural hydration marker attribute for
	// interactive nodes (leading space included), or "".
	HydrationAttr func(n *blocks.Node) string
	// Logger is the configured error channel.
	Logger *slog.Logger
}

// Transformer converts one block (and, via ctx.ConvertChildren, its
// children) into output markup.
type Transformer func(n *blocks.Node, ctx *Context) (string, error)

// Registry maps block type identifiers to transformers. Later registrations
// for the same key replace earlier ones, enabling override of default
// handlers. Registration is append/override-only; entries are never removed,
// so concurrent reads during conversion always see the last registration.
type Registry struct {
	mu           sync.RWMutex
	transformers map[string]Transformer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{transformers: make(map[string]Transformer)}
}

// Register stores a transformer for typeID, replacing any earlier
// registration (last writer wins).
func (r *Registry) Register(typeID string, t Transformer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transformers[typeID] = t
}

// Resolve returns the transformer registered for typeID, or the generic
// fallback when none is registered. It never returns nil.
func (r *Registry) Resolve(typeID string) Transformer {
	r.mu.RLock()
	t, ok := r.transformers[typeID]
	r.mu.RUnlock()
	if !ok {
		return Fallback
	}
	return t
}

// Has reports whether typeID has an explicit registration.
func (r *Registry) Has(typeID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.transformers[typeID]
	return ok
}

// Types returns the registered type identifiers, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.transformers))
	for k := range r.transformers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clone returns a copy of the registry with the same registrations, so a
// caller can layer overrides without touching the shared default instance.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := NewRegistry()
	for k, v := range r.transformers {
		c.transformers[k] = v
	}
	return c
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry preloaded with the built-in
// transformers. It is a convenience only; conversion accepts any registry
// value.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		registerBuiltins(defaultRegistry)
	})
	return defaultRegistry
}
