package dispatch

import (
	"sync"
	"time"
)

// Outcome classifies how one invocation resolved, for observers.
type Outcome int

const (
	// OutcomeHandled means a backend produced a real result.
	OutcomeHandled Outcome = iota
	// OutcomeError means the serving implementation returned an error.
	OutcomeError
	// OutcomeNotImplemented means every candidate was exhausted.
	OutcomeNotImplemented
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHandled:
		return "handled"
	case OutcomeError:
		return "error"
	case OutcomeNotImplemented:
		return "not-implemented"
	}
	return "unknown"
}

// Observer receives one notification per completed invocation.
// Backend is empty when no backend served the call. Implementations
// must be safe for concurrent use.
type Observer interface {
	ObserveDispatch(method, backend string, outcome Outcome, elapsed time.Duration)
}

type registryEntry struct {
	backend  *Backend
	coerce   bool
	priority int
}

// RegisterOption adjusts how a backend joins a registry.
type RegisterOption func(*registryEntry)

// WithCoerce makes dispatch convert dispatchable arguments into the
// backend's representation before every attempt.
func WithCoerce() RegisterOption {
	return func(e *registryEntry) { e.coerce = true }
}

// WithPriority orders the backend ahead of lower-priority entries.
// Backends registered with equal priority keep registration order.
func WithPriority(p int) RegisterOption {
	return func(e *registryEntry) { e.priority = p }
}

// Registry is the permanent, ordered list of backends consulted when no
// exclusive scope is active. Registration may race with dispatch:
// readers see either the pre- or post-registration list, never a
// partial one.
type Registry struct {
	mu       sync.RWMutex
	entries  []registryEntry
	observer Observer
}

// NewRegistry creates an empty registry. Most programs use
// DefaultRegistry; separate registries exist so embedders and tests can
// stay isolated from each other.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry is the process-wide registry that methods use unless
// declared with WithRegistry.
var DefaultRegistry = NewRegistry()

// Register appends b to the default registry.
func Register(b *Backend, opts ...RegisterOption) {
	DefaultRegistry.Register(b, opts...)
}

// Register appends b to the registry. Higher WithPriority values sort
// earlier; ties keep registration order.
func (r *Registry) Register(b *Backend, opts ...RegisterOption) {
	entry := registryEntry{backend: b}
	for _, opt := range opts {
		opt(&entry)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	pos := len(r.entries)
	for i, e := range r.entries {
		if e.priority < entry.priority {
			pos = i
			break
		}
	}
	r.entries = append(r.entries, registryEntry{})
	copy(r.entries[pos+1:], r.entries[pos:])
	r.entries[pos] = entry
}

// Backends returns the registered backends in consultation order.
func (r *Registry) Backends() []*Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Backend, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.backend
	}
	return out
}

// SetObserver installs o as the registry's dispatch observer. Pass nil
// to remove it.
func (r *Registry) SetObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

func (r *Registry) observe(method, backend string, outcome Outcome, elapsed time.Duration) {
	r.mu.RLock()
	o := r.observer
	r.mu.RUnlock()
	if o != nil {
		o.ObserveDispatch(method, backend, outcome, elapsed)
	}
}

// snapshot returns the registry's candidate entries at one instant.
func (r *Registry) snapshot() []registryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]registryEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Clear removes all registered backends. Used for testing.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}
