package dispatch

import "sync"

// Predicate decides whether a catch-all implementation applies to the
// dispatchable values of one call. A nil predicate accepts everything.
type Predicate func(dispatchables []Dispatchable) bool

type catchAll struct {
	pred Predicate
	impl Implementation
}

// Backend is one provider of method implementations. It holds a table
// keyed by method identity plus an ordered list of catch-all handlers
// consulted when no specific implementation exists.
//
// Backends are shared by reference between scopes and registries; the
// identity, not the table contents, is what lookup and equality use.
type Backend struct {
	id   BackendID
	name string

	mu       sync.RWMutex
	impls    map[MethodID]Implementation
	catchAll []catchAll
}

// NewBackend creates an empty backend. The name is used only for
// diagnostics and trace output.
func NewBackend(name string) *Backend {
	return &Backend{
		id:    NewBackendID(),
		name:  name,
		impls: make(map[MethodID]Implementation),
	}
}

// ID returns the backend's identity.
func (b *Backend) ID() BackendID {
	return b.id
}

// Name returns the backend's display name.
func (b *Backend) Name() string {
	return b.name
}

// Register installs impl as the backend's implementation of m,
// overwriting any previous registration for the same method.
//
// The implementation's signature is not validated against the method;
// a mismatch surfaces at call time as a normal invocation failure.
func (b *Backend) Register(m *Method, impl Implementation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.impls[m.ID()] = impl
}

// RegisterCatchAll appends a catch-all handler consulted, in
// registration order, for any method the backend has no specific
// implementation of. The predicate inspects the call's dispatchable
// values to decide applicability; pass nil to accept every call.
func (b *Backend) RegisterCatchAll(pred Predicate, impl Implementation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.catchAll = append(b.catchAll, catchAll{pred: pred, impl: impl})
}

// lookup returns the implementation serving the given method: the
// specific entry if present, else the first catch-all whose predicate
// accepts the dispatchables.
func (b *Backend) lookup(id MethodID, dispatchables []Dispatchable) (Implementation, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if impl, ok := b.impls[id]; ok {
		return impl, true
	}
	for _, ca := range b.catchAll {
		if ca.pred == nil || ca.pred(dispatchables) {
			return ca.impl, true
		}
	}
	return nil, false
}
