package dispatch

import (
	"context"
	"time"
)

// Marker identifies which of a call's arguments participate in
// dispatch, wrapping each as a Dispatchable. It is called once per
// invocation and must be pure.
type Marker func(args []any, kwargs map[string]any) []Dispatchable

// Replacer rebuilds the call's argument list with possibly-converted
// dispatchable values substituted back in. It exists because
// dispatchables need not be plain positional leaves; the replacer is
// the one place that knows where each wrapped value came from.
type Replacer func(args []any, kwargs map[string]any, dispatchables []Dispatchable) ([]any, map[string]any)

// Method is one declared multimethod: a stable identity plus the
// marker/replacer pair describing its dispatchable arguments.
type Method struct {
	id       MethodID
	name     string
	marker   Marker
	replacer Replacer
	registry *Registry
}

// MethodOption adjusts a method declaration.
type MethodOption func(*Method)

// WithRegistry binds the method to a registry other than
// DefaultRegistry.
func WithRegistry(r *Registry) MethodOption {
	return func(m *Method) { m.registry = r }
}

// NewMethod declares a multimethod. A nil marker means no argument
// participates in dispatch; a nil replacer passes arguments through
// untouched.
func NewMethod(name string, marker Marker, replacer Replacer, opts ...MethodOption) *Method {
	m := &Method{
		id:       NewMethodID(),
		name:     name,
		marker:   marker,
		replacer: replacer,
		registry: DefaultRegistry,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ID returns the method's identity.
func (m *Method) ID() MethodID {
	return m.id
}

// Name returns the method's display name.
func (m *Method) Name() string {
	return m.name
}

// Invoke resolves and runs the call against the active candidate
// backends.
//
// Candidates are tried in scope order. For a coercing candidate every
// dispatchable is first converted to the backend's representation; a
// failed conversion skips the candidate. A candidate with no matching
// implementation, or whose implementation declines, is likewise
// skipped. The first handled result wins. An implementation error
// stops the search and propagates verbatim. When no candidate handles
// the call, Invoke returns a *NotImplementedError.
func (m *Method) Invoke(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	start := time.Now()

	var dispatchables []Dispatchable
	if m.marker != nil {
		dispatchables = m.marker(args, kwargs)
	}

	candidates := resolveCandidates(ctx, m.registry)
	if len(candidates) == 0 {
		err := &NotImplementedError{Method: m.name}
		m.registry.observe(m.name, "", OutcomeNotImplemented, time.Since(start))
		return nil, err
	}

	for _, c := range candidates {
		effective := dispatchables
		if c.coerce && len(dispatchables) > 0 {
			converted, err := convertAll(dispatchables, c.backend.id)
			if err != nil {
				continue
			}
			effective = converted
		}

		callArgs, callKwargs := args, kwargs
		if m.replacer != nil {
			callArgs, callKwargs = m.replacer(args, kwargs, effective)
		}

		impl, ok := c.backend.lookup(m.id, effective)
		if !ok {
			continue
		}

		result, err := impl(ctx, Call{Method: m.name, Args: callArgs, Kwargs: callKwargs})
		if err != nil {
			m.registry.observe(m.name, c.backend.name, OutcomeError, time.Since(start))
			return nil, err
		}
		if result.IsDeclined() {
			continue
		}
		m.registry.observe(m.name, c.backend.name, OutcomeHandled, time.Since(start))
		return result.Value(), nil
	}

	m.registry.observe(m.name, "", OutcomeNotImplemented, time.Since(start))
	return nil, &NotImplementedError{Method: m.name}
}

// convertAll converts every dispatchable for one backend, keeping the
// original wrappers' kinds so the replacer still sees tagged values.
func convertAll(dispatchables []Dispatchable, backend BackendID) ([]Dispatchable, error) {
	out := make([]Dispatchable, len(dispatchables))
	for i, d := range dispatchables {
		v, err := Convert(d, backend)
		if err != nil {
			return nil, err
		}
		out[i] = Dispatchable{Kind: d.Kind, Value: v}
	}
	return out, nil
}
