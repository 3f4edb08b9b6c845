package dispatch

import (
	"context"
	"sync"

	"github.com/petermattis/goid"
)

type scopeEntry struct {
	backends []*Backend
	only     bool
	coerce   bool
}

// ScopeOption adjusts a scoped backend selection.
type ScopeOption func(*scopeEntry)

// Only makes the scope exclusive: its backends are the only candidates,
// and neither outer scopes nor the permanent registry are consulted.
// Only does not imply coercion.
func Only() ScopeOption {
	return func(e *scopeEntry) { e.only = true }
}

// Coerce enables argument conversion for the scope's backends. A
// backend lacking a convertor for some dispatchable kind is skipped
// rather than failing the call.
func Coerce() ScopeOption {
	return func(e *scopeEntry) { e.coerce = true }
}

type scopeCtxKey struct{}

// scopeFrame is one immutable link in the context-carried scope chain.
// Leaving the scope is structural: callers go back to using the context
// they derived from, so the entry can never leak past its block.
type scopeFrame struct {
	outer *scopeFrame
	entry scopeEntry
}

// WithScope returns a context in which the given backends are preferred
// candidates for every Invoke that receives it. Scopes nest: the most
// recently derived context is consulted first.
func WithScope(ctx context.Context, backends []*Backend, opts ...ScopeOption) context.Context {
	entry := scopeEntry{backends: backends}
	for _, opt := range opts {
		opt(&entry)
	}
	outer, _ := ctx.Value(scopeCtxKey{}).(*scopeFrame)
	return context.WithValue(ctx, scopeCtxKey{}, &scopeFrame{outer: outer, entry: entry})
}

// ambientScopes holds one scope stack per goroutine, keyed by goroutine
// id. Goroutines never observe each other's pushes and pops.
var ambientScopes = struct {
	mu     sync.Mutex
	stacks map[int64][]*Scope
}{
	stacks: make(map[int64][]*Scope),
}

// Scope is the handle of one ambient scoped selection, returned by
// EnterScope and released by Exit.
type Scope struct {
	gid    int64
	entry  scopeEntry
	exited bool
}

// EnterScope pushes an ambient scope for the current goroutine and
// returns its handle. The caller must arrange for Exit to run on every
// path out of the block, typically with defer:
//
//	s := dispatch.EnterScope([]*dispatch.Backend{b}, dispatch.Only())
//	defer s.Exit()
//
// Use WithScope instead when the call path already threads a context.
func EnterScope(backends []*Backend, opts ...ScopeOption) *Scope {
	entry := scopeEntry{backends: backends}
	for _, opt := range opts {
		opt(&entry)
	}
	s := &Scope{gid: goid.Get(), entry: entry}
	ambientScopes.mu.Lock()
	defer ambientScopes.mu.Unlock()
	ambientScopes.stacks[s.gid] = append(ambientScopes.stacks[s.gid], s)
	return s
}

// Exit pops the scope. Exiting a scope that is not the top of its
// goroutine's stack, exiting twice, or exiting from another goroutine
// is a programming error and panics.
func (s *Scope) Exit() {
	ambientScopes.mu.Lock()
	defer ambientScopes.mu.Unlock()
	if s.exited {
		panic("dispatch: scope exited twice")
	}
	stack := ambientScopes.stacks[s.gid]
	if len(stack) == 0 || stack[len(stack)-1] != s {
		panic("dispatch: scope exit does not match the innermost entered scope")
	}
	s.exited = true
	if len(stack) == 1 {
		delete(ambientScopes.stacks, s.gid)
		return
	}
	ambientScopes.stacks[s.gid] = stack[:len(stack)-1]
}

// ambientEntries returns the current goroutine's scope entries,
// innermost first.
func ambientEntries() []scopeEntry {
	ambientScopes.mu.Lock()
	defer ambientScopes.mu.Unlock()
	stack := ambientScopes.stacks[goid.Get()]
	if len(stack) == 0 {
		return nil
	}
	out := make([]scopeEntry, 0, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		out = append(out, stack[i].entry)
	}
	return out
}

// candidate is one backend in resolution order together with the coerce
// flag of the occurrence that put it there.
type candidate struct {
	backend *Backend
	coerce  bool
}

// resolveCandidates builds the ordered candidate list for one call:
// context scopes innermost first, then the goroutine's ambient scopes
// innermost first, then the permanent registry in registration order.
// An entry marked Only cuts the walk off after its own backends. A
// backend appearing more than once keeps its first position and that
// occurrence's coerce flag.
func resolveCandidates(ctx context.Context, reg *Registry) []candidate {
	var out []candidate
	seen := make(map[BackendID]bool)
	add := func(e scopeEntry) {
		for _, b := range e.backends {
			if seen[b.id] {
				continue
			}
			seen[b.id] = true
			out = append(out, candidate{backend: b, coerce: e.coerce})
		}
	}

	for f, _ := ctx.Value(scopeCtxKey{}).(*scopeFrame); f != nil; f = f.outer {
		add(f.entry)
		if f.entry.only {
			return out
		}
	}
	for _, e := range ambientEntries() {
		add(e)
		if e.only {
			return out
		}
	}
	for _, e := range reg.snapshot() {
		add(scopeEntry{backends: []*Backend{e.backend}, coerce: e.coerce})
	}
	return out
}
