// Package dispatch implements backend-pluggable multimethod dispatch.
//
// A multimethod is a callable with no fixed implementation. Independent
// backends register competing implementations for it, and every call is
// resolved, per dynamic scope, against the set of eligible backends:
//
//	var potato = dispatch.NewBackend("potato")
//	m := dispatch.NewMethod("fruit", nil, nil)
//	potato.Register(m, func(ctx context.Context, call dispatch.Call) (dispatch.Result, error) {
//	    return dispatch.Handled("Potato"), nil
//	})
//	dispatch.Register(potato)
//
//	out, err := m.Invoke(context.Background(), nil, nil)
//
// Backend selection is controlled three ways, from innermost to
// outermost: scopes carried on the context (WithScope), ambient
// per-goroutine scopes (EnterScope/Exit), and the permanent registry
// (Register). A scope entered with Only() is exclusive and cuts off
// everything outside it.
//
// Arguments that should participate in dispatch are wrapped as
// Dispatchable values by the method's Marker. When a candidate backend
// carries the coerce flag, every dispatchable is first converted to that
// backend's representation through a registered Convertor; a missing
// convertor skips the candidate instead of failing the call.
//
// Implementations report applicability through the Result type: Handled
// stops the search, Declined moves on to the next candidate. An error
// returned by an implementation is a genuine failure and propagates to
// the caller without trying further backends.
package dispatch
