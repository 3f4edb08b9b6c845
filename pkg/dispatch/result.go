package dispatch

import "context"

// Call carries the reconstructed argument list an implementation is
// invoked with. Kwargs may be nil when the method takes no keyword
// arguments. Method is the display name of the invoked multimethod,
// which lets one catch-all implementation serve a whole method family.
type Call struct {
	Method string
	Args   []any
	Kwargs map[string]any
}

// Implementation is one backend-registered handler for a method.
//
// Returning a Declined result means "this input is not mine" and moves
// dispatch on to the next candidate backend. Returning a non-nil error
// means the computation itself failed; dispatch stops and the error
// propagates to the caller unchanged.
type Implementation func(ctx context.Context, call Call) (Result, error)

// Result is the tagged outcome of one implementation attempt: either a
// handled value or an explicit refusal to handle the call.
type Result struct {
	value   any
	handled bool
}

// Handled wraps a real result value. Dispatch returns it to the caller
// immediately; no further candidates are tried.
func Handled(v any) Result {
	return Result{value: v, handled: true}
}

// Declined reports that the implementation does not handle this input.
// Dispatch continues with the next candidate backend.
func Declined() Result {
	return Result{}
}

// IsDeclined reports whether the implementation refused the call.
func (r Result) IsDeclined() bool {
	return !r.handled
}

// Value returns the handled value; nil when the result was declined.
func (r Result) Value() any {
	return r.value
}
