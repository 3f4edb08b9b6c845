package dispatch

import "fmt"

// NotImplementedError is returned by Invoke when no candidate backend
// produced a handled result, or when no backend was configured at all.
// It is never recovered internally.
type NotImplementedError struct {
	// Method is the display name of the multimethod that failed.
	Method string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("no backend implements method %q", e.Method)
}

// NoConversionError reports a coercion-enabled candidate that lacks a
// registered convertor for some dispatchable kind. Dispatch recovers
// from it locally by skipping the candidate; callers only see it when
// they call Convert directly.
type NoConversionError struct {
	Kind    Kind
	Backend string
}

func (e *NoConversionError) Error() string {
	return fmt.Sprintf("no convertor registered for kind %q and backend %q", e.Kind, e.Backend)
}
