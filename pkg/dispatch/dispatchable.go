package dispatch

import "sync"

// Kind names a category of dispatchable values (e.g. "Number",
// "ArrayType"). A kind declares raw values dispatchable via Wrap and
// owns the per-backend convertors that translate those values into a
// backend's own representation.
type Kind string

// Dispatchable tags one call argument as participating in backend
// dispatch and coercion. It is constructed fresh for every call and
// discarded once the call resolves; the raw value is never copied.
type Dispatchable struct {
	Kind  Kind
	Value any
}

// Wrap tags a raw value for dispatch purposes.
func (k Kind) Wrap(v any) Dispatchable {
	return Dispatchable{Kind: k, Value: v}
}

// RegisterConvertor stores fn as the convertor turning values of this
// kind into the given backend's representation.
func (k Kind) RegisterConvertor(backend BackendID, fn Convertor) {
	RegisterConvertor(k, backend, fn)
}

// Convertor translates a raw dispatchable value into the representation
// a specific backend expects. A returned error makes dispatch treat the
// owning candidate as unable to serve the call.
type Convertor func(value any) (any, error)

type convertorKey struct {
	kind    Kind
	backend BackendID
}

// convertorRegistry holds all registered convertors, keyed by
// (kind, backend). Registration typically happens at startup; reads
// happen concurrently during dispatch.
var convertorRegistry = struct {
	mu       sync.RWMutex
	registry map[convertorKey]Convertor
}{
	registry: make(map[convertorKey]Convertor),
}

// RegisterConvertor stores fn as the convertor for the given kind and
// backend. At most one convertor exists per (kind, backend) pair;
// re-registration overwrites.
func RegisterConvertor(kind Kind, backend BackendID, fn Convertor) {
	convertorRegistry.mu.Lock()
	defer convertorRegistry.mu.Unlock()
	convertorRegistry.registry[convertorKey{kind: kind, backend: backend}] = fn
}

// Convert translates d into the representation the given backend
// expects. It returns a *NoConversionError when no convertor is
// registered for d's kind and that backend.
func Convert(d Dispatchable, backend BackendID) (any, error) {
	convertorRegistry.mu.RLock()
	fn, ok := convertorRegistry.registry[convertorKey{kind: d.Kind, backend: backend}]
	convertorRegistry.mu.RUnlock()
	if !ok {
		return nil, &NoConversionError{Kind: d.Kind, Backend: backend.String()}
	}
	return fn(d.Value)
}

// ClearConvertors removes all registered convertors. Used for testing.
func ClearConvertors() {
	convertorRegistry.mu.Lock()
	defer convertorRegistry.mu.Unlock()
	convertorRegistry.registry = make(map[convertorKey]Convertor)
}
