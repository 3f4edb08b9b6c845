package dispatch

import "github.com/google/uuid"

// MethodID is the opaque identity of one multimethod. It is generated
// once when the method is declared and used verbatim as the lookup key
// in every backend's implementation table.
type MethodID uuid.UUID

// NewMethodID returns a fresh, unique method identity.
func NewMethodID() MethodID {
	return MethodID(uuid.New())
}

func (id MethodID) String() string {
	return uuid.UUID(id).String()
}

// BackendID is the opaque identity of one backend. Backends compare
// and hash by identity, never by the contents of their tables.
type BackendID uuid.UUID

// NewBackendID returns a fresh, unique backend identity.
func NewBackendID() BackendID {
	return BackendID(uuid.New())
}

func (id BackendID) String() string {
	return uuid.UUID(id).String()
}
