package backend

import "errors"

var (
	// ErrKeyNotFound indicates no value exists for the given key.
	ErrKeyNotFound = errors.New("backend: key not found")

	// ErrUnavailable indicates the backend cannot service the request
	// (permissions, disk full, missing OS facility).
	ErrUnavailable = errors.New("backend: unavailable")
)

// Backend is a key to byte-sequence store. Backends hold raw payloads only;
// metadata, quota and transforms are layered on top by the storage manager.
// Implementations must make single-key operations internally consistent.
type Backend interface {
	// Put stores data under key, replacing any existing value.
	Put(key string, data []byte) error

	// Get retrieves the value for key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)

	// Has reports whether key is present.
	Has(key string) (bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Keys returns all stored keys.
	Keys() ([]string, error)

	// Clear removes everything.
	Clear() error

	// Name identifies the backend in logs and errors.
	Name() string
}
