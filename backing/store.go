// Package backing provides the key/value stores used to hold swapped-out
// process images.
package backing

import "errors"

var (
	// ErrNotFound is returned when a key has not been created.
	ErrNotFound = errors.New("backing store: key not found")
	// ErrExists is returned when creating a key that already exists.
	ErrExists = errors.New("backing store: key already exists")
	// ErrInvalidKey is returned for empty or malformed keys.
	ErrInvalidKey = errors.New("backing store: invalid key")
)

// Store is an opaque key to bytes store. Keys must be created before they can
// be written.
type Store interface {
	// Create makes an empty entry for key.
	Create(key string) error
	// Read returns a copy of the bytes stored under key.
	Read(key string) ([]byte, error)
	// Write replaces the bytes stored under key.
	Write(key string, data []byte) error
	// Delete removes key.
	Delete(key string) error
	// List returns every key in lexical order.
	List() ([]string, error)
	// Format removes every key.
	Format() error
}
