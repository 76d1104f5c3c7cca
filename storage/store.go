package storage

import (
	"errors"
)

// Store represents a key-value store.
type Store interface {
	Put(key, value []byte) (err error)

	// Get should return ErrNotFound if the key is not in the store.
	Get(key []byte) (value []byte, err error)

	// Delete removes the key, reporting whether it was there to begin with.
	// Deleting a key that is not in the store is not an error.
	Delete(key []byte) (removed bool, err error)
}

var (
	// ErrNotFound indicates a key is not in the store.
	ErrNotFound = errors.New("not found")
)

func dup(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
