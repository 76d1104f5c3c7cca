// Package gateway implements appending JSON items to a list kept under a
// reserved key, and fetching or removing the JSON value under any key, on top
// of a storage.Store.
//
// Appends are a read followed by a write, with no locking and no conditional
// write. Two appends racing on the reserved key can both read the same list,
// and the later write then drops the item of the earlier one.
package gateway // import "github.com/nicolagi/appendgw/gateway"

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nicolagi/appendgw/storage"
	log "github.com/sirupsen/logrus"
)

// ReservedKey is where all appended items go.
const ReservedKey = "datos"

// PayloadError is returned by Append when the payload is not JSON. Its
// message is that of the underlying parse error.
type PayloadError struct {
	Err error
}

func (e *PayloadError) Error() string { return e.Err.Error() }

func (e *PayloadError) Unwrap() error { return e.Err }

// MalformedDataError is returned by Fetch when the stored bytes are not JSON.
// Its message is that of the underlying parse error.
type MalformedDataError struct {
	Key string
	Err error
}

func (e *MalformedDataError) Error() string { return e.Err.Error() }

func (e *MalformedDataError) Unwrap() error { return e.Err }

// Gateway holds no state besides the store, which it shares among all callers.
type Gateway struct {
	store storage.Store
}

func New(store storage.Store) *Gateway {
	return &Gateway{store: store}
}

// Append adds the item the payload stands for at the end of the list under
// ReservedKey, and returns that key and the new length of the list.
func (g *Gateway) Append(payload []byte) (key string, length int, err error) {
	key = ReservedKey
	item, err := extract(payload)
	if err != nil {
		return key, 0, err
	}
	stored, err := g.store.Get([]byte(key))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return key, 0, err
	}
	kind, list, err := base(stored)
	if err != nil {
		return key, 0, err
	}
	list = append(list, item)
	b, err := encode(list)
	if err != nil {
		return key, 0, err
	}
	if err := g.store.Put([]byte(key), b); err != nil {
		return key, 0, err
	}
	log.WithFields(log.Fields{
		"key":    key,
		"base":   kind,
		"length": len(list),
	}).Debug("Appended")
	return key, len(list), nil
}

// Fetch returns the JSON value stored under key. An error matching
// storage.ErrNotFound is returned if there is no such key, or if it holds
// zero bytes.
func (g *Gateway) Fetch(key string) (json.RawMessage, error) {
	stored, err := g.store.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("%.40q: empty value: %w", key, storage.ErrNotFound)
	}
	var value json.RawMessage
	if err := json.Unmarshal(stored, &value); err != nil {
		return nil, &MalformedDataError{Key: key, Err: err}
	}
	return value, nil
}

// Remove deletes key, reporting whether it existed.
func (g *Gateway) Remove(key string) (removed bool, err error) {
	return g.store.Delete([]byte(key))
}
