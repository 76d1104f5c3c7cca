package gateway_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nicolagi/appendgw/gateway"
	"github.com/nicolagi/appendgw/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu  sync.Mutex
	err error
}

func (s *fakeStore) Get([]byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nil, s.err
}

func (s *fakeStore) Put([]byte, []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeStore) Delete([]byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return false, s.err
}

func fetchList(t *testing.T, g *gateway.Gateway) []interface{} {
	t.Helper()
	value, err := g.Fetch(gateway.ReservedKey)
	require.Nil(t, err)
	var list []interface{}
	require.Nil(t, json.Unmarshal(value, &list))
	return list
}

func TestAppend(t *testing.T) {
	t.Run("first append yields a one element list", func(t *testing.T) {
		g := gateway.New(storage.NewInMemoryStore())
		key, length, err := g.Append([]byte(`{"value":"x"}`))
		require.Nil(t, err)
		assert.Equal(t, "datos", key)
		assert.Equal(t, 1, length)
		assert.Equal(t, []interface{}{"x"}, fetchList(t, g))
	})
	t.Run("appends keep their order", func(t *testing.T) {
		g := gateway.New(storage.NewInMemoryStore())
		var want []interface{}
		for i := 1; i <= 10; i++ {
			_, length, err := g.Append([]byte(fmt.Sprintf(`{"value":"x%d"}`, i)))
			require.Nil(t, err)
			assert.Equal(t, i, length)
			want = append(want, fmt.Sprintf("x%d", i))
		}
		assert.Equal(t, want, fetchList(t, g))
	})
	t.Run("value property is extracted", func(t *testing.T) {
		g := gateway.New(storage.NewInMemoryStore())
		_, _, err := g.Append([]byte(`{"value":7}`))
		require.Nil(t, err)
		_, _, err = g.Append([]byte(`{"foo":1}`))
		require.Nil(t, err)
		value, err := g.Fetch(gateway.ReservedKey)
		require.Nil(t, err)
		assert.JSONEq(t, `[7,{"foo":1}]`, string(value))
	})
	t.Run("empty payload appends an empty object", func(t *testing.T) {
		g := gateway.New(storage.NewInMemoryStore())
		_, length, err := g.Append(nil)
		require.Nil(t, err)
		assert.Equal(t, 1, length)
		value, err := g.Fetch(gateway.ReservedKey)
		require.Nil(t, err)
		assert.JSONEq(t, `[{}]`, string(value))
	})
	t.Run("falsy payloads append an empty object", func(t *testing.T) {
		g := gateway.New(storage.NewInMemoryStore())
		for _, payload := range []string{`null`, `0`, `false`, `""`} {
			_, _, err := g.Append([]byte(payload))
			require.Nil(t, err)
		}
		value, err := g.Fetch(gateway.ReservedKey)
		require.Nil(t, err)
		assert.JSONEq(t, `[{},{},{},{}]`, string(value))
	})
	t.Run("corrupted data becomes the first element", func(t *testing.T) {
		store := storage.NewInMemoryStore()
		require.Nil(t, store.Put([]byte("datos"), []byte("garbage{")))
		g := gateway.New(store)
		_, length, err := g.Append([]byte(`{"value":"a"}`))
		require.Nil(t, err)
		assert.Equal(t, 2, length)
		assert.Equal(t, []interface{}{"garbage{", "a"}, fetchList(t, g))
	})
	t.Run("non-array data becomes the first element", func(t *testing.T) {
		store := storage.NewInMemoryStore()
		require.Nil(t, store.Put([]byte("datos"), []byte(`{"old":true}`)))
		g := gateway.New(store)
		_, length, err := g.Append([]byte(`"new"`))
		require.Nil(t, err)
		assert.Equal(t, 2, length)
		value, err := g.Fetch(gateway.ReservedKey)
		require.Nil(t, err)
		assert.JSONEq(t, `[{"old":true},"new"]`, string(value))
	})
	t.Run("empty stored value counts as no data", func(t *testing.T) {
		store := storage.NewInMemoryStore()
		require.Nil(t, store.Put([]byte("datos"), []byte{}))
		g := gateway.New(store)
		_, length, err := g.Append([]byte(`{"value":1}`))
		require.Nil(t, err)
		assert.Equal(t, 1, length)
	})
	t.Run("last element is the appended item", func(t *testing.T) {
		g := gateway.New(storage.NewInMemoryStore())
		for _, payload := range []string{`1`, `{"value":[1,2]}`, `{"a":"b"}`, `{"value":null}`} {
			_, _, err := g.Append([]byte(payload))
			require.Nil(t, err)
		}
		list := fetchList(t, g)
		require.Len(t, list, 4)
		assert.Nil(t, list[3])
		assert.Equal(t, map[string]interface{}{"a": "b"}, list[2])
	})
	t.Run("payload not json", func(t *testing.T) {
		store := storage.NewInMemoryStore()
		g := gateway.New(store)
		_, _, err := g.Append([]byte(`{oops`))
		var perr *gateway.PayloadError
		assert.True(t, errors.As(err, &perr))
		_, err = store.Get([]byte("datos"))
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})
	t.Run("store errors are surfaced", func(t *testing.T) {
		g := gateway.New(&fakeStore{err: errors.New("connection refused")})
		key, _, err := g.Append([]byte(`{"value":1}`))
		assert.Equal(t, "datos", key)
		require.NotNil(t, err)
		assert.Equal(t, "connection refused", err.Error())
	})
}

func TestFetch(t *testing.T) {
	t.Run("never written key is not found", func(t *testing.T) {
		g := gateway.New(storage.NewInMemoryStore())
		_, err := g.Fetch("nope")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})
	t.Run("returns whatever json is stored", func(t *testing.T) {
		store := storage.NewInMemoryStore()
		require.Nil(t, store.Put([]byte("obj"), []byte(`{"a":1}`)))
		require.Nil(t, store.Put([]byte("num"), []byte(`3.5`)))
		g := gateway.New(store)
		value, err := g.Fetch("obj")
		require.Nil(t, err)
		assert.JSONEq(t, `{"a":1}`, string(value))
		value, err = g.Fetch("num")
		require.Nil(t, err)
		assert.JSONEq(t, `3.5`, string(value))
	})
	t.Run("malformed data is an error, not a miss", func(t *testing.T) {
		store := storage.NewInMemoryStore()
		require.Nil(t, store.Put([]byte("bad"), []byte(`{"a":`)))
		g := gateway.New(store)
		_, err := g.Fetch("bad")
		require.NotNil(t, err)
		assert.False(t, errors.Is(err, storage.ErrNotFound))
		var merr *gateway.MalformedDataError
		require.True(t, errors.As(err, &merr))
		assert.Equal(t, "bad", merr.Key)
		var serr *json.SyntaxError
		assert.True(t, errors.As(err, &serr))
	})
	t.Run("empty value is not found", func(t *testing.T) {
		store := storage.NewInMemoryStore()
		require.Nil(t, store.Put([]byte("empty"), []byte{}))
		g := gateway.New(store)
		_, err := g.Fetch("empty")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})
	t.Run("store errors are surfaced", func(t *testing.T) {
		g := gateway.New(&fakeStore{err: errors.New("i/o timeout")})
		_, err := g.Fetch("datos")
		require.NotNil(t, err)
		assert.False(t, errors.Is(err, storage.ErrNotFound))
		assert.Equal(t, "i/o timeout", err.Error())
	})
}

func TestRemove(t *testing.T) {
	g := gateway.New(storage.NewInMemoryStore())
	_, _, err := g.Append([]byte(`{"value":"a"}`))
	require.Nil(t, err)

	removed, err := g.Remove(gateway.ReservedKey)
	require.Nil(t, err)
	assert.True(t, removed)
	_, err = g.Fetch(gateway.ReservedKey)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	removed, err = g.Remove(gateway.ReservedKey)
	require.Nil(t, err)
	assert.False(t, removed)

	g = gateway.New(&fakeStore{err: errors.New("broken pipe")})
	_, err = g.Remove("x")
	assert.EqualError(t, err, "broken pipe")
}
