package storage_test

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nicolagi/appendgw/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.Nil(t, err)
	defer mr.Close()
	store := storage.NewRedisStore(storage.NewRedisPool("redis://"+mr.Addr(), time.Second))
	defer func() {
		assert.Nil(t, store.Close())
	}()

	t.Run("sees values written by other clients", func(t *testing.T) {
		require.Nil(t, mr.Set("written-elsewhere", `{"a":1}`))
		value, err := store.Get([]byte("written-elsewhere"))
		require.Nil(t, err)
		assert.Equal(t, []byte(`{"a":1}`), value)
	})
	t.Run("writes are visible to other clients", func(t *testing.T) {
		require.Nil(t, store.Put([]byte("datos"), []byte(`["a"]`)))
		got, err := mr.Get("datos")
		require.Nil(t, err)
		assert.Equal(t, `["a"]`, got)
	})
	t.Run("delete removes the key from the server", func(t *testing.T) {
		require.Nil(t, mr.Set("ephemeral", "x"))
		removed, err := store.Delete([]byte("ephemeral"))
		require.Nil(t, err)
		assert.True(t, removed)
		assert.False(t, mr.Exists("ephemeral"))
	})
	t.Run("ping", func(t *testing.T) {
		assert.Nil(t, store.Ping())
	})
	t.Run("server errors are surfaced", func(t *testing.T) {
		mr.SetError("LOADING Redis is loading the dataset in memory")
		defer mr.SetError("")
		_, err := store.Get([]byte("anything"))
		require.NotNil(t, err)
		assert.False(t, errors.Is(err, storage.ErrNotFound))
		assert.Contains(t, err.Error(), "LOADING")
	})
}

func TestRedisStoreUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.Nil(t, err)
	addr := mr.Addr()
	mr.Close()

	store := storage.NewRedisStore(storage.NewRedisPool("redis://"+addr, 100*time.Millisecond))
	defer func() {
		_ = store.Close()
	}()
	assert.NotNil(t, store.Ping())
	_, err = store.Get([]byte("datos"))
	assert.NotNil(t, err)
	assert.False(t, errors.Is(err, storage.ErrNotFound))
	_, err = store.Delete([]byte("datos"))
	assert.NotNil(t, err)
	assert.NotNil(t, store.Put([]byte("datos"), []byte("[]")))
}
