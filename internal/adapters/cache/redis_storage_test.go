package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natours-api/internal/config"
)

var _ fiber.Storage = (*RedisStorage)(nil)

func newTestStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStorage(client, ""), mr
}

func TestRedisStorageSetGetDelete(t *testing.T) {
	s, mr := newTestStorage(t)

	require.NoError(t, s.Set("1.2.3.4", []byte("hits"), time.Minute))
	assert.True(t, mr.Exists(DefaultPrefix+"1.2.3.4"))

	val, err := s.Get("1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, []byte("hits"), val)

	require.NoError(t, s.Delete("1.2.3.4"))
	val, err = s.Get("1.2.3.4")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestRedisStorageExpiry(t *testing.T) {
	s, mr := newTestStorage(t)

	require.NoError(t, s.Set("k", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	val, err := s.Get("k")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestRedisStorageResetKeepsForeignKeys(t *testing.T) {
	s, mr := newTestStorage(t)

	require.NoError(t, s.Set("a", []byte("1"), 0))
	require.NoError(t, s.Set("b", []byte("2"), 0))
	require.NoError(t, mr.Set("other:key", "x"))

	require.NoError(t, s.Reset())

	assert.False(t, mr.Exists(DefaultPrefix+"a"))
	assert.False(t, mr.Exists(DefaultPrefix+"b"))
	assert.True(t, mr.Exists("other:key"))
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	assert.NoError(t, client.Close())

	mr.Close()
	_, err = Connect(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	assert.Error(t, err)
}
