package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/require"
)

type cachedReport struct {
	Name  string `json:"name"`
	Count int    `json:"msg_count"`
}

func newTestCache(t *testing.T) (*RedisCache, redismock.ClientMock) {
	t.Helper()

	client, mock := redismock.NewClientMock()
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
	})
	return NewRedisCacheWithClient(client, "msgstats:"), mock
}

func TestRedisCache_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		c, mock := newTestCache(t)
		mock.ExpectGet("msgstats:daily:a").RedisNil()

		var dest cachedReport
		found, err := c.Get(ctx, "daily:a", &dest)
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("hit", func(t *testing.T) {
		c, mock := newTestCache(t)
		mock.ExpectGet("msgstats:daily:b").SetVal(`{"name":"GNU/Weeb","msg_count":3}`)

		var dest cachedReport
		found, err := c.Get(ctx, "daily:b", &dest)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, cachedReport{Name: "GNU/Weeb", Count: 3}, dest)
	})

	t.Run("redis error", func(t *testing.T) {
		c, mock := newTestCache(t)
		mock.ExpectGet("msgstats:daily:c").SetErr(errors.New("connection refused"))

		var dest cachedReport
		found, err := c.Get(ctx, "daily:c", &dest)
		require.ErrorContains(t, err, "redis get daily:c")
		require.False(t, found)
	})

	t.Run("corrupted value", func(t *testing.T) {
		c, mock := newTestCache(t)
		mock.ExpectGet("msgstats:daily:d").SetVal("{not json")

		var dest cachedReport
		found, err := c.Get(ctx, "daily:d", &dest)
		require.ErrorContains(t, err, "decode cached daily:d")
		require.False(t, found)
	})
}

func TestRedisCache_Set(t *testing.T) {
	ctx := context.Background()
	value := cachedReport{Name: "GNU/Weeb", Count: 3}

	t.Run("success", func(t *testing.T) {
		c, mock := newTestCache(t)
		mock.ExpectSet("msgstats:daily:a", []byte(`{"name":"GNU/Weeb","msg_count":3}`), time.Minute).SetVal("OK")

		require.NoError(t, c.Set(ctx, "daily:a", value, time.Minute))
	})

	t.Run("redis error", func(t *testing.T) {
		c, mock := newTestCache(t)
		mock.ExpectSet("msgstats:daily:a", []byte(`{"name":"GNU/Weeb","msg_count":3}`), time.Minute).SetErr(errors.New("READONLY"))

		require.ErrorContains(t, c.Set(ctx, "daily:a", value, time.Minute), "redis set daily:a")
	})

	t.Run("unencodable value", func(t *testing.T) {
		c, _ := newTestCache(t)

		require.ErrorContains(t, c.Set(ctx, "daily:a", make(chan int), time.Minute), "encode daily:a")
	})
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var c Cache = Nop{}

	require.NoError(t, c.Set(ctx, "k", 1, time.Minute))
	found, err := c.Get(ctx, "k", new(int))
	require.NoError(t, err)
	require.False(t, found)
}
