package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AlekseyZapadovnikov/msg-stats/conf"
)

// Cache хранит готовые отчёты между запросами.
type Cache interface {
	// Get декодирует значение в dest. Второй результат false, если ключа нет.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// RedisCache - реализация Cache поверх Redis, значения хранятся в JSON.
type RedisCache struct {
	client redis.Cmdable
	prefix string
}

// NewRedisCache подключается к Redis и проверяет соединение.
func NewRedisCache(ctx context.Context, cfg conf.RedisConf) (*RedisCache, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}

	return NewRedisCacheWithClient(client, cfg.Prefix), client, nil
}

// NewRedisCacheWithClient оборачивает готовый клиент, например redismock в тестах.
func NewRedisCacheWithClient(client redis.Cmdable, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s for cache: %w", key, err)
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Nop ничего не хранит. Используется, когда Redis выключен.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error) { return false, nil }

func (Nop) Set(context.Context, string, any, time.Duration) error { return nil }
