// Package cache provides a small byte-oriented cache with Redis and
// in-process backends.
package cache

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Cache stores opaque values under string keys.
type Cache interface {
	// Get reports found=false on a miss.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ==================== In-process ====================

type memoryCache struct {
	c *gocache.Cache
}

// NewMemory returns a process-local cache with the given default TTL.
func NewMemory(defaultTTL time.Duration) Cache {
	return &memoryCache{c: gocache.New(defaultTTL, 2*defaultTTL)}
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if x, found := m.c.Get(key); found {
		return x.([]byte), true, nil
	}
	return nil, false, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.c.Set(key, value, ttl)
	return nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// ==================== Redis ====================

type redisCache struct {
	client *redis.Client
	prefix string
}

// NewRedis returns a cache shared across processes through Redis.
func NewRedis(client *redis.Client, prefix string) Cache {
	return &redisCache{client: client, prefix: prefix}
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *redisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
