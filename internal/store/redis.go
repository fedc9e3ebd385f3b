package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds configuration for Redis connection
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key prefix, default "ouija"
}

// RedisBackend stores spirits as Redis strings.
// Keys are "{prefix}:spirit:{id}" for records and "{prefix}:current" for the pointer.
type RedisBackend struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisBackend creates a new Redis backend with connection validation
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisBackendFromClient(rdb, cfg.Prefix), nil
}

// NewRedisBackendFromClient wraps an existing client
func NewRedisBackendFromClient(rdb *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "ouija"
	}
	return &RedisBackend{rdb: rdb, prefix: prefix}
}

func (b *RedisBackend) recordKey(key string) string {
	return fmt.Sprintf("%s:spirit:%s", b.prefix, key)
}

func (b *RedisBackend) pointerKey() string {
	return b.prefix + ":current"
}

func (b *RedisBackend) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := b.rdb.Get(ctx, b.recordKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (b *RedisBackend) Write(ctx context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := b.rdb.Set(ctx, b.recordKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.rdb.Del(ctx, b.recordKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Keys walks the keyspace with SCAN so large stores do not block Redis.
func (b *RedisBackend) Keys(ctx context.Context) ([]string, error) {
	prefix := b.recordKey("")
	var keys []string
	iter := b.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *RedisBackend) ReadPointer(ctx context.Context) (string, error) {
	id, err := b.rdb.Get(ctx, b.pointerKey()).Result()
	if errors.Is(err, redis.Nil) || (err == nil && strings.TrimSpace(id) == "") {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get pointer: %w", err)
	}
	return strings.TrimSpace(id), nil
}

func (b *RedisBackend) WritePointer(ctx context.Context, id string) error {
	if err := b.rdb.Set(ctx, b.pointerKey(), id, 0).Err(); err != nil {
		return fmt.Errorf("redis set pointer: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (b *RedisBackend) Close() error {
	return b.rdb.Close()
}
