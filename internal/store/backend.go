// Package store provides keyed persistence for spirit records and the
// current-spirit pointer. Backends know nothing about record contents.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/chrisrobison/ouija/internal/config"
)

// ErrNotFound is returned when a key or the pointer does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidKey is returned for keys outside the slug alphabet.
var ErrInvalidKey = errors.New("invalid key")

var keyPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Backend is the keyed storage abstraction behind the spirit store.
type Backend interface {
	// Read returns the raw bytes stored under key, or ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)
	// Write replaces any value stored under key.
	Write(ctx context.Context, key string, data []byte) error
	// Delete removes key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists every stored key in a stable order.
	Keys(ctx context.Context) ([]string, error)
	// ReadPointer returns the current-spirit id, or ErrNotFound.
	ReadPointer(ctx context.Context) (string, error)
	// WritePointer replaces the current-spirit id.
	WritePointer(ctx context.Context, id string) error
	Close() error
}

func checkKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Open creates the backend selected by cfg.Backend.
func Open(cfg config.StoreConfig) (Backend, error) {
	switch cfg.Backend {
	case "file":
		return NewFileBackend(cfg.Dir)
	case "redis":
		return NewRedisBackend(RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	case "sqlite":
		return NewSQLiteBackend(cfg.SQLitePath)
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}
