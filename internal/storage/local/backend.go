// Package local persists whole collections on the device running the
// application. Values are opaque text blobs keyed by collection name.
package local

import (
	"context"
	"errors"
	"fmt"

	"content_sync/internal/config"
	"content_sync/internal/domain"
)

// ErrQuotaExceeded is returned when a write would grow the store past its
// configured capacity. The previous value for the key is kept.
var ErrQuotaExceeded = errors.New("local storage quota exceeded")

// Backend is the raw key/text store behind an Adapter. Get returns
// domain.ErrNotFound for keys that were never written.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Open builds the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.LocalConfig) (Backend, error) {
	switch cfg.Driver {
	case config.LocalSQLite:
		return OpenSQLite(ctx, cfg.Path, cfg.MaxBytes)
	case config.LocalRedis:
		return OpenRedis(ctx, cfg.RedisURL, cfg.MaxBytes)
	case config.LocalMemory:
		return NewMemory(cfg.MaxBytes), nil
	}
	return nil, fmt.Errorf("unknown local driver %q", cfg.Driver)
}

func entrySize(key, value string) int64 {
	return int64(len(key) + len(value))
}

func notFound(key string) error {
	return fmt.Errorf("local key %q: %w", key, domain.ErrNotFound)
}
