package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"content_sync/internal/domain"
)

// Adapter serializes values to JSON on top of a Backend. Failures are
// logged here; callers may ignore the returned error.
type Adapter struct {
	backend Backend
	prefix  string
	logger  *slog.Logger
}

func NewAdapter(backend Backend, prefix string, logger *slog.Logger) *Adapter {
	return &Adapter{
		backend: backend,
		prefix:  prefix,
		logger:  logger.With("component", "local_store"),
	}
}

// Save replaces the value stored under key.
func (a *Adapter) Save(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		a.logger.Error("failed to encode local value", "key", key, "error", err)
		return fmt.Errorf("encode %s: %w", key, err)
	}

	if err := a.backend.Set(ctx, a.prefix+key, string(data)); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			a.logger.Warn("storage limit exceeded, write dropped", "key", key, "bytes", len(data))
		} else {
			a.logger.Error("failed to write local value", "key", key, "error", err)
		}
		return fmt.Errorf("store %s: %w", key, err)
	}

	return nil
}

// Load decodes the value stored under key into dst. It returns false when
// nothing is stored or the stored text cannot be decoded; the caller then
// uses its default.
func (a *Adapter) Load(ctx context.Context, key string, dst any) bool {
	text, err := a.backend.Get(ctx, a.prefix+key)
	if errors.Is(err, domain.ErrNotFound) {
		return false
	}
	if err != nil {
		a.logger.Warn("failed to read local value", "key", key, "error", err)
		return false
	}

	if err := json.Unmarshal([]byte(text), dst); err != nil {
		a.logger.Warn("discarding corrupt local value", "key", key, "error", err)
		return false
	}

	return true
}

func (a *Adapter) Close() error {
	return a.backend.Close()
}
