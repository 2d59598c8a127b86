package service

import (
	"context"
	"time"

	"content_sync/internal/domain"
)

// Refresh copies every non-empty remote collection into the local store so
// that the offline fallback stays close to the shared view. Promo cards are
// left alone because their local copy takes precedence.
func (c *Content) Refresh(ctx context.Context) (*domain.RefreshStats, error) {
	if c.remote == nil {
		return nil, domain.ErrRemoteNotConfigured
	}

	startTime := time.Now()
	stats := &domain.RefreshStats{}

	refreshCollection(ctx, c.Banners, stats)
	refreshCollection(ctx, c.Videos, stats)
	refreshCollection(ctx, c.Notices, stats)

	stats.Duration = time.Since(startTime)

	c.logger.Info("refresh completed",
		"refreshed", stats.Refreshed,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)

	return stats, nil
}

func refreshCollection[T domain.Entity[T]](ctx context.Context, repo *CollectionRepository[T], stats *domain.RefreshStats) {
	items, err := repo.pull(ctx)
	if err != nil {
		repo.logger.Warn("refresh read failed", "error", err)
		stats.Errors++
		return
	}
	if len(items) == 0 {
		stats.Skipped++
		return
	}

	repo.cache(ctx, items)
	stats.Refreshed++
}
