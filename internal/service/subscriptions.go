package service

import (
	"context"
	"io"
	"sync"

	"content_sync/internal/domain"
)

// Handlers receive refreshed collections after remote changes. Nil
// handlers are not subscribed. OnPromosChange carries no data: promo reads
// apply local precedence, so the caller re-runs Get itself.
type Handlers struct {
	OnBannersChange func(banners []domain.Banner)
	OnVideosChange  func(videos []domain.VideoCard)
	OnNoticesChange func(notices []domain.Notice)
	OnPromosChange  func()
}

// SubscribeToChanges opens one feed subscription per handler. The returned
// function closes all of them and may be called any number of times.
func (c *Content) SubscribeToChanges(ctx context.Context, h Handlers) (unsubscribe func()) {
	if c.feed == nil {
		return func() {}
	}

	var closers []io.Closer
	open := func(collection domain.Collection, fn func(ctx context.Context)) {
		closer, err := c.feed.Subscribe(ctx, collection.Table(), fn)
		if err != nil {
			c.logger.Error("failed to subscribe to changes", "collection", string(collection), "error", err)
			return
		}
		closers = append(closers, closer)
	}

	if h.OnBannersChange != nil {
		open(domain.Banners, refetchOnChange(c.Banners, h.OnBannersChange))
	}
	if h.OnVideosChange != nil {
		open(domain.Videos, refetchOnChange(c.Videos, h.OnVideosChange))
	}
	if h.OnNoticesChange != nil {
		open(domain.Notices, refetchOnChange(c.Notices, h.OnNoticesChange))
	}
	if h.OnPromosChange != nil {
		open(domain.Promos, func(context.Context) { h.OnPromosChange() })
	}

	c.logger.Info("subscribed to remote changes", "channels", len(closers))

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, closer := range closers {
				if err := closer.Close(); err != nil {
					c.logger.Warn("failed to close subscription", "error", err)
				}
			}
		})
	}
}

// refetchOnChange re-reads the collection for every event instead of
// trusting the event body, overwrites the local snapshot and hands the
// result to handler.
func refetchOnChange[T domain.Entity[T]](repo *CollectionRepository[T], handler func([]T)) func(ctx context.Context) {
	return func(ctx context.Context) {
		items, err := repo.pull(ctx)
		if err != nil {
			repo.logger.Warn("re-fetch after change failed", "error", err)
			return
		}
		if items == nil {
			items = []T{}
		}

		repo.cache(ctx, items)
		handler(items)
	}
}
