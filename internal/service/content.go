package service

import (
	"context"
	"log/slog"

	"content_sync/internal/domain"
)

// Remote bundles the remote store handles. A nil *Remote means no remote
// credentials are configured and every operation stays local.
type Remote struct {
	Banners CollectionStore[domain.Banner]
	Videos  CollectionStore[domain.VideoCard]
	Notices CollectionStore[domain.Notice]
	Promos  PromoStore

	// Feed is optional; without it SubscribeToChanges is a no-op.
	Feed ChangeFeed
	// Publisher is optional; it is set when the feed does not observe
	// database writes by itself.
	Publisher ChangePublisher
}

// Content is the entry point used by the UI layer.
type Content struct {
	Banners     *CollectionRepository[domain.Banner]
	Videos      *CollectionRepository[domain.VideoCard]
	Notices     *CollectionRepository[domain.Notice]
	TopPromo    *PromoRepository
	BottomPromo *PromoRepository

	remote  *Remote
	feed    ChangeFeed
	mirrors *mirrorer
	logger  *slog.Logger
}

func NewContent(remote *Remote, local LocalStore, logger *slog.Logger) *Content {
	logger = logger.With("component", "content")
	mirrors := &mirrorer{logger: logger}

	c := &Content{
		remote:  remote,
		mirrors: mirrors,
		logger:  logger,
	}

	if remote == nil {
		logger.Warn("remote store not configured, using local storage only")
		c.Banners = newCollectionRepository[domain.Banner](domain.Banners, nil, local, mirrors, logger)
		c.Videos = newCollectionRepository[domain.VideoCard](domain.Videos, nil, local, mirrors, logger)
		c.Notices = newCollectionRepository[domain.Notice](domain.Notices, nil, local, mirrors, logger)
		c.TopPromo = newPromoRepository(domain.PromoTop, nil, local, mirrors, logger)
		c.BottomPromo = newPromoRepository(domain.PromoBottom, nil, local, mirrors, logger)
		return c
	}

	mirrors.publisher = remote.Publisher
	c.feed = remote.Feed
	c.Banners = newCollectionRepository[domain.Banner](domain.Banners, remote.Banners, local, mirrors, logger)
	c.Videos = newCollectionRepository[domain.VideoCard](domain.Videos, remote.Videos, local, mirrors, logger)
	c.Notices = newCollectionRepository[domain.Notice](domain.Notices, remote.Notices, local, mirrors, logger)
	c.TopPromo = newPromoRepository(domain.PromoTop, remote.Promos, local, mirrors, logger)
	c.BottomPromo = newPromoRepository(domain.PromoBottom, remote.Promos, local, mirrors, logger)
	return c
}

// RemoteConfigured reports whether writes are mirrored to a remote store.
func (c *Content) RemoteConfigured() bool {
	return c.remote != nil
}

// Promo returns the repository for slot.
func (c *Content) Promo(slot domain.PromoSlot) *PromoRepository {
	if slot == domain.PromoBottom {
		return c.BottomPromo
	}
	return c.TopPromo
}

// Close waits for in-flight remote mirrors to finish.
func (c *Content) Close(ctx context.Context) error {
	return c.mirrors.wait(ctx)
}

func (c *Content) GetBanners(ctx context.Context) []domain.Banner {
	return c.Banners.Get(ctx)
}

func (c *Content) SaveBanners(ctx context.Context, banners []domain.Banner) *Mirror {
	return c.Banners.Save(ctx, banners)
}

func (c *Content) UpdateBanner(ctx context.Context, banner domain.Banner) *Mirror {
	return c.Banners.Update(ctx, banner)
}

func (c *Content) DeleteBanner(ctx context.Context, id string) *Mirror {
	return c.Banners.Delete(ctx, id)
}

func (c *Content) GetVideos(ctx context.Context) []domain.VideoCard {
	return c.Videos.Get(ctx)
}

func (c *Content) SaveVideos(ctx context.Context, videos []domain.VideoCard) *Mirror {
	return c.Videos.Save(ctx, videos)
}

func (c *Content) UpdateVideo(ctx context.Context, video domain.VideoCard) *Mirror {
	return c.Videos.Update(ctx, video)
}

func (c *Content) DeleteVideo(ctx context.Context, id string) *Mirror {
	return c.Videos.Delete(ctx, id)
}

func (c *Content) GetNotices(ctx context.Context) []domain.Notice {
	return c.Notices.Get(ctx)
}

func (c *Content) SaveNotices(ctx context.Context, notices []domain.Notice) *Mirror {
	return c.Notices.Save(ctx, notices)
}

func (c *Content) UpdateNotice(ctx context.Context, notice domain.Notice) *Mirror {
	return c.Notices.Update(ctx, notice)
}

func (c *Content) DeleteNotice(ctx context.Context, id string) *Mirror {
	return c.Notices.Delete(ctx, id)
}

func (c *Content) GetPromoCard(ctx context.Context) domain.PromoCard {
	return c.TopPromo.Get(ctx)
}

func (c *Content) SavePromoCard(ctx context.Context, promo domain.PromoCard) *Mirror {
	return c.TopPromo.Save(ctx, promo)
}

func (c *Content) GetBottomPromoCard(ctx context.Context) domain.PromoCard {
	return c.BottomPromo.Get(ctx)
}

func (c *Content) SaveBottomPromoCard(ctx context.Context, promo domain.PromoCard) *Mirror {
	return c.BottomPromo.Save(ctx, promo)
}
