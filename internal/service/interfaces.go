package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"io"

	"content_sync/internal/domain"
)

// CollectionStore is the remote side of one ordered collection.
type CollectionStore[T domain.Entity[T]] interface {
	List(ctx context.Context) ([]T, error)
	ReplaceAll(ctx context.Context, items []T) error
	Upsert(ctx context.Context, item T) error
	Delete(ctx context.Context, id string) error
}

type PromoStore interface {
	Get(ctx context.Context, slot domain.PromoSlot) (*domain.PromoCard, error)
	Upsert(ctx context.Context, slot domain.PromoSlot, promo domain.PromoCard) error
}

// LocalStore persists whole values on the device. Implementations log
// their own failures.
type LocalStore interface {
	Load(ctx context.Context, key string, dst any) bool
	Save(ctx context.Context, key string, value any) error
}

// ChangeFeed delivers a signal for every committed change to a remote
// table. fn runs until the returned closer is closed or ctx is done.
type ChangeFeed interface {
	Subscribe(ctx context.Context, table string, fn func(ctx context.Context)) (io.Closer, error)
}

type ChangePublisher interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
}
