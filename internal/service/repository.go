package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"content_sync/internal/domain"
)

// CollectionRepository reconciles one ordered collection between the local
// store and the optional remote store. Writes land locally first and are
// mirrored to remote in the background; reads prefer a non-empty remote.
type CollectionRepository[T domain.Entity[T]] struct {
	collection domain.Collection
	remote     CollectionStore[T]
	local      LocalStore
	mirrors    *mirrorer
	logger     *slog.Logger

	// mu serializes local read-modify-write cycles on this collection's key
	// and the order in which their mirrors are queued.
	mu    sync.Mutex
	queue mirrorQueue
}

func newCollectionRepository[T domain.Entity[T]](
	collection domain.Collection,
	remote CollectionStore[T],
	local LocalStore,
	mirrors *mirrorer,
	logger *slog.Logger,
) *CollectionRepository[T] {
	return &CollectionRepository[T]{
		collection: collection,
		remote:     remote,
		local:      local,
		mirrors:    mirrors,
		logger:     logger.With("collection", string(collection)),
	}
}

// Get returns the remote collection when it has at least one row and the
// local snapshot otherwise. It never fails.
func (r *CollectionRepository[T]) Get(ctx context.Context) []T {
	if r.remote != nil {
		items, err := r.remote.List(ctx)
		switch {
		case err != nil:
			r.logger.Warn("remote read failed, using local cache", "error", err)
		case len(items) > 0:
			return items
		default:
			r.logger.Debug("remote collection empty, using local cache")
		}
	}

	return r.loadLocal(ctx)
}

// Save replaces the whole collection. sort_order is reassigned from the
// position of each item.
func (r *CollectionRepository[T]) Save(ctx context.Context, items []T) *Mirror {
	for _, item := range items {
		if err := item.Validate(); err != nil {
			r.logger.Warn("rejected collection save", "error", err)
			return completedMirror(err)
		}
	}

	ordered := reorder(items)

	r.mu.Lock()
	defer r.mu.Unlock()

	_ = r.local.Save(ctx, r.collection.LocalKey(), ordered)

	return r.mirror(ctx, domain.ActionReplace, "", func(ctx context.Context) error {
		return r.remote.ReplaceAll(ctx, ordered)
	})
}

// Update replaces the cached entry with the same id and upserts it remotely.
func (r *CollectionRepository[T]) Update(ctx context.Context, item T) *Mirror {
	if err := item.Validate(); err != nil {
		r.logger.Warn("rejected update", "error", err)
		return completedMirror(err)
	}

	id := item.EntityID()

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.loadLocal(ctx)
	found := false
	for i := range current {
		if current[i].EntityID() == id {
			current[i] = item
			found = true
		}
	}
	if found {
		_ = r.local.Save(ctx, r.collection.LocalKey(), current)
	} else {
		r.logger.Debug("updated entry not in local cache", "id", id)
	}

	return r.mirror(ctx, domain.ActionUpsert, id, func(ctx context.Context) error {
		return r.remote.Upsert(ctx, item)
	})
}

// Delete removes the entry locally, renumbering the rest, and deletes the
// single remote row.
func (r *CollectionRepository[T]) Delete(ctx context.Context, id string) *Mirror {
	if id == "" {
		err := fmt.Errorf("%w: delete without id", domain.ErrInvalidEntity)
		r.logger.Warn("rejected delete", "error", err)
		return completedMirror(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.loadLocal(ctx)
	kept := make([]T, 0, len(current))
	for _, item := range current {
		if item.EntityID() != id {
			kept = append(kept, item)
		}
	}
	_ = r.local.Save(ctx, r.collection.LocalKey(), reorder(kept))

	return r.mirror(ctx, domain.ActionDelete, id, func(ctx context.Context) error {
		return r.remote.Delete(ctx, id)
	})
}

// Cached returns the local snapshot without consulting remote.
func (r *CollectionRepository[T]) Cached(ctx context.Context) []T {
	return r.loadLocal(ctx)
}

// pull reads the remote collection for subscription and refresh paths.
func (r *CollectionRepository[T]) pull(ctx context.Context) ([]T, error) {
	if r.remote == nil {
		return nil, domain.ErrRemoteNotConfigured
	}
	return r.remote.List(ctx)
}

// cache overwrites the local snapshot with items as delivered by remote.
func (r *CollectionRepository[T]) cache(ctx context.Context, items []T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.local.Save(ctx, r.collection.LocalKey(), items)
}

func (r *CollectionRepository[T]) loadLocal(ctx context.Context) []T {
	var items []T
	if !r.local.Load(ctx, r.collection.LocalKey(), &items) || items == nil {
		return []T{}
	}
	return items
}

func (r *CollectionRepository[T]) mirror(ctx context.Context, action, id string, fn func(ctx context.Context) error) *Mirror {
	if r.remote == nil {
		return completedMirror(nil)
	}
	event := domain.ChangeEvent{Table: r.collection.Table(), Action: action, ID: id}
	return r.mirrors.start(ctx, &r.queue, event, r.logger, fn)
}

func reorder[T domain.Entity[T]](items []T) []T {
	ordered := make([]T, len(items))
	for i, item := range items {
		ordered[i] = item.WithSortOrder(i)
	}
	return ordered
}

// PromoRepository manages the singleton card of one promo slot.
type PromoRepository struct {
	slot    domain.PromoSlot
	remote  PromoStore
	local   LocalStore
	mirrors *mirrorer
	logger  *slog.Logger
	mu      sync.Mutex
	queue   mirrorQueue
}

func newPromoRepository(slot domain.PromoSlot, remote PromoStore, local LocalStore, mirrors *mirrorer, logger *slog.Logger) *PromoRepository {
	return &PromoRepository{
		slot:    slot,
		remote:  remote,
		local:   local,
		mirrors: mirrors,
		logger:  logger.With("collection", string(domain.Promos), "slot", string(slot)),
	}
}

// Get returns the local card when it is meaningful, so an unconfirmed
// local edit is never replaced by a sparser remote row. Otherwise it reads
// remote, then falls back to the empty card.
func (r *PromoRepository) Get(ctx context.Context) domain.PromoCard {
	var cached domain.PromoCard
	if r.local.Load(ctx, r.slot.LocalKey(), &cached) && cached.Meaningful() {
		return cached
	}

	if r.remote != nil {
		promo, err := r.remote.Get(ctx, r.slot)
		switch {
		case err == nil:
			return *promo
		case errors.Is(err, domain.ErrNotFound):
			r.logger.Debug("promo row missing remotely")
		default:
			r.logger.Warn("remote promo read failed", "error", err)
		}
	}

	return domain.PromoCard{}
}

// Save writes the full card locally and upserts it remotely under the slot key.
func (r *PromoRepository) Save(ctx context.Context, promo domain.PromoCard) *Mirror {
	r.mu.Lock()
	defer r.mu.Unlock()

	_ = r.local.Save(ctx, r.slot.LocalKey(), promo)

	if r.remote == nil {
		return completedMirror(nil)
	}

	event := domain.ChangeEvent{Table: domain.Promos.Table(), Action: domain.ActionUpsert, ID: string(r.slot)}
	return r.mirrors.start(ctx, &r.queue, event, r.logger, func(ctx context.Context) error {
		return r.remote.Upsert(ctx, r.slot, promo)
	})
}

// Refresh replaces the local card with the remote row. Get never does this
// on its own once a meaningful local card exists.
func (r *PromoRepository) Refresh(ctx context.Context) (domain.PromoCard, error) {
	if r.remote == nil {
		return domain.PromoCard{}, domain.ErrRemoteNotConfigured
	}

	promo, err := r.remote.Get(ctx, r.slot)
	if err != nil {
		return domain.PromoCard{}, fmt.Errorf("refresh promo %s: %w", r.slot, err)
	}

	r.mu.Lock()
	_ = r.local.Save(ctx, r.slot.LocalKey(), *promo)
	r.mu.Unlock()

	return *promo, nil
}
