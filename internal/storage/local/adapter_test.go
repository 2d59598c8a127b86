package local

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content_sync/internal/domain"
)

func newTestAdapter(maxBytes int64) (*Adapter, *Memory) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	mem := NewMemory(maxBytes)
	return NewAdapter(mem, "vh_", logger), mem
}

func TestAdapter_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	adapter, mem := newTestAdapter(0)

	banners := []domain.Banner{{ID: "a", Title: "First", SortOrder: 0}}
	require.NoError(t, adapter.Save(ctx, "banners", banners))

	raw, err := mem.Get(ctx, "vh_banners")
	require.NoError(t, err)
	assert.Contains(t, raw, `"imageUrl"`)

	var loaded []domain.Banner
	assert.True(t, adapter.Load(ctx, "banners", &loaded))
	assert.Equal(t, banners, loaded)
}

func TestAdapter_LoadMissing(t *testing.T) {
	adapter, _ := newTestAdapter(0)

	var loaded []domain.Notice
	assert.False(t, adapter.Load(context.Background(), "notices", &loaded))
	assert.Nil(t, loaded)
}

func TestAdapter_LoadCorrupt(t *testing.T) {
	ctx := context.Background()
	adapter, mem := newTestAdapter(0)
	require.NoError(t, mem.Set(ctx, "vh_promo", "{not json"))

	var promo domain.PromoCard
	assert.False(t, adapter.Load(ctx, "promo", &promo))
}

func TestAdapter_SaveQuotaExceeded(t *testing.T) {
	ctx := context.Background()
	adapter, _ := newTestAdapter(32)

	err := adapter.Save(ctx, "notices", []domain.Notice{{ID: "n1", Title: "a title long enough to overflow"}})
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	var loaded []domain.Notice
	assert.False(t, adapter.Load(ctx, "notices", &loaded))
}

func TestAdapter_SaveUnencodable(t *testing.T) {
	adapter, _ := newTestAdapter(0)

	err := adapter.Save(context.Background(), "bad", make(chan int))
	assert.ErrorContains(t, err, "encode bad")
}
