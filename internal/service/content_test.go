package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"content_sync/internal/domain"
	"content_sync/internal/service/mocks"
	"content_sync/internal/storage/local"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

type ContentTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	banners   *mocks.MockCollectionStore[domain.Banner]
	videos    *mocks.MockCollectionStore[domain.VideoCard]
	notices   *mocks.MockCollectionStore[domain.Notice]
	promos    *mocks.MockPromoStore
	feed      *mocks.MockChangeFeed
	publisher *mocks.MockChangePublisher

	local   *local.Adapter
	content *Content
	logger  *slog.Logger
}

func (s *ContentTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.banners = mocks.NewMockCollectionStore[domain.Banner](s.ctrl)
	s.videos = mocks.NewMockCollectionStore[domain.VideoCard](s.ctrl)
	s.notices = mocks.NewMockCollectionStore[domain.Notice](s.ctrl)
	s.promos = mocks.NewMockPromoStore(s.ctrl)
	s.feed = mocks.NewMockChangeFeed(s.ctrl)
	s.publisher = mocks.NewMockChangePublisher(s.ctrl)

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.local = local.NewAdapter(local.NewMemory(0), "vh_", s.logger)

	s.content = NewContent(&Remote{
		Banners: s.banners,
		Videos:  s.videos,
		Notices: s.notices,
		Promos:  s.promos,
		Feed:    s.feed,
	}, s.local, s.logger)
}

func (s *ContentTestSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.NoError(s.content.Close(ctx))
	s.ctrl.Finish()
}

func TestContentTestSuite(t *testing.T) {
	suite.Run(t, new(ContentTestSuite))
}

func (s *ContentTestSuite) cachedBanners() []domain.Banner {
	return s.content.Banners.Cached(context.Background())
}

func (s *ContentTestSuite) TestSaveBanners_RemoteFailureKeepsLocal() {
	ctx := context.Background()
	remoteErr := errors.New("connection refused")

	s.banners.EXPECT().ReplaceAll(gomock.Any(), gomock.Any()).Return(remoteErr)

	mirror := s.content.SaveBanners(ctx, []domain.Banner{{ID: "a", Title: "First"}})

	s.Equal([]domain.Banner{{ID: "a", Title: "First", SortOrder: 0}}, s.cachedBanners())
	s.ErrorIs(mirror.Wait(ctx), remoteErr)
	s.ErrorIs(mirror.Err(), remoteErr)

	s.banners.EXPECT().List(gomock.Any()).Return(nil, remoteErr)
	s.Equal([]domain.Banner{{ID: "a", Title: "First", SortOrder: 0}}, s.content.GetBanners(ctx))
}

func (s *ContentTestSuite) TestSaveBanners_ReassignsSortOrder() {
	ctx := context.Background()
	expected := []domain.Banner{
		{ID: "b", SortOrder: 0},
		{ID: "a", SortOrder: 1},
		{ID: "c", SortOrder: 2},
	}

	s.banners.EXPECT().ReplaceAll(gomock.Any(), expected).Return(nil)

	mirror := s.content.SaveBanners(ctx, []domain.Banner{
		{ID: "b", SortOrder: 7},
		{ID: "a", SortOrder: 7},
		{ID: "c", SortOrder: 0},
	})

	s.NoError(mirror.Wait(ctx))
	s.Equal(expected, s.cachedBanners())
}

func (s *ContentTestSuite) TestSaveBanners_InvalidEntityIsRejected() {
	ctx := context.Background()
	s.Require().NoError(s.local.Save(ctx, domain.Banners.LocalKey(), []domain.Banner{{ID: "keep"}}))

	mirror := s.content.SaveBanners(ctx, []domain.Banner{{ID: "ok"}, {Title: "no id"}})

	s.ErrorIs(mirror.Wait(ctx), domain.ErrInvalidEntity)
	s.Equal([]domain.Banner{{ID: "keep"}}, s.cachedBanners())
}

func (s *ContentTestSuite) TestGetBanners_RemoteTakesPrecedence() {
	ctx := context.Background()
	s.Require().NoError(s.local.Save(ctx, domain.Banners.LocalKey(), []domain.Banner{{ID: "x"}}))

	s.banners.EXPECT().List(gomock.Any()).Return([]domain.Banner{{ID: "y"}}, nil)

	s.Equal([]domain.Banner{{ID: "y"}}, s.content.GetBanners(ctx))
	s.Equal([]domain.Banner{{ID: "x"}}, s.cachedBanners())
}

func (s *ContentTestSuite) TestGetVideos_EmptyRemoteFallsBackToLocal() {
	ctx := context.Background()
	cached := []domain.VideoCard{{ID: "v1", Title: "Intro", Duration: "1:30"}}
	s.Require().NoError(s.local.Save(ctx, domain.Videos.LocalKey(), cached))

	s.videos.EXPECT().List(gomock.Any()).Return([]domain.VideoCard{}, nil)

	s.Equal(cached, s.content.GetVideos(ctx))
}

func (s *ContentTestSuite) TestGetNotices_NothingAnywhere() {
	s.notices.EXPECT().List(gomock.Any()).Return(nil, nil)

	notices := s.content.GetNotices(context.Background())
	s.NotNil(notices)
	s.Empty(notices)
}

func (s *ContentTestSuite) TestUpdateNotice_Idempotent() {
	ctx := context.Background()
	s.Require().NoError(s.local.Save(ctx, domain.Notices.LocalKey(), []domain.Notice{
		{ID: "n1", Title: "Old", SortOrder: 0},
		{ID: "n2", Title: "Other", SortOrder: 1},
	}))

	updated := domain.Notice{ID: "n1", Title: "New", Content: "Body", Date: "2024-05-01", SortOrder: 0}
	s.notices.EXPECT().Upsert(gomock.Any(), updated).Return(nil).Times(2)

	s.NoError(s.content.UpdateNotice(ctx, updated).Wait(ctx))
	first := s.content.Notices.Cached(ctx)

	s.NoError(s.content.UpdateNotice(ctx, updated).Wait(ctx))
	second := s.content.Notices.Cached(ctx)

	s.Equal(first, second)
	s.Equal([]domain.Notice{updated, {ID: "n2", Title: "Other", SortOrder: 1}}, second)
}

func (s *ContentTestSuite) TestUpdateVideo_MissingIDLeavesLocalUnchanged() {
	ctx := context.Background()
	cached := []domain.VideoCard{{ID: "v1"}}
	s.Require().NoError(s.local.Save(ctx, domain.Videos.LocalKey(), cached))

	s.videos.EXPECT().Upsert(gomock.Any(), domain.VideoCard{ID: "v9"}).Return(nil)

	s.NoError(s.content.UpdateVideo(ctx, domain.VideoCard{ID: "v9"}).Wait(ctx))
	s.Equal(cached, s.content.Videos.Cached(ctx))
}

func (s *ContentTestSuite) TestDeleteBanner_RenumbersAndDeletesSingleRow() {
	ctx := context.Background()
	s.Require().NoError(s.local.Save(ctx, domain.Banners.LocalKey(), []domain.Banner{
		{ID: "a", SortOrder: 0},
		{ID: "b", SortOrder: 1},
		{ID: "c", SortOrder: 2},
	}))

	s.banners.EXPECT().Delete(gomock.Any(), "b").Return(nil)

	s.NoError(s.content.DeleteBanner(ctx, "b").Wait(ctx))

	s.Equal([]domain.Banner{{ID: "a", SortOrder: 0}, {ID: "c", SortOrder: 1}}, s.cachedBanners())
}

func (s *ContentTestSuite) TestDeleteBanner_EmptyIDIsRejected() {
	ctx := context.Background()

	s.ErrorIs(s.content.DeleteBanner(ctx, "").Wait(ctx), domain.ErrInvalidEntity)
}

func (s *ContentTestSuite) TestGetPromoCard_LocalTakesPrecedence() {
	ctx := context.Background()
	card := domain.PromoCard{Title: "Summer sale", ButtonText: "Go", IsActive: true}
	s.Require().NoError(s.local.Save(ctx, domain.PromoTop.LocalKey(), card))

	s.Equal(card, s.content.GetPromoCard(ctx))
}

func (s *ContentTestSuite) TestGetPromoCard_EmptyLocalReadsRemote() {
	ctx := context.Background()
	s.Require().NoError(s.local.Save(ctx, domain.PromoTop.LocalKey(), domain.PromoCard{}))

	remote := &domain.PromoCard{Title: "Remote", Description: "From server"}
	s.promos.EXPECT().Get(gomock.Any(), domain.PromoTop).Return(remote, nil)

	s.Equal(*remote, s.content.GetPromoCard(ctx))
}

func (s *ContentTestSuite) TestGetBottomPromoCard_MissingEverywhere() {
	s.promos.EXPECT().Get(gomock.Any(), domain.PromoBottom).Return(nil, domain.ErrNotFound)

	s.Equal(domain.PromoCard{}, s.content.GetBottomPromoCard(context.Background()))
}

func (s *ContentTestSuite) TestSaveBottomPromoCard_WritesSlotKey() {
	ctx := context.Background()
	card := domain.PromoCard{Title: "Bottom", ButtonLink: "https://example.com", IsActive: true}

	s.promos.EXPECT().Upsert(gomock.Any(), domain.PromoBottom, card).Return(nil)

	s.NoError(s.content.SaveBottomPromoCard(ctx, card).Wait(ctx))

	var cached domain.PromoCard
	s.True(s.local.Load(ctx, "bottom_promo", &cached))
	s.Equal(card, cached)
}

func (s *ContentTestSuite) TestPromoRefresh_OverwritesLocal() {
	ctx := context.Background()
	s.Require().NoError(s.local.Save(ctx, domain.PromoTop.LocalKey(), domain.PromoCard{Title: "Stale"}))

	s.promos.EXPECT().Get(gomock.Any(), domain.PromoTop).Return(&domain.PromoCard{Title: "Fresh"}, nil)

	promo, err := s.content.Promo(domain.PromoTop).Refresh(ctx)
	s.NoError(err)
	s.Equal("Fresh", promo.Title)
	s.Equal("Fresh", s.content.GetPromoCard(ctx).Title)
}

func (s *ContentTestSuite) TestSubscribeToChanges_RefetchesAndCaches() {
	ctx := context.Background()
	s.Require().NoError(s.local.Save(ctx, domain.Banners.LocalKey(), []domain.Banner{{ID: "old"}}))

	var onChange func(context.Context)
	closed := 0
	s.feed.EXPECT().Subscribe(gomock.Any(), "banners", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, fn func(context.Context)) (io.Closer, error) {
			onChange = fn
			return closerFunc(func() error { closed++; return nil }), nil
		},
	)

	remote := []domain.Banner{{ID: "new", SortOrder: 0}}
	s.banners.EXPECT().List(gomock.Any()).Return(remote, nil).Times(1)

	var received [][]domain.Banner
	unsubscribe := s.content.SubscribeToChanges(ctx, Handlers{
		OnBannersChange: func(banners []domain.Banner) { received = append(received, banners) },
	})
	s.Require().NotNil(onChange)

	onChange(ctx)

	s.Equal([][]domain.Banner{remote}, received)
	s.Equal(remote, s.cachedBanners())

	unsubscribe()
	unsubscribe()
	s.Equal(1, closed)
}

func (s *ContentTestSuite) TestSubscribeToChanges_RefetchFailureKeepsLocal() {
	ctx := context.Background()
	s.Require().NoError(s.local.Save(ctx, domain.Notices.LocalKey(), []domain.Notice{{ID: "n1"}}))

	var onChange func(context.Context)
	s.feed.EXPECT().Subscribe(gomock.Any(), "notices", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, fn func(context.Context)) (io.Closer, error) {
			onChange = fn
			return closerFunc(func() error { return nil }), nil
		},
	)
	s.notices.EXPECT().List(gomock.Any()).Return(nil, errors.New("timeout"))

	called := false
	unsubscribe := s.content.SubscribeToChanges(ctx, Handlers{
		OnNoticesChange: func([]domain.Notice) { called = true },
	})
	defer unsubscribe()

	onChange(ctx)

	s.False(called)
	s.Equal([]domain.Notice{{ID: "n1"}}, s.content.Notices.Cached(ctx))
}

func (s *ContentTestSuite) TestSubscribeToChanges_SkipsFailedSubscriptions() {
	ctx := context.Background()

	s.feed.EXPECT().Subscribe(gomock.Any(), "videos", gomock.Any()).Return(nil, errors.New("listen failed"))
	s.feed.EXPECT().Subscribe(gomock.Any(), "promos", gomock.Any()).Return(closerFunc(func() error { return nil }), nil)

	unsubscribe := s.content.SubscribeToChanges(ctx, Handlers{
		OnVideosChange: func([]domain.VideoCard) {},
		OnPromosChange: func() {},
	})
	unsubscribe()
}

func (s *ContentTestSuite) TestRefresh_Stats() {
	ctx := context.Background()

	s.banners.EXPECT().List(gomock.Any()).Return([]domain.Banner{{ID: "b1"}}, nil)
	s.videos.EXPECT().List(gomock.Any()).Return(nil, nil)
	s.notices.EXPECT().List(gomock.Any()).Return(nil, errors.New("boom"))

	stats, err := s.content.Refresh(ctx)
	s.NoError(err)
	s.Equal(1, stats.Refreshed)
	s.Equal(1, stats.Skipped)
	s.Equal(1, stats.Errors)
	s.Equal([]domain.Banner{{ID: "b1"}}, s.cachedBanners())
}

func (s *ContentTestSuite) TestMirror_PublishesChangeEvent() {
	ctx := context.Background()
	s.content.mirrors.publisher = s.publisher

	s.videos.EXPECT().Delete(gomock.Any(), "v1").Return(nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event domain.ChangeEvent) error {
			s.Equal("videos", event.Table)
			s.Equal(domain.ActionDelete, event.Action)
			s.Equal("v1", event.ID)
			s.False(event.Timestamp.IsZero())
			return errors.New("broker down")
		},
	)

	s.NoError(s.content.DeleteVideo(ctx, "v1").Wait(ctx))
}

func (s *ContentTestSuite) TestMirror_SurvivesCallerCancellation() {
	ctx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	s.banners.EXPECT().Upsert(gomock.Any(), domain.Banner{ID: "a"}).DoAndReturn(
		func(ctx context.Context, _ domain.Banner) error {
			<-release
			return ctx.Err()
		},
	)

	mirror := s.content.UpdateBanner(ctx, domain.Banner{ID: "a"})
	cancel()
	s.ErrorIs(mirror.Wait(ctx), context.Canceled)

	close(release)
	<-mirror.Done()
	s.NoError(mirror.Err())
}

func (s *ContentTestSuite) TestMirror_RunsInCallOrder() {
	ctx := context.Background()

	var mu sync.Mutex
	var calls []string
	record := func(call string) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, call)
	}

	release := make(chan struct{})
	s.banners.EXPECT().ReplaceAll(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, []domain.Banner) error {
			<-release
			record("replace")
			return nil
		},
	)
	s.banners.EXPECT().Upsert(gomock.Any(), domain.Banner{ID: "a", Title: "A2"}).DoAndReturn(
		func(context.Context, domain.Banner) error {
			record("upsert")
			return nil
		},
	)

	save := s.content.SaveBanners(ctx, []domain.Banner{{ID: "a"}})
	update := s.content.UpdateBanner(ctx, domain.Banner{ID: "a", Title: "A2"})

	select {
	case <-update.Done():
		s.Fail("update mirrored before the pending save")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	s.NoError(save.Wait(ctx))
	s.NoError(update.Wait(ctx))
	s.Equal([]string{"replace", "upsert"}, calls)
}

func (s *ContentTestSuite) TestMirror_FailureDoesNotBlockNextWrite() {
	ctx := context.Background()

	s.notices.EXPECT().ReplaceAll(gomock.Any(), gomock.Any()).Return(errors.New("remote down"))
	s.notices.EXPECT().Delete(gomock.Any(), "n1").Return(nil)

	save := s.content.SaveNotices(ctx, []domain.Notice{{ID: "n1"}})
	remove := s.content.DeleteNotice(ctx, "n1")

	s.Error(save.Wait(ctx))
	s.NoError(remove.Wait(ctx))
}

func TestGetBanners_QuotaExceededKeepsPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	banners := mocks.NewMockCollectionStore[domain.Banner](ctrl)
	banners.EXPECT().ReplaceAll(gomock.Any(), gomock.Any()).Return(errors.New("remote down")).Times(2)
	banners.EXPECT().List(gomock.Any()).Return(nil, errors.New("remote down"))

	content := NewContent(&Remote{Banners: banners}, local.NewAdapter(local.NewMemory(256), "vh_", logger), logger)

	small := []domain.Banner{{ID: "a", Title: "A"}}
	assert.Error(t, content.SaveBanners(ctx, small).Wait(ctx))

	large := []domain.Banner{{ID: "b", Title: strings.Repeat("x", 1024)}}
	assert.Error(t, content.SaveBanners(ctx, large).Wait(ctx))

	assert.Equal(t, small, content.GetBanners(ctx))
	assert.NoError(t, content.Close(ctx))
}

func TestGetBanners_CorruptLocalIsEmpty(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	mem := local.NewMemory(0)
	require.NoError(t, mem.Set(ctx, "vh_banners", `[{"id":`))

	content := NewContent(nil, local.NewAdapter(mem, "vh_", logger), logger)

	banners := content.GetBanners(ctx)
	assert.NotNil(t, banners)
	assert.Empty(t, banners)
}

func TestContent_RemoteNotConfigured(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	content := NewContent(nil, local.NewAdapter(local.NewMemory(0), "vh_", logger), logger)

	assert.False(t, content.RemoteConfigured())

	require.NoError(t, content.SaveNotices(ctx, []domain.Notice{{ID: "n1"}, {ID: "n2"}}).Wait(ctx))
	require.NoError(t, content.DeleteNotice(ctx, "n1").Wait(ctx))
	assert.Equal(t, []domain.Notice{{ID: "n2", SortOrder: 0}}, content.GetNotices(ctx))

	require.NoError(t, content.SavePromoCard(ctx, domain.PromoCard{Title: "Local"}).Wait(ctx))
	assert.Equal(t, "Local", content.GetPromoCard(ctx).Title)

	_, err := content.Promo(domain.PromoBottom).Refresh(ctx)
	assert.ErrorIs(t, err, domain.ErrRemoteNotConfigured)

	_, err = content.Refresh(ctx)
	assert.ErrorIs(t, err, domain.ErrRemoteNotConfigured)

	unsubscribe := content.SubscribeToChanges(ctx, Handlers{OnBannersChange: func([]domain.Banner) {}})
	unsubscribe()

	assert.NoError(t, content.Close(ctx))
}
