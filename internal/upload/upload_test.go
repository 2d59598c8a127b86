package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content_sync/internal/domain"
)

type storedObject struct {
	body         []byte
	contentType  string
	cacheControl string
}

type memoryStore struct {
	objects map[string]storedObject
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string]storedObject)}
}

func (m *memoryStore) PutObject(_ context.Context, bucket, name string, body io.Reader, _ int64, contentType, cacheControl string) error {
	if m.err != nil {
		return m.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[bucket+"/"+name] = storedObject{body: data, contentType: contentType, cacheControl: cacheControl}
	return nil
}

func (m *memoryStore) RemoveObject(_ context.Context, bucket, name string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.objects, bucket+"/"+name)
	return nil
}

func newTestService(store ObjectStore) *Service {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := New(store, "https://media.example.com/", logger)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc
}

func TestUpload_StoresUnderFreshName(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	result, err := svc.UploadBannerImage(context.Background(), File{
		Name:        "Hero.PNG",
		ContentType: "image/png",
		Size:        4,
		Body:        bytes.NewReader([]byte("data")),
	})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^1700000000000-[0-9a-f]{8}\.png$`), result.Path)
	assert.Equal(t, "https://media.example.com/banners/"+result.Path, result.URL)

	obj, ok := store.objects["banners/"+result.Path]
	require.True(t, ok)
	assert.Equal(t, []byte("data"), obj.body)
	assert.Equal(t, "image/png", obj.contentType)
	assert.Equal(t, "max-age=3600", obj.cacheControl)
}

func TestUpload_NamesAreUnique(t *testing.T) {
	svc := newTestService(newMemoryStore())

	first, err := svc.UploadVideoCover(context.Background(), File{Name: "a.jpg", Body: bytes.NewReader(nil)})
	require.NoError(t, err)
	second, err := svc.UploadVideoCover(context.Background(), File{Name: "a.jpg", Body: bytes.NewReader(nil)})
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second.Path)
}

func TestUpload_DefaultContentType(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	result, err := svc.UploadVideoPreview(context.Background(), File{Name: "clip", Body: bytes.NewReader(nil)})
	require.NoError(t, err)

	assert.Contains(t, result.Path, ".bin")
	assert.Equal(t, "application/octet-stream", store.objects["video-previews/"+result.Path].contentType)
}

func TestUploadTo_DispatchesByBucket(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryStore())

	banner, err := svc.UploadTo(ctx, BucketBanners, File{Name: "hero.png", Body: bytes.NewReader(nil)})
	require.NoError(t, err)
	assert.Equal(t, banner.URL+"?quality=80&width=1200", banner.OptimizedURL)

	cover, err := svc.UploadTo(ctx, BucketVideoCovers, File{Name: "cover.jpg", Body: bytes.NewReader(nil)})
	require.NoError(t, err)
	assert.Equal(t, cover.URL+"?quality=80&width=640", cover.OptimizedURL)

	preview, err := svc.UploadTo(ctx, BucketVideoPreviews, File{Name: "clip.mp4", Body: bytes.NewReader(nil)})
	require.NoError(t, err)
	assert.Empty(t, preview.OptimizedURL)

	_, err = svc.UploadTo(ctx, "secrets", File{Name: "a.png", Body: bytes.NewReader(nil)})
	assert.ErrorIs(t, err, ErrUnknownBucket)
}

func TestUpload_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := newTestService(nil).Upload(ctx, BucketBanners, File{Name: "a.png"})
	assert.ErrorIs(t, err, domain.ErrRemoteNotConfigured)

	_, err = newTestService(newMemoryStore()).Upload(ctx, "secrets", File{Name: "a.png"})
	assert.ErrorIs(t, err, ErrUnknownBucket)

	store := newMemoryStore()
	store.err = errors.New("bucket not found")
	_, err = newTestService(store).Upload(ctx, BucketBanners, File{Name: "a.png", Body: bytes.NewReader(nil)})
	assert.ErrorContains(t, err, "bucket not found")
}

func TestDeleteByURL(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.objects["banners/1-abc.png"] = storedObject{}
	svc := newTestService(store)

	require.NoError(t, svc.DeleteByURL(ctx, "https://elsewhere.example.com/banners/1-abc.png"))
	assert.Len(t, store.objects, 1)

	require.NoError(t, svc.DeleteByURL(ctx, "https://media.example.com/banners"))
	assert.Len(t, store.objects, 1)

	require.NoError(t, svc.DeleteByURL(ctx, "https://media.example.com/banners/1-abc.png?width=10"))
	assert.Empty(t, store.objects)

	assert.NoError(t, newTestService(nil).DeleteByURL(ctx, "https://media.example.com/banners/x.png"))
	assert.ErrorIs(t, newTestService(nil).DeleteFile(ctx, "banners", "x.png"), domain.ErrRemoteNotConfigured)
}

func TestOptimizedImageURL(t *testing.T) {
	svc := newTestService(newMemoryStore())

	assert.Equal(t, "", svc.OptimizedImageURL("", 100, 100))
	assert.Equal(t, "https://cdn.other.com/a.png", svc.OptimizedImageURL("https://cdn.other.com/a.png", 100, 0))
	assert.Equal(t,
		"https://media.example.com/banners/a.png?height=200&quality=80&width=400",
		svc.OptimizedImageURL("https://media.example.com/banners/a.png", 400, 200),
	)
	assert.Equal(t,
		"https://media.example.com/banners/a.png?v=2&quality=80",
		svc.OptimizedImageURL("https://media.example.com/banners/a.png?v=2", 0, 0),
	)
}

func TestValidateImage(t *testing.T) {
	assert.NoError(t, ValidateImage(File{Name: "a.bin", ContentType: "image/webp", Size: MaxImageSize}))
	assert.NoError(t, ValidateImage(File{Name: "photo.JPEG", ContentType: "", Size: 10}))

	assert.ErrorIs(t, ValidateImage(File{Name: "a.bmp", ContentType: "image/bmp"}), ErrUnsupportedType)
	assert.ErrorIs(t, ValidateImage(File{Name: "a.png", ContentType: "image/png", Size: MaxImageSize + 1}), ErrFileTooLarge)
}

func TestValidateVideo(t *testing.T) {
	assert.NoError(t, ValidateVideo(File{Name: "clip", ContentType: "video/x-matroska", Size: 1}))
	assert.NoError(t, ValidateVideo(File{Name: "clip.mov", ContentType: "application/octet-stream", Size: 1}))

	assert.ErrorIs(t, ValidateVideo(File{Name: "clip.mkv", ContentType: ""}), ErrUnsupportedType)
	assert.ErrorIs(t, ValidateVideo(File{Name: "clip.mp4", ContentType: "video/mp4", Size: MaxVideoSize + 1}), ErrFileTooLarge)

	assert.ErrorIs(t, ValidateFor(BucketVideoPreviews, File{Name: "a.png", ContentType: "image/png"}), ErrUnsupportedType)
	assert.NoError(t, ValidateFor(BucketVideoCovers, File{Name: "a.png", ContentType: "image/png"}))
}
