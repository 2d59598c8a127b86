// Package upload stores media referenced by content entries (banner images,
// video covers and previews) in an S3-compatible object store.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"content_sync/internal/domain"
)

const (
	BucketBanners       = "banners"
	BucketVideoCovers   = "video-covers"
	BucketVideoPreviews = "video-previews"

	defaultContentType = "application/octet-stream"
	cacheControl       = "max-age=3600"
	imageQuality       = 80

	bannerDisplayWidth = 1200
	coverDisplayWidth  = 640
)

var ErrUnknownBucket = errors.New("unknown bucket")

// ObjectStore is the subset of an object storage client used for uploads.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, name string, body io.Reader, size int64, contentType, cacheControl string) error
	RemoveObject(ctx context.Context, bucket, name string) error
}

// File is an upload candidate.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Result struct {
	URL  string `json:"url"`
	Path string `json:"path"`
	// OptimizedURL is set for images and carries resize hints for display.
	OptimizedURL string `json:"optimizedUrl,omitempty"`
}

type Service struct {
	store         ObjectStore
	publicBaseURL string
	logger        *slog.Logger
	now           func() time.Time
}

// New returns a Service over store. A nil store yields a Service whose
// operations report domain.ErrRemoteNotConfigured.
func New(store ObjectStore, publicBaseURL string, logger *slog.Logger) *Service {
	return &Service{
		store:         store,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger.With("component", "upload"),
		now:           time.Now,
	}
}

func (s *Service) Configured() bool {
	return s.store != nil
}

// KnownBucket reports whether bucket is one of the media buckets.
func KnownBucket(bucket string) bool {
	switch bucket {
	case BucketBanners, BucketVideoCovers, BucketVideoPreviews:
		return true
	}
	return false
}

func (s *Service) UploadBannerImage(ctx context.Context, file File) (*Result, error) {
	return s.uploadImage(ctx, BucketBanners, file, bannerDisplayWidth)
}

func (s *Service) UploadVideoCover(ctx context.Context, file File) (*Result, error) {
	return s.uploadImage(ctx, BucketVideoCovers, file, coverDisplayWidth)
}

func (s *Service) UploadVideoPreview(ctx context.Context, file File) (*Result, error) {
	return s.Upload(ctx, BucketVideoPreviews, file)
}

// UploadTo dispatches to the helper of bucket.
func (s *Service) UploadTo(ctx context.Context, bucket string, file File) (*Result, error) {
	switch bucket {
	case BucketBanners:
		return s.UploadBannerImage(ctx, file)
	case BucketVideoCovers:
		return s.UploadVideoCover(ctx, file)
	case BucketVideoPreviews:
		return s.UploadVideoPreview(ctx, file)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
}

func (s *Service) uploadImage(ctx context.Context, bucket string, file File, width int) (*Result, error) {
	result, err := s.Upload(ctx, bucket, file)
	if err != nil {
		return nil, err
	}
	result.OptimizedURL = s.OptimizedImageURL(result.URL, width, 0)
	return result, nil
}

// Upload stores file under a fresh name in bucket and returns its public URL.
func (s *Service) Upload(ctx context.Context, bucket string, file File) (*Result, error) {
	if s.store == nil {
		return nil, domain.ErrRemoteNotConfigured
	}
	if !KnownBucket(bucket) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
	}

	name := s.objectName(file.Name)
	contentType := file.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	s.logger.Debug("uploading", "bucket", bucket, "name", name, "size", file.Size)

	if err := s.store.PutObject(ctx, bucket, name, file.Body, file.Size, contentType, cacheControl); err != nil {
		return nil, fmt.Errorf("upload to %s: %w", bucket, err)
	}

	result := &Result{URL: s.PublicURL(bucket, name), Path: name}

	s.logger.Info("upload completed", "bucket", bucket, "url", result.URL)

	return result, nil
}

func (s *Service) DeleteFile(ctx context.Context, bucket, name string) error {
	if s.store == nil {
		return domain.ErrRemoteNotConfigured
	}
	if err := s.store.RemoveObject(ctx, bucket, name); err != nil {
		return fmt.Errorf("delete %s/%s: %w", bucket, name, err)
	}
	return nil
}

// DeleteByURL removes the object behind a public URL. URLs that do not
// point into this store are ignored.
func (s *Service) DeleteByURL(ctx context.Context, rawURL string) error {
	if s.store == nil {
		return nil
	}

	bucket, name, ok := s.splitPublicURL(rawURL)
	if !ok {
		return nil
	}
	return s.DeleteFile(ctx, bucket, name)
}

func (s *Service) PublicURL(bucket, name string) string {
	return s.publicBaseURL + "/" + bucket + "/" + name
}

// OptimizedImageURL adds resize hints to URLs served from this store.
// Zero dimensions are omitted.
func (s *Service) OptimizedImageURL(rawURL string, width, height int) string {
	if rawURL == "" {
		return ""
	}
	if _, _, ok := s.splitPublicURL(rawURL); !ok {
		return rawURL
	}

	params := url.Values{}
	if width > 0 {
		params.Set("width", strconv.Itoa(width))
	}
	if height > 0 {
		params.Set("height", strconv.Itoa(height))
	}
	params.Set("quality", strconv.Itoa(imageQuality))

	separator := "?"
	if strings.Contains(rawURL, "?") {
		separator = "&"
	}
	return rawURL + separator + params.Encode()
}

func (s *Service) splitPublicURL(rawURL string) (bucket, name string, ok bool) {
	if s.publicBaseURL == "" {
		return "", "", false
	}
	rest, found := strings.CutPrefix(rawURL, s.publicBaseURL+"/")
	if !found {
		return "", "", false
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest = rest[:i]
	}
	bucket, name, found = strings.Cut(rest, "/")
	if !found || bucket == "" || name == "" {
		return "", "", false
	}
	return bucket, name, true
}

func (s *Service) objectName(fileName string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), ".")
	if ext == "" {
		ext = "bin"
	}
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s.%s", s.now().UnixMilli(), random, ext)
}
