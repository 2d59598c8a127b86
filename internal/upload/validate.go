package upload

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
)

const (
	MaxImageSize = 10 << 20
	MaxVideoSize = 500 << 20
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file too large")
)

var (
	imageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}
	imageExts  = []string{"jpg", "jpeg", "png", "webp", "gif"}

	videoTypes = []string{"video/mp4", "video/webm", "video/quicktime", "video/x-matroska", "video/avi"}
	videoExts  = []string{"mp4", "webm", "mov"}
)

// ValidateImage accepts common web image formats up to 10 MB. The extension
// is consulted when the declared type is missing or unusual.
func ValidateImage(file File) error {
	return validate(file, imageTypes, imageExts, MaxImageSize)
}

// ValidateVideo accepts common video containers up to 500 MB.
func ValidateVideo(file File) error {
	return validate(file, videoTypes, videoExts, MaxVideoSize)
}

// ValidateFor checks file against the rules of the bucket it is headed to.
func ValidateFor(bucket string, file File) error {
	if bucket == BucketVideoPreviews {
		return ValidateVideo(file)
	}
	return ValidateImage(file)
}

func validate(file File, types, exts []string, maxSize int64) error {
	if !slices.Contains(types, file.ContentType) {
		ext := strings.TrimPrefix(strings.ToLower(path.Ext(file.Name)), ".")
		if ext == "" || !slices.Contains(exts, ext) {
			contentType := file.ContentType
			if contentType == "" {
				contentType = "unknown"
			}
			return fmt.Errorf("%w (%s), accepted: %s", ErrUnsupportedType, contentType, strings.Join(types, ", "))
		}
	}

	if file.Size > maxSize {
		return fmt.Errorf("%w (%.1fMB), maximum %dMB",
			ErrFileTooLarge, float64(file.Size)/(1<<20), maxSize>>20)
	}

	return nil
}
