package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultFetchTimeout is the default timeout for image downloads
	DefaultFetchTimeout = 15 * time.Second
	// DefaultMaxImageSize is the default maximum image size (10MB)
	DefaultMaxImageSize = 10 * 1024 * 1024
)

// ImageError is a download failure caused by the image itself, such as a
// missing file or a non-image body. Retrying will not fix it.
type ImageError struct {
	Status int // HTTP status of the download, 0 when the body was the problem
	Reason string
}

func (e *ImageError) Error() string {
	return e.Reason
}

// ImageFetcher downloads images referenced by URL.
type ImageFetcher struct {
	client  *resty.Client
	maxSize int64
}

// NewImageFetcher creates an ImageFetcher with default settings.
func NewImageFetcher() *ImageFetcher {
	return &ImageFetcher{
		client:  resty.New().SetDebug(false).SetTimeout(DefaultFetchTimeout),
		maxSize: DefaultMaxImageSize,
	}
}

// WithTimeout sets a custom timeout for downloads.
func (f *ImageFetcher) WithTimeout(timeout time.Duration) *ImageFetcher {
	f.client.SetTimeout(timeout)
	return f
}

// WithMaxSize sets a custom maximum file size.
func (f *ImageFetcher) WithMaxSize(maxSize int64) *ImageFetcher {
	f.maxSize = maxSize
	return f
}

// Fetch downloads the image at imageURL and returns its bytes and MIME type.
// It respects context cancellation and enforces the size limit.
func (f *ImageFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, string, error) {
	res, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(imageURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	body := res.RawBody()
	defer body.Close()

	if code := res.StatusCode(); code != http.StatusOK {
		if code >= 500 {
			return nil, "", fmt.Errorf("download failed: status %d", code)
		}
		return nil, "", &ImageError{Status: code, Reason: fmt.Sprintf("download failed: status %d", code)}
	}

	contentType := res.Header().Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "application/octet-stream") {
		return nil, "", &ImageError{Reason: "invalid content type: expected image/*, got " + contentType}
	}

	// LimitReader enforces the limit even if Content-Length is missing or wrong
	data, err := io.ReadAll(io.LimitReader(body, f.maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, "", &ImageError{Reason: fmt.Sprintf("image too large: exceeds limit of %d bytes", f.maxSize)}
	}

	log.Debug().Str("url", imageURL).Int("bytes", len(data)).Msg("image downloaded")
	return data, pickMIME("", contentType, data), nil
}

// decodeDataURL decodes a data: URL. Standard and URL-safe base64 are both
// accepted.
func decodeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return nil, "", fmt.Errorf("not a data URL")
	}
	idx := strings.IndexByte(s, ',')
	if idx < 0 {
		return nil, "", fmt.Errorf("malformed data URL")
	}
	meta := s[len("data:"):idx]
	mime := meta
	if semi := strings.IndexByte(meta, ';'); semi >= 0 {
		mime = meta[:semi]
	}
	payload := s[idx+1:]

	if b, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return b, mime, nil
	}
	b, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 image data: %w", err)
	}
	return b, mime, nil
}

// isDataURL reports whether s is an inline data: URL.
func isDataURL(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "data:")
}

// pickMIME prefers the explicit MIME type, then the hint, then sniffs bytes.
func pickMIME(explicit, hint string, data []byte) string {
	if exp := strings.TrimSpace(explicit); exp != "" {
		return exp
	}
	if h := strings.TrimSpace(hint); h != "" && strings.HasPrefix(h, "image/") {
		if semi := strings.IndexByte(h, ';'); semi >= 0 {
			h = h[:semi]
		}
		return h
	}
	if len(data) > 0 {
		return http.DetectContentType(data)
	}
	return "image/jpeg"
}

// dataURL encodes bytes as a data: URL.
func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
