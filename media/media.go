// Package media holds the artifact plumbing shared by all providers:
// data-URL encoding, the download-and-encode helper for vendors that only
// return a hosted URL, and the durable-upload collaborator contract.
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/filmforge/types"
)

// MediaKind routes an upload to the right bucket prefix.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
	KindAudio MediaKind = "audio"
)

// maxDownloadBytes caps the download-and-encode helper. Generated videos
// top out well below this.
const maxDownloadBytes = 512 << 20

// Uploader stores a data URL durably and returns its hosted URL. An
// implementation may fall back to returning the data URL unchanged when no
// object store is configured; callers must handle both.
type Uploader interface {
	Upload(ctx context.Context, dataURL string, kind MediaKind, projectID string) (string, error)
}

// NopUploader returns the data URL unchanged. Used when durable storage is
// not wired up, and in tests.
type NopUploader struct{}

func (NopUploader) Upload(_ context.Context, dataURL string, _ MediaKind, _ string) (string, error) {
	return dataURL, nil
}

// ToDataURL wraps raw bytes as a data URL with the given MIME type.
func ToDataURL(mime string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}

// IsDataURL reports whether s is a data URL.
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// ParseDataURL splits a base64 data URL into its MIME type and raw bytes.
func ParseDataURL(s string) (mime string, data []byte, err error) {
	if !strings.HasPrefix(s, "data:") {
		return "", nil, fmt.Errorf("not a data URL")
	}
	rest := s[len("data:"):]
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return "", nil, fmt.Errorf("data URL is not base64 encoded")
	}
	mime = rest[:sep]
	data, err = base64.StdEncoding.DecodeString(rest[sep+len(";base64,"):])
	if err != nil {
		return "", nil, fmt.Errorf("decode data URL payload: %w", err)
	}
	return mime, data, nil
}

// DownloadDataURL fetches a vendor-hosted artifact and re-encodes it as a
// data URL. Vendors like Flux sign result URLs with short expiries, so
// callers that need bytes must download promptly. Failures are typed
// DOWNLOAD_ERROR.
func DownloadDataURL(ctx context.Context, client *http.Client, url, fallbackMime string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", types.NewError(types.ErrDownload, fmt.Sprintf("build download request: %v", err))
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", types.NewError(types.ErrDownload, fmt.Sprintf("download artifact: %v", err)).
			WithRetryable(true).
			WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", types.NewError(types.ErrDownload,
			fmt.Sprintf("download artifact: status=%d", resp.StatusCode)).
			WithHTTPStatus(resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return "", types.NewError(types.ErrDownload, fmt.Sprintf("read artifact body: %v", err)).
			WithRetryable(true).
			WithCause(err)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = fallbackMime
	}
	return ToDataURL(mime, data), nil
}
