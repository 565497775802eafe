package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/filmforge/types"
)

func TestDataURLRoundTrip(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G', 0, 1, 2, 3}
	url := ToDataURL("image/png", raw)
	assert.True(t, IsDataURL(url))

	mime, data, err := ParseDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, raw, data)
}

func TestParseDataURLRejectsPlainURL(t *testing.T) {
	_, _, err := ParseDataURL("https://cdn.example.com/clip.mp4")
	assert.Error(t, err)
}

func TestDownloadDataURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	url, err := DownloadDataURL(context.Background(), srv.Client(), srv.URL, "application/octet-stream")
	require.NoError(t, err)

	mime, data, err := ParseDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", mime)
	assert.Equal(t, []byte("mp3-bytes"), data)
}

func TestDownloadDataURLFallbackMime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte{1, 2, 3})
	}))
	defer srv.Close()

	url, err := DownloadDataURL(context.Background(), srv.Client(), srv.URL, "video/mp4")
	require.NoError(t, err)
	mime, _, err := ParseDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", mime)
}

func TestDownloadDataURLNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := DownloadDataURL(context.Background(), srv.Client(), srv.URL, "image/png")
	require.Error(t, err)
	e, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrDownload, e.Code)
	assert.Equal(t, http.StatusNotFound, e.HTTPStatus)
}

func TestNopUploaderPassesThrough(t *testing.T) {
	in := ToDataURL("image/png", []byte{1})
	out, err := NopUploader{}.Upload(context.Background(), in, KindImage, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
