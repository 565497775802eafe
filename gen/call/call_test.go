package call

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/gen/resolve"
	"github.com/BaSui01/filmforge/store"
	"github.com/BaSui01/filmforge/types"
)

func newResolver(t *testing.T) (*resolve.Resolver, *store.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	s, err := store.New(db, nil)
	require.NoError(t, err)
	return resolve.New(s, nil), s
}

func TestCallSuccessEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer user-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"url":"https://cdn/img.png"}]}`))
	}))
	defer srv.Close()

	r, s := newResolver(t)
	require.NoError(t, s.UpsertAPIKey(context.Background(), "u1", "openai", "user-key"))

	c := NewCaller(r, nil,
		WithHTTPClient(srv.Client()),
		WithURLOverride("openai", srv.URL))

	res := c.Call(context.Background(), Request{
		Kind:   types.KindImage,
		UserID: "u1",
		Body:   map[string]any{"prompt": "a quiet harbor at dawn"},
	})

	require.True(t, res.OK(), res.Error)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "openai", res.Provider)
	assert.NotNil(t, res.Data["data"])
}

func TestCallNeverThrowsOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	r, s := newResolver(t)
	require.NoError(t, s.UpsertAPIKey(context.Background(), "u1", "openai", "k"))

	c := NewCaller(r, nil,
		WithHTTPClient(srv.Client()),
		WithURLOverride("openai", srv.URL))

	res := c.Call(context.Background(), Request{
		Kind:    types.KindImage,
		UserID:  "u1",
		Body:    map[string]any{"prompt": "x"},
		Timeout: 20 * time.Millisecond,
	})

	assert.Equal(t, http.StatusRequestTimeout, res.Status)
	assert.Contains(t, res.Error, "timeout")
}

func TestCallVendorErrorMessageExtraction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Your prompt was rejected"}}`))
	}))
	defer srv.Close()

	r, s := newResolver(t)
	require.NoError(t, s.UpsertAPIKey(context.Background(), "u1", "openai", "k"))

	c := NewCaller(r, nil,
		WithHTTPClient(srv.Client()),
		WithURLOverride("openai", srv.URL))

	res := c.Call(context.Background(), Request{
		Kind: types.KindImage, UserID: "u1", Body: map[string]any{"prompt": "x"},
	})

	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Contains(t, res.Error, "Your prompt was rejected")
}

func TestCallToleratesNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain text, not json"))
	}))
	defer srv.Close()

	r, s := newResolver(t)
	require.NoError(t, s.UpsertAPIKey(context.Background(), "u1", "openai", "k"))

	c := NewCaller(r, nil,
		WithHTTPClient(srv.Client()),
		WithURLOverride("openai", srv.URL))

	res := c.Call(context.Background(), Request{
		Kind: types.KindImage, UserID: "u1", Body: map[string]any{"prompt": "x"},
	})

	assert.Equal(t, http.StatusOK, res.Status)
	assert.Nil(t, res.Data)
	assert.Empty(t, res.Error)
}

func TestCallNoCredentialEnvelope(t *testing.T) {
	t.Setenv("SUNO_API_KEY", "")
	r, _ := newResolver(t)
	c := NewCaller(r, nil)

	res := c.Call(context.Background(), Request{
		Kind: types.KindMusic, UserID: "nobody", Body: map[string]any{"prompt": "x"},
	})

	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Contains(t, res.Error, "no credential configured")
}

func TestCallUnsupportedProviderKind(t *testing.T) {
	r, s := newResolver(t)
	require.NoError(t, s.UpsertAPIKey(context.Background(), "u1", "elevenlabs", "k"))

	c := NewCaller(r, nil)
	// elevenlabs does not generate video
	res := c.Call(context.Background(), Request{
		Kind: types.KindVideo, Provider: "elevenlabs", UserID: "u1",
		Body: map[string]any{"prompt": "x"},
	})

	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Contains(t, res.Error, "does not support")
}

func TestCallModalUsesResolvedEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"), "self-hosted calls carry no credential")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"image":"aGk=","width":1024,"height":1024}`))
	}))
	defer srv.Close()

	r, s := newResolver(t)
	require.NoError(t, s.UpdateModalEndpoint(context.Background(), "u1", types.KindImage, srv.URL))

	c := NewCaller(r, nil, WithHTTPClient(srv.Client()))
	res := c.Call(context.Background(), Request{
		Kind: types.KindImage, Provider: "modal", UserID: "u1",
		Body: map[string]any{"prompt": "x"},
	})

	require.True(t, res.OK(), res.Error)
	assert.Equal(t, "aGk=", res.Data["image"])
}

func TestBuildURLGeminiQueryAuth(t *testing.T) {
	u, err := buildURL(gen.ProviderConfig{
		Kind: types.KindImage, Provider: "gemini", APIKey: "secret&key", Model: "gemini-2.0-flash-exp",
	})
	require.NoError(t, err)
	assert.Contains(t, u, "key=secret%26key")
	assert.Contains(t, u, "gemini-2.0-flash-exp")
}

func TestExtractErrorMessageVendorShapes(t *testing.T) {
	cases := []struct {
		provider string
		body     map[string]any
		want     string
	}{
		{"openai", map[string]any{"error": map[string]any{"message": "bad key"}}, "bad key"},
		{"flux", map[string]any{"detail": "moderated"}, "moderated"},
		{"minimax", map[string]any{"base_resp": map[string]any{"status_msg": "quota"}}, "quota"},
		{"unknown", map[string]any{"message": "generic"}, "generic"},
		{"runway", map[string]any{}, ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, extractErrorMessage(tc.provider, tc.body), tc.provider)
	}
}

func TestCLIAdapterWrapsStdout(t *testing.T) {
	a := &CLIAdapter{Binary: "echo", Args: []string{"-n"}}
	res := a.Run(context.Background(), Request{Body: map[string]any{"prompt": "hello"}})

	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "hello", res.Data["text"])
}

func TestCLIAdapterMissingBinaryConfig(t *testing.T) {
	a := &CLIAdapter{}
	res := a.Run(context.Background(), Request{})
	assert.Equal(t, http.StatusNotImplemented, res.Status)
}

func TestCLIAdapterCommandFailure(t *testing.T) {
	a := &CLIAdapter{Binary: "false"}
	res := a.Run(context.Background(), Request{})
	assert.Equal(t, http.StatusBadGateway, res.Status)
	assert.Contains(t, res.Error, "local CLI failed")
}

func TestRateLimiterDoesNotDelayUnderLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	r, s := newResolver(t)
	require.NoError(t, s.UpsertAPIKey(context.Background(), "u1", "openai", "k"))

	c := NewCaller(r, nil,
		WithHTTPClient(srv.Client()),
		WithURLOverride("openai", srv.URL),
		WithRateLimit(100))

	start := time.Now()
	res := c.Call(context.Background(), Request{
		Kind: types.KindImage, UserID: "u1", Body: map[string]any{"prompt": "x"},
	})
	require.True(t, res.OK(), res.Error)
	assert.Less(t, time.Since(start), time.Second)
}
