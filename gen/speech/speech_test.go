package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/types"
)

func TestElevenLabsSynthesizesToDataURL(t *testing.T) {
	audio := []byte("mp3 frames")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "xi-key", r.Header.Get("xi-api-key"))
		require.True(t, strings.HasPrefix(r.URL.Path, "/v1/text-to-speech/"))
		assert.Equal(t, "mp3_44100_128", r.URL.Query().Get("output_format"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Welcome to the dailies.", body["text"])
		assert.Equal(t, "eleven_multilingual_v2", body["model_id"])

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	p := NewElevenLabs(gen.ProviderConfig{APIKey: "xi-key", Endpoint: srv.URL}, Deps{Client: srv.Client()})
	res, err := p.Generate(context.Background(), &gen.Request{
		Kind:   types.KindSpeech,
		Speech: &gen.SpeechParams{Text: "Welcome to the dailies."},
	})
	require.NoError(t, err)
	assert.Equal(t, types.StatusComplete, res.Status)
	expected := "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(audio)
	assert.Equal(t, expected, res.DataURL)
	assert.Equal(t, "mp3", res.Audio.Format)
	assert.Greater(t, res.ActualCost, 0.0)
}

func TestElevenLabsVoiceSettingsForwarded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		vs, ok := body["voice_settings"].(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 0.6, vs["stability"])
		assert.EqualValues(t, true, vs["use_speaker_boost"])
		assert.Contains(t, r.URL.Path, "/custom-voice")
		_, _ = w.Write([]byte("audio"))
	}))
	defer srv.Close()

	p := NewElevenLabs(gen.ProviderConfig{APIKey: "k", Endpoint: srv.URL}, Deps{Client: srv.Client()})
	_, err := p.Generate(context.Background(), &gen.Request{
		Speech: &gen.SpeechParams{
			Text: "x", Voice: "custom-voice", Stability: 0.6, SpeakerBoost: true,
		},
	})
	require.NoError(t, err)
}

func TestElevenLabsRequiresText(t *testing.T) {
	p := NewElevenLabs(gen.ProviderConfig{APIKey: "k"}, Deps{})
	_, err := p.Generate(context.Background(), &gen.Request{})
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))
}

func TestOpenAISpeechDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/audio/speech", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tts-1", body["model"])
		assert.Equal(t, "alloy", body["voice"])
		_, _ = w.Write([]byte("mp3"))
	}))
	defer srv.Close()

	p := NewOpenAI(gen.ProviderConfig{APIKey: "k", Endpoint: srv.URL}, Deps{Client: srv.Client()})
	res, err := p.Generate(context.Background(), &gen.Request{
		Speech: &gen.SpeechParams{Text: "hello"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.DataURL, "data:audio/mpeg;base64,"))
}

func TestOpenAISpeechRateLimitTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAI(gen.ProviderConfig{APIKey: "k", Endpoint: srv.URL}, Deps{Client: srv.Client()})
	_, err := p.Generate(context.Background(), &gen.Request{Speech: &gen.SpeechParams{Text: "x"}})
	assert.Equal(t, types.ErrRateLimited, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestModalSpeechEnvelope(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString([]byte("wav"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "narrator", body["voice"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"audio": b64, "format": "wav", "duration": 2.5,
		})
	}))
	defer srv.Close()

	p := NewModal(gen.ProviderConfig{Endpoint: srv.URL}, Deps{Client: srv.Client()})
	res, err := p.Generate(context.Background(), &gen.Request{
		Speech: &gen.SpeechParams{Text: "x", Voice: "narrator"},
	})
	require.NoError(t, err)
	assert.Equal(t, "data:audio/wav;base64,"+b64, res.DataURL)
	assert.EqualValues(t, 2.5, res.Audio.Duration)
}

func TestModalSpeechDeploymentError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "model not loaded"})
	}))
	defer srv.Close()

	p := NewModal(gen.ProviderConfig{Endpoint: srv.URL}, Deps{Client: srv.Client()})
	_, err := p.Generate(context.Background(), &gen.Request{Speech: &gen.SpeechParams{Text: "x"}})
	assert.Equal(t, types.ErrGenerationFailed, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "model not loaded")
}
