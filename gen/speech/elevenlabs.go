package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/types"
)

const (
	elevenLabsBaseURL = "https://api.elevenlabs.io"
	// defaultVoiceID is Rachel, ElevenLabs' stock narrator voice.
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
)

// ElevenLabs synthesizes speech through the text-to-speech API.
// Auth: xi-api-key header. The response body is raw audio.
type ElevenLabs struct {
	base
}

// NewElevenLabs creates an ElevenLabs TTS provider for one resolved config.
func NewElevenLabs(cfg gen.ProviderConfig, deps Deps) *ElevenLabs {
	return &ElevenLabs{base: newBase(cfg, deps)}
}

func (p *ElevenLabs) Name() string     { return gen.ProviderElevenLabs }
func (p *ElevenLabs) Kind() types.Kind { return types.KindSpeech }

// ValidateConfig probes the voices listing, which requires a valid key.
func (p *ElevenLabs) ValidateConfig(ctx context.Context) error {
	if p.cfg.APIKey == "" {
		return types.NewError(types.ErrNoCredential, "elevenlabs API key is not configured").
			WithProvider(p.Name())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL(elevenLabsBaseURL)+"/v1/voices", nil)
	if err != nil {
		return types.NewValidationError(fmt.Sprintf("build probe request: %v", err)).
			WithProvider(p.Name())
	}
	req.Header.Set("xi-api-key", p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return types.NewError(types.ErrServiceUnavailable, fmt.Sprintf("elevenlabs probe failed: %v", err)).
			WithProvider(p.Name()).
			WithRetryable(true).
			WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return gen.HTTPError(p.Name(), resp, nil)
	}
	return nil
}

func (p *ElevenLabs) model() string {
	if p.cfg.Model != "" {
		return p.cfg.Model
	}
	return "eleven_multilingual_v2"
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability,omitempty"`
	SimilarityBoost float64 `json:"similarity_boost,omitempty"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id"`
	LanguageCode  string                   `json:"language_code,omitempty"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

func (p *ElevenLabs) Generate(ctx context.Context, req *gen.Request) (*gen.Response, error) {
	if req.Speech == nil || req.Speech.Text == "" {
		return nil, types.NewValidationError("speech text is required").WithProvider(p.Name())
	}
	sp := req.Speech

	body := elevenLabsRequest{
		Text:         sp.Text,
		ModelID:      p.model(),
		LanguageCode: sp.Language,
	}
	if sp.Stability > 0 || sp.SimilarityBoost > 0 || sp.StyleWeight > 0 || sp.SpeakerBoost {
		body.VoiceSettings = &elevenLabsVoiceSettings{
			Stability:       sp.Stability,
			SimilarityBoost: sp.SimilarityBoost,
			Style:           sp.StyleWeight,
			UseSpeakerBoost: sp.SpeakerBoost,
		}
	}

	voiceID := sp.Voice
	if voiceID == "" {
		voiceID = defaultVoiceID
	}
	format := sp.OutputFormat
	if format == "" {
		format = "mp3_44100_128"
	}
	target := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		strings.TrimRight(p.baseURL(elevenLabsBaseURL), "/"), voiceID, format)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewValidationError(fmt.Sprintf("encode request: %v", err)).
			WithProvider(p.Name())
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewValidationError(fmt.Sprintf("build request: %v", err)).
			WithProvider(p.Name())
	}
	httpReq.Header.Set("xi-api-key", p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.WrapProviderError(p.Name(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.WrapProviderError(p.Name(), err)
	}
	if resp.StatusCode >= 400 {
		return nil, gen.HTTPError(p.Name(), resp, raw)
	}
	if len(raw) == 0 {
		return nil, types.NewError(types.ErrNoResult, "elevenlabs returned no audio").
			WithProvider(p.Name())
	}

	return p.finalize(ctx, req, p.Name(), p.model(), "audio/mpeg", raw, "mp3")
}
