package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/types"
)

const openaiBaseURL = "https://api.openai.com"

// OpenAI synthesizes speech through the audio API. Auth: Bearer token.
type OpenAI struct {
	base
}

// NewOpenAI creates an OpenAI TTS provider for one resolved config.
func NewOpenAI(cfg gen.ProviderConfig, deps Deps) *OpenAI {
	return &OpenAI{base: newBase(cfg, deps)}
}

func (p *OpenAI) Name() string     { return gen.ProviderOpenAI }
func (p *OpenAI) Kind() types.Kind { return types.KindSpeech }

func (p *OpenAI) ValidateConfig(ctx context.Context) error {
	if p.cfg.APIKey == "" {
		return types.NewError(types.ErrNoCredential, "openai API key is not configured").
			WithProvider(p.Name())
	}
	return nil
}

func (p *OpenAI) model() string {
	if p.cfg.Model != "" {
		return p.cfg.Model
	}
	return "tts-1"
}

type openaiSpeechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format,omitempty"`
}

func (p *OpenAI) Generate(ctx context.Context, req *gen.Request) (*gen.Response, error) {
	if req.Speech == nil || req.Speech.Text == "" {
		return nil, types.NewValidationError("speech text is required").WithProvider(p.Name())
	}
	sp := req.Speech

	voice := sp.Voice
	if voice == "" {
		voice = "alloy"
	}
	format := sp.OutputFormat
	if format == "" {
		format = "mp3"
	}

	payload, err := json.Marshal(openaiSpeechRequest{
		Model:          p.model(),
		Input:          sp.Text,
		Voice:          voice,
		ResponseFormat: format,
	})
	if err != nil {
		return nil, types.NewValidationError(fmt.Sprintf("encode request: %v", err)).
			WithProvider(p.Name())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL(openaiBaseURL)+"/v1/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewValidationError(fmt.Sprintf("build request: %v", err)).
			WithProvider(p.Name())
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
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
		return nil, types.NewError(types.ErrNoResult, "openai returned no audio").
			WithProvider(p.Name())
	}

	mime := "audio/mpeg"
	if format == "wav" {
		mime = "audio/wav"
	}
	return p.finalize(ctx, req, p.Name(), p.model(), mime, raw, format)
}
