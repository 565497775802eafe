package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/types"
)

// Modal calls a self-hosted TTS endpoint. The deployment returns base64
// audio in a JSON envelope.
type Modal struct {
	base
}

// NewModal creates a self-hosted TTS provider for one resolved config.
func NewModal(cfg gen.ProviderConfig, deps Deps) *Modal {
	return &Modal{base: newBase(cfg, deps)}
}

func (p *Modal) Name() string     { return gen.ProviderModal }
func (p *Modal) Kind() types.Kind { return types.KindSpeech }

func (p *Modal) ValidateConfig(ctx context.Context) error {
	if p.cfg.Endpoint == "" {
		return types.NewError(types.ErrNoCredential, "self-hosted endpoint is not configured").
			WithProvider(p.Name())
	}
	u, err := url.Parse(p.cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return types.NewValidationError(fmt.Sprintf("malformed endpoint URL %q", p.cfg.Endpoint)).
			WithProvider(p.Name())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.Endpoint, nil)
	if err != nil {
		return types.NewValidationError(fmt.Sprintf("build probe request: %v", err)).
			WithProvider(p.Name())
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return types.NewError(types.ErrEndpointNotDeployed, fmt.Sprintf("endpoint unreachable: %v", err)).
			WithProvider(p.Name()).
			WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return types.NewError(types.ErrEndpointNotDeployed, "endpoint not deployed (404)").
			WithProvider(p.Name()).
			WithHTTPStatus(resp.StatusCode)
	}
	return nil
}

type modalSpeechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
	Lang  string `json:"language,omitempty"`
}

type modalSpeechResponse struct {
	Audio    string  `json:"audio"` // base64
	Format   string  `json:"format,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Error    string  `json:"error,omitempty"`
}

func (p *Modal) Generate(ctx context.Context, req *gen.Request) (*gen.Response, error) {
	if req.Speech == nil || req.Speech.Text == "" {
		return nil, types.NewValidationError("speech text is required").WithProvider(p.Name())
	}
	if p.cfg.Endpoint == "" {
		return nil, types.NewError(types.ErrNoCredential, "self-hosted endpoint is not configured").
			WithProvider(p.Name())
	}

	payload, err := json.Marshal(modalSpeechRequest{
		Text:  req.Speech.Text,
		Voice: req.Speech.Voice,
		Lang:  req.Speech.Language,
	})
	if err != nil {
		return nil, types.NewValidationError(fmt.Sprintf("encode request: %v", err)).
			WithProvider(p.Name())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.Endpoint, "/"), bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewValidationError(fmt.Sprintf("build request: %v", err)).
			WithProvider(p.Name())
	}
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
	if resp.StatusCode == http.StatusNotFound {
		return nil, types.NewError(types.ErrEndpointNotDeployed, "endpoint not deployed (404)").
			WithProvider(p.Name()).
			WithHTTPStatus(resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, gen.HTTPError(p.Name(), resp, raw)
	}

	var out modalSpeechResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, types.NewError(types.ErrRequest, fmt.Sprintf("decode response: %v", err)).
			WithProvider(p.Name())
	}
	if out.Error != "" {
		return nil, types.NewError(types.ErrGenerationFailed, out.Error).WithProvider(p.Name())
	}
	if out.Audio == "" {
		return nil, types.NewError(types.ErrNoResult, "endpoint returned no audio").
			WithProvider(p.Name())
	}

	format := out.Format
	if format == "" {
		format = "wav"
	}
	mime := "audio/wav"
	if format == "mp3" {
		mime = "audio/mpeg"
	}

	res := &gen.Response{
		Status:   types.StatusComplete,
		DataURL:  fmt.Sprintf("data:%s;base64,%s", mime, out.Audio),
		Storage:  gen.StorageInline,
		Provider: p.Name(),
		Model:    p.cfg.Model,
		Audio:    &gen.AudioResult{Format: format, Duration: out.Duration},
	}
	return res, nil
}
