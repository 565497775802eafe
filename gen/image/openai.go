package image

import (
	"context"
	"fmt"
	"net/http"

	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/media"
	"github.com/BaSui01/filmforge/types"
)

const openaiBaseURL = "https://api.openai.com"

// OpenAI generates images synchronously through the images API.
// Auth: Bearer token.
type OpenAI struct {
	base
}

// NewOpenAI creates an OpenAI image provider for one resolved config.
func NewOpenAI(cfg gen.ProviderConfig, deps Deps) *OpenAI {
	return &OpenAI{base: newBase(cfg, deps)}
}

func (p *OpenAI) Name() string     { return gen.ProviderOpenAI }
func (p *OpenAI) Kind() types.Kind { return types.KindImage }

// ValidateConfig probes the models listing, which is cheap and requires a
// valid key.
func (p *OpenAI) ValidateConfig(ctx context.Context) error {
	if p.cfg.APIKey == "" {
		return types.NewError(types.ErrNoCredential, "openai API key is not configured").
			WithProvider(p.Name())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL(openaiBaseURL)+"/v1/models", nil)
	if err != nil {
		return types.NewValidationError(fmt.Sprintf("build probe request: %v", err)).
			WithProvider(p.Name())
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return types.NewError(types.ErrServiceUnavailable, fmt.Sprintf("openai probe failed: %v", err)).
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

type openaiImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type openaiImageResponse struct {
	Data []struct {
		URL     string `json:"url,omitempty"`
		B64JSON string `json:"b64_json,omitempty"`
	} `json:"data"`
}

// openaiSize maps the resolution tiers plus an aspect ratio onto the sizes
// the images API accepts.
func openaiSize(params *gen.ImageParams) string {
	ratio := ""
	if params != nil {
		ratio = params.AspectRatio
	}
	switch ratio {
	case "16:9", "3:2":
		return "1792x1024"
	case "9:16", "2:3":
		return "1024x1792"
	default:
		return "1024x1024"
	}
}

// Generate runs one synchronous image generation. The base64 payload is
// requested so the artifact never depends on a vendor-hosted expiry.
func (p *OpenAI) Generate(ctx context.Context, req *gen.Request) (*gen.Response, error) {
	if req.Prompt == "" {
		return nil, types.NewValidationError("prompt is required").WithProvider(p.Name())
	}

	model := p.cfg.Model
	if model == "" {
		model = "dall-e-3"
	}

	body := openaiImageRequest{
		Model:          model,
		Prompt:         req.Prompt,
		N:              1,
		Size:           openaiSize(req.Image),
		ResponseFormat: "b64_json",
	}
	if req.Image != nil && req.Image.Resolution == "4k" {
		body.Quality = "hd"
	}

	var out openaiImageResponse
	resp, raw, err := p.postJSON(ctx, p.baseURL(openaiBaseURL)+"/v1/images/generations",
		map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}, body, &out)
	if err != nil {
		return nil, types.WrapProviderError(p.Name(), err)
	}
	if resp.StatusCode >= 400 {
		return nil, gen.HTTPError(p.Name(), resp, raw)
	}
	if len(out.Data) == 0 {
		return nil, types.NewError(types.ErrNoResult, "openai returned no images").
			WithProvider(p.Name())
	}

	d := out.Data[0]
	dataURL := ""
	if d.B64JSON != "" {
		dataURL = "data:image/png;base64," + d.B64JSON
	} else if d.URL != "" {
		dataURL, err = media.DownloadDataURL(ctx, p.client, d.URL, "image/png")
		if err != nil {
			return nil, types.WrapProviderError(p.Name(), err)
		}
	}

	return p.finalize(ctx, req, p.Name(), model, dataURL, "")
}
