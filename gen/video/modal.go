package video

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/media"
	"github.com/BaSui01/filmforge/types"
)

// Modal calls a self-hosted video generation endpoint. The deployment is
// synchronous behind a long HTTP call, so unlike the vendor providers it
// implements only the plain Provider contract.
type Modal struct {
	base
}

// NewModal creates a self-hosted video provider for one resolved config.
func NewModal(cfg gen.ProviderConfig, deps Deps) *Modal {
	return &Modal{base: newBase(cfg, deps)}
}

func (p *Modal) Name() string     { return gen.ProviderModal }
func (p *Modal) Kind() types.Kind { return types.KindVideo }

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

type modalVideoRequest struct {
	Prompt      string  `json:"prompt"`
	SourceImage string  `json:"source_image,omitempty"` // data URL
	Duration    float64 `json:"duration,omitempty"`
	AspectRatio string  `json:"aspect_ratio,omitempty"`
	FPS         int     `json:"fps,omitempty"`
}

type modalVideoResponse struct {
	Video    string  `json:"video"` // base64 mp4
	Duration float64 `json:"duration,omitempty"`
	FPS      int     `json:"fps,omitempty"`
	Error    string  `json:"error,omitempty"`
}

func (p *Modal) Generate(ctx context.Context, req *gen.Request) (*gen.Response, error) {
	if req.Prompt == "" && (req.Video == nil || req.Video.SourceImage == "") {
		return nil, types.NewValidationError("prompt or source image is required").
			WithProvider(p.Name())
	}
	if p.cfg.Endpoint == "" {
		return nil, types.NewError(types.ErrNoCredential, "self-hosted endpoint is not configured").
			WithProvider(p.Name())
	}

	body := modalVideoRequest{Prompt: req.Prompt}
	if req.Video != nil {
		body.SourceImage = req.Video.SourceImage
		body.Duration = req.Video.Duration
		body.AspectRatio = req.Video.AspectRatio
		body.FPS = req.Video.FPS
	}

	var out modalVideoResponse
	resp, raw, err := p.doJSON(ctx, http.MethodPost, strings.TrimRight(p.cfg.Endpoint, "/"), nil, body, &out)
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
	if out.Error != "" {
		return nil, types.NewError(types.ErrGenerationFailed, out.Error).WithProvider(p.Name())
	}
	if out.Video == "" {
		return nil, types.NewError(types.ErrNoResult, "endpoint returned no video").
			WithProvider(p.Name())
	}

	res := &gen.Response{
		Status:   types.StatusComplete,
		DataURL:  "data:video/mp4;base64," + out.Video,
		Storage:  gen.StorageInline,
		Provider: p.Name(),
		Model:    p.cfg.Model,
		Video:    &gen.VideoResult{Duration: out.Duration, FPS: out.FPS},
	}
	if req.ProjectID != "" {
		uploaded, err := p.uploader.Upload(ctx, res.DataURL, media.KindVideo, req.ProjectID)
		if err == nil && uploaded != res.DataURL {
			res.URL = uploaded
			res.DataURL = ""
			res.Storage = gen.StorageHosted
		}
	}
	return res, nil
}
