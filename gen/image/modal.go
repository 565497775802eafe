package image

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/types"
)

// Modal calls a self-hosted image generation endpoint. There is no vendor
// credential: the resolved endpoint URL is the whole configuration, and a
// deployment that has been torn down answers 404.
type Modal struct {
	base

	// EditEndpoint is the optional image-edit deployment; it has its own
	// endpoint slot because edits run a different pipeline.
	EditEndpoint string
}

// NewModal creates a self-hosted image provider for one resolved config.
func NewModal(cfg gen.ProviderConfig, deps Deps) *Modal {
	return &Modal{base: newBase(cfg, deps), EditEndpoint: cfg.EditEndpoint}
}

func (p *Modal) Name() string     { return gen.ProviderModal }
func (p *Modal) Kind() types.Kind { return types.KindImage }

// ValidateConfig probes the deployment. Failure modes are kept distinct so
// callers can tell a torn-down deployment from a typo'd URL.
func (p *Modal) ValidateConfig(ctx context.Context) error {
	return probeEndpoint(ctx, p.client, p.Name(), p.cfg.Endpoint)
}

// probeEndpoint checks that a self-hosted endpoint is plausibly alive.
// Shared with the other self-hosted kinds.
func probeEndpoint(ctx context.Context, client *http.Client, provider, endpoint string) error {
	if endpoint == "" {
		return types.NewError(types.ErrNoCredential, "self-hosted endpoint is not configured").
			WithProvider(provider)
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return types.NewValidationError(fmt.Sprintf("malformed endpoint URL %q", endpoint)).
			WithProvider(provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.NewValidationError(fmt.Sprintf("build probe request: %v", err)).
			WithProvider(provider)
	}
	resp, err := client.Do(req)
	if err != nil {
		var netErr net.Error
		msg := fmt.Sprintf("endpoint unreachable: %v", err)
		if errors.As(err, &netErr) && netErr.Timeout() {
			msg = "endpoint probe timed out"
		}
		return types.NewError(types.ErrEndpointNotDeployed, msg).
			WithProvider(provider).
			WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return types.NewError(types.ErrEndpointNotDeployed, "endpoint not deployed (404)").
			WithProvider(provider).
			WithHTTPStatus(resp.StatusCode)
	}
	// Any other answer, including 405 for deployments that only accept
	// POST, proves the deployment is routable.
	return nil
}

// modalImageRequest mirrors the self-hosted deployment's contract.
type modalImageRequest struct {
	Prompt            string   `json:"prompt"`
	AspectRatio       string   `json:"aspect_ratio,omitempty"`
	Resolution        string   `json:"resolution,omitempty"`
	NumInferenceSteps int      `json:"num_inference_steps,omitempty"`
	GuidanceScale     float64  `json:"guidance_scale,omitempty"`
	ReferenceImages   []string `json:"reference_images,omitempty"`
}

type modalImageResponse struct {
	Image  string `json:"image"` // base64, no data: prefix
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Error  string `json:"error,omitempty"`
}

func (p *Modal) Generate(ctx context.Context, req *gen.Request) (*gen.Response, error) {
	return p.generate(ctx, req, p.cfg.Endpoint)
}

// Edit runs the image-edit deployment with the reference images attached.
func (p *Modal) Edit(ctx context.Context, req *gen.Request) (*gen.Response, error) {
	endpoint := p.EditEndpoint
	if endpoint == "" {
		return nil, types.NewError(types.ErrEndpointNotDeployed, "image-edit endpoint is not configured").
			WithProvider(p.Name())
	}
	return p.generate(ctx, req, endpoint)
}

func (p *Modal) generate(ctx context.Context, req *gen.Request, endpoint string) (*gen.Response, error) {
	if req.Prompt == "" {
		return nil, types.NewValidationError("prompt is required").WithProvider(p.Name())
	}
	if endpoint == "" {
		return nil, types.NewError(types.ErrNoCredential, "self-hosted endpoint is not configured").
			WithProvider(p.Name())
	}

	body := modalImageRequest{Prompt: req.Prompt}
	if req.Image != nil {
		body.AspectRatio = req.Image.AspectRatio
		body.Resolution = req.Image.Resolution
		body.NumInferenceSteps = req.Image.Steps
		body.GuidanceScale = req.Image.Guidance
		body.ReferenceImages = req.Image.ReferenceImages
	}

	var out modalImageResponse
	resp, raw, err := p.postJSON(ctx, strings.TrimRight(endpoint, "/"), nil, body, &out)
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
	if out.Image == "" {
		return nil, types.NewError(types.ErrNoResult, "endpoint returned no image").
			WithProvider(p.Name())
	}

	res, err := p.finalize(ctx, req, p.Name(), p.cfg.Model, "data:image/png;base64,"+out.Image, "")
	if err != nil {
		return nil, err
	}
	// Self-hosted runs are free of vendor spend.
	res.ActualCost = 0
	if out.Width > 0 {
		res.Metadata = map[string]any{"width": out.Width, "height": out.Height}
	}
	return res, nil
}
