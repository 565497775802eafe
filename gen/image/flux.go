package image

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/gen/poll"
	"github.com/BaSui01/filmforge/media"
	"github.com/BaSui01/filmforge/types"
)

const fluxBaseURL = "https://api.bfl.ai"

// Flux generates images through Black Forest Labs. The API is
// create/poll/fetch: submission returns a task id plus a polling URL, and
// result URLs are signed with a short expiry, so the artifact is
// downloaded and inlined as soon as the task completes.
type Flux struct {
	base

	mu    sync.Mutex
	tasks map[string]fluxTask // task id -> polling state
}

type fluxTask struct {
	pollingURL string
	sampleURL  string
}

// NewFlux creates a Flux image provider for one resolved config.
func NewFlux(cfg gen.ProviderConfig, deps Deps) *Flux {
	return &Flux{base: newBase(cfg, deps), tasks: make(map[string]fluxTask)}
}

func (p *Flux) Name() string     { return gen.ProviderFlux }
func (p *Flux) Kind() types.Kind { return types.KindImage }

func (p *Flux) ValidateConfig(ctx context.Context) error {
	if p.cfg.APIKey == "" {
		return types.NewError(types.ErrNoCredential, "flux API key is not configured").
			WithProvider(p.Name())
	}
	return nil
}

func (p *Flux) model() string {
	if p.cfg.Model != "" {
		return p.cfg.Model
	}
	return "flux-pro-1.1"
}

type fluxCreateRequest struct {
	Prompt       string  `json:"prompt"`
	AspectRatio  string  `json:"aspect_ratio,omitempty"`
	Steps        int     `json:"steps,omitempty"`
	Guidance     float64 `json:"guidance,omitempty"`
	Seed         int64   `json:"seed,omitempty"`
	OutputFormat string  `json:"output_format,omitempty"`
}

type fluxStatusResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	PollingURL string `json:"polling_url,omitempty"`
	Result     struct {
		Sample string `json:"sample"`
	} `json:"result"`
}

// CreateTask submits the generation and records the vendor's polling URL.
func (p *Flux) CreateTask(ctx context.Context, req *gen.Request) (string, error) {
	if req.Prompt == "" {
		return "", types.NewValidationError("prompt is required").WithProvider(p.Name())
	}

	body := fluxCreateRequest{
		Prompt:       req.Prompt,
		AspectRatio:  "1:1",
		OutputFormat: "jpeg",
	}
	if req.Image != nil {
		if req.Image.AspectRatio != "" {
			body.AspectRatio = req.Image.AspectRatio
		}
		body.Steps = req.Image.Steps
		body.Guidance = req.Image.Guidance
		body.Seed = req.Image.Seed
	}

	var out fluxStatusResponse
	resp, raw, err := p.postJSON(ctx, fmt.Sprintf("%s/v1/%s", p.baseURL(fluxBaseURL), p.model()),
		map[string]string{"x-key": p.cfg.APIKey}, body, &out)
	if err != nil {
		return "", types.WrapProviderError(p.Name(), err)
	}
	if resp.StatusCode >= 400 {
		return "", gen.HTTPError(p.Name(), resp, raw)
	}
	if out.ID == "" {
		return "", types.NewError(types.ErrRequest, "flux returned no task id").
			WithProvider(p.Name())
	}

	pollingURL := out.PollingURL
	if pollingURL == "" {
		pollingURL = p.resultURL(out.ID)
	}
	p.mu.Lock()
	p.tasks[out.ID] = fluxTask{pollingURL: pollingURL}
	p.mu.Unlock()

	gen.RecordTaskCreated(ctx, p.Kind(), p.Name(), out.ID)
	return out.ID, nil
}

// resultURL rebuilds the get_result polling URL from a task id alone, so
// a task submitted before a restart can still be polled.
func (p *Flux) resultURL(taskID string) string {
	return fmt.Sprintf("%s/v1/get_result?id=%s", p.baseURL(fluxBaseURL), url.QueryEscape(taskID))
}

// CheckStatus maps the vendor vocabulary (Pending, Processing, Ready,
// Error, Failed, Content Moderated) onto the shared status set.
func (p *Flux) CheckStatus(ctx context.Context, taskID string) (*gen.TaskStatus, error) {
	p.mu.Lock()
	task, ok := p.tasks[taskID]
	if !ok {
		// Task ids survive restarts; a fresh instance falls back to the
		// reconstructable polling URL.
		task = fluxTask{pollingURL: p.resultURL(taskID)}
		p.tasks[taskID] = task
	}
	p.mu.Unlock()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, task.pollingURL, nil)
	if err != nil {
		return nil, types.NewValidationError(fmt.Sprintf("build status request: %v", err)).
			WithProvider(p.Name())
	}
	httpReq.Header.Set("x-key", p.cfg.APIKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		// Transient probe faults read as still-processing; the poll loop
		// owns the ceilings.
		return &gen.TaskStatus{Status: types.StatusProcessing, Message: err.Error()}, nil
	}
	defer resp.Body.Close()

	var out fluxStatusResponse
	if err := decodeJSON(resp, &out); err != nil {
		return &gen.TaskStatus{Status: types.StatusProcessing, Message: err.Error()}, nil
	}

	switch out.Status {
	case "Ready":
		p.mu.Lock()
		task.sampleURL = out.Result.Sample
		p.tasks[taskID] = task
		p.mu.Unlock()
		return &gen.TaskStatus{Status: types.StatusComplete}, nil
	case "Error", "Failed", "Content Moderated", "Request Moderated":
		return &gen.TaskStatus{Status: types.StatusError, Error: out.Status}, nil
	default:
		return &gen.TaskStatus{Status: types.StatusProcessing, Message: out.Status}, nil
	}
}

// GetResult downloads the signed sample URL before it expires and returns
// the inlined artifact.
func (p *Flux) GetResult(ctx context.Context, taskID string) (*gen.Response, error) {
	p.mu.Lock()
	task := p.tasks[taskID]
	delete(p.tasks, taskID)
	p.mu.Unlock()

	if task.sampleURL == "" {
		return nil, types.NewError(types.ErrNoResult, "flux task has no result sample").
			WithProvider(p.Name())
	}
	dataURL, err := media.DownloadDataURL(ctx, p.client, task.sampleURL, "image/jpeg")
	if err != nil {
		return nil, types.WrapProviderError(p.Name(), err)
	}
	return &gen.Response{
		Status:   types.StatusComplete,
		DataURL:  dataURL,
		Storage:  gen.StorageInline,
		Provider: p.Name(),
		Model:    p.model(),
	}, nil
}

// Generate drives the full create/poll/fetch cycle.
func (p *Flux) Generate(ctx context.Context, req *gen.Request) (*gen.Response, error) {
	taskID, err := p.CreateTask(ctx, req)
	if err != nil {
		return nil, err
	}

	_, err = poll.Wait(ctx, p.Name(), poll.DefaultConfig(), func(ctx context.Context) (*gen.TaskStatus, error) {
		return p.CheckStatus(ctx, taskID)
	}, p.logger)
	if err != nil {
		return nil, err
	}

	res, err := p.GetResult(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return p.finalize(ctx, req, p.Name(), p.model(), res.DataURL, "")
}
