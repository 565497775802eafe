package video

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/gen/poll"
	"github.com/BaSui01/filmforge/types"
)

const (
	runwayBaseURL = "https://api.runwayml.com"
	// runwayVersion pins the API revision; Runway rejects unversioned
	// calls.
	runwayVersion = "2024-11-06"
)

// Runway generates video through Runway Gen-4.
// Auth: Bearer token + X-Runway-Version header.
type Runway struct {
	base

	mu        sync.Mutex
	durations map[string]float64 // task id -> requested seconds, for pricing
}

// NewRunway creates a Runway video provider for one resolved config.
func NewRunway(cfg gen.ProviderConfig, deps Deps) *Runway {
	return &Runway{base: newBase(cfg, deps), durations: make(map[string]float64)}
}

func (p *Runway) Name() string     { return gen.ProviderRunway }
func (p *Runway) Kind() types.Kind { return types.KindVideo }

func (p *Runway) ValidateConfig(ctx context.Context) error {
	if p.cfg.APIKey == "" {
		return types.NewError(types.ErrNoCredential, "runway API key is not configured").
			WithProvider(p.Name())
	}
	return nil
}

func (p *Runway) model() string {
	if p.cfg.Model != "" {
		return p.cfg.Model
	}
	return "gen4_turbo"
}

func (p *Runway) headers() map[string]string {
	return map[string]string{
		"Authorization":    "Bearer " + p.cfg.APIKey,
		"X-Runway-Version": runwayVersion,
	}
}

type runwayCreateRequest struct {
	Model       string `json:"model"`
	PromptText  string `json:"promptText,omitempty"`
	PromptImage string `json:"promptImage,omitempty"` // HTTPS URL or data URI
	Ratio       string `json:"ratio,omitempty"`
	Duration    int    `json:"duration,omitempty"` // 2-10 seconds
}

type runwayTaskResponse struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"` // PENDING, RUNNING, SUCCEEDED, FAILED
	Output      []string `json:"output,omitempty"`
	Failure     string   `json:"failure,omitempty"`
	FailureCode string   `json:"failureCode,omitempty"`
}

// runwayRatio maps common aspect ratios onto Runway's pixel pairs.
func runwayRatio(aspect string) string {
	switch aspect {
	case "9:16":
		return "720:1280"
	case "1:1":
		return "960:960"
	case "", "16:9":
		return "1280:720"
	default:
		return aspect
	}
}

func (p *Runway) CreateTask(ctx context.Context, req *gen.Request) (string, error) {
	if req.Prompt == "" && (req.Video == nil || req.Video.SourceImage == "") {
		return "", types.NewValidationError("prompt or source image is required").
			WithProvider(p.Name())
	}

	body := runwayCreateRequest{
		Model:      p.model(),
		PromptText: req.Prompt,
		Ratio:      runwayRatio(""),
		Duration:   5,
	}
	if req.Video != nil {
		body.PromptImage = req.Video.SourceImage
		body.Ratio = runwayRatio(req.Video.AspectRatio)
		body.Duration = clampDuration(req.Video.Duration, 5, 2, 10)
	}

	var out runwayTaskResponse
	resp, raw, err := p.doJSON(ctx, http.MethodPost, p.baseURL(runwayBaseURL)+"/v1/image_to_video",
		p.headers(), body, &out)
	if err != nil {
		return "", types.WrapProviderError(p.Name(), err)
	}
	if resp.StatusCode >= 400 {
		return "", gen.HTTPError(p.Name(), resp, raw)
	}
	if out.ID == "" {
		return "", types.NewError(types.ErrRequest, "runway returned no task id").
			WithProvider(p.Name())
	}

	p.mu.Lock()
	p.durations[out.ID] = float64(body.Duration)
	p.mu.Unlock()

	gen.RecordTaskCreated(ctx, p.Kind(), p.Name(), out.ID)
	return out.ID, nil
}

func (p *Runway) getTask(ctx context.Context, taskID string) (*runwayTaskResponse, error) {
	var out runwayTaskResponse
	resp, raw, err := p.doJSON(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/tasks/%s", p.baseURL(runwayBaseURL), taskID), p.headers(), nil, &out)
	if err != nil {
		return nil, types.WrapProviderError(p.Name(), err)
	}
	if resp.StatusCode >= 400 {
		return nil, gen.HTTPError(p.Name(), resp, raw)
	}
	return &out, nil
}

func (p *Runway) CheckStatus(ctx context.Context, taskID string) (*gen.TaskStatus, error) {
	out, err := p.getTask(ctx, taskID)
	if err != nil {
		// Transient probe faults read as still-processing.
		if types.IsRetryable(err) {
			return &gen.TaskStatus{Status: types.StatusProcessing, Message: err.Error()}, nil
		}
		return nil, err
	}

	switch out.Status {
	case "SUCCEEDED":
		return &gen.TaskStatus{Status: types.StatusComplete}, nil
	case "FAILED":
		msg := out.Failure
		if msg == "" {
			msg = out.FailureCode
		}
		return &gen.TaskStatus{Status: types.StatusError, Error: msg}, nil
	case "CANCELLED":
		return &gen.TaskStatus{Status: types.StatusCancelled}, nil
	case "PENDING", "THROTTLED":
		return &gen.TaskStatus{Status: types.StatusPending, Message: out.Status}, nil
	default:
		return &gen.TaskStatus{Status: types.StatusProcessing, Message: out.Status}, nil
	}
}

func (p *Runway) GetResult(ctx context.Context, taskID string) (*gen.Response, error) {
	out, err := p.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if len(out.Output) == 0 {
		return nil, types.NewError(types.ErrNoResult, "runway task has no output").
			WithProvider(p.Name())
	}

	p.mu.Lock()
	seconds := p.durations[taskID]
	delete(p.durations, taskID)
	p.mu.Unlock()
	if seconds == 0 {
		seconds = 5
	}

	return &gen.Response{
		Status:   types.StatusComplete,
		URL:      out.Output[0],
		Storage:  gen.StorageHosted,
		Provider: p.Name(),
		Model:    p.model(),
		Video:    &gen.VideoResult{Duration: seconds},
	}, nil
}

func (p *Runway) Generate(ctx context.Context, req *gen.Request) (*gen.Response, error) {
	taskID, err := p.CreateTask(ctx, req)
	if err != nil {
		return nil, err
	}

	_, err = poll.Wait(ctx, p.Name(), poll.SlowConfig(), func(ctx context.Context) (*gen.TaskStatus, error) {
		return p.CheckStatus(ctx, taskID)
	}, p.logger)
	if err != nil {
		return nil, err
	}

	res, err := p.GetResult(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return p.finalize(ctx, req, p.Name(), p.model(), res.URL, res.Video.Duration)
}
