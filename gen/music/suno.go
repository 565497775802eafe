package music

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/gen/poll"
	"github.com/BaSui01/filmforge/types"
)

const sunoBaseURL = "https://api.sunoapi.com"

// Suno generates music through the Suno API. Submission returns a task id
// and tracks arrive on the task endpoint once complete.
type Suno struct {
	base

	mu     sync.Mutex
	tracks map[string]sunoTrack // task id -> completed track
}

type sunoTrack struct {
	url      string
	title    string
	duration float64
}

// NewSuno creates a Suno music provider for one resolved config.
func NewSuno(cfg gen.ProviderConfig, deps Deps) *Suno {
	return &Suno{base: newBase(cfg, deps), tracks: make(map[string]sunoTrack)}
}

func (p *Suno) Name() string     { return gen.ProviderSuno }
func (p *Suno) Kind() types.Kind { return types.KindMusic }

func (p *Suno) ValidateConfig(ctx context.Context) error {
	if p.cfg.APIKey == "" {
		return types.NewError(types.ErrNoCredential, "suno API key is not configured").
			WithProvider(p.Name())
	}
	return nil
}

func (p *Suno) model() string {
	if p.cfg.Model != "" {
		return p.cfg.Model
	}
	return "suno-v5"
}

func (p *Suno) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}
}

type sunoCreateRequest struct {
	Prompt       string `json:"prompt"`
	Style        string `json:"style,omitempty"`
	Model        string `json:"model,omitempty"`
	Instrumental bool   `json:"instrumental,omitempty"`
	Duration     int    `json:"duration,omitempty"`
}

type sunoEnvelope struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Data   []struct {
		ID       string  `json:"id"`
		AudioURL string  `json:"audio_url"`
		Duration float64 `json:"duration"`
		Title    string  `json:"title"`
	} `json:"data"`
}

// prompt prefers the music description over the generic prompt field.
func musicPrompt(req *gen.Request) string {
	if req.Music != nil && req.Music.Description != "" {
		return req.Music.Description
	}
	return req.Prompt
}

func (p *Suno) CreateTask(ctx context.Context, req *gen.Request) (string, error) {
	prompt := musicPrompt(req)
	if prompt == "" {
		return "", types.NewValidationError("music description is required").
			WithProvider(p.Name())
	}

	body := sunoCreateRequest{Prompt: prompt, Model: p.model()}
	if req.Music != nil {
		body.Style = req.Music.Style
		body.Instrumental = req.Music.Instrumental
		body.Duration = int(req.Music.Duration)
		if len(req.Music.Instruments) > 0 {
			body.Style = strings.TrimSpace(body.Style + " " + strings.Join(req.Music.Instruments, ", "))
		}
	}

	var out sunoEnvelope
	resp, raw, err := p.doJSON(ctx, http.MethodPost, p.baseURL(sunoBaseURL)+"/v1/suno/create",
		p.headers(), body, &out)
	if err != nil {
		return "", types.WrapProviderError(p.Name(), err)
	}
	if resp.StatusCode >= 400 {
		return "", gen.HTTPError(p.Name(), resp, raw)
	}
	if out.TaskID == "" {
		return "", types.NewError(types.ErrRequest, "suno returned no task id").
			WithProvider(p.Name())
	}
	gen.RecordTaskCreated(ctx, p.Kind(), p.Name(), out.TaskID)
	return out.TaskID, nil
}

func (p *Suno) CheckStatus(ctx context.Context, taskID string) (*gen.TaskStatus, error) {
	var out sunoEnvelope
	resp, raw, err := p.doJSON(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/suno/task/%s", p.baseURL(sunoBaseURL), taskID), p.headers(), nil, &out)
	if err != nil {
		return &gen.TaskStatus{Status: types.StatusProcessing, Message: err.Error()}, nil
	}
	if resp.StatusCode >= 400 {
		typed := gen.HTTPError(p.Name(), resp, raw)
		if typed.Retryable {
			return &gen.TaskStatus{Status: types.StatusProcessing, Message: typed.Message}, nil
		}
		return nil, typed
	}

	switch out.Status {
	case "complete", "completed", "success":
		if len(out.Data) > 0 {
			p.mu.Lock()
			p.tracks[taskID] = sunoTrack{
				url:      out.Data[0].AudioURL,
				title:    out.Data[0].Title,
				duration: out.Data[0].Duration,
			}
			p.mu.Unlock()
		}
		return &gen.TaskStatus{Status: types.StatusComplete}, nil
	case "failed", "error":
		return &gen.TaskStatus{Status: types.StatusError, Error: "suno generation failed"}, nil
	case "pending", "queued":
		return &gen.TaskStatus{Status: types.StatusPending}, nil
	default:
		return &gen.TaskStatus{Status: types.StatusProcessing, Message: out.Status}, nil
	}
}

func (p *Suno) GetResult(ctx context.Context, taskID string) (*gen.Response, error) {
	p.mu.Lock()
	track, ok := p.tracks[taskID]
	delete(p.tracks, taskID)
	p.mu.Unlock()

	if !ok || track.url == "" {
		return nil, types.NewError(types.ErrNoResult, "suno task has no tracks").
			WithProvider(p.Name())
	}
	return &gen.Response{
		Status:   types.StatusComplete,
		URL:      track.url,
		Storage:  gen.StorageHosted,
		Provider: p.Name(),
		Model:    p.model(),
		Message:  track.title,
		Audio:    &gen.AudioResult{Duration: track.duration, Format: "mp3"},
	}, nil
}

func (p *Suno) Generate(ctx context.Context, req *gen.Request) (*gen.Response, error) {
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
	final, err := p.finalize(ctx, req, p.Name(), p.model(), res.URL, "", res.Audio.Duration)
	if err != nil {
		return nil, err
	}
	final.Message = res.Message
	return final, nil
}
