package video

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/gen/poll"
	"github.com/BaSui01/filmforge/types"
)

const klingBaseURL = "https://api.klingai.com"

// Kling generates video through Kling. The credential is
// "access_key,secret_key"; every call signs a short-lived HS256 token from
// the pair.
type Kling struct {
	base

	accessKey string
	secretKey string
}

// NewKling creates a Kling video provider for one resolved config.
func NewKling(cfg gen.ProviderConfig, deps Deps) *Kling {
	p := &Kling{base: newBase(cfg, deps)}
	if parts := strings.SplitN(cfg.APIKey, ",", 2); len(parts) == 2 {
		p.accessKey = strings.TrimSpace(parts[0])
		p.secretKey = strings.TrimSpace(parts[1])
	}
	return p
}

func (p *Kling) Name() string     { return gen.ProviderKling }
func (p *Kling) Kind() types.Kind { return types.KindVideo }

func (p *Kling) ValidateConfig(ctx context.Context) error {
	if p.cfg.APIKey == "" {
		return types.NewError(types.ErrNoCredential, "kling credential is not configured").
			WithProvider(p.Name())
	}
	if p.accessKey == "" || p.secretKey == "" {
		return types.NewValidationError(`kling credential must be "access_key,secret_key"`).
			WithProvider(p.Name())
	}
	return nil
}

func (p *Kling) model() string {
	if p.cfg.Model != "" {
		return p.cfg.Model
	}
	return "kling-v2-master"
}

// signToken mints the 30-minute bearer token Kling expects, backdated a
// few seconds to absorb clock skew.
func (p *Kling) signToken() (string, error) {
	if p.accessKey == "" || p.secretKey == "" {
		return "", types.NewValidationError(`kling credential must be "access_key,secret_key"`).
			WithProvider(p.Name())
	}
	now := time.Now().Unix()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": p.accessKey,
		"exp": now + 1800,
		"nbf": now - 5,
	})
	token.Header["typ"] = "JWT"
	signed, err := token.SignedString([]byte(p.secretKey))
	if err != nil {
		return "", types.NewError(types.ErrAuthentication, fmt.Sprintf("sign kling token: %v", err)).
			WithProvider(p.Name()).
			WithCause(err)
	}
	return signed, nil
}

type klingCreateRequest struct {
	Model       string `json:"model_name,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	Image       string `json:"image,omitempty"`
	Mode        string `json:"mode,omitempty"` // std or pro
	Duration    string `json:"duration,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

type klingEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		TaskResult struct {
			Videos []struct {
				URL      string `json:"url"`
				Duration string `json:"duration"`
			} `json:"videos"`
		} `json:"task_result"`
		TaskStatusMsg string `json:"task_status_msg"`
	} `json:"data"`
}

// klingDuration snaps to the only clip lengths Kling sells.
func klingDuration(requested float64) string {
	if requested >= 10 {
		return "10"
	}
	return "5"
}

func (p *Kling) CreateTask(ctx context.Context, req *gen.Request) (string, error) {
	if req.Prompt == "" && (req.Video == nil || req.Video.SourceImage == "") {
		return "", types.NewValidationError("prompt or source image is required").
			WithProvider(p.Name())
	}
	token, err := p.signToken()
	if err != nil {
		return "", err
	}

	body := klingCreateRequest{
		Model:       p.model(),
		Prompt:      req.Prompt,
		Duration:    "5",
		AspectRatio: "16:9",
	}
	if req.Video != nil {
		body.Image = req.Video.SourceImage
		body.Duration = klingDuration(req.Video.Duration)
		if req.Video.AspectRatio != "" {
			body.AspectRatio = req.Video.AspectRatio
		}
		if req.Video.MotionMode != "" {
			body.Mode = req.Video.MotionMode
		}
	}

	var out klingEnvelope
	resp, raw, err := p.doJSON(ctx, http.MethodPost, p.baseURL(klingBaseURL)+"/v1/videos/image2video",
		map[string]string{"Authorization": "Bearer " + token}, body, &out)
	if err != nil {
		return "", types.WrapProviderError(p.Name(), err)
	}
	if resp.StatusCode >= 400 {
		return "", gen.HTTPError(p.Name(), resp, raw)
	}
	if out.Code != 0 {
		return "", types.NewError(types.ErrRequest,
			fmt.Sprintf("kling error %d: %s", out.Code, out.Message)).
			WithProvider(p.Name())
	}
	if out.Data.TaskID == "" {
		return "", types.NewError(types.ErrRequest, "kling returned no task id").
			WithProvider(p.Name())
	}
	gen.RecordTaskCreated(ctx, p.Kind(), p.Name(), out.Data.TaskID)
	return out.Data.TaskID, nil
}

func (p *Kling) getTask(ctx context.Context, taskID string) (*klingEnvelope, error) {
	token, err := p.signToken()
	if err != nil {
		return nil, err
	}
	var out klingEnvelope
	resp, raw, err := p.doJSON(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/videos/image2video/%s", p.baseURL(klingBaseURL), taskID),
		map[string]string{"Authorization": "Bearer " + token}, nil, &out)
	if err != nil {
		return nil, types.WrapProviderError(p.Name(), err)
	}
	if resp.StatusCode >= 400 {
		return nil, gen.HTTPError(p.Name(), resp, raw)
	}
	if out.Code != 0 {
		return nil, types.NewError(types.ErrRequest,
			fmt.Sprintf("kling error %d: %s", out.Code, out.Message)).
			WithProvider(p.Name())
	}
	return &out, nil
}

func (p *Kling) CheckStatus(ctx context.Context, taskID string) (*gen.TaskStatus, error) {
	out, err := p.getTask(ctx, taskID)
	if err != nil {
		if types.IsRetryable(err) {
			return &gen.TaskStatus{Status: types.StatusProcessing, Message: err.Error()}, nil
		}
		return nil, err
	}

	switch out.Data.TaskStatus {
	case "succeed":
		return &gen.TaskStatus{Status: types.StatusComplete}, nil
	case "failed":
		return &gen.TaskStatus{Status: types.StatusError, Error: out.Data.TaskStatusMsg}, nil
	case "submitted":
		return &gen.TaskStatus{Status: types.StatusPending}, nil
	default:
		return &gen.TaskStatus{Status: types.StatusProcessing, Message: out.Data.TaskStatus}, nil
	}
}

func (p *Kling) GetResult(ctx context.Context, taskID string) (*gen.Response, error) {
	out, err := p.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	videos := out.Data.TaskResult.Videos
	if len(videos) == 0 {
		return nil, types.NewError(types.ErrNoResult, "kling task has no videos").
			WithProvider(p.Name())
	}

	seconds, _ := strconv.ParseFloat(videos[0].Duration, 64)
	if seconds == 0 {
		seconds = 5
	}
	return &gen.Response{
		Status:   types.StatusComplete,
		URL:      videos[0].URL,
		Storage:  gen.StorageHosted,
		Provider: p.Name(),
		Model:    p.model(),
		Video:    &gen.VideoResult{Duration: seconds},
	}, nil
}

func (p *Kling) Generate(ctx context.Context, req *gen.Request) (*gen.Response, error) {
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
