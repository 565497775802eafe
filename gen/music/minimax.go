package music

import (
	"context"
	"fmt"
	"net/http"

	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/types"
)

const miniMaxBaseURL = "https://api.minimax.io"

// MiniMax generates music synchronously; the track comes back base64
// encoded inside the response envelope.
type MiniMax struct {
	base
}

// NewMiniMax creates a MiniMax music provider for one resolved config.
func NewMiniMax(cfg gen.ProviderConfig, deps Deps) *MiniMax {
	return &MiniMax{base: newBase(cfg, deps)}
}

func (p *MiniMax) Name() string     { return gen.ProviderMiniMax }
func (p *MiniMax) Kind() types.Kind { return types.KindMusic }

func (p *MiniMax) ValidateConfig(ctx context.Context) error {
	if p.cfg.APIKey == "" {
		return types.NewError(types.ErrNoCredential, "minimax API key is not configured").
			WithProvider(p.Name())
	}
	return nil
}

func (p *MiniMax) model() string {
	if p.cfg.Model != "" {
		return p.cfg.Model
	}
	return "music-01"
}

type miniMaxAudioSetting struct {
	SampleRate int    `json:"sample_rate,omitempty"`
	Bitrate    int    `json:"bitrate,omitempty"`
	Format     string `json:"format,omitempty"`
}

type miniMaxRequest struct {
	Model        string              `json:"model"`
	Prompt       string              `json:"prompt,omitempty"`
	AudioSetting miniMaxAudioSetting `json:"audio_setting"`
}

type miniMaxResponse struct {
	BaseResp struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
	Data struct {
		Audio string `json:"audio"` // base64
	} `json:"data"`
	ExtraInfo struct {
		AudioLength float64 `json:"audio_length"`
	} `json:"extra_info"`
}

func (p *MiniMax) Generate(ctx context.Context, req *gen.Request) (*gen.Response, error) {
	prompt := musicPrompt(req)
	if prompt == "" {
		return nil, types.NewValidationError("music description is required").
			WithProvider(p.Name())
	}

	body := miniMaxRequest{
		Model:  p.model(),
		Prompt: prompt,
		AudioSetting: miniMaxAudioSetting{
			SampleRate: 44100,
			Bitrate:    128000,
			Format:     "mp3",
		},
	}

	var out miniMaxResponse
	resp, raw, err := p.doJSON(ctx, http.MethodPost, p.baseURL(miniMaxBaseURL)+"/v1/music_generation",
		map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}, body, &out)
	if err != nil {
		return nil, types.WrapProviderError(p.Name(), err)
	}
	if resp.StatusCode >= 400 {
		return nil, gen.HTTPError(p.Name(), resp, raw)
	}
	if out.BaseResp.StatusCode != 0 {
		return nil, types.NewError(types.ErrGenerationFailed,
			fmt.Sprintf("minimax error %d: %s", out.BaseResp.StatusCode, out.BaseResp.StatusMsg)).
			WithProvider(p.Name())
	}
	if out.Data.Audio == "" {
		return nil, types.NewError(types.ErrNoResult, "minimax returned no audio").
			WithProvider(p.Name())
	}

	dataURL := "data:audio/mpeg;base64," + out.Data.Audio
	return p.finalize(ctx, req, p.Name(), p.model(), "", dataURL, out.ExtraInfo.AudioLength)
}
