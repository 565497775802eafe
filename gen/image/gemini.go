package image

import (
	"context"
	"fmt"
	"net/url"

	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/types"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com"

// Gemini generates images synchronously through generateContent with the
// image response modality. Auth: key in the query string.
type Gemini struct {
	base
}

// NewGemini creates a Gemini image provider for one resolved config.
func NewGemini(cfg gen.ProviderConfig, deps Deps) *Gemini {
	return &Gemini{base: newBase(cfg, deps)}
}

func (p *Gemini) Name() string     { return gen.ProviderGemini }
func (p *Gemini) Kind() types.Kind { return types.KindImage }

func (p *Gemini) ValidateConfig(ctx context.Context) error {
	if p.cfg.APIKey == "" {
		return types.NewError(types.ErrNoCredential, "gemini API key is not configured").
			WithProvider(p.Name())
	}
	return nil
}

func (p *Gemini) model() string {
	if p.cfg.Model != "" {
		return p.cfg.Model
	}
	return "gemini-2.0-flash-exp"
}

type geminiPart struct {
	Text       string `json:"text,omitempty"`
	InlineData *struct {
		MimeType string `json:"mimeType"`
		Data     string `json:"data"`
	} `json:"inlineData,omitempty"`
}

type geminiRequest struct {
	Contents []struct {
		Parts []geminiPart `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason,omitempty"`
	} `json:"candidates"`
}

func (p *Gemini) Generate(ctx context.Context, req *gen.Request) (*gen.Response, error) {
	if req.Prompt == "" {
		return nil, types.NewValidationError("prompt is required").WithProvider(p.Name())
	}

	var body geminiRequest
	body.Contents = append(body.Contents, struct {
		Parts []geminiPart `json:"parts"`
	}{Parts: []geminiPart{{Text: req.Prompt}}})
	body.GenerationConfig.ResponseModalities = []string{"TEXT", "IMAGE"}

	target := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		p.baseURL(geminiBaseURL), p.model(), url.QueryEscape(p.cfg.APIKey))

	var out geminiResponse
	resp, raw, err := p.postJSON(ctx, target, nil, body, &out)
	if err != nil {
		return nil, types.WrapProviderError(p.Name(), err)
	}
	if resp.StatusCode >= 400 {
		return nil, gen.HTTPError(p.Name(), resp, raw)
	}

	for _, cand := range out.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				mime := part.InlineData.MimeType
				if mime == "" {
					mime = "image/png"
				}
				dataURL := fmt.Sprintf("data:%s;base64,%s", mime, part.InlineData.Data)
				return p.finalize(ctx, req, p.Name(), p.model(), dataURL, "")
			}
		}
	}
	return nil, types.NewError(types.ErrNoResult, "gemini returned no image parts").
		WithProvider(p.Name())
}
