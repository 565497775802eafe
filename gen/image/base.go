// Package image holds the image generation providers: OpenAI (sync),
// Flux (async create/poll/fetch), Gemini (sync) and the self-hosted
// endpoint family.
package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/filmforge/costs"
	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/internal/tlsutil"
	"github.com/BaSui01/filmforge/media"
	"github.com/BaSui01/filmforge/types"
)

// Deps are the collaborators shared by every image provider. Zero values
// get safe defaults.
type Deps struct {
	Client   *http.Client
	Logger   *zap.Logger
	Uploader media.Uploader
}

func (d Deps) withDefaults() Deps {
	if d.Client == nil {
		d.Client = tlsutil.SecureHTTPClient(0)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Uploader == nil {
		d.Uploader = media.NopUploader{}
	}
	return d
}

// base carries the per-call configuration and collaborators common to all
// image providers.
type base struct {
	cfg      gen.ProviderConfig
	client   *http.Client
	logger   *zap.Logger
	uploader media.Uploader
}

func newBase(cfg gen.ProviderConfig, deps Deps) base {
	deps = deps.withDefaults()
	return base{cfg: cfg, client: deps.Client, logger: deps.Logger, uploader: deps.Uploader}
}

// baseURL returns the configured endpoint override, or def.
func (b *base) baseURL(def string) string {
	if b.cfg.Endpoint != "" {
		return b.cfg.Endpoint
	}
	return def
}

// postJSON issues a POST with the given headers and decodes into out. The
// raw body is returned alongside so callers can surface vendor error text.
func (b *base) postJSON(ctx context.Context, url string, headers map[string]string, in, out any) (*http.Response, []byte, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 400 && out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp, raw, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp, raw, nil
}

// decodeJSON reads and decodes a response body.
func decodeJSON(resp *http.Response, out any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// finalize normalizes a finished generation: it prices the call, routes
// the artifact to durable storage when a project is named, and fills the
// shared response fields.
func (b *base) finalize(ctx context.Context, req *gen.Request, provider, model, dataURL, hostedURL string) (*gen.Response, error) {
	resolution := "2k"
	if req.Image != nil && req.Image.Resolution != "" {
		resolution = req.Image.Resolution
	}

	res := &gen.Response{
		Status:     types.StatusComplete,
		Provider:   provider,
		Model:      model,
		ActualCost: costs.Image(provider, resolution),
	}

	switch {
	case hostedURL != "":
		res.URL = hostedURL
		res.Storage = gen.StorageHosted
	case dataURL != "":
		res.DataURL = dataURL
		res.Storage = gen.StorageInline
		if req.ProjectID != "" {
			uploaded, err := b.uploader.Upload(ctx, dataURL, media.KindImage, req.ProjectID)
			if err != nil {
				b.logger.Warn("durable upload failed, keeping inline payload",
					zap.String("provider", provider), zap.Error(err))
			} else if uploaded != dataURL {
				res.URL = uploaded
				res.DataURL = ""
				res.Storage = gen.StorageHosted
			}
		}
	}
	return res, nil
}
