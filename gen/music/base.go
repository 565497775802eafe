// Package music holds the music generation providers: Suno (async
// create/poll/fetch) and MiniMax (sync, base64 payload).
package music

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

// Deps are the collaborators shared by every music provider. Zero values
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

func (b *base) baseURL(def string) string {
	if b.cfg.Endpoint != "" {
		return b.cfg.Endpoint
	}
	return def
}

func (b *base) doJSON(ctx context.Context, method, url string, headers map[string]string, in, out any) (*http.Response, []byte, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
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

// finalize prices the track flat per generation and routes project-bound
// artifacts to durable storage.
func (b *base) finalize(ctx context.Context, req *gen.Request, provider, model, hostedURL, dataURL string, seconds float64) (*gen.Response, error) {
	res := &gen.Response{
		Status:     types.StatusComplete,
		Provider:   provider,
		Model:      model,
		ActualCost: costs.Music(provider),
		Audio:      &gen.AudioResult{Duration: seconds, Format: "mp3"},
	}

	switch {
	case hostedURL != "":
		res.URL = hostedURL
		res.Storage = gen.StorageHosted
	case dataURL != "":
		res.DataURL = dataURL
		res.Storage = gen.StorageInline
		if req.ProjectID != "" {
			uploaded, err := b.uploader.Upload(ctx, dataURL, media.KindAudio, req.ProjectID)
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
