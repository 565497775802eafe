// Package video holds the video generation providers. They are all
// asynchronous: video models take minutes per clip, so each vendor exposes
// a create/poll/fetch task lifecycle driven through gen/poll.
package video

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

// Deps are the collaborators shared by every video provider. Zero values
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

// finalize prices the clip and routes the artifact. Video artifacts stay
// hosted whenever the vendor gives a durable URL; only project-bound
// downloads are re-uploaded.
func (b *base) finalize(ctx context.Context, req *gen.Request, provider, model, hostedURL string, seconds float64) (*gen.Response, error) {
	res := &gen.Response{
		Status:     types.StatusComplete,
		URL:        hostedURL,
		Storage:    gen.StorageHosted,
		Provider:   provider,
		Model:      model,
		ActualCost: costs.Video(provider, seconds),
		Video:      &gen.VideoResult{Duration: seconds},
	}
	if req.ProjectID != "" && hostedURL != "" {
		dataURL, err := media.DownloadDataURL(ctx, b.client, hostedURL, "video/mp4")
		if err != nil {
			b.logger.Warn("video download for durable storage failed, keeping vendor URL",
				zap.String("provider", provider), zap.Error(err))
			return res, nil
		}
		uploaded, err := b.uploader.Upload(ctx, dataURL, media.KindVideo, req.ProjectID)
		if err != nil {
			b.logger.Warn("durable upload failed, keeping vendor URL",
				zap.String("provider", provider), zap.Error(err))
			return res, nil
		}
		if uploaded != dataURL {
			res.URL = uploaded
		}
	}
	return res, nil
}

// clampDuration bounds the requested clip length to what the vendor
// accepts.
func clampDuration(requested float64, def, min, max int) int {
	d := int(requested)
	if d == 0 {
		d = def
	}
	if d < min {
		d = min
	}
	if d > max {
		d = max
	}
	return d
}
