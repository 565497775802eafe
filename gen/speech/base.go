// Package speech holds the text-to-speech providers: ElevenLabs, OpenAI
// and the self-hosted endpoint family. TTS is synchronous everywhere; the
// vendors answer with raw audio bytes, which are inlined as data URLs.
package speech

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/filmforge/costs"
	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/internal/tlsutil"
	"github.com/BaSui01/filmforge/media"
	"github.com/BaSui01/filmforge/types"
)

// Deps are the collaborators shared by every speech provider. Zero values
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

// finalize wraps synthesized audio bytes, prices the call per thousand
// characters, and routes project-bound artifacts to durable storage.
func (b *base) finalize(ctx context.Context, req *gen.Request, provider, model, mime string, audio []byte, format string) (*gen.Response, error) {
	chars := 0
	if req.Speech != nil {
		chars = len(req.Speech.Text)
	}

	res := &gen.Response{
		Status:     types.StatusComplete,
		DataURL:    media.ToDataURL(mime, audio),
		Storage:    gen.StorageInline,
		Provider:   provider,
		Model:      model,
		ActualCost: costs.Speech(provider, chars),
		Audio:      &gen.AudioResult{Format: format},
	}
	if req.ProjectID != "" {
		uploaded, err := b.uploader.Upload(ctx, res.DataURL, media.KindAudio, req.ProjectID)
		if err != nil {
			b.logger.Warn("durable upload failed, keeping inline payload",
				zap.String("provider", provider), zap.Error(err))
		} else if uploaded != res.DataURL {
			res.URL = uploaded
			res.DataURL = ""
			res.Storage = gen.StorageHosted
		}
	}
	return res, nil
}
