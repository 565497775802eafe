// Package call is the generic vendor-call entry point: it resolves the
// provider configuration, builds the URL, headers and authentication for
// that vendor, performs the HTTP exchange under a per-call timeout, and
// normalizes every outcome, including aborts, timeouts and non-JSON
// bodies, into a response envelope. Call never returns an error; callers
// branch on the envelope.
package call

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/gen/resolve"
	"github.com/BaSui01/filmforge/internal/ctxkeys"
	"github.com/BaSui01/filmforge/internal/tlsutil"
	"github.com/BaSui01/filmforge/types"
)

// Request describes one generic vendor call.
type Request struct {
	Kind types.Kind
	// Provider optionally overrides resolution, like gen.Request.Provider.
	Provider string
	Model    string

	UserID         string
	SettingsUserID string
	OwnerID        string
	ProjectID      string

	// Body is JSON-encoded as the request payload. Nil means GET.
	Body any
	// Timeout overrides the kind-scaled default for this call only.
	Timeout time.Duration
}

// Result is the normalized envelope. Status carries the HTTP status code
// (or a synthesized one: 408 for timeouts, 0 for transport failures before
// any response). Exactly one of Data and Error is meaningful.
type Result struct {
	Status   int            `json:"status"`
	Provider string         `json:"provider,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// OK reports whether the vendor answered 2xx.
func (r *Result) OK() bool { return r.Status >= 200 && r.Status < 300 && r.Error == "" }

// Caller performs generic vendor calls.
type Caller struct {
	resolver *resolve.Resolver
	client   *http.Client
	logger   *zap.Logger

	cli *CLIAdapter

	// per-provider outbound throttles
	ratePerSecond float64
	mu            sync.Mutex
	limiters      map[string]*rate.Limiter

	// urlOverrides redirects a provider to an alternate endpoint
	// (regional proxies, tests).
	urlOverrides map[string]string
}

// Option configures a Caller.
type Option func(*Caller)

// WithHTTPClient replaces the hardened default client (tests).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Caller) { cl.client = c }
}

// WithRateLimit caps outbound calls per provider per second. Zero disables
// limiting.
func WithRateLimit(perSecond float64) Option {
	return func(cl *Caller) { cl.ratePerSecond = perSecond }
}

// WithCLIAdapter wires the deployment-specific local CLI pseudo-provider.
func WithCLIAdapter(a *CLIAdapter) Option {
	return func(cl *Caller) { cl.cli = a }
}

// WithURLOverride sends a provider's calls to url instead of its public
// endpoint.
func WithURLOverride(provider, url string) Option {
	return func(cl *Caller) { cl.urlOverrides[provider] = url }
}

// NewCaller creates a Caller over the given resolver.
func NewCaller(resolver *resolve.Resolver, logger *zap.Logger, opts ...Option) *Caller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Caller{
		resolver:     resolver,
		client:       tlsutil.SecureHTTPClient(0),
		logger:       logger,
		limiters:     make(map[string]*rate.Limiter),
		urlOverrides: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call resolves configuration and performs the vendor exchange. It never
// returns a Go error: every failure mode is folded into the envelope.
func (c *Caller) Call(ctx context.Context, req Request) *Result {
	cfg, err := c.resolver.Resolve(ctx, resolve.Query{
		UserID:         req.UserID,
		SettingsUserID: req.SettingsUserID,
		OwnerID:        req.OwnerID,
		ProjectID:      req.ProjectID,
		Kind:           req.Kind,
		Provider:       req.Provider,
		Model:          req.Model,
	})
	if err != nil {
		return envelopeFromError(req.Provider, err)
	}

	// The local CLI pseudo-provider bypasses HTTP entirely.
	if cfg.Provider == gen.ProviderLocalCLI {
		if c.cli == nil {
			return &Result{
				Status:   http.StatusNotImplemented,
				Provider: cfg.Provider,
				Error:    "local CLI adapter is not configured",
			}
		}
		return c.cli.Run(ctx, req)
	}

	if err := c.waitLimiter(ctx, cfg.Provider); err != nil {
		return envelopeFromError(cfg.Provider, err)
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := c.doHTTP(ctx, cfg, req)
	c.logger.Debug("vendor call finished", append(ctxkeys.Fields(ctx),
		zap.String("kind", string(req.Kind)),
		zap.String("provider", cfg.Provider),
		zap.Int("status", res.Status),
		zap.Bool("ok", res.OK()))...)
	return res
}

func (c *Caller) doHTTP(ctx context.Context, cfg gen.ProviderConfig, req Request) *Result {
	target, err := buildURL(cfg)
	if err != nil {
		return envelopeFromError(cfg.Provider, err)
	}
	if override, ok := c.urlOverrides[cfg.Provider]; ok {
		target = override
	}

	method := http.MethodPost
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return &Result{
				Status:   http.StatusBadRequest,
				Provider: cfg.Provider,
				Error:    fmt.Sprintf("encode request body: %v", err),
			}
		}
		body = bytes.NewReader(payload)
	} else {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &Result{Provider: cfg.Provider, Error: fmt.Sprintf("build request: %v", err)}
	}
	httpReq.Header = buildHeaders(cfg)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &Result{
				Status:   http.StatusRequestTimeout,
				Provider: cfg.Provider,
				Error:    fmt.Sprintf("%s request timeout: %v", cfg.Provider, err),
			}
		}
		return &Result{
			Provider: cfg.Provider,
			Error:    fmt.Sprintf("%s request failed: %v", cfg.Provider, err),
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Result{
			Status:   resp.StatusCode,
			Provider: cfg.Provider,
			Error:    fmt.Sprintf("read %s response: %v", cfg.Provider, err),
		}
	}

	// Tolerate non-JSON bodies: Data stays nil.
	var data map[string]any
	_ = json.Unmarshal(raw, &data)

	if resp.StatusCode >= 400 {
		msg := extractErrorMessage(cfg.Provider, data)
		if msg == "" {
			msg = string(truncateBytes(raw, 256))
		}
		return &Result{
			Status:   resp.StatusCode,
			Provider: cfg.Provider,
			Error:    fmt.Sprintf("%s: %s", cfg.Provider, msg),
		}
	}

	return &Result{Status: resp.StatusCode, Provider: cfg.Provider, Data: data}
}

func (c *Caller) waitLimiter(ctx context.Context, provider string) error {
	if c.ratePerSecond <= 0 {
		return nil
	}
	c.mu.Lock()
	lim, ok := c.limiters[provider]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(c.ratePerSecond), max(1, int(c.ratePerSecond)))
		c.limiters[provider] = lim
	}
	c.mu.Unlock()
	return lim.Wait(ctx)
}

func envelopeFromError(provider string, err error) *Result {
	res := &Result{Provider: provider, Error: err.Error()}
	if e, ok := types.AsError(err); ok {
		if e.Provider != "" {
			res.Provider = e.Provider
		}
		switch {
		case e.HTTPStatus != 0:
			res.Status = e.HTTPStatus
		case e.Code == types.ErrTimeout:
			res.Status = http.StatusRequestTimeout
		case e.Code == types.ErrValidation || e.Code == types.ErrNoCredential:
			res.Status = http.StatusBadRequest
		case e.Code == types.ErrProviderNotFound || e.Code == types.ErrUnsupported:
			res.Status = http.StatusNotFound
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		res.Status = http.StatusRequestTimeout
	}
	return res
}

func truncateBytes(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
