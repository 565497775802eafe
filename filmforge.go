// Package filmforge provides a top-level convenience entry point for
// generating media with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/filmforge"
//
//	ff, err := filmforge.New(filmforge.WithSettings(settingsStore))
//	resp, err := ff.Generate(ctx, &gen.Request{Kind: types.KindImage, Prompt: "..."})
//
// Without a settings store, provider choices and credentials come from the
// environment alone. Embedding services that need finer control should wire
// gen/register, gen/resolve and gen/observability directly; this package is
// a thin composition of the three.
package filmforge

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/gen/observability"
	"github.com/BaSui01/filmforge/gen/poll"
	"github.com/BaSui01/filmforge/gen/register"
	"github.com/BaSui01/filmforge/gen/resolve"
	"github.com/BaSui01/filmforge/internal/ctxkeys"
	"github.com/BaSui01/filmforge/internal/metrics"
	"github.com/BaSui01/filmforge/media"
	"github.com/BaSui01/filmforge/taskstore"
	"github.com/BaSui01/filmforge/types"
)

// The prometheus collector registers on the default registry, so it is
// created once per process no matter how many Clients exist.
var (
	promOnce      sync.Once
	promCollector *metrics.Collector
)

func sharedCollector(logger *zap.Logger) *metrics.Collector {
	promOnce.Do(func() {
		promCollector = metrics.NewCollector("filmforge", logger)
	})
	return promCollector
}

// Client bundles the provider registry, the configuration resolver and the
// telemetry instruments behind one Generate call.
type Client struct {
	registry *gen.Registry
	resolver *resolve.Resolver
	obs      *observability.Instruments
	prom     *metrics.Collector
	tasks    *taskstore.Store
	logger   *zap.Logger
}

// Option configures the client created by [New].
type Option func(*options)

type options struct {
	settings resolve.SettingsStore
	client   *http.Client
	uploader media.Uploader
	tasks    *taskstore.Store
	logger   *zap.Logger
}

// WithSettings supplies the settings store backing the resolver. Without
// it the resolver only reaches the environment tiers.
func WithSettings(st resolve.SettingsStore) Option {
	return func(o *options) { o.settings = st }
}

// WithHTTPClient overrides the outbound HTTP client shared by all providers.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithUploader supplies durable storage for project-scoped artifacts.
func WithUploader(u media.Uploader) Option {
	return func(o *options) { o.uploader = u }
}

// WithTaskStore supplies the redis task store. Async submissions are then
// recorded with kind, provider and user so an interrupted caller can
// resume polling with the stored vendor task id.
func WithTaskStore(ts *taskstore.Store) Option {
	return func(o *options) { o.tasks = ts }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a Client with every provider registered.
func New(opts ...Option) (*Client, error) {
	o := options{settings: resolve.EnvOnly{}, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	obs, err := observability.New()
	if err != nil {
		return nil, err
	}

	return &Client{
		registry: register.All(register.Deps{
			Client:   o.client,
			Logger:   o.logger,
			Uploader: o.uploader,
		}),
		resolver: resolve.New(o.settings, o.logger),
		obs:      obs,
		prom:     sharedCollector(o.logger),
		tasks:    o.tasks,
		logger:   o.logger,
	}, nil
}

// Registry exposes the underlying registry for discovery and selection.
func (c *Client) Registry() *gen.Registry { return c.registry }

// Resolver exposes the underlying configuration resolver.
func (c *Client) Resolver() *resolve.Resolver { return c.resolver }

// Generate resolves the caller's configuration, constructs the provider
// and runs one generation to completion, recording telemetry around it.
// Async vendors are polled internally; the call returns a terminal result.
func (c *Client) Generate(ctx context.Context, req *gen.Request) (*gen.Response, error) {
	cfg, err := c.resolver.Resolve(ctx, resolve.Query{
		UserID:         req.UserID,
		SettingsUserID: req.SettingsUserID,
		ProjectID:      req.ProjectID,
		Kind:           req.Kind,
		Provider:       req.Provider,
		Model:          req.Model,
	})
	if err != nil {
		return nil, err
	}

	p, err := c.registry.New(cfg)
	if err != nil {
		return nil, err
	}

	ctx = ctxkeys.WithRequestID(ctx, uuid.NewString())
	if req.UserID != "" {
		ctx = ctxkeys.WithUserID(ctx, req.UserID)
	}
	if req.ProjectID != "" {
		ctx = ctxkeys.WithProjectID(ctx, req.ProjectID)
	}

	attrs := observability.RequestAttrs{
		Kind:     cfg.Kind,
		Provider: cfg.Provider,
		Model:    cfg.Model,
		UserID:   req.UserID,
	}
	ctx, span := c.obs.StartRequest(ctx, attrs)

	ctx = poll.WithObserver(ctx, func(provider string, attempts int) {
		c.obs.RecordPoll(ctx, provider, attempts)
		c.prom.RecordPoll(provider, attempts)
	})

	var journal *taskJournal
	if meta, metaErr := c.registry.Metadata(cfg.Kind, cfg.Provider); metaErr == nil && meta.IsAsync {
		c.prom.TaskStarted(string(cfg.Kind), cfg.Provider)
		defer c.prom.TaskFinished(string(cfg.Kind), cfg.Provider)
		if c.tasks != nil {
			journal = &taskJournal{store: c.tasks, logger: c.logger}
			ctx = gen.WithTaskRecorder(ctx, journal)
		}
	}

	start := time.Now()
	resp, err := p.Generate(ctx, req)

	res := observability.ResultAttrs{Duration: time.Since(start)}
	switch {
	case err != nil:
		res.Status = types.StatusError
		res.ErrorCode = types.GetErrorCode(err)
	default:
		res.Status = resp.Status
		res.Cost = resp.ActualCost
	}
	c.obs.EndRequest(ctx, span, attrs, res)
	c.prom.RecordGeneration(string(cfg.Kind), cfg.Provider, string(res.Status), res.Duration, res.Cost)
	if journal != nil {
		journal.settle(ctx, res.Status)
	}

	return resp, err
}

// taskJournal records the async submissions of one Generate call in the
// task store and settles their status when the call ends.
type taskJournal struct {
	store  *taskstore.Store
	logger *zap.Logger

	mu  sync.Mutex
	ids []string
}

func (j *taskJournal) TaskCreated(ctx context.Context, kind types.Kind, provider, vendorID string) {
	task := &taskstore.Task{
		VendorID: vendorID,
		Kind:     kind,
		Provider: provider,
		Status:   types.StatusProcessing,
	}
	if id, ok := ctxkeys.UserID(ctx); ok {
		task.UserID = id
	}
	if id, ok := ctxkeys.ProjectID(ctx); ok {
		task.ProjectID = id
	}
	if err := j.store.Save(ctx, task); err != nil {
		// Recording is best effort; the generation itself must not fail.
		j.logger.Warn("async task not recorded",
			zap.String("provider", provider),
			zap.String("vendor_id", vendorID),
			zap.Error(err))
		return
	}
	j.mu.Lock()
	j.ids = append(j.ids, task.ID)
	j.mu.Unlock()
}

func (j *taskJournal) settle(ctx context.Context, status types.Status) {
	j.mu.Lock()
	ids := append([]string(nil), j.ids...)
	j.mu.Unlock()
	for _, id := range ids {
		if err := j.store.SetStatus(ctx, id, status); err != nil {
			j.logger.Warn("async task status not settled",
				zap.String("task_id", id), zap.Error(err))
		}
	}
}

// PendingTasks lists the user's recorded async tasks that are still worth
// re-polling after a restart. Requires a task store.
func (c *Client) PendingTasks(ctx context.Context, userID string) ([]*taskstore.Task, error) {
	if c.tasks == nil {
		return nil, nil
	}
	return c.tasks.Pending(ctx, userID)
}

// HealthCheck probes every registered provider with configuration resolved
// for the given user and returns one result per provider.
func (c *Client) HealthCheck(ctx context.Context, userID string) []gen.HealthResult {
	cfgFor := func(ctx context.Context, kind types.Kind, provider string) (gen.ProviderConfig, error) {
		return c.resolver.Resolve(ctx, resolve.Query{UserID: userID, Kind: kind, Provider: provider})
	}
	return c.registry.HealthCheckAll(ctx, cfgFor, c.logger)
}
