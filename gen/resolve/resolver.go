// Package resolve computes the ProviderConfig for one generation call. The
// precedence chain is an ordered list of strategies, each filling only what
// the previous tiers left unset:
//
//	provider:   request override, then project config, then user preference, then env default
//	credential: organization pool (admin/premium), then personal key, then env variable
//	endpoint:   user endpoint, then project endpoint, then env variable (self-hosted only)
//
// Nothing is cached between calls: project config, plan tier and keys are
// re-read every time so changes take effect on the next generation.
package resolve

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/filmforge/config"
	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/store"
	"github.com/BaSui01/filmforge/types"
)

// SettingsStore is the slice of the settings database the resolver reads.
// *store.Store implements it.
type SettingsStore interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
	GetSettings(ctx context.Context, userID string) (*store.UserSettings, error)
	GetCredential(ctx context.Context, userID, provider string) (string, error)
	GetOrgCredential(ctx context.Context, provider string) (string, error)
	GetProject(ctx context.Context, id string) (*store.Project, error)
}

// EnvOnly is a SettingsStore with no stored rows. Every database tier
// comes back empty, leaving the environment tiers to supply credentials
// and endpoints. Useful for CLIs and tests that run without a database.
type EnvOnly struct{}

func (EnvOnly) GetUser(context.Context, string) (*store.User, error) { return nil, nil }
func (EnvOnly) GetSettings(context.Context, string) (*store.UserSettings, error) {
	return nil, nil
}
func (EnvOnly) GetCredential(context.Context, string, string) (string, error) { return "", nil }
func (EnvOnly) GetOrgCredential(context.Context, string) (string, error)      { return "", nil }
func (EnvOnly) GetProject(context.Context, string) (*store.Project, error)    { return nil, nil }

// Query identifies whose configuration to resolve for which kind.
type Query struct {
	UserID string
	// SettingsUserID names a delegate whose stored settings are read
	// instead of the caller's.
	SettingsUserID string
	OwnerID        string
	ProjectID      string
	Kind           types.Kind

	// Provider is the caller's explicit override; it bypasses all
	// provider lookup tiers.
	Provider string
	// Model is the caller-supplied model id, possibly a catalog short name.
	Model string
}

// EffectiveUserID is the user whose settings and plan are consulted.
func (q Query) EffectiveUserID() string {
	switch {
	case q.SettingsUserID != "":
		return q.SettingsUserID
	case q.OwnerID != "":
		return q.OwnerID
	default:
		return q.UserID
	}
}

// state accumulates the partial configuration as strategies run.
type state struct {
	q Query

	provider     string
	model        string
	apiKey       string
	endpoint     string
	editEndpoint string
	userOwnedKey bool

	// loaded rows, fetched at most once per resolution
	settings *store.UserSettings
	project  *store.Project
	user     *store.User
}

// strategy fills in whatever part of the partial configuration its tier is
// responsible for, leaving already-set fields alone.
type strategy func(ctx context.Context, st *state) error

// Resolver computes provider configurations from the settings store.
type Resolver struct {
	store  SettingsStore
	logger *zap.Logger

	providerChain   []strategy
	credentialChain []strategy
}

// New creates a Resolver over the given settings store.
func New(st SettingsStore, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{store: st, logger: logger}
	r.providerChain = []strategy{
		r.providerFromOverride,
		r.providerFromProject,
		r.providerFromUserSettings,
		r.providerFromDefaults,
	}
	r.credentialChain = []strategy{
		r.credentialFromOrg,
		r.credentialFromUser,
		r.credentialFromEnv,
	}
	return r
}

// Resolve computes the configuration for one generation call. It fails with
// a NO_CREDENTIAL error (terminal, not retryable) when no tier produced a
// credential or endpoint.
func (r *Resolver) Resolve(ctx context.Context, q Query) (gen.ProviderConfig, error) {
	if !q.Kind.Valid() {
		return gen.ProviderConfig{}, types.NewValidationError(fmt.Sprintf("unknown generation kind %q", q.Kind))
	}

	st := &state{q: q, model: q.Model}

	for _, apply := range r.providerChain {
		if err := apply(ctx, st); err != nil {
			return gen.ProviderConfig{}, err
		}
		if st.provider != "" {
			break
		}
	}

	if st.provider == gen.ProviderModal {
		// Self-hosted family: no credential, an endpoint must resolve.
		if err := r.resolveEndpoint(ctx, st); err != nil {
			return gen.ProviderConfig{}, err
		}
		if err := r.resolveEditEndpoint(ctx, st); err != nil {
			return gen.ProviderConfig{}, err
		}
	} else {
		for _, apply := range r.credentialChain {
			if err := apply(ctx, st); err != nil {
				return gen.ProviderConfig{}, err
			}
			if st.apiKey != "" {
				break
			}
		}
	}

	if st.apiKey == "" && st.endpoint == "" {
		return gen.ProviderConfig{}, types.NewError(types.ErrNoCredential,
			fmt.Sprintf("no credential configured for provider %q", st.provider)).
			WithProvider(st.provider)
	}

	st.model = mapModelID(st.provider, q.Kind, st.model)

	cfg := gen.ProviderConfig{
		Kind:         q.Kind,
		Provider:     st.provider,
		APIKey:       st.apiKey,
		Endpoint:     st.endpoint,
		EditEndpoint: st.editEndpoint,
		Model:        st.model,
		UserOwnedKey: st.userOwnedKey,
		Timeout:      timeoutFor(q.Kind),
	}

	r.logger.Debug("configuration resolved",
		zap.String("kind", string(q.Kind)),
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Bool("user_owned_key", cfg.UserOwnedKey),
		zap.Bool("self_hosted", cfg.Endpoint != ""))
	return cfg, nil
}

// Result is one kind's outcome of a batch resolution.
type Result struct {
	Config gen.ProviderConfig
	Err    error
}

// ResolveAll resolves several kinds concurrently. Each kind is independent:
// one kind's failure is reported in its own Result and never hides the
// others.
func (r *Resolver) ResolveAll(ctx context.Context, q Query, kinds []types.Kind) map[types.Kind]Result {
	results := make(map[types.Kind]Result, len(kinds))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, kind := range kinds {
		kind := kind
		wg.Add(1)
		go func() {
			defer wg.Done()
			kq := q
			kq.Kind = kind
			cfg, err := r.Resolve(ctx, kq)
			mu.Lock()
			results[kind] = Result{Config: cfg, Err: err}
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// ---- provider tiers ----

func (r *Resolver) providerFromOverride(_ context.Context, st *state) error {
	if st.q.Provider != "" {
		st.provider = st.q.Provider
	}
	return nil
}

func (r *Resolver) providerFromProject(ctx context.Context, st *state) error {
	cfg, err := r.projectConfig(ctx, st)
	if err != nil || cfg == nil {
		return err
	}
	if cfg.Provider != "" {
		st.provider = cfg.Provider
		// A project that points at the self-hosted family is evidence
		// the user runs their own infrastructure.
		if cfg.Provider == gen.ProviderModal {
			st.userOwnedKey = true
		}
	}
	if st.model == "" {
		st.model = cfg.Model
	}
	return nil
}

func (r *Resolver) providerFromUserSettings(ctx context.Context, st *state) error {
	settings, err := r.userSettings(ctx, st)
	if err != nil || settings == nil {
		return err
	}
	if p := settings.Provider(st.q.Kind); p != "" {
		st.provider = p
	}
	return nil
}

func (r *Resolver) providerFromDefaults(_ context.Context, st *state) error {
	st.provider = config.DefaultProvider(st.q.Kind)
	return nil
}

// ---- credential tiers ----

func (r *Resolver) credentialFromOrg(ctx context.Context, st *state) error {
	user, err := r.effectiveUser(ctx, st)
	if err != nil {
		return err
	}
	if user == nil || !user.Premium() {
		return nil
	}
	key, err := r.store.GetOrgCredential(ctx, st.provider)
	if err != nil {
		return err
	}
	if key != "" {
		st.apiKey = key
		st.userOwnedKey = false
	}
	return nil
}

func (r *Resolver) credentialFromUser(ctx context.Context, st *state) error {
	key, err := r.store.GetCredential(ctx, st.q.EffectiveUserID(), st.provider)
	if err != nil {
		return err
	}
	if key != "" {
		st.apiKey = key
		st.userOwnedKey = true
	}
	return nil
}

func (r *Resolver) credentialFromEnv(_ context.Context, st *state) error {
	if key := config.APIKeyFromEnv(st.provider); key != "" {
		st.apiKey = key
		st.userOwnedKey = false
	}
	return nil
}

// ---- self-hosted endpoint resolution ----

// resolveEndpoint applies the per-kind endpoint precedence: user settings,
// then the project's declared endpoint, then the environment slot.
func (r *Resolver) resolveEndpoint(ctx context.Context, st *state) error {
	settings, err := r.userSettings(ctx, st)
	if err != nil {
		return err
	}
	if settings != nil {
		if ep := settings.Endpoint(st.q.Kind); ep != "" {
			st.endpoint = ep
			st.userOwnedKey = true
			return nil
		}
	}

	cfg, err := r.projectConfig(ctx, st)
	if err != nil {
		return err
	}
	if cfg != nil && cfg.ModalEndpoint != "" {
		st.endpoint = cfg.ModalEndpoint
		st.userOwnedKey = true
		return nil
	}

	if ep := config.EndpointFromEnv(config.SlotForKind(st.q.Kind)); ep != "" {
		st.endpoint = ep
	}
	return nil
}

// resolveEditEndpoint fills the image-edit slot through the same tiers.
// The edit deployment is optional: an empty slot never fails resolution,
// it only disables edits.
func (r *Resolver) resolveEditEndpoint(ctx context.Context, st *state) error {
	if st.q.Kind != types.KindImage {
		return nil
	}

	settings, err := r.userSettings(ctx, st)
	if err != nil {
		return err
	}
	if settings != nil && settings.EditEndpoint() != "" {
		st.editEndpoint = settings.EditEndpoint()
		return nil
	}

	cfg, err := r.projectConfig(ctx, st)
	if err != nil {
		return err
	}
	if cfg != nil && cfg.ModalEditEndpoint != "" {
		st.editEndpoint = cfg.ModalEditEndpoint
		return nil
	}

	st.editEndpoint = config.EndpointFromEnv(config.SlotImageEdit)
	return nil
}

// ---- cached row loads (one fetch per resolution, never across calls) ----

func (r *Resolver) userSettings(ctx context.Context, st *state) (*store.UserSettings, error) {
	if st.settings != nil {
		return st.settings, nil
	}
	settings, err := r.store.GetSettings(ctx, st.q.EffectiveUserID())
	if err != nil {
		return nil, err
	}
	st.settings = settings
	return settings, nil
}

func (r *Resolver) projectConfig(ctx context.Context, st *state) (*store.KindModelConfig, error) {
	if st.q.ProjectID == "" {
		return nil, nil
	}
	if st.project == nil {
		p, err := r.store.GetProject(ctx, st.q.ProjectID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, nil
		}
		st.project = p
	}
	return st.project.ModelConfigFor(st.q.Kind)
}

func (r *Resolver) effectiveUser(ctx context.Context, st *state) (*store.User, error) {
	if st.user != nil {
		return st.user, nil
	}
	user, err := r.store.GetUser(ctx, st.q.EffectiveUserID())
	if err != nil {
		return nil, err
	}
	st.user = user
	return user, nil
}

// timeoutFor picks the per-call HTTP ceiling; video and music generations
// run much longer than image or speech.
func timeoutFor(kind types.Kind) time.Duration {
	switch kind {
	case types.KindVideo, types.KindMusic:
		return 10 * time.Minute
	default:
		return 2 * time.Minute
	}
}
