package resolve

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/filmforge/store"
	"github.com/BaSui01/filmforge/types"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	s, err := store.New(db, nil)
	require.NoError(t, err)
	return s
}

func seedProject(t *testing.T, s *store.Store, id, owner string, cfg map[types.Kind]store.KindModelConfig) {
	t.Helper()
	p := &store.Project{ID: id, OwnerID: owner}
	require.NoError(t, p.SetModelConfig(cfg))
	require.NoError(t, s.DB().Create(p).Error)
}

func seedUser(t *testing.T, s *store.Store, id, role, plan string) {
	t.Helper()
	require.NoError(t, s.DB().Create(&store.User{ID: id, Role: role, Plan: plan}).Error)
}

func TestCallerOverrideBeatsEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// user prefers A, project configures B, caller passes C
	require.NoError(t, s.UpdateProviderPreference(ctx, "u1", types.KindImage, "openai"))
	require.NoError(t, s.UpsertAPIKey(ctx, "u1", "gemini", "personal-gemini-key"))
	seedProject(t, s, "p1", "u1", map[types.Kind]store.KindModelConfig{
		types.KindImage: {Provider: "flux"},
	})

	cfg, err := New(s, nil).Resolve(ctx, Query{
		UserID:    "u1",
		ProjectID: "p1",
		Kind:      types.KindImage,
		Provider:  "gemini",
	})
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, "personal-gemini-key", cfg.APIKey)
	assert.True(t, cfg.UserOwnedKey)
}

func TestProjectConfigBeatsUserPreference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateProviderPreference(ctx, "u1", types.KindImage, "openai"))
	require.NoError(t, s.UpsertAPIKey(ctx, "u1", "flux", "flux-key"))
	seedProject(t, s, "p1", "u1", map[types.Kind]store.KindModelConfig{
		types.KindImage: {Provider: "flux", Model: "flux-pro-1.1"},
	})

	cfg, err := New(s, nil).Resolve(ctx, Query{
		UserID:    "u1",
		ProjectID: "p1",
		Kind:      types.KindImage,
	})
	require.NoError(t, err)
	assert.Equal(t, "flux", cfg.Provider)
	assert.Equal(t, "flux-pro-1.1", cfg.Model)
}

func TestOrgCredentialForPremiumUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "u1", store.RoleUser, "studio")
	require.NoError(t, s.SetOrgCredential(ctx, "runway", "org-runway-key"))
	// personal key exists too; org pool wins for premium users
	require.NoError(t, s.UpsertAPIKey(ctx, "u1", "runway", "personal-runway-key"))
	require.NoError(t, s.UpdateProviderPreference(ctx, "u1", types.KindVideo, "runway"))

	cfg, err := New(s, nil).Resolve(ctx, Query{UserID: "u1", Kind: types.KindVideo})
	require.NoError(t, err)
	assert.Equal(t, "runway", cfg.Provider)
	assert.Equal(t, "org-runway-key", cfg.APIKey)
	assert.False(t, cfg.UserOwnedKey)
}

func TestOrgCredentialForAdmin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "admin1", store.RoleAdmin, store.PlanFree)
	require.NoError(t, s.SetOrgCredential(ctx, "openai", "org-openai-key"))

	cfg, err := New(s, nil).Resolve(ctx, Query{UserID: "admin1", Kind: types.KindImage})
	require.NoError(t, err)
	assert.Equal(t, "org-openai-key", cfg.APIKey)
	assert.False(t, cfg.UserOwnedKey)
}

func TestFreeUserSkipsOrgPool(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "u1", store.RoleUser, store.PlanFree)
	require.NoError(t, s.SetOrgCredential(ctx, "openai", "org-openai-key"))

	_, err := New(s, nil).Resolve(ctx, Query{UserID: "u1", Kind: types.KindImage})
	require.Error(t, err)
	e, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrNoCredential, e.Code)
	assert.Equal(t, "openai", e.Provider)
	assert.False(t, e.Retryable, "configuration errors are terminal")
}

func TestPersonalCredentialForFreeUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "u1", store.RoleUser, store.PlanFree)
	require.NoError(t, s.UpsertAPIKey(ctx, "u1", "openai", "my-key"))

	cfg, err := New(s, nil).Resolve(ctx, Query{UserID: "u1", Kind: types.KindImage})
	require.NoError(t, err)
	assert.Equal(t, "my-key", cfg.APIKey)
	assert.True(t, cfg.UserOwnedKey)
}

func TestEnvDefaultProviderAndCredential(t *testing.T) {
	s := newTestStore(t)
	t.Setenv("ELEVENLABS_API_KEY", "env-key")

	cfg, err := New(s, nil).Resolve(context.Background(), Query{UserID: "u1", Kind: types.KindSpeech})
	require.NoError(t, err)
	assert.Equal(t, "elevenlabs", cfg.Provider, "fixed default per kind")
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.False(t, cfg.UserOwnedKey)
}

func TestDelegatedSettingsUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// the delegate owns the preference and the key, not the caller
	require.NoError(t, s.UpdateProviderPreference(ctx, "owner", types.KindImage, "gemini"))
	require.NoError(t, s.UpsertAPIKey(ctx, "owner", "gemini", "owner-key"))

	cfg, err := New(s, nil).Resolve(ctx, Query{
		UserID:         "collaborator",
		SettingsUserID: "owner",
		Kind:           types.KindImage,
	})
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, "owner-key", cfg.APIKey)
}

func TestModalEndpointPrecedence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateProviderPreference(ctx, "u1", types.KindImage, "modal"))
	require.NoError(t, s.UpdateModalEndpoint(ctx, "u1", types.KindImage, "https://user.modal.run"))
	seedProject(t, s, "p1", "u1", map[types.Kind]store.KindModelConfig{
		types.KindImage: {Provider: "modal", ModalEndpoint: "https://project.modal.run"},
	})
	t.Setenv("MODAL_IMAGE_ENDPOINT", "https://env.modal.run")

	r := New(s, nil)

	// user endpoint wins
	cfg, err := r.Resolve(ctx, Query{UserID: "u1", ProjectID: "p1", Kind: types.KindImage})
	require.NoError(t, err)
	assert.Equal(t, "modal", cfg.Provider)
	assert.Equal(t, "https://user.modal.run", cfg.Endpoint)
	assert.Empty(t, cfg.APIKey, "self-hosted resolution needs no credential")
	assert.True(t, cfg.UserOwnedKey)

	// without the user endpoint the project endpoint wins
	require.NoError(t, s.UpdateModalEndpoint(ctx, "u1", types.KindImage, ""))
	cfg, err = r.Resolve(ctx, Query{UserID: "u1", ProjectID: "p1", Kind: types.KindImage})
	require.NoError(t, err)
	assert.Equal(t, "https://project.modal.run", cfg.Endpoint)

	// without either, the environment slot fills in
	cfg, err = r.Resolve(ctx, Query{UserID: "u2", Provider: "modal", Kind: types.KindImage})
	require.NoError(t, err)
	assert.Equal(t, "https://env.modal.run", cfg.Endpoint)
}

func TestModalEditEndpointPrecedence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateModalEndpoint(ctx, "u1", types.KindImage, "https://gen.modal.run"))
	require.NoError(t, s.UpdateModalEditEndpoint(ctx, "u1", "https://user-edit.modal.run"))
	seedProject(t, s, "p1", "u1", map[types.Kind]store.KindModelConfig{
		types.KindImage: {
			Provider:          "modal",
			ModalEndpoint:     "https://project.modal.run",
			ModalEditEndpoint: "https://project-edit.modal.run",
		},
	})
	t.Setenv("MODAL_IMAGE_EDIT_ENDPOINT", "https://env-edit.modal.run")

	r := New(s, nil)

	// user edit endpoint wins
	cfg, err := r.Resolve(ctx, Query{UserID: "u1", ProjectID: "p1", Provider: "modal", Kind: types.KindImage})
	require.NoError(t, err)
	assert.Equal(t, "https://gen.modal.run", cfg.Endpoint)
	assert.Equal(t, "https://user-edit.modal.run", cfg.EditEndpoint)

	// without it the project edit endpoint wins
	require.NoError(t, s.UpdateModalEditEndpoint(ctx, "u1", ""))
	cfg, err = r.Resolve(ctx, Query{UserID: "u1", ProjectID: "p1", Provider: "modal", Kind: types.KindImage})
	require.NoError(t, err)
	assert.Equal(t, "https://project-edit.modal.run", cfg.EditEndpoint)

	// without either, the environment slot fills in
	t.Setenv("MODAL_IMAGE_ENDPOINT", "https://env.modal.run")
	cfg, err = r.Resolve(ctx, Query{UserID: "u2", Provider: "modal", Kind: types.KindImage})
	require.NoError(t, err)
	assert.Equal(t, "https://env-edit.modal.run", cfg.EditEndpoint)

	// the edit slot is an image concern only
	require.NoError(t, s.UpdateModalEndpoint(ctx, "u1", types.KindVideo, "https://vid.modal.run"))
	cfg, err = r.Resolve(ctx, Query{UserID: "u1", Provider: "modal", Kind: types.KindVideo})
	require.NoError(t, err)
	assert.Empty(t, cfg.EditEndpoint)
}

func TestModalEndpointSlotsIndependentPerKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateModalEndpoint(ctx, "u1", types.KindVideo, "https://vid.modal.run"))

	r := New(s, nil)
	cfg, err := r.Resolve(ctx, Query{UserID: "u1", Provider: "modal", Kind: types.KindVideo})
	require.NoError(t, err)
	assert.Equal(t, "https://vid.modal.run", cfg.Endpoint)

	// the video endpoint must not leak into image resolution
	_, err = r.Resolve(ctx, Query{UserID: "u1", Provider: "modal", Kind: types.KindImage})
	require.Error(t, err)
	assert.Equal(t, types.ErrNoCredential, types.GetErrorCode(err))
}

func TestModelCatalogMapping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertAPIKey(ctx, "u1", "flux", "k"))

	r := New(s, nil)

	cfg, err := r.Resolve(ctx, Query{UserID: "u1", Provider: "flux", Kind: types.KindImage, Model: "ultra"})
	require.NoError(t, err)
	assert.Equal(t, "flux-pro-1.1-ultra", cfg.Model, "recognized short id maps to the API id")

	cfg, err = r.Resolve(ctx, Query{UserID: "u1", Provider: "flux", Kind: types.KindImage, Model: "experimental-x"})
	require.NoError(t, err)
	assert.Equal(t, "experimental-x", cfg.Model, "unrecognized short id passes through")

	cfg, err = r.Resolve(ctx, Query{UserID: "u1", Provider: "flux", Kind: types.KindImage, Model: "flux-pro-1.1"})
	require.NoError(t, err)
	assert.Equal(t, "flux-pro-1.1", cfg.Model, "namespaced ids are untouched")
}

func TestResolveAllIndependentResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertAPIKey(ctx, "u1", "openai", "img-key"))
	// no credential for the default video provider: that kind must fail alone

	results := New(s, nil).ResolveAll(ctx, Query{UserID: "u1"},
		[]types.Kind{types.KindImage, types.KindVideo})

	require.Len(t, results, 2)
	require.NoError(t, results[types.KindImage].Err)
	assert.Equal(t, "img-key", results[types.KindImage].Config.APIKey)

	require.Error(t, results[types.KindVideo].Err)
	assert.Equal(t, types.ErrNoCredential, types.GetErrorCode(results[types.KindVideo].Err))
}

func TestResolveRejectsUnknownKind(t *testing.T) {
	s := newTestStore(t)
	_, err := New(s, nil).Resolve(context.Background(), Query{UserID: "u1", Kind: "hologram"})
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))
}

func TestTimeoutScaledByKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertAPIKey(ctx, "u1", "runway", "k"))
	require.NoError(t, s.UpsertAPIKey(ctx, "u1", "openai", "k"))

	r := New(s, nil)
	video, err := r.Resolve(ctx, Query{UserID: "u1", Provider: "runway", Kind: types.KindVideo})
	require.NoError(t, err)
	img, err := r.Resolve(ctx, Query{UserID: "u1", Provider: "openai", Kind: types.KindImage})
	require.NoError(t, err)
	assert.Greater(t, video.Timeout, img.Timeout)
}
