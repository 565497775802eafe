package resolve

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"pgregory.net/rapid"

	"github.com/BaSui01/filmforge/store"
	"github.com/BaSui01/filmforge/types"
)

func newPropertyStore(t *rapid.T) *store.Store {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := store.New(db, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

// Whatever the stored rows look like, the tier order must hold: a caller
// override always wins, a project choice beats the user preference, and
// the resolved credential always belongs to the resolved provider.
func TestResolverTierOrderProperties(t *testing.T) {
	kindProviders := map[types.Kind][]string{
		types.KindImage:  {"openai", "flux", "gemini"},
		types.KindVideo:  {"runway", "kling"},
		types.KindSpeech: {"elevenlabs", "openai"},
		types.KindMusic:  {"suno", "minimax"},
	}
	kinds := []types.Kind{types.KindImage, types.KindVideo, types.KindSpeech, types.KindMusic}

	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		s := newPropertyStore(t)

		kind := rapid.SampledFrom(kinds).Draw(t, "kind")
		choices := kindProviders[kind]
		userPref := rapid.SampledFrom(choices).Draw(t, "userPref")
		projectProv := rapid.SampledFrom(choices).Draw(t, "projectProv")
		override := rapid.SampledFrom(choices).Draw(t, "override")
		hasProject := rapid.Bool().Draw(t, "hasProject")

		if err := s.UpdateProviderPreference(ctx, "u1", kind, userPref); err != nil {
			t.Fatalf("seed preference: %v", err)
		}
		for _, providers := range kindProviders {
			for _, p := range providers {
				if err := s.UpsertAPIKey(ctx, "u1", p, "key-"+p); err != nil {
					t.Fatalf("seed key: %v", err)
				}
			}
		}

		q := Query{UserID: "u1", Kind: kind}
		if hasProject {
			p := &store.Project{ID: "p1", OwnerID: "u1"}
			cfg := map[types.Kind]store.KindModelConfig{kind: {Provider: projectProv}}
			if err := p.SetModelConfig(cfg); err != nil {
				t.Fatalf("seed project config: %v", err)
			}
			if err := s.DB().Create(p).Error; err != nil {
				t.Fatalf("seed project: %v", err)
			}
			q.ProjectID = "p1"
		}

		r := New(s, nil)

		cfg, err := r.Resolve(ctx, q)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		want := userPref
		if hasProject {
			want = projectProv
		}
		if cfg.Provider != want {
			t.Fatalf("resolved %q, want %q (project=%v)", cfg.Provider, want, hasProject)
		}
		if cfg.APIKey != "key-"+want {
			t.Fatalf("credential %q does not belong to provider %q", cfg.APIKey, want)
		}
		if cfg.EditEndpoint != "" {
			t.Fatalf("edit endpoint %q resolved with no stored slot", cfg.EditEndpoint)
		}

		q.Provider = override
		cfg, err = r.Resolve(ctx, q)
		if err != nil {
			t.Fatalf("resolve with override: %v", err)
		}
		if cfg.Provider != override {
			t.Fatalf("override ignored: resolved %q, want %q", cfg.Provider, override)
		}
	})
}

// A self-hosted endpoint stored for one kind must never satisfy another
// kind's resolution.
func TestModalSlotIsolationProperty(t *testing.T) {
	kinds := []types.Kind{types.KindImage, types.KindVideo, types.KindSpeech, types.KindMusic}

	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		s := newPropertyStore(t)

		stored := rapid.SampledFrom(kinds).Draw(t, "stored")
		queried := rapid.SampledFrom(kinds).Draw(t, "queried")
		endpoint := "https://" + string(stored) + ".modal.run"

		if err := s.UpdateModalEndpoint(ctx, "u1", stored, endpoint); err != nil {
			t.Fatalf("seed endpoint: %v", err)
		}

		cfg, err := New(s, nil).Resolve(ctx, Query{UserID: "u1", Provider: "modal", Kind: queried})
		if stored == queried {
			if err != nil {
				t.Fatalf("resolve for the stored kind: %v", err)
			}
			if cfg.Endpoint != endpoint {
				t.Fatalf("resolved endpoint %q, want %q", cfg.Endpoint, endpoint)
			}
			return
		}
		if types.GetErrorCode(err) != types.ErrNoCredential {
			t.Fatalf("expected NO_CREDENTIAL for kind %s, got %v", queried, err)
		}
	})
}
