package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/filmforge/types"
)

func TestAPIKeyEnvTable(t *testing.T) {
	assert.Equal(t, "ELEVENLABS_API_KEY", APIKeyEnvVar("elevenlabs"))
	assert.Equal(t, "", APIKeyEnvVar("modal"), "self-hosted family has no key variable")

	t.Setenv("BFL_API_KEY", "bfl-secret")
	assert.Equal(t, "bfl-secret", APIKeyFromEnv("flux"))
	assert.Equal(t, "", APIKeyFromEnv("modal"))
}

func TestEndpointSlotsAreIndependent(t *testing.T) {
	t.Setenv("MODAL_VIDEO_ENDPOINT", "https://vid.modal.run")
	assert.Equal(t, "https://vid.modal.run", EndpointFromEnv(SlotVideo))
	assert.Equal(t, "", EndpointFromEnv(SlotImage))
	assert.Equal(t, "", EndpointFromEnv(SlotImageEdit))
}

func TestSlotForKind(t *testing.T) {
	assert.Equal(t, SlotImage, SlotForKind(types.KindImage))
	assert.Equal(t, SlotSpeech, SlotForKind(types.KindSpeech))
	assert.Equal(t, SlotMusic, SlotForKind(types.KindMusic))
}

func TestDefaultProviderPerKind(t *testing.T) {
	for _, k := range []types.Kind{types.KindImage, types.KindVideo, types.KindSpeech, types.KindMusic} {
		assert.NotEmpty(t, DefaultProvider(k), string(k))
	}
}

func TestLoaderPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filmforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  dsn: postgres://file
http:
  timeout: 90s
`), 0o600))

	t.Setenv("FILMFORGE_DATABASE_DSN", "postgres://env")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	// env beats file, file beats default, untouched fields keep defaults
	assert.Equal(t, "postgres://env", cfg.Database.DSN)
	assert.Equal(t, 90*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.HTTP.SlowTimeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoaderMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/does/not/exist.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.HTTP.Timeout)
}
