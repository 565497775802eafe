package register

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/types"
)

func TestRegisterAllCoversEveryKind(t *testing.T) {
	r := All(Deps{})

	assert.ElementsMatch(t, []string{"flux", "gemini", "modal", "openai"}, r.Names(types.KindImage))
	assert.ElementsMatch(t, []string{"kling", "modal", "runway"}, r.Names(types.KindVideo))
	assert.ElementsMatch(t, []string{"elevenlabs", "modal", "openai"}, r.Names(types.KindSpeech))
	assert.ElementsMatch(t, []string{"minimax", "suno"}, r.Names(types.KindMusic))
}

func TestAsyncFlagMatchesTaskLifecycle(t *testing.T) {
	r := All(Deps{})

	for _, entry := range r.List() {
		p, err := r.New(gen.ProviderConfig{Kind: entry.Kind, Provider: entry.Provider})
		require.NoError(t, err)

		_, implementsAsync := p.(gen.AsyncProvider)
		assert.Equal(t, entry.Meta.IsAsync, implementsAsync,
			"%s/%s async metadata must match its implementation", entry.Kind, entry.Provider)
	}
}

func TestFactoriesProduceMatchingIdentity(t *testing.T) {
	r := All(Deps{})

	for _, entry := range r.List() {
		p, err := r.New(gen.ProviderConfig{Kind: entry.Kind, Provider: entry.Provider})
		require.NoError(t, err)
		assert.Equal(t, entry.Provider, p.Name())
		assert.Equal(t, entry.Kind, p.Kind())
	}
}
