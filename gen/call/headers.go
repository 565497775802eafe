package call

import (
	"net/http"

	"github.com/BaSui01/filmforge/gen"
)

// headerBuilder attaches a provider's authentication and version headers.
// Gemini carries its key in the query string and the self-hosted family
// needs no credential, so both fall through to the default.
type headerBuilder func(h http.Header, cfg gen.ProviderConfig)

var headerTable = map[string]headerBuilder{
	gen.ProviderOpenAI: func(h http.Header, cfg gen.ProviderConfig) {
		h.Set("Authorization", "Bearer "+cfg.APIKey)
	},
	gen.ProviderFlux: func(h http.Header, cfg gen.ProviderConfig) {
		h.Set("x-key", cfg.APIKey)
	},
	gen.ProviderRunway: func(h http.Header, cfg gen.ProviderConfig) {
		h.Set("Authorization", "Bearer "+cfg.APIKey)
		h.Set("X-Runway-Version", "2024-11-06")
	},
	gen.ProviderKling: func(h http.Header, cfg gen.ProviderConfig) {
		h.Set("Authorization", "Bearer "+cfg.APIKey)
	},
	gen.ProviderElevenLabs: func(h http.Header, cfg gen.ProviderConfig) {
		h.Set("xi-api-key", cfg.APIKey)
	},
	gen.ProviderSuno: func(h http.Header, cfg gen.ProviderConfig) {
		h.Set("Authorization", "Bearer "+cfg.APIKey)
	},
	gen.ProviderMiniMax: func(h http.Header, cfg gen.ProviderConfig) {
		h.Set("Authorization", "Bearer "+cfg.APIKey)
	},
}

func buildHeaders(cfg gen.ProviderConfig) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	if b, ok := headerTable[cfg.Provider]; ok {
		b(h, cfg)
	}
	return h
}
