// Package register wires every provider into a registry at startup.
// Registration is explicit and runs once; after it the registry is
// read-only and safe for concurrent lookups.
package register

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/gen/image"
	"github.com/BaSui01/filmforge/gen/music"
	"github.com/BaSui01/filmforge/gen/speech"
	"github.com/BaSui01/filmforge/gen/video"
	"github.com/BaSui01/filmforge/media"
	"github.com/BaSui01/filmforge/types"
)

// Deps are the collaborators closed over every provider factory.
type Deps struct {
	Client   *http.Client
	Logger   *zap.Logger
	Uploader media.Uploader
}

// All builds a registry with every provider registered.
func All(deps Deps) *gen.Registry {
	r := gen.NewRegistry()
	RegisterAll(r, deps)
	return r
}

// RegisterAll registers every provider on r. Call it once at startup,
// before the registry is shared.
func RegisterAll(r *gen.Registry, deps Deps) {
	imageDeps := image.Deps{Client: deps.Client, Logger: deps.Logger, Uploader: deps.Uploader}
	videoDeps := video.Deps{Client: deps.Client, Logger: deps.Logger, Uploader: deps.Uploader}
	speechDeps := speech.Deps{Client: deps.Client, Logger: deps.Logger, Uploader: deps.Uploader}
	musicDeps := music.Deps{Client: deps.Client, Logger: deps.Logger, Uploader: deps.Uploader}

	r.Register(types.KindImage, gen.ProviderOpenAI,
		func(cfg gen.ProviderConfig) gen.Provider { return image.NewOpenAI(cfg, imageDeps) },
		gen.Metadata{
			Description: "OpenAI image generation",
			Features:    []string{"text-to-image", "quality-tiers"},
			CostPerUnit: 0.04,
		})
	r.Register(types.KindImage, gen.ProviderFlux,
		func(cfg gen.ProviderConfig) gen.Provider { return image.NewFlux(cfg, imageDeps) },
		gen.Metadata{
			Description: "Black Forest Labs Flux",
			Features:    []string{"text-to-image", "seeds", "guidance"},
			CostPerUnit: 0.05,
			IsAsync:     true,
		})
	r.Register(types.KindImage, gen.ProviderGemini,
		func(cfg gen.ProviderConfig) gen.Provider { return image.NewGemini(cfg, imageDeps) },
		gen.Metadata{
			Description: "Google Gemini image generation",
			Features:    []string{"text-to-image", "multimodal-prompts"},
			CostPerUnit: 0.03,
		})
	r.Register(types.KindImage, gen.ProviderModal,
		func(cfg gen.ProviderConfig) gen.Provider { return image.NewModal(cfg, imageDeps) },
		gen.Metadata{
			Description: "self-hosted image endpoint",
			Features:    []string{"text-to-image", "reference-images", "self-hosted"},
			Limitations: []string{"requires a deployed endpoint"},
		})

	r.Register(types.KindVideo, gen.ProviderRunway,
		func(cfg gen.ProviderConfig) gen.Provider { return video.NewRunway(cfg, videoDeps) },
		gen.Metadata{
			Description: "Runway Gen-4 video",
			Features:    []string{"image-to-video", "text-to-video"},
			CostPerUnit: 0.05,
			IsAsync:     true,
		})
	r.Register(types.KindVideo, gen.ProviderKling,
		func(cfg gen.ProviderConfig) gen.Provider { return video.NewKling(cfg, videoDeps) },
		gen.Metadata{
			Description: "Kling video",
			Features:    []string{"image-to-video"},
			Limitations: []string{"5s or 10s clips only"},
			CostPerUnit: 0.07,
			IsAsync:     true,
		})
	r.Register(types.KindVideo, gen.ProviderModal,
		func(cfg gen.ProviderConfig) gen.Provider { return video.NewModal(cfg, videoDeps) },
		gen.Metadata{
			Description: "self-hosted video endpoint",
			Features:    []string{"text-to-video", "self-hosted"},
			Limitations: []string{"requires a deployed endpoint"},
		})

	r.Register(types.KindSpeech, gen.ProviderElevenLabs,
		func(cfg gen.ProviderConfig) gen.Provider { return speech.NewElevenLabs(cfg, speechDeps) },
		gen.Metadata{
			Description: "ElevenLabs text-to-speech",
			Features:    []string{"voices", "voice-settings", "multilingual"},
			CostPerUnit: 0.00022,
		})
	r.Register(types.KindSpeech, gen.ProviderOpenAI,
		func(cfg gen.ProviderConfig) gen.Provider { return speech.NewOpenAI(cfg, speechDeps) },
		gen.Metadata{
			Description: "OpenAI text-to-speech",
			Features:    []string{"voices"},
			CostPerUnit: 0.000015,
		})
	r.Register(types.KindSpeech, gen.ProviderModal,
		func(cfg gen.ProviderConfig) gen.Provider { return speech.NewModal(cfg, speechDeps) },
		gen.Metadata{
			Description: "self-hosted TTS endpoint",
			Features:    []string{"voices", "self-hosted"},
			Limitations: []string{"requires a deployed endpoint"},
		})

	r.Register(types.KindMusic, gen.ProviderSuno,
		func(cfg gen.ProviderConfig) gen.Provider { return music.NewSuno(cfg, musicDeps) },
		gen.Metadata{
			Description: "Suno music generation",
			Features:    []string{"styles", "instrumental"},
			CostPerUnit: 0.08,
			IsAsync:     true,
		})
	r.Register(types.KindMusic, gen.ProviderMiniMax,
		func(cfg gen.ProviderConfig) gen.Provider { return music.NewMiniMax(cfg, musicDeps) },
		gen.Metadata{
			Description: "MiniMax music generation",
			Features:    []string{"instrumental"},
			CostPerUnit: 0.06,
		})
}
