// Package config supplies the environment-default tier of configuration
// resolution (per-provider API key variables, per-kind self-hosted endpoint
// slots, default providers) plus a YAML loader for process-level settings.
package config

import (
	"os"

	"github.com/BaSui01/filmforge/types"
)

// apiKeyEnv maps provider identity to its credential environment variable.
// The table is fixed; unknown providers have no environment credential.
var apiKeyEnv = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"flux":       "BFL_API_KEY",
	"gemini":     "GEMINI_API_KEY",
	"runway":     "RUNWAY_API_KEY",
	"kling":      "KLING_API_KEY",
	"elevenlabs": "ELEVENLABS_API_KEY",
	"suno":       "SUNO_API_KEY",
	"minimax":    "MINIMAX_API_KEY",
}

// APIKeyEnvVar returns the environment variable holding the provider's
// credential, or "" if the provider has none.
func APIKeyEnvVar(provider string) string {
	return apiKeyEnv[provider]
}

// APIKeyFromEnv reads the provider's credential from the environment.
func APIKeyFromEnv(provider string) string {
	name := apiKeyEnv[provider]
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// EndpointSlot names one self-hosted endpoint slot. Slots are scoped per
// generation kind: setting a video endpoint never affects image resolution.
type EndpointSlot string

const (
	SlotImage     EndpointSlot = "image"
	SlotImageEdit EndpointSlot = "image-edit"
	SlotVideo     EndpointSlot = "video"
	SlotSpeech    EndpointSlot = "tts"
	SlotMusic     EndpointSlot = "music"
)

var endpointEnv = map[EndpointSlot]string{
	SlotImage:     "MODAL_IMAGE_ENDPOINT",
	SlotImageEdit: "MODAL_IMAGE_EDIT_ENDPOINT",
	SlotVideo:     "MODAL_VIDEO_ENDPOINT",
	SlotSpeech:    "MODAL_TTS_ENDPOINT",
	SlotMusic:     "MODAL_MUSIC_ENDPOINT",
}

// SlotForKind maps a generation kind to its default endpoint slot.
func SlotForKind(kind types.Kind) EndpointSlot {
	switch kind {
	case types.KindImage:
		return SlotImage
	case types.KindVideo:
		return SlotVideo
	case types.KindSpeech:
		return SlotSpeech
	case types.KindMusic:
		return SlotMusic
	}
	return EndpointSlot(kind)
}

// EndpointEnvVar returns the environment variable for a slot.
func EndpointEnvVar(slot EndpointSlot) string {
	return endpointEnv[slot]
}

// EndpointFromEnv reads a self-hosted endpoint URL from the environment.
func EndpointFromEnv(slot EndpointSlot) string {
	name := endpointEnv[slot]
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// defaultProviders is the fixed environment-default provider per kind, the
// last tier of the resolver precedence chain.
var defaultProviders = map[types.Kind]string{
	types.KindImage:  "openai",
	types.KindVideo:  "runway",
	types.KindSpeech: "elevenlabs",
	types.KindMusic:  "suno",
	types.KindText:   "openai",
}

// DefaultProvider returns the hard-coded default provider for a kind.
func DefaultProvider(kind types.Kind) string {
	return defaultProviders[kind]
}
