// Package costs estimates the real-world vendor spend of one generation.
// The tables are approximations of published vendor pricing; they feed the
// ActualCost response field, not billing.
package costs

// Image cost per image by provider and resolution tier.
var imageCosts = map[string]map[string]float64{
	"openai": {"hd": 0.04, "2k": 0.08, "4k": 0.12},
	"flux":   {"hd": 0.025, "2k": 0.05, "4k": 0.06},
	"gemini": {"hd": 0.03, "2k": 0.04, "4k": 0.04},
	"modal":  {"hd": 0.01, "2k": 0.02, "4k": 0.04}, // approximate GPU-seconds
}

// Speech cost per 1000 characters.
var speechCosts = map[string]float64{
	"elevenlabs": 0.30,
	"openai":     0.015,
	"modal":      0.01,
}

// Video cost per second of output.
var videoCosts = map[string]float64{
	"runway": 0.25,
	"kling":  0.14,
	"modal":  0.05,
}

// Music cost per track.
var musicCosts = map[string]float64{
	"suno":    0.08,
	"minimax": 0.06,
}

// Image returns the estimated cost of one image at the given resolution
// tier. Unknown providers or tiers cost zero.
func Image(provider, resolution string) float64 {
	tiers, ok := imageCosts[provider]
	if !ok {
		return 0
	}
	if c, ok := tiers[resolution]; ok {
		return c
	}
	return tiers["2k"]
}

// Speech returns the estimated cost of synthesizing chars characters.
func Speech(provider string, chars int) float64 {
	if chars <= 0 {
		return 0
	}
	return speechCosts[provider] * float64(chars) / 1000
}

// Video returns the estimated cost of seconds of generated video.
func Video(provider string, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return videoCosts[provider] * seconds
}

// Music returns the flat per-track estimate.
func Music(provider string) float64 {
	return musicCosts[provider]
}
