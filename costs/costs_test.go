package costs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImageTiers(t *testing.T) {
	assert.Equal(t, 0.04, Image("openai", "hd"))
	assert.Equal(t, 0.12, Image("openai", "4k"))
	// unknown tier falls back to 2k
	assert.Equal(t, 0.08, Image("openai", "8k"))
	assert.Equal(t, 0.0, Image("unknown-vendor", "hd"))
}

func TestSpeechByCharacterCount(t *testing.T) {
	assert.InDelta(t, 0.30, Speech("elevenlabs", 1000), 1e-9)
	assert.InDelta(t, 0.15, Speech("elevenlabs", 500), 1e-9)
	assert.Equal(t, 0.0, Speech("elevenlabs", 0))
}

func TestVideoPerSecond(t *testing.T) {
	assert.InDelta(t, 1.25, Video("runway", 5), 1e-9)
	assert.Equal(t, 0.0, Video("runway", 0))
}

func TestMusicFlatRate(t *testing.T) {
	assert.Equal(t, 0.08, Music("suno"))
	assert.Equal(t, 0.0, Music("unknown"))
}
