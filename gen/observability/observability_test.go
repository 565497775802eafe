package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/filmforge/types"
)

func TestInstrumentsNoopWithoutProvider(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	attrs := RequestAttrs{Kind: types.KindImage, Provider: "flux", Model: "flux-pro-1.1"}
	ctx, span := m.StartRequest(context.Background(), attrs)
	assert.NotNil(t, span)

	m.EndRequest(ctx, span, attrs, ResultAttrs{
		Status:   types.StatusComplete,
		Cost:     0.05,
		Duration: 9 * time.Second,
	})
	m.RecordPoll(ctx, "flux", 6)
}

func TestEndRequestWithError(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	attrs := RequestAttrs{Kind: types.KindVideo, Provider: "runway"}
	ctx, span := m.StartRequest(context.Background(), attrs)
	m.EndRequest(ctx, span, attrs, ResultAttrs{
		Status:    types.StatusError,
		ErrorCode: types.ErrGenerationFailed,
		Duration:  3 * time.Second,
	})
}
