package taskstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/filmforge/types"
)

func newStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, nil, opts...), mr
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	task := &Task{
		VendorID:  "rw-42",
		Kind:      types.KindVideo,
		Provider:  "runway",
		UserID:    "u1",
		ProjectID: "p1",
	}
	require.NoError(t, s.Save(ctx, task))
	require.NotEmpty(t, task.ID)
	assert.Equal(t, types.StatusPending, task.Status)
	assert.False(t, task.CreatedAt.IsZero())

	got, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "rw-42", got.VendorID)
	assert.Equal(t, types.KindVideo, got.Kind)
	assert.Equal(t, "runway", got.Provider)
	assert.Equal(t, "p1", got.ProjectID)
}

func TestSaveRequiresVendorID(t *testing.T) {
	s, _ := newStore(t)
	assert.Error(t, s.Save(context.Background(), &Task{}))
	assert.Error(t, s.Save(context.Background(), nil))
}

func TestGetUnknownTask(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntriesExpire(t *testing.T) {
	s, mr := newStore(t, WithTTL(time.Minute))
	ctx := context.Background()

	task := &Task{VendorID: "v1", Kind: types.KindImage, Provider: "flux"}
	require.NoError(t, s.Save(ctx, task))

	mr.FastForward(2 * time.Minute)

	_, err := s.Get(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPendingSkipsTerminalAndExpired(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	pending := &Task{VendorID: "v1", Kind: types.KindVideo, Provider: "runway", UserID: "u1"}
	done := &Task{VendorID: "v2", Kind: types.KindVideo, Provider: "kling", UserID: "u1"}
	expired := &Task{VendorID: "v3", Kind: types.KindMusic, Provider: "suno", UserID: "u1"}
	require.NoError(t, s.Save(ctx, pending))
	require.NoError(t, s.Save(ctx, done))
	require.NoError(t, s.Save(ctx, expired))

	require.NoError(t, s.SetStatus(ctx, done.ID, types.StatusComplete))
	mr.Del(s.taskKey(expired.ID))

	got, err := s.Pending(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pending.ID, got[0].ID)
}

func TestSetStatusUnknownTask(t *testing.T) {
	s, _ := newStore(t)
	assert.ErrorIs(t, s.SetStatus(context.Background(), "nope", types.StatusComplete), ErrNotFound)
}

func TestDeleteRemovesTaskAndIndex(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	task := &Task{VendorID: "v1", Kind: types.KindImage, Provider: "flux", UserID: "u1"}
	require.NoError(t, s.Save(ctx, task))
	require.NoError(t, s.Delete(ctx, task.ID))

	_, err := s.Get(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.Pending(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got)

	// deleting twice is fine
	assert.NoError(t, s.Delete(ctx, task.ID))
}
