package lease

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLease(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l := NewLocal()
	l.now = func() time.Time { return now }

	release, ok, err := l.Acquire(ctx, "app-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Acquire(ctx, "app-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held lease blocks a second holder")

	_, ok, err = l.Acquire(ctx, "app-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "other keys are independent")

	require.NoError(t, release(ctx))
	release2, ok, err := l.Acquire(ctx, "app-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	release3, ok, err := l.Acquire(ctx, "app-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired lease can be taken over")

	require.NoError(t, release2(ctx), "stale release is harmless")
	_, ok, err = l.Acquire(ctx, "app-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "stale release did not free the new holder's lease")
	require.NoError(t, release3(ctx))
}
