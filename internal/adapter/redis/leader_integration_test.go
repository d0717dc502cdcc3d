package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderElector_SingleLeader(t *testing.T) {
	rdb := setupTestClient(t)
	ctx := context.Background()

	first := NewLeaderElector(rdb, "instance-1")
	second := NewLeaderElector(rdb, "instance-2")

	ok, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := rdb.TTL(ctx, pruneLeaderKey).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl.Seconds(), 20.0)
}

func TestLeaderElector_HolderRenews(t *testing.T) {
	rdb := setupTestClient(t)
	ctx := context.Background()

	elector := NewLeaderElector(rdb, "instance-1")
	for range 3 {
		ok, err := elector.TryAcquire(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestLeaderElector_ReleaseHandsOver(t *testing.T) {
	rdb := setupTestClient(t)
	ctx := context.Background()

	first := NewLeaderElector(rdb, "instance-1")
	second := NewLeaderElector(rdb, "instance-2")

	_, err := first.TryAcquire(ctx)
	require.NoError(t, err)

	require.NoError(t, second.Release(ctx))
	ok, err := second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "release by a non-holder must not drop the lock")

	require.NoError(t, first.Release(ctx))
	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
