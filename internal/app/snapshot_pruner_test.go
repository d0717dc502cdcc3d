package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/wallpaperpicker/internal/domain"
	"github.com/stretchr/testify/assert"
)

type mockLeaderLock struct {
	leader bool
	err    error
}

func (m *mockLeaderLock) TryAcquire(context.Context) (bool, error) {
	return m.leader, m.err
}

func TestSnapshotPruner_PruneOnce(t *testing.T) {
	store := newMockSnapshotStore()
	var seen []domain.Destination
	store.pruneFn = func(_ context.Context, d domain.Destination, keep int) (int64, error) {
		assert.Equal(t, 5, keep)
		seen = append(seen, d)
		return 2, nil
	}
	pruner := NewSnapshotPruner(store, 5, nil, clockwork.NewFakeClock(), time.Minute)

	removed := pruner.PruneOnce(context.Background())

	assert.Equal(t, int64(4), removed)
	assert.Equal(t, domain.Destinations(), seen)
}

func TestSnapshotPruner_ContinuesAfterError(t *testing.T) {
	store := newMockSnapshotStore()
	store.pruneFn = func(_ context.Context, d domain.Destination, _ int) (int64, error) {
		if d == domain.DestinationHome {
			return 0, errors.New("timeout")
		}
		return 3, nil
	}
	pruner := NewSnapshotPruner(store, 1, nil, clockwork.NewFakeClock(), time.Minute)

	assert.Equal(t, int64(3), pruner.PruneOnce(context.Background()))
}

func TestSnapshotPruner_SkipsWhenNotLeader(t *testing.T) {
	tests := []struct {
		name   string
		leader *mockLeaderLock
	}{
		{"another instance leads", &mockLeaderLock{leader: false}},
		{"lock error", &mockLeaderLock{err: errors.New("redis down")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockSnapshotStore()
			store.pruneFn = func(context.Context, domain.Destination, int) (int64, error) {
				t.Fatal("prune must not run without leadership")
				return 0, nil
			}
			pruner := NewSnapshotPruner(store, 1, tt.leader, clockwork.NewFakeClock(), time.Minute)

			assert.Zero(t, pruner.PruneOnce(context.Background()))
		})
	}
}

func TestSnapshotPruner_RunsOnTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newMockSnapshotStore()
	var calls atomic.Int32
	store.pruneFn = func(context.Context, domain.Destination, int) (int64, error) {
		calls.Add(1)
		return 0, nil
	}
	pruner := NewSnapshotPruner(store, 10, &mockLeaderLock{leader: true}, clock, time.Minute)

	pruner.Start()
	defer pruner.Stop()

	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool {
		return calls.Load() == int32(len(domain.Destinations()))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSnapshotPruner_CountsPruned(t *testing.T) {
	store := newMockSnapshotStore()
	store.pruneFn = func(context.Context, domain.Destination, int) (int64, error) {
		return 3, nil
	}
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "pruned_total"})
	pruner := NewSnapshotPruner(store, 2, nil, clockwork.NewFakeClock(), time.Minute, WithPrunedCounter(counter))

	pruner.PruneOnce(context.Background())

	assert.InDelta(t, 6, testutil.ToFloat64(counter), 0)
}
