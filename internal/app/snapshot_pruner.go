package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/wallpaperpicker/internal/domain"
	"github.com/pscheid92/wallpaperpicker/internal/platform/correlation"
)

const pruneScanTimeout = 30 * time.Second

// leaderLock lets a single instance of a multi-instance deployment run pruning.
type leaderLock interface {
	TryAcquire(ctx context.Context) (bool, error)
}

// SnapshotPruner periodically trims snapshot history to the newest keep entries per surface.
type SnapshotPruner struct {
	store    domain.SnapshotStore
	keep     int
	leader   leaderLock
	clock    clockwork.Clock
	interval time.Duration
	pruned   prometheus.Counter

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type PrunerOption func(*SnapshotPruner)

// WithPrunedCounter counts removed snapshots on c.
func WithPrunedCounter(c prometheus.Counter) PrunerOption {
	return func(p *SnapshotPruner) {
		p.pruned = c
	}
}

// NewSnapshotPruner creates the pruner. leader may be nil for single-instance deployments.
func NewSnapshotPruner(store domain.SnapshotStore, keep int, leader leaderLock, clock clockwork.Clock, interval time.Duration, opts ...PrunerOption) *SnapshotPruner {
	p := &SnapshotPruner{
		store:    store,
		keep:     keep,
		leader:   leader,
		clock:    clock,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs PruneOnce on every tick until Stop is called.
func (p *SnapshotPruner) Start() {
	ticker := p.clock.NewTicker(p.interval)
	p.wg.Go(func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				p.PruneOnce(context.Background())
			case <-p.stopCh:
				return
			}
		}
	})
	slog.Info("Snapshot pruner started", "interval", p.interval, "keep", p.keep)
}

// PruneOnce trims every surface's history and returns the number of removed snapshots.
func (p *SnapshotPruner) PruneOnce(ctx context.Context) int64 {
	ctx = correlation.WithID(ctx, correlation.NewID())
	ctx, cancel := context.WithTimeout(ctx, pruneScanTimeout)
	defer cancel()

	if p.leader != nil {
		leader, err := p.leader.TryAcquire(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to acquire pruning leadership", "error", err)
			return 0
		}
		if !leader {
			slog.DebugContext(ctx, "Skipping snapshot pruning, another instance is leader")
			return 0
		}
	}

	var total int64
	for _, d := range domain.Destinations() {
		removed, err := p.store.Prune(ctx, d, p.keep)
		if err != nil {
			slog.ErrorContext(ctx, "Snapshot prune failed", "destination", d, "error", err)
			continue
		}
		if removed > 0 {
			slog.InfoContext(ctx, "Pruned snapshot history", "destination", d, "removed", removed, "kept", p.keep)
		}
		total += removed
	}

	if p.pruned != nil && total > 0 {
		p.pruned.Add(float64(total))
	}
	return total
}

// Stop stops the ticker loop and waits for an in-flight prune to finish.
func (p *SnapshotPruner) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
}
