package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/pscheid92/wallpaperpicker/internal/domain"
)

// SnapshotStore keeps snapshots per surface in insertion order.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[domain.Destination][]domain.Snapshot
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[domain.Destination][]domain.Snapshot)}
}

func (s *SnapshotStore) Save(_ context.Context, snapshot domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snapshot.Destination] = append(s.snapshots[snapshot.Destination], snapshot)
	return nil
}

func (s *SnapshotStore) Latest(_ context.Context, destination domain.Destination) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.snapshots[destination]
	if len(list) == 0 {
		return nil, domain.ErrSnapshotNotFound
	}
	latest := list[len(list)-1]
	return &latest, nil
}

// History returns up to limit snapshots, newest first. limit <= 0 returns all.
func (s *SnapshotStore) History(_ context.Context, destination domain.Destination, limit int) ([]domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.snapshots[destination]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}

	result := make([]domain.Snapshot, 0, limit)
	for i := len(list) - 1; i >= len(list)-limit; i-- {
		result = append(result, list[i])
	}
	return result, nil
}

// Prune keeps the newest keep snapshots of a surface and reports how many were removed.
func (s *SnapshotStore) Prune(_ context.Context, destination domain.Destination, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.snapshots[destination]
	if keep < 0 {
		keep = 0
	}
	if len(list) <= keep {
		return 0, nil
	}

	removed := len(list) - keep
	s.snapshots[destination] = slices.Clone(list[removed:])
	return int64(removed), nil
}
