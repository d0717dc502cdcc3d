package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/pscheid92/wallpaperpicker/internal/domain"
	"github.com/pscheid92/wallpaperpicker/internal/flow"
)

// --- Mock implementations ---

type mockWallpaperRepo struct {
	selected           map[domain.Destination]*flow.MutableStateFlow[string]
	selecting          *flow.MutableStateFlow[map[domain.Destination]string]
	recentWallpapersFn func(destination domain.Destination, limit int) flow.Flow[[]domain.WallpaperModel]
	setWallpaperFn     func(ctx context.Context, destination domain.Destination, wallpaperID string) error
	loadThumbnailFn    func(ctx context.Context, wallpaperID string) (*domain.Thumbnail, error)
}

func newMockWallpaperRepo(selected map[domain.Destination]string) *mockWallpaperRepo {
	m := &mockWallpaperRepo{
		selected:  make(map[domain.Destination]*flow.MutableStateFlow[string]),
		selecting: flow.NewMutableStateFlow(map[domain.Destination]string{}),
	}
	for d, id := range selected {
		m.selected[d] = flow.NewMutableStateFlow(id)
	}
	return m
}

func (m *mockWallpaperRepo) SelectedWallpaperID(destination domain.Destination) flow.StateFlow[string] {
	return m.selected[destination]
}

func (m *mockWallpaperRepo) SelectingWallpaperIDs() flow.Flow[map[domain.Destination]string] {
	return m.selecting
}

func (m *mockWallpaperRepo) RecentWallpapers(destination domain.Destination, limit int) flow.Flow[[]domain.WallpaperModel] {
	if m.recentWallpapersFn != nil {
		return m.recentWallpapersFn(destination, limit)
	}
	return flow.Of[[]domain.WallpaperModel]()
}

func (m *mockWallpaperRepo) SetWallpaper(ctx context.Context, destination domain.Destination, wallpaperID string) error {
	if m.setWallpaperFn != nil {
		return m.setWallpaperFn(ctx, destination, wallpaperID)
	}
	return nil
}

func (m *mockWallpaperRepo) LoadThumbnail(ctx context.Context, wallpaperID string) (*domain.Thumbnail, error) {
	if m.loadThumbnailFn != nil {
		return m.loadThumbnailFn(ctx, wallpaperID)
	}
	return nil, nil
}

type mockSnapshotRecorder struct {
	storeSnapshotFn func(ctx context.Context, destination domain.Destination, wallpaperID string) error
}

func (m *mockSnapshotRecorder) StoreSnapshot(ctx context.Context, destination domain.Destination, wallpaperID string) error {
	if m.storeSnapshotFn != nil {
		return m.storeSnapshotFn(ctx, destination, wallpaperID)
	}
	return nil
}

type mockSnapshotStore struct {
	mu        sync.Mutex
	snapshots map[domain.Destination][]domain.Snapshot // newest last
	saveErr   error
	pruneFn   func(ctx context.Context, destination domain.Destination, keep int) (int64, error)
}

func newMockSnapshotStore() *mockSnapshotStore {
	return &mockSnapshotStore{snapshots: make(map[domain.Destination][]domain.Snapshot)}
}

func (m *mockSnapshotStore) Save(_ context.Context, snapshot domain.Snapshot) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapshot.Destination] = append(m.snapshots[snapshot.Destination], snapshot)
	return nil
}

func (m *mockSnapshotStore) Latest(_ context.Context, destination domain.Destination) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.snapshots[destination]
	if len(list) == 0 {
		return nil, domain.ErrSnapshotNotFound
	}
	latest := list[len(list)-1]
	return &latest, nil
}

func (m *mockSnapshotStore) History(_ context.Context, destination domain.Destination, limit int) ([]domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.snapshots[destination]
	var result []domain.Snapshot
	for i := len(list) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, list[i])
	}
	return result, nil
}

func (m *mockSnapshotStore) Prune(ctx context.Context, destination domain.Destination, keep int) (int64, error) {
	if m.pruneFn != nil {
		return m.pruneFn(ctx, destination, keep)
	}
	return 0, fmt.Errorf("not implemented")
}

// callLog records calls across mocks to assert ordering.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}
