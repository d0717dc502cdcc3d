package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wallpaperpicker/internal/domain"
	"github.com/pscheid92/wallpaperpicker/internal/flow"
)

var ErrRestorerNotBound = errors.New("snapshot restorer is not bound to an interactor")

// wallpaperSelector is the part of WallpaperInteractor the restorer drives.
type wallpaperSelector interface {
	SelectedWallpaperID(destination domain.Destination) flow.StateFlow[string]
	SetWallpaper(ctx context.Context, destination domain.Destination, wallpaperID string) error
}

// SnapshotRestorer records selection snapshots and re-applies earlier ones.
//
// It needs the interactor to restore, and the interactor needs it to record, so it is
// created first and bound to the interactor afterwards.
type SnapshotRestorer struct {
	store domain.SnapshotStore
	clock clockwork.Clock

	mu       sync.RWMutex
	selector wallpaperSelector
}

var _ domain.SnapshotRecorder = (*SnapshotRestorer)(nil)

func NewSnapshotRestorer(store domain.SnapshotStore, clock clockwork.Clock) *SnapshotRestorer {
	return &SnapshotRestorer{
		store: store,
		clock: clock,
	}
}

// Bind attaches the interactor used by Setup and Undo.
func (r *SnapshotRestorer) Bind(selector wallpaperSelector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selector = selector
}

// Provider returns a SnapshotRecorderProvider resolving to r.
func (r *SnapshotRestorer) Provider() domain.SnapshotRecorderProvider {
	return func() domain.SnapshotRecorder { return r }
}

// StoreSnapshot records the selection for each surface covered by destination.
func (r *SnapshotRestorer) StoreSnapshot(ctx context.Context, destination domain.Destination, wallpaperID string) error {
	for _, d := range destination.Expand() {
		snapshot := domain.Snapshot{
			ID:          uuid.New(),
			Destination: d,
			WallpaperID: wallpaperID,
			RecordedAt:  r.clock.Now(),
		}
		if err := r.store.Save(ctx, snapshot); err != nil {
			return fmt.Errorf("failed to store snapshot for %s: %w", d, err)
		}
		slog.DebugContext(ctx, "Snapshot stored", "destination", d, "wallpaper_id", wallpaperID, "snapshot_id", snapshot.ID.String())
	}
	return nil
}

// Setup records a baseline snapshot of the current selection for every surface that has none yet.
func (r *SnapshotRestorer) Setup(ctx context.Context) error {
	selector, err := r.boundSelector()
	if err != nil {
		return err
	}

	for _, d := range domain.Destinations() {
		_, err := r.store.Latest(ctx, d)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrSnapshotNotFound) {
			return fmt.Errorf("failed to read latest snapshot for %s: %w", d, err)
		}

		current := selector.SelectedWallpaperID(d).Value()
		if err := r.StoreSnapshot(ctx, d, current); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Baseline snapshot recorded", "destination", d, "wallpaper_id", current)
	}
	return nil
}

// History lists the snapshots of a surface, newest first. DestinationAll reads the home surface.
func (r *SnapshotRestorer) History(ctx context.Context, destination domain.Destination, limit int) ([]domain.Snapshot, error) {
	if destination == domain.DestinationAll {
		destination = domain.DestinationHome
	}
	return r.store.History(ctx, destination, limit)
}

// Undo re-applies the snapshot recorded before the latest one for each surface covered
// by destination. The re-applied selection is recorded as a new snapshot, so a second
// Undo returns to where the first one started.
func (r *SnapshotRestorer) Undo(ctx context.Context, destination domain.Destination) ([]domain.Snapshot, error) {
	selector, err := r.boundSelector()
	if err != nil {
		return nil, err
	}

	targets := make([]domain.Snapshot, 0, 2)
	for _, d := range destination.Expand() {
		history, err := r.store.History(ctx, d, 2)
		if err != nil {
			return nil, fmt.Errorf("failed to read snapshot history for %s: %w", d, err)
		}
		if len(history) < 2 {
			return nil, fmt.Errorf("%w: nothing to undo for %s", domain.ErrSnapshotNotFound, d)
		}
		targets = append(targets, history[1])
	}

	for _, target := range targets {
		if err := selector.SetWallpaper(ctx, target.Destination, target.WallpaperID); err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Selection restored", "destination", target.Destination, "wallpaper_id", target.WallpaperID, "snapshot_id", target.ID.String())
	}
	return targets, nil
}

func (r *SnapshotRestorer) boundSelector() (wallpaperSelector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.selector == nil {
		return nil, ErrRestorerNotBound
	}
	return r.selector, nil
}
