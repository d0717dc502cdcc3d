package app

import (
	"context"
	"fmt"

	"github.com/pscheid92/wallpaperpicker/internal/domain"
	"github.com/pscheid92/wallpaperpicker/internal/flow"
)

// WallpaperInteractor handles business logic for wallpaper selection.
// It holds no mutable state; all state lives in the repository.
type WallpaperInteractor struct {
	repository       domain.WallpaperRepository
	snapshotRecorder domain.SnapshotRecorderProvider
}

// NewWallpaperInteractor creates the interactor.
// snapshotRecorder is resolved on every SetWallpaper call, never here.
func NewWallpaperInteractor(repository domain.WallpaperRepository, snapshotRecorder domain.SnapshotRecorderProvider) *WallpaperInteractor {
	return &WallpaperInteractor{
		repository:       repository,
		snapshotRecorder: snapshotRecorder,
	}
}

// SelectedWallpaperID returns the ID of the currently selected wallpaper.
func (i *WallpaperInteractor) SelectedWallpaperID(destination domain.Destination) flow.StateFlow[string] {
	return i.repository.SelectedWallpaperID(destination)
}

// SelectingWallpaperID returns the ID of the wallpaper that is in the process of becoming
// the selected one, or "" while no such transaction is taking place.
func (i *WallpaperInteractor) SelectingWallpaperID(destination domain.Destination) flow.Flow[string] {
	return flow.Map(i.repository.SelectingWallpaperIDs(), func(selecting map[domain.Destination]string) string {
		return selecting[destination]
	})
}

// Previews lists the maxResults most recent wallpapers. The first one is the current wallpaper.
func (i *WallpaperInteractor) Previews(destination domain.Destination, maxResults int) flow.Flow[[]domain.WallpaperModel] {
	if maxResults <= 0 {
		return flow.Error[[]domain.WallpaperModel](fmt.Errorf("%w: got %d", domain.ErrInvalidMaxResults, maxResults))
	}

	recent := i.repository.RecentWallpapers(destination, maxResults)
	return flow.Map(recent, func(previews []domain.WallpaperModel) []domain.WallpaperModel {
		if len(previews) > maxResults {
			return previews[:maxResults:maxResults]
		}
		return previews
	})
}

// SetWallpaper selects the wallpaper with the given ID, then records the snapshot.
//
// A repository failure is returned unchanged and no snapshot is recorded. Once the
// repository has applied the selection the snapshot is written even if ctx is cancelled.
func (i *WallpaperInteractor) SetWallpaper(ctx context.Context, destination domain.Destination, wallpaperID string) error {
	if err := i.repository.SetWallpaper(ctx, destination, wallpaperID); err != nil {
		return err
	}

	return i.snapshotRecorder().StoreSnapshot(context.WithoutCancel(ctx), destination, wallpaperID)
}

// LoadThumbnail returns the thumbnail for the wallpaper, or nil when there is none.
func (i *WallpaperInteractor) LoadThumbnail(ctx context.Context, wallpaperID string) (*domain.Thumbnail, error) {
	return i.repository.LoadThumbnail(ctx, wallpaperID)
}
