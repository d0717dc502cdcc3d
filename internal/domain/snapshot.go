package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Snapshot records that a destination's selection became a wallpaper.
type Snapshot struct {
	ID          uuid.UUID   `json:"id"`
	Destination Destination `json:"destination"`
	WallpaperID string      `json:"wallpaper_id"`
	RecordedAt  time.Time   `json:"recorded_at"`
}

// SnapshotRecorder durably records the latest selection per destination.
type SnapshotRecorder interface {
	StoreSnapshot(ctx context.Context, destination Destination, wallpaperID string) error
}

// SnapshotRecorderProvider resolves the recorder on demand. The recorder may be
// constructed after its consumers, so it must not be resolved at construction time.
type SnapshotRecorderProvider func() SnapshotRecorder

// SnapshotStore persists snapshots.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot Snapshot) error
	// Latest returns ErrSnapshotNotFound when nothing was recorded for destination.
	Latest(ctx context.Context, destination Destination) (*Snapshot, error)
	// History lists snapshots newest first.
	History(ctx context.Context, destination Destination, limit int) ([]Snapshot, error)
	// Prune keeps the newest keep snapshots for destination and returns how many were removed.
	Prune(ctx context.Context, destination Destination, keep int) (int64, error)
}
