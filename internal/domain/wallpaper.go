package domain

import (
	"context"

	"github.com/pscheid92/wallpaperpicker/internal/flow"
)

// WallpaperModel describes one wallpaper available for selection.
// Values are produced by the store per query and never mutated afterwards.
type WallpaperModel struct {
	WallpaperID  string   `json:"wallpaper_id"`
	CollectionID string   `json:"collection_id,omitempty"`
	Title        string   `json:"title,omitempty"`
	Attributions []string `json:"attributions,omitempty"`
	PreviewURI   string   `json:"preview_uri,omitempty"`
	Placeholder  uint32   `json:"placeholder_color,omitempty"` // ARGB
}

// Thumbnail is an encoded preview image for a wallpaper.
type Thumbnail struct {
	WallpaperID string
	ContentType string
	Data        []byte
}

// WallpaperRepository is the authoritative holder of selection state, the recent list
// and thumbnail bytes.
//
// SetWallpaper calls for the same destination are serialised by the implementation;
// callers may issue them concurrently.
type WallpaperRepository interface {
	// SelectedWallpaperID never emits an empty ID and replays the latest value.
	SelectedWallpaperID(destination Destination) flow.StateFlow[string]

	// SelectingWallpaperIDs holds an entry only for destinations with a transaction in flight.
	SelectingWallpaperIDs() flow.Flow[map[Destination]string]

	// RecentWallpapers lists the most recent wallpapers, current first.
	// Implementations may emit more than limit entries.
	RecentWallpapers(destination Destination, limit int) flow.Flow[[]WallpaperModel]

	SetWallpaper(ctx context.Context, destination Destination, wallpaperID string) error

	// LoadThumbnail returns nil, nil when no thumbnail exists for wallpaperID.
	LoadThumbnail(ctx context.Context, wallpaperID string) (*Thumbnail, error)
}
