package domain

import "errors"

var (
	ErrUnknownDestination = errors.New("unknown destination")
	ErrWallpaperNotFound  = errors.New("wallpaper not found")
	ErrSnapshotNotFound   = errors.New("snapshot not found")
	ErrInvalidMaxResults  = errors.New("max results must be positive")
	ErrEmptyWallpaperID   = errors.New("wallpaper ID is empty")
)
