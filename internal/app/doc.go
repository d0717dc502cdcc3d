// Package app provides the application service layer.
//
// WallpaperInteractor orchestrates the selection use cases: selected and in-flight
// wallpaper per destination, bounded preview lists, the apply-then-snapshot selection
// transaction, and thumbnail loads. SnapshotRestorer records snapshots and re-applies
// them for undo. Depends on domain interfaces, not concrete implementations.
package app
