// Package memory provides in-process implementations of the wallpaper repository and the
// snapshot store for single-instance mode, the CLI demo catalog, and tests.
package memory
