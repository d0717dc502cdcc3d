// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (destination.go, wallpaper.go, snapshot.go, errors.go) hold the
// shared value types and the ports the application layer consumes. No implementation
// code, just contracts. Interfaces live on the consumer side to prevent circular imports.
package domain
