// Package flow provides the reactive stream primitives shared by the domain ports and
// the application layer.
//
// A Flow is cold: nothing runs until Collect is called, and every collector gets its own
// run of the upstream. A StateFlow is hot: it always holds a value, a new collector receives
// the current value immediately, and later values are broadcast to every active collector.
// Collectors of a StateFlow are conflated, so a slow collector skips intermediate values and
// observes the latest one.
package flow
