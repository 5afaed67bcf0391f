// Package invariant ports the assertion facility from the original
// framework's debug.c/debug.h: a check that panics when debug mode is
// enabled and is otherwise a cheap no-op, so hot paths (inbox bounds,
// registry size) can assert their own invariants without paying for it in
// production builds.
package invariant

import "sync/atomic"

var debugEnabled atomic.Bool

// SetDebug toggles whether Check panics on a failed invariant. Mirrors the
// original's compile-time "#ifdef DEBUG" gate as a runtime flag driven by
// [core].enable_debug / -d.
func SetDebug(enabled bool) {
	debugEnabled.Store(enabled)
}

// Debug reports whether debug mode is currently enabled.
func Debug() bool {
	return debugEnabled.Load()
}

// Check panics with msg if cond is false and debug mode is enabled.
func Check(cond bool, msg string) {
	if !cond && debugEnabled.Load() {
		panic("invariant violated: " + msg)
	}
}
