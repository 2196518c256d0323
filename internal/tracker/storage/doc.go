// Package storage declares persistence records owned by the tracker.
//
// Only user preferences and diagnostics are persisted. The mirrored game
// state is rebuilt from the server on every start and never stored.
package storage
