// Package model defines the mirrored game-state entities and the wire
// contract of the update stream.
//
// Player snapshots and progress details are opaque JSON blobs: the tracker
// stores and replaces them but never merges their fields. Only the update
// envelope (uuid, player, updatedProgress) is validated on decode.
package model
