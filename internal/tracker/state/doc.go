// Package state holds the in-memory containers the tracker mirrors.
//
// Containers expose read-only copies to readers and a single transactional
// mutation entry point. Subscribers are notified after a mutation commits,
// in commit order, and always observe the committed value.
package state
