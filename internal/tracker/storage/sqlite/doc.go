// Package sqlite provides the tracker persistence adapter backed by SQLite.
//
// The store holds the interactive copy of user preferences and a bounded
// diagnostics journal.
package sqlite
