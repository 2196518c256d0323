// Package prefs holds the user's tracker preferences and keeps them durable
// across restarts.
//
// Every mutation is written to each available substrate independently: a
// JSON file readable from process start and a SQLite table that becomes
// available once the database is open. Reads take the first substrate that
// holds a value. Persistence is best effort; failures become diagnostics.
package prefs
