// Package stream follows a server-sent event stream of player updates and
// hands each decoded event to a merge.Applier.
//
// A Handle owns one supervised connection. Transport failures never reach
// the caller: the handle reports a diagnostic, waits for its RetryPolicy
// and reconnects, resuming with whatever the server sends next. Events
// missed while disconnected are not recovered.
package stream
