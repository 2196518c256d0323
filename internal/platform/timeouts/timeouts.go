// Package timeouts defines shared timeout constants used across the tracker.
package timeouts

import "time"

// BootstrapFetch caps the initial snapshot request.
const BootstrapFetch = 10 * time.Second

// StreamConnect caps establishing the event stream response headers. The
// stream body itself has no deadline.
const StreamConnect = 10 * time.Second

// StreamRetry is the default wait between event stream reconnect attempts,
// matching the browser EventSource default.
const StreamRetry = 3 * time.Second

// ReadHeader limits how long the dashboard waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second

// LiveWrite caps a single dashboard websocket write.
const LiveWrite = 5 * time.Second
