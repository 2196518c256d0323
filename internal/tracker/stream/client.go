package stream

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/sebastos1/aa/internal/platform/errors"
	"github.com/sebastos1/aa/internal/tracker/diag"
	"github.com/sebastos1/aa/internal/tracker/merge"
	"github.com/sebastos1/aa/internal/tracker/model"
)

// State is the lifecycle state of a Handle.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the HTTP transport.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		if t != nil {
			c.transport = t
		}
	}
}

// WithRetryPolicy replaces DefaultPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithReporter sets the diagnostics reporter.
func WithReporter(r diag.Reporter) Option {
	return func(c *Client) { c.reporter = diag.OrNop(r) }
}

// WithStateObserver registers fn to be called on every handle state change.
// fn runs on the handle's goroutine and must not block.
func WithStateObserver(fn func(endpoint string, state State)) Option {
	return func(c *Client) { c.onState = fn }
}

// Client opens supervised event stream handles.
type Client struct {
	applier   merge.Applier
	transport Transport
	policy    RetryPolicy
	reporter  diag.Reporter
	onState   func(string, State)

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewClient creates a client delivering events to applier.
func NewClient(applier merge.Applier, opts ...Option) *Client {
	c := &Client{
		applier:   applier,
		transport: NewHTTPTransport(nil),
		policy:    DefaultPolicy{},
		reporter:  diag.Nop(),
		handles:   make(map[string]*Handle),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Open starts following endpoint and returns immediately. While a handle
// for endpoint is live, Open returns that same handle and ignores ctx.
// The handle stops when ctx ends or Close is called.
func (c *Client) Open(ctx context.Context, endpoint string) *Handle {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.handles[endpoint]; ok && h.State() != StateClosed {
		return h
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		client:   c,
		endpoint: endpoint,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	h.state.Store(int32(StateConnecting))
	c.handles[endpoint] = h
	go h.run(runCtx)
	return h
}

// Close stops every handle opened by c and waits for them to finish.
func (c *Client) Close() {
	c.mu.Lock()
	handles := make([]*Handle, 0, len(c.handles))
	for _, h := range c.handles {
		handles = append(handles, h)
	}
	c.mu.Unlock()
	for _, h := range handles {
		h.Close()
	}
}

// Stats counts what a handle has done so far.
type Stats struct {
	Delivered  uint64 `json:"delivered"`
	Dropped    uint64 `json:"dropped"`
	Reconnects uint64 `json:"reconnects"`
}

// Handle is one supervised stream connection.
type Handle struct {
	client   *Client
	endpoint string
	cancel   context.CancelFunc
	done     chan struct{}

	state       atomic.Int32
	delivered   atomic.Uint64
	dropped     atomic.Uint64
	reconnects  atomic.Uint64
	lastEventID atomic.Value
}

// Endpoint returns the stream URL.
func (h *Handle) Endpoint() string { return h.endpoint }

// State returns the current lifecycle state.
func (h *Handle) State() State { return State(h.state.Load()) }

// Done is closed once the handle has stopped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// LastEventID returns the last event id received, sent on reconnect.
func (h *Handle) LastEventID() string {
	id, _ := h.lastEventID.Load().(string)
	return id
}

// Stats returns the handle's counters.
func (h *Handle) Stats() Stats {
	return Stats{
		Delivered:  h.delivered.Load(),
		Dropped:    h.dropped.Load(),
		Reconnects: h.reconnects.Load(),
	}
}

// Close stops the handle and waits for its goroutine to exit.
func (h *Handle) Close() {
	h.cancel()
	<-h.done
}

func (h *Handle) run(ctx context.Context) {
	defer close(h.done)
	defer h.setState(StateClosed)

	var serverRetry time.Duration
	attempt := 0
	for ctx.Err() == nil {
		body, err := h.client.transport.Connect(ctx, h.endpoint, h.LastEventID())
		if err == nil {
			attempt = 0
			h.setState(StateOpen)
			var retry time.Duration
			retry, err = h.consume(ctx, body)
			_ = body.Close()
			if retry > 0 {
				serverRetry = retry
			}
			err = transportError(err)
		}
		if ctx.Err() != nil {
			return
		}

		attempt++
		delay := h.client.policy.Next(attempt, serverRetry)
		h.reportTransport(ctx, err, attempt, delay)
		h.setState(StateReconnecting)
		if !sleep(ctx, delay) {
			return
		}
		h.reconnects.Add(1)
	}
}

// consume reads frames until the body ends. A nil error means the server
// closed the stream cleanly.
func (h *Handle) consume(ctx context.Context, body io.Reader) (time.Duration, error) {
	reader := newFrameReader(body)
	reader.lastEventID = h.LastEventID()
	for {
		frame, err := reader.Next()
		if model.IsDecodeError(err) {
			h.lastEventID.Store(reader.LastEventID())
			h.drop(ctx, err, reader.LastEventID())
			continue
		}
		if err != nil {
			h.lastEventID.Store(reader.LastEventID())
			if errors.Is(err, io.EOF) {
				err = nil
			}
			return reader.Retry(), err
		}
		h.lastEventID.Store(frame.ID)
		if frame.Event != defaultEventType {
			continue
		}
		h.deliver(ctx, frame)
	}
}

func (h *Handle) deliver(ctx context.Context, frame Frame) {
	evt, err := model.DecodeUpdateEvent([]byte(frame.Data))
	if err != nil {
		h.drop(ctx, err, frame.ID)
		return
	}
	if h.client.applier == nil {
		return
	}
	if err := h.client.applier.Apply(ctx, evt); err != nil {
		h.dropped.Add(1)
		report := diag.FromError(diag.KindDecode, diag.SeverityError, "apply event", err)
		report.Attributes = withAttr(report.Attributes, "uuid", evt.UUID)
		h.client.reporter.Report(ctx, report)
		return
	}
	h.delivered.Add(1)
}

// drop counts a rejected frame and reports it; the connection stays open.
func (h *Handle) drop(ctx context.Context, err error, eventID string) {
	h.dropped.Add(1)
	report := diag.FromError(diag.KindDecode, diag.SeverityWarn, "drop event frame", err)
	report.Attributes = withAttr(report.Attributes, "endpoint", h.endpoint)
	report.Attributes = withAttr(report.Attributes, "event_id", eventID)
	h.client.reporter.Report(ctx, report)
}

func (h *Handle) reportTransport(ctx context.Context, err error, attempt int, delay time.Duration) {
	severity := diag.SeverityWarn
	if apperrors.HasCode(err, apperrors.CodeTransportClosed) {
		severity = diag.SeverityInfo
	}
	report := diag.FromError(diag.KindTransport, severity, "event stream interrupted", err)
	report.Attributes = withAttr(report.Attributes, "endpoint", h.endpoint)
	report.Attributes = withAttr(report.Attributes, "attempt", strconv.Itoa(attempt))
	report.Attributes = withAttr(report.Attributes, "retry_in", delay.String())
	h.client.reporter.Report(ctx, report)
}

func (h *Handle) setState(next State) {
	prev := State(h.state.Swap(int32(next)))
	if prev == next || h.client.onState == nil {
		return
	}
	h.client.onState(h.endpoint, next)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func withAttr(attrs map[string]string, key, value string) map[string]string {
	if attrs == nil {
		attrs = make(map[string]string)
	}
	if strings.TrimSpace(value) != "" {
		attrs[key] = value
	}
	return attrs
}
