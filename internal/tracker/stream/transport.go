package stream

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/sebastos1/aa/internal/platform/errors"
	"github.com/sebastos1/aa/internal/platform/timeouts"
)

// Transport opens one connection to an event stream endpoint.
type Transport interface {
	// Connect returns the response body of an established stream.
	// lastEventID is empty on the first connection.
	Connect(ctx context.Context, endpoint, lastEventID string) (io.ReadCloser, error)
}

// HTTPTransport connects to text/event-stream endpoints over HTTP.
type HTTPTransport struct {
	// Client defaults to a client without an overall timeout.
	Client *http.Client
	// ConnectTimeout bounds the wait for response headers.
	ConnectTimeout time.Duration
}

// NewHTTPTransport creates a transport with the default connect timeout.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	return &HTTPTransport{Client: client, ConnectTimeout: timeouts.StreamConnect}
}

// Connect implements Transport.
func (t *HTTPTransport) Connect(ctx context.Context, endpoint, lastEventID string) (io.ReadCloser, error) {
	client := http.DefaultClient
	if t != nil && t.Client != nil {
		client = t.Client
	}

	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel()
		return nil, apperrors.Wrap(apperrors.CodeTransportConnect, "build stream request", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}

	var timer *time.Timer
	if t != nil && t.ConnectTimeout > 0 {
		timer = time.AfterFunc(t.ConnectTimeout, cancel)
	}
	resp, err := client.Do(req)
	if timer != nil && !timer.Stop() && err == nil {
		_ = resp.Body.Close()
		cancel()
		return nil, apperrors.New(apperrors.CodeTransportConnect, "stream connect timed out")
	}
	if err != nil {
		cancel()
		return nil, apperrors.WrapWithMetadata(apperrors.CodeTransportConnect, "connect event stream",
			map[string]string{"endpoint": endpoint}, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		cancel()
		return nil, apperrors.WithMetadata(apperrors.CodeTransportStatus, "unexpected stream status",
			map[string]string{"endpoint": endpoint, "status": strconv.Itoa(resp.StatusCode)})
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "text/event-stream" {
		_ = resp.Body.Close()
		cancel()
		return nil, apperrors.WithMetadata(apperrors.CodeTransportContentType, "unexpected stream content type",
			map[string]string{"endpoint": endpoint, "content_type": resp.Header.Get("Content-Type")})
	}
	return &streamBody{ReadCloser: resp.Body, cancel: cancel}, nil
}

type streamBody struct {
	io.ReadCloser
	cancel context.CancelFunc
	once   sync.Once
}

func (b *streamBody) Close() error {
	var err error
	b.once.Do(func() {
		b.cancel()
		err = b.ReadCloser.Close()
	})
	return err
}

var _ Transport = (*HTTPTransport)(nil)

func transportError(err error) error {
	if err == nil {
		return apperrors.New(apperrors.CodeTransportClosed, "event stream closed by server")
	}
	if apperrors.CodeOf(err) != apperrors.CodeUnknown {
		return err
	}
	return apperrors.Wrap(apperrors.CodeTransportRead, "read event stream", err)
}
