// Package bootstrap loads the initial snapshot that seeds the tracker state
// before the event stream takes over.
package bootstrap

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/sebastos1/aa/internal/platform/errors"
	"github.com/sebastos1/aa/internal/platform/timeouts"
	"github.com/sebastos1/aa/internal/tracker/diag"
	"github.com/sebastos1/aa/internal/tracker/model"
	"github.com/sebastos1/aa/internal/tracker/state"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/sebastos1/aa/internal/tracker/bootstrap"

	maxSnapshotBytes = 64 << 20
)

// Loader fetches the bootstrap snapshot.
type Loader struct {
	client   *http.Client
	timeout  time.Duration
	reporter diag.Reporter
	tracer   trace.Tracer
}

// NewLoader creates a loader. A nil client uses http.DefaultClient.
func NewLoader(client *http.Client, reporter diag.Reporter) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{
		client:   client,
		timeout:  timeouts.BootstrapFetch,
		reporter: diag.OrNop(reporter),
		tracer:   otel.Tracer(tracerName),
	}
}

// Fetch requests the snapshot from url. The returned snapshot has no nil
// mappings.
func (l *Loader) Fetch(ctx context.Context, url string) (model.Snapshot, error) {
	ctx, span := l.tracer.Start(ctx, "bootstrap.fetch", trace.WithAttributes(
		attribute.String("url.full", url),
	))
	defer span.End()

	snap, err := l.fetch(ctx, url, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bootstrap fetch failed")
		return model.EmptySnapshot(), err
	}
	span.SetAttributes(
		attribute.Int("snapshot.players", len(snap.Players)),
		attribute.Int("snapshot.advancements", len(snap.Advancements)),
	)
	return snap, nil
}

func (l *Loader) fetch(ctx context.Context, url string, span trace.Span) (model.Snapshot, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.Snapshot{}, apperrors.Wrap(apperrors.CodeBootstrapFetch, "build bootstrap request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return model.Snapshot{}, apperrors.WrapWithMetadata(apperrors.CodeBootstrapFetch, "fetch bootstrap snapshot",
			map[string]string{"url": url}, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return model.Snapshot{}, apperrors.WithMetadata(apperrors.CodeBootstrapStatus, "unexpected bootstrap status",
			map[string]string{"url": url, "status": strconv.Itoa(resp.StatusCode)})
	}

	var snap model.Snapshot
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSnapshotBytes)).Decode(&snap); err != nil {
		return model.Snapshot{}, apperrors.WrapWithMetadata(apperrors.CodeBootstrapDecode, "decode bootstrap snapshot",
			map[string]string{"url": url}, err)
	}
	snap.Normalize()
	return snap, nil
}

// Load fetches the snapshot and seeds mirror and static from it. On any
// failure the containers are seeded empty and a diagnostic is reported;
// Load itself never fails.
func (l *Loader) Load(ctx context.Context, url string, mirror *state.Mirror, static *state.Static) model.Snapshot {
	snap, err := l.Fetch(ctx, url)
	if err != nil {
		l.reporter.Report(ctx, diag.FromError(diag.KindBootstrap, diag.SeverityError, "bootstrap failed, starting empty", err))
		snap = model.EmptySnapshot()
	}
	Seed(ctx, snap, mirror, static, l.reporter)
	return snap
}

// Seed writes snap into the containers. Static data can only be loaded
// once; a second attempt is reported and ignored.
func Seed(ctx context.Context, snap model.Snapshot, mirror *state.Mirror, static *state.Static, reporter diag.Reporter) {
	snap.Normalize()
	if mirror != nil {
		mirror.Update(func(tx *state.Tx) {
			tx.Replace(snap.Players, snap.Progress)
		})
	}
	if static != nil {
		if err := static.Load(snap); err != nil {
			diag.OrNop(reporter).Report(ctx, diag.FromError(diag.KindBootstrap, diag.SeverityWarn, "static data already loaded", err))
		}
	}
}
