// Package merge applies decoded update events onto the mirrored state.
//
// Each update fully re-specifies one player's progress set: the player's
// entries are cleared from every advancement key currently known and then
// re-applied from the update. The clear scans the whole key set on every
// event, so cost grows with advancement-key cardinality.
package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/sebastos1/aa/internal/tracker/model"
	"github.com/sebastos1/aa/internal/tracker/state"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/sebastos1/aa/internal/tracker/merge"

// Applier consumes one decoded update.
type Applier interface {
	Apply(ctx context.Context, evt model.UpdateEvent) error
}

// Engine is the only writer of player and progress state after bootstrap.
type Engine struct {
	mirror *state.Mirror
	tracer trace.Tracer
}

// New returns an engine writing to mirror.
func New(mirror *state.Mirror) *Engine {
	return &Engine{mirror: mirror, tracer: otel.Tracer(tracerName)}
}

// Apply merges evt as one atomic Mirror transaction:
//
//  1. the player snapshot replaces any previous one;
//  2. the player is removed from every advancement key in the table;
//  3. every entry of evt.UpdatedProgress is stored for the player.
//
// Applying the same event twice leaves the same state as applying it once.
func (e *Engine) Apply(ctx context.Context, evt model.UpdateEvent) error {
	if e == nil || e.mirror == nil {
		return fmt.Errorf("merge engine is not configured")
	}
	uuid := strings.TrimSpace(evt.UUID)
	if uuid == "" {
		return fmt.Errorf("update uuid is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	_, span := e.tracer.Start(ctx, "merge.apply", trace.WithAttributes(
		attribute.String("player.uuid", uuid),
		attribute.Int("progress.updated", len(evt.UpdatedProgress)),
	))
	defer span.End()

	var scanned int
	change := e.mirror.Update(func(tx *state.Tx) {
		tx.SetPlayer(uuid, evt.Player)

		keys := tx.ProgressKeys()
		scanned = len(keys)
		for _, key := range keys {
			tx.RemoveProgress(key, uuid)
		}

		for key, detail := range evt.UpdatedProgress {
			tx.SetProgress(key, uuid, detail)
		}
	})

	span.SetAttributes(
		attribute.Int("progress.keys_scanned", scanned),
		attribute.Int64("mirror.version", int64(change.Version)),
	)
	return nil
}

var _ Applier = (*Engine)(nil)
