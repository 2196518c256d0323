package stream

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sebastos1/aa/internal/tracker/model"
)

type recordingApplier struct {
	mu     sync.Mutex
	events []model.UpdateEvent
	ch     chan model.UpdateEvent
}

func newRecordingApplier() *recordingApplier {
	return &recordingApplier{ch: make(chan model.UpdateEvent, 64)}
}

func (a *recordingApplier) Apply(_ context.Context, evt model.UpdateEvent) error {
	a.mu.Lock()
	a.events = append(a.events, evt)
	a.mu.Unlock()
	a.ch <- evt
	return nil
}

func (a *recordingApplier) wait(t *testing.T) model.UpdateEvent {
	t.Helper()
	select {
	case evt := <-a.ch:
		return evt
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return model.UpdateEvent{}
	}
}

type connectStep func(ctx context.Context) (io.ReadCloser, error)

// scriptedTransport plays one step per Connect call, then blocks until the
// context ends.
type scriptedTransport struct {
	mu      sync.Mutex
	steps   []connectStep
	calls   int
	lastIDs []string
}

func (s *scriptedTransport) Connect(ctx context.Context, _ string, lastEventID string) (io.ReadCloser, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.lastIDs = append(s.lastIDs, lastEventID)
	var step connectStep
	if idx < len(s.steps) {
		step = s.steps[idx]
	}
	s.mu.Unlock()

	if step != nil {
		return step(ctx)
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *scriptedTransport) seenIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lastIDs...)
}

func body(text string) connectStep {
	return func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(text)), nil
	}
}

func fail(err error) connectStep {
	return func(context.Context) (io.ReadCloser, error) {
		return nil, err
	}
}

func eventFrame(uuid, name string) string {
	return `data: {"uuid":"` + uuid + `","player":{"name":"` + name + `"},"updatedProgress":{}}` + "\n\n"
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// blockingReader blocks until its context ends, like an idle stream.
type blockingReader struct {
	ctx context.Context
}

func (r blockingReader) Read([]byte) (int, error) {
	<-r.ctx.Done()
	return 0, r.ctx.Err()
}
