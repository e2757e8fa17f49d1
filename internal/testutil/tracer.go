package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/relaydesk/relaydesk/internal/telemetry"
)

// RecordedSpan captures one span's lifecycle: the opening event, every
// Log call in order, and whether End was reached.
type RecordedSpan struct {
	Name   string
	Parent string // exported handle passed via WithParent, "" for roots
	Events []telemetry.Event
	Ended  bool

	tracer *RecordingTracer
	id     int
}

// RecordingTracer implements telemetry.Tracer and keeps every span in
// memory for assertions.
type RecordingTracer struct {
	mu    sync.Mutex
	spans []*RecordedSpan
}

func NewRecordingTracer() *RecordingTracer {
	return &RecordingTracer{}
}

// Spans returns all spans in start order.
func (t *RecordingTracer) Spans() []*RecordedSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*RecordedSpan(nil), t.spans...)
}

type parentKey struct{}

func (t *RecordingTracer) StartSpan(ctx context.Context, name string, event telemetry.Event) (context.Context, telemetry.Span) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, _ := ctx.Value(parentKey{}).(string)
	span := &RecordedSpan{
		Name:   name,
		Parent: parent,
		Events: []telemetry.Event{event},
		tracer: t,
		id:     len(t.spans),
	}
	t.spans = append(t.spans, span)
	return ctx, span
}

func (t *RecordingTracer) WithParent(ctx context.Context, exported string) context.Context {
	if exported == "" {
		return ctx
	}
	return context.WithValue(ctx, parentKey{}, exported)
}

func (s *RecordedSpan) Log(event telemetry.Event) {
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.Events = append(s.Events, event)
}

// Export returns a stable handle unique to this span.
func (s *RecordedSpan) Export() string {
	return fmt.Sprintf("recorded-span-%d", s.id)
}

func (s *RecordedSpan) End() {
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.Ended = true
}
