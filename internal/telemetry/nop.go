package telemetry

import "context"

// NewNop returns a Tracer that records nothing. Used when no telemetry
// backend is configured; chat behavior is identical with or without it.
func NewNop() Tracer {
	return nopTracer{}
}

type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, _ string, _ Event) (context.Context, Span) {
	return ctx, nopSpan{}
}

func (nopTracer) WithParent(ctx context.Context, _ string) context.Context {
	return ctx
}

type nopSpan struct{}

func (nopSpan) Log(Event)      {}
func (nopSpan) Export() string { return "" }
func (nopSpan) End()           {}
