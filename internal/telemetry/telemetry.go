// Package telemetry provides structured tracing for chat turns.
//
// The orchestrator talks to a small Tracer/Span contract rather than a
// vendor API: any backend that can open a named span, attach input/output
// events, and serialize a parent handle is substitutable. The production
// implementation exports spans over OTLP HTTP; when no collector endpoint is
// configured, a no-op tracer is returned so tracing never becomes a
// correctness dependency of chat.
package telemetry

import (
	"context"
)

// Event is a structured payload logged onto a span. Zero-value fields are
// omitted, so partial logs (input at span start, output at completion) are
// expressed with separate Log calls.
type Event struct {
	Input    string
	Output   string
	Metadata map[string]any
}

// Span represents one traced request-response unit.
//
// Ownership: the orchestrator creates and ends spans; retrieval and model
// steps only borrow them to append events. Within one span, the input log
// always precedes the output log.
type Span interface {
	// Log appends the non-empty fields of the event to the span.
	Log(event Event)

	// Export serializes a reference to this span that a later turn can use
	// as its parent, enabling one trace per conversation. Returns empty
	// string when the backend does not support export (no-op tracing).
	Export() string

	// End closes the span. Must be called exactly once.
	End()
}

// Tracer opens spans. Implementations must be safe for concurrent use.
type Tracer interface {
	// StartSpan opens a span with the given name and initial event.
	// The returned context carries the span for nested instrumentation.
	StartSpan(ctx context.Context, name string, event Event) (context.Context, Span)

	// WithParent returns a context whose next span attaches under the
	// previously exported handle. Invalid or empty handles are ignored.
	WithParent(ctx context.Context, exported string) context.Context
}
