package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config for the OTLP tracing setup.
type Config struct {
	// Endpoint is the OTLP HTTP collector address (host:port).
	// Empty endpoint disables tracing entirely.
	Endpoint string

	// ServiceName is the service name attached to exported spans.
	ServiceName string

	// Environment is the deployment environment tag (dev, staging, prod).
	Environment string
}

// propagator serializes span references as W3C traceparent strings.
var propagator = propagation.TraceContext{}

// Setup creates a Tracer exporting spans over OTLP HTTP, plus a shutdown
// function that flushes pending spans.
//
// If cfg.Endpoint is empty, or the exporter cannot be created, tracing is
// disabled and a no-op tracer is returned: an unreachable collector must
// never take chat down with it.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (Tracer, func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	noShutdown := func(context.Context) error { return nil }

	if cfg.Endpoint == "" {
		logger.Debug("telemetry endpoint not configured, tracing disabled")
		return NewNop(), noShutdown, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("failed to create OTLP exporter, tracing disabled", "error", err)
		return NewNop(), noShutdown, nil
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
	)

	logger.Debug("tracing enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return &otelTracer{tracer: tp.Tracer("relaydesk")}, tp.Shutdown, nil
}

// otelTracer implements Tracer on the OpenTelemetry SDK.
type otelTracer struct {
	tracer trace.Tracer
}

func (t *otelTracer) StartSpan(ctx context.Context, name string, event Event) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	s := &otelSpan{ctx: ctx, span: span}
	s.Log(event)
	return ctx, s
}

func (t *otelTracer) WithParent(ctx context.Context, exported string) context.Context {
	if exported == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{"traceparent": exported}
	return propagator.Extract(ctx, carrier)
}

// otelSpan wraps an OTel span. Events carry the input/output payloads;
// metadata becomes span attributes so backends can filter on it.
type otelSpan struct {
	ctx  context.Context
	span trace.Span
}

func (s *otelSpan) Log(event Event) {
	if event.Input != "" {
		s.span.AddEvent("input", trace.WithAttributes(
			attribute.String("payload", event.Input)))
	}
	if event.Output != "" {
		s.span.AddEvent("output", trace.WithAttributes(
			attribute.String("payload", event.Output)))
	}
	for k, v := range event.Metadata {
		s.span.SetAttributes(attribute.String("metadata."+k, fmt.Sprint(v)))
	}
}

func (s *otelSpan) Export() string {
	carrier := propagation.MapCarrier{}
	propagator.Inject(s.ctx, carrier)
	return carrier.Get("traceparent")
}

func (s *otelSpan) End() {
	s.span.End()
}
