package monitor

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"socialsync/internal/config"
)

// Tracer wraps an otel tracer with the span helpers used across the service
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   oteltrace.Tracer
}

// NewTracer creates a tracer exporting to Jaeger. A disabled config yields a no-op tracer.
func NewTracer(cfg config.TracingConfig, environment string) (*Tracer, error) {
	if !cfg.Enabled {
		return NewTracerWithProvider(cfg.ServiceName, noop.NewTracerProvider()), nil
	}

	exporter, err := jaeger.New(
		jaeger.WithCollectorEndpoint(
			jaeger.WithEndpoint(cfg.Endpoint),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create jaeger exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.DeploymentEnvironmentKey.String(environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{provider: provider, tracer: provider.Tracer(cfg.ServiceName)}, nil
}

// NewTracerWithProvider creates a tracer on an existing provider
func NewTracerWithProvider(name string, tp oteltrace.TracerProvider) *Tracer {
	t := &Tracer{tracer: tp.Tracer(name)}
	if sdk, ok := tp.(*sdktrace.TracerProvider); ok {
		t.provider = sdk
	}
	return t
}

// NoopTracer tracer that records nothing
func NoopTracer() *Tracer {
	return NewTracerWithProvider("noop", noop.NewTracerProvider())
}

// StartSpan starts an internal span
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	return t.tracer.Start(ctx, name, oteltrace.WithAttributes(attrs...))
}

// StartHTTPSpan starts a server span continuing any trace in the request headers
func (t *Tracer) StartHTTPSpan(ctx context.Context, route string, r *http.Request) (context.Context, oteltrace.Span) {
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(r.Header))

	return t.tracer.Start(ctx, fmt.Sprintf("%s %s", r.Method, route),
		oteltrace.WithSpanKind(oteltrace.SpanKindServer),
		oteltrace.WithAttributes(
			semconv.HTTPMethodKey.String(r.Method),
			semconv.HTTPTargetKey.String(r.URL.Path),
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPUserAgentKey.String(r.UserAgent()),
		),
	)
}

// StartPlatformSpan starts a client span around one platform API operation
func (t *Tracer) StartPlatformSpan(ctx context.Context, platform, operation string) (context.Context, oteltrace.Span) {
	return t.tracer.Start(ctx, "platform."+operation,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String("platform", platform),
			attribute.String("platform.operation", operation),
		),
	)
}

// StartQueueSpan starts a span for a queue publish or consume
func (t *Tracer) StartQueueSpan(ctx context.Context, operation, topic string) (context.Context, oteltrace.Span) {
	kind := oteltrace.SpanKindProducer
	if operation == "consume" {
		kind = oteltrace.SpanKindConsumer
	}
	return t.tracer.Start(ctx, fmt.Sprintf("queue.%s.%s", operation, topic),
		oteltrace.WithSpanKind(kind),
		oteltrace.WithAttributes(
			attribute.String("messaging.system", "memory"),
			attribute.String("messaging.operation", operation),
			attribute.String("messaging.destination", topic),
		),
	)
}

// RecordError marks the span failed
func (t *Tracer) RecordError(span oteltrace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Shutdown flushes and stops the exporter
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// TraceID returns the trace ID of the span in ctx, or ""
func TraceID(ctx context.Context) string {
	sc := oteltrace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}
