// Package obs wires the RPC fabric's observability surface: OpenTelemetry tracing spans
// around each dispatch, and the Prometheus metrics the demo binary serves.
package obs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "relayer/rpcfabric"

// InitTracer wires a batched OTLP/HTTP exporter if endpoint is non-empty, and returns a
// shutdown func that flushes pending spans. If endpoint is empty, tracing is a no-op and
// the returned shutdown func does nothing.
func InitTracer(endpoint string) func() {
	if endpoint == "" {
		return func() {}
	}

	ctx := context.Background()
	client := otlptracehttp.NewClient(
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)

	exporter, err := otlptrace.New(ctx, client)
	if err != nil {
		return func() {}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("relayer-rpc-fabric"),
		)),
	)
	otel.SetTracerProvider(tp)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}
}

// Tracer returns the fabric's named tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// RecordError attaches err to the span active in ctx, if any.
func RecordError(ctx context.Context, err error) {
	trace.SpanFromContext(ctx).RecordError(err)
}

// StartDispatch opens a span around one logical router.Send call.
func StartDispatch(ctx context.Context, chainID, method string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "rpcfabric.dispatch",
		trace.WithAttributes(
			attribute.String("chain_id", chainID),
			attribute.String("method", method),
		),
	)
}
