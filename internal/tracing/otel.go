package tracing

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used by every span of the runtime.
const TracerName = "agentcore"

// OTelConfig configures the process tracer provider.
type OTelConfig struct {
	ServiceName string
	// SampleRatio of root traces to keep; values outside (0, 1] mean 1.
	SampleRatio float64
	// Output receives finished spans as JSON lines. Nil keeps spans in
	// memory only, which is enough for trace ids in logs.
	Output io.Writer
}

var (
	providerMu sync.Mutex
	provider   *sdktrace.TracerProvider
)

// InitOpenTelemetry installs a process-wide tracer provider. Later calls are
// no-ops until ShutdownOpenTelemetry.
func InitOpenTelemetry(cfg OTelConfig) error {
	providerMu.Lock()
	defer providerMu.Unlock()
	if provider != nil {
		return nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return fmt.Errorf("otel resource: %w", err)
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(res),
	}
	if cfg.Output != nil {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(cfg.Output))
		if err != nil {
			return fmt.Errorf("otel exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}

	provider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	return nil
}

// ShutdownOpenTelemetry flushes pending spans and removes the provider.
func ShutdownOpenTelemetry(ctx context.Context) error {
	providerMu.Lock()
	tp := provider
	provider = nil
	providerMu.Unlock()

	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan starts a span and copies its trace id into ctx when ctx has none.
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(TracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
	if GetTraceID(ctx) == "" {
		if sc := span.SpanContext(); sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}
	return ctx, span
}

// FailSpan records err on span and marks it failed.
func FailSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
