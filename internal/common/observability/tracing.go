package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracing owns the process tracer provider.
type Tracing struct {
	provider    *sdktrace.TracerProvider
	serviceName string
}

// NewTracing exports spans to the Jaeger collector at endpoint.
func NewTracing(serviceName, endpoint string, sampleRatio float64) (*Tracing, error) {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
	if err != nil {
		return nil, fmt.Errorf("failed to create jaeger exporter: %w", err)
	}
	return newTracing(serviceName, sdktrace.WithBatcher(exporter), sampleRatio), nil
}

// NewTracingWithExporter is used by tests to capture spans in memory.
func NewTracingWithExporter(serviceName string, exporter sdktrace.SpanExporter) *Tracing {
	return newTracing(serviceName, sdktrace.WithSyncer(exporter), 1.0)
}

func newTracing(serviceName string, export sdktrace.TracerProviderOption, sampleRatio float64) *Tracing {
	res := resource.NewWithAttributes("", attribute.String("service.name", serviceName))
	provider := sdktrace.NewTracerProvider(
		export,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
	)
	otel.SetTracerProvider(provider)
	return &Tracing{provider: provider, serviceName: serviceName}
}

func (t *Tracing) Tracer() trace.Tracer {
	return t.provider.Tracer(t.serviceName)
}

func (t *Tracing) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
