package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Observability struct {
	meterProvider   *metric.MeterProvider
	meter           otelmetric.Meter
	requestCounter  otelmetric.Int64Counter
	requestDuration otelmetric.Float64Histogram

	tracing *Tracing
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	requestCounter, _ := meter.Int64Counter(
		"agent.requests",
		otelmetric.WithDescription("Number of agent requests processed"),
	)

	requestDuration, _ := meter.Float64Histogram(
		"agent.request.duration",
		otelmetric.WithDescription("Agent request processing duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:   provider,
		meter:           meter,
		requestCounter:  requestCounter,
		requestDuration: requestDuration,
	}
}

// WithTracing attaches a tracer provider; StartSpan is a no-op without one.
func (o *Observability) WithTracing(t *Tracing) *Observability {
	o.tracing = t
	return o
}

func (o *Observability) tracer() trace.Tracer {
	if o == nil || o.tracing == nil {
		return noop.NewTracerProvider().Tracer("")
	}
	return o.tracing.Tracer()
}

// StartSpan opens a span named name under ctx.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordRequest(ctx context.Context, intent, outcome string) {
	if o != nil && o.requestCounter != nil {
		o.requestCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("intent", intent),
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) RecordRequestDuration(ctx context.Context, duration time.Duration, intent string) {
	if o != nil && o.requestDuration != nil {
		o.requestDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("intent", intent),
		))
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracing != nil {
		_ = o.tracing.Shutdown(ctx)
	}
}
