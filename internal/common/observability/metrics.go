package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability bundles the otel meter and tracer used by the orchestrator.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracing        *Tracing
	meter          otelmetric.Meter
	queryCounter   otelmetric.Int64Counter
	queryDuration  otelmetric.Float64Histogram
	handlerCounter otelmetric.Int64Counter
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

// New registers a Prometheus-backed MeterProvider. Tracing is attached separately with
// WithTracing; without it spans are no-ops.
func New(serviceName string, log Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		if log != nil {
			log.Warn("Failed to create Prometheus exporter", map[string]interface{}{"error": err.Error()})
		}
		return &Observability{tracing: noopTracing(serviceName)}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	queryCounter, _ := meter.Int64Counter(
		"audit.queries.processed",
		otelmetric.WithDescription("Number of orchestrated queries"),
	)
	queryDuration, _ := meter.Float64Histogram(
		"audit.queries.duration",
		otelmetric.WithDescription("Orchestration duration"),
		otelmetric.WithUnit("ms"),
	)
	handlerCounter, _ := meter.Int64Counter(
		"audit.handlers.invoked",
		otelmetric.WithDescription("Number of knowledge handler invocations"),
	)

	return &Observability{
		meterProvider:  provider,
		tracing:        noopTracing(serviceName),
		meter:          meter,
		queryCounter:   queryCounter,
		queryDuration:  queryDuration,
		handlerCounter: handlerCounter,
	}
}

// WithTracing replaces the no-op tracer.
func (o *Observability) WithTracing(t *Tracing) *Observability {
	if t != nil {
		o.tracing = t
	}
	return o
}

func (o *Observability) RecordQueryProcessed(ctx context.Context, intent, outcome string) {
	if o == nil || o.queryCounter == nil {
		return
	}
	o.queryCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("intent", intent),
		attribute.String("outcome", outcome),
	))
}

func (o *Observability) RecordQueryDuration(ctx context.Context, duration time.Duration, intent string) {
	if o == nil || o.queryDuration == nil {
		return
	}
	o.queryDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("intent", intent),
	))
}

func (o *Observability) RecordHandlerInvoked(ctx context.Context, handler, status string) {
	if o == nil || o.handlerCounter == nil {
		return
	}
	o.handlerCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("handler", handler),
		attribute.String("status", status),
	))
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
