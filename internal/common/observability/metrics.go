package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"travelgo-chat/internal/common/metrics"
)

type Observability struct {
	meterProvider   *metric.MeterProvider
	tracerProvider  *sdktrace.TracerProvider
	tracer          trace.Tracer
	requestCounter  otelmetric.Int64Counter
	requestDuration otelmetric.Float64Histogram
}

// New installs the global tracer and meter providers. Every finished span is
// observed into chat_stage_duration_seconds; extra processors receive the
// same spans.
func New(serviceName string, processors ...sdktrace.SpanProcessor) *Observability {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(stageRecorder{}),
	}
	for _, p := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	obs := &Observability{tracerProvider: tp, tracer: tp.Tracer(serviceName)}

	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return obs
	}

	provider := metric.NewMeterProvider(metric.WithResource(res), metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	obs.requestCounter, _ = meter.Int64Counter(
		"chat.requests",
		otelmetric.WithDescription("Number of chat requests resolved"),
	)
	obs.requestDuration, _ = meter.Float64Histogram(
		"chat.duration",
		otelmetric.WithDescription("End-to-end chat resolution duration"),
		otelmetric.WithUnit("ms"),
	)
	obs.meterProvider = provider
	return obs
}

// NewNoop returns an Observability that records nothing.
func NewNoop() *Observability {
	return &Observability{tracer: noop.NewTracerProvider().Tracer("noop")}
}

// StartSpan opens a span for one pipeline stage. The caller must End it.
func (o *Observability) StartSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return o.tracer.Start(ctx, stage)
}

func (o *Observability) RecordRequest(ctx context.Context, tier string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("tier", tier))
	if o.requestCounter != nil {
		o.requestCounter.Add(ctx, 1, attrs)
	}
	if o.requestDuration != nil {
		o.requestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}

// stageRecorder times finished spans by name.
type stageRecorder struct{}

func (stageRecorder) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (stageRecorder) OnEnd(s sdktrace.ReadOnlySpan) {
	status := "ok"
	if s.Status().Code == codes.Error {
		status = "error"
	}
	metrics.StageDuration.WithLabelValues(s.Name(), status).Observe(s.EndTime().Sub(s.StartTime()).Seconds())
}

func (stageRecorder) Shutdown(context.Context) error   { return nil }
func (stageRecorder) ForceFlush(context.Context) error { return nil }
