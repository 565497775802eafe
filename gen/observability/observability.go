// Package observability instruments generation calls with OpenTelemetry
// traces and metrics. Instrumentation degrades to no-ops when no provider
// is installed, so library code can call it unconditionally.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/BaSui01/filmforge/types"
)

const instrumentationName = "github.com/BaSui01/filmforge/gen"

// Instruments holds the tracer and meter instruments for generation calls.
type Instruments struct {
	tracer trace.Tracer
	meter  metric.Meter

	requestTotal    metric.Int64Counter
	errorTotal      metric.Int64Counter
	requestDuration metric.Float64Histogram
	costPerRequest  metric.Float64Histogram
	activeRequests  metric.Int64UpDownCounter
	pollAttempts    metric.Int64Histogram
}

// New creates the generation instruments against the global otel providers.
func New() (*Instruments, error) {
	m := &Instruments{
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}

	var err error

	m.requestTotal, err = m.meter.Int64Counter("gen.request.total",
		metric.WithDescription("Total number of generation requests"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	m.errorTotal, err = m.meter.Int64Counter("gen.error.total",
		metric.WithDescription("Total number of generation errors"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, err
	}

	m.requestDuration, err = m.meter.Float64Histogram("gen.request.duration",
		metric.WithDescription("Generation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600))
	if err != nil {
		return nil, err
	}

	m.costPerRequest, err = m.meter.Float64Histogram("gen.cost.per_request",
		metric.WithDescription("Estimated vendor spend per request in USD"),
		metric.WithUnit("USD"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1))
	if err != nil {
		return nil, err
	}

	m.activeRequests, err = m.meter.Int64UpDownCounter("gen.request.active",
		metric.WithDescription("Generation requests currently running"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	m.pollAttempts, err = m.meter.Int64Histogram("gen.poll.attempts",
		metric.WithDescription("Status checks per async task"),
		metric.WithUnit("{check}"),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 20, 40, 60, 120))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RequestAttrs identifies one generation call.
type RequestAttrs struct {
	Kind     types.Kind
	Provider string
	Model    string
	UserID   string
}

// ResultAttrs describes its outcome.
type ResultAttrs struct {
	Status    types.Status
	ErrorCode types.ErrorCode
	Cost      float64
	Duration  time.Duration
}

// StartRequest opens the span and bumps the active-request counter. The
// returned span must be closed through EndRequest.
func (m *Instruments) StartRequest(ctx context.Context, attrs RequestAttrs) (context.Context, trace.Span) {
	ctx, span := m.tracer.Start(ctx, "gen.generate",
		trace.WithAttributes(
			attribute.String("gen.kind", string(attrs.Kind)),
			attribute.String("gen.provider", attrs.Provider),
			attribute.String("gen.model", attrs.Model),
			attribute.String("user.id", attrs.UserID),
		))

	m.activeRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(attrs.Kind)),
		attribute.String("provider", attrs.Provider)))

	return ctx, span
}

// EndRequest closes the span and records the outcome metrics.
func (m *Instruments) EndRequest(ctx context.Context, span trace.Span, req RequestAttrs, res ResultAttrs) {
	defer span.End()

	common := []attribute.KeyValue{
		attribute.String("kind", string(req.Kind)),
		attribute.String("provider", req.Provider),
		attribute.String("status", string(res.Status)),
	}

	m.activeRequests.Add(ctx, -1, metric.WithAttributes(
		attribute.String("kind", string(req.Kind)),
		attribute.String("provider", req.Provider)))

	m.requestTotal.Add(ctx, 1, metric.WithAttributes(common...))
	m.requestDuration.Record(ctx, res.Duration.Seconds(), metric.WithAttributes(common...))
	if res.Cost > 0 {
		m.costPerRequest.Record(ctx, res.Cost, metric.WithAttributes(common...))
	}

	if res.Status == types.StatusError {
		m.errorTotal.Add(ctx, 1, metric.WithAttributes(append(common,
			attribute.String("error.code", string(res.ErrorCode)))...))
		span.SetStatus(codes.Error, string(res.ErrorCode))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.String("gen.status", string(res.Status)))
}

// RecordPoll records the attempt count of one completed poll loop.
func (m *Instruments) RecordPoll(ctx context.Context, provider string, attempts int) {
	m.pollAttempts.Record(ctx, int64(attempts), metric.WithAttributes(
		attribute.String("provider", provider)))
}
