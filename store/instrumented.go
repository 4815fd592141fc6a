package store

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ryhazerus/ratelimit/store"

// Compile-time interface check.
var _ Store = (*InstrumentedStore)(nil)

// InstrumentedStore wraps a Store with OpenTelemetry tracing and metrics.
// Every call records a span, an operation latency and, on failure, an error
// count. Results and errors from the inner store pass through unchanged.
type InstrumentedStore struct {
	inner    Store
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// InstrumentOption configures an InstrumentedStore.
type InstrumentOption func(*instrumentConfig)

type instrumentConfig struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// WithMeterProvider sets the meter provider. The global provider is used by
// default.
func WithMeterProvider(mp metric.MeterProvider) InstrumentOption {
	return func(c *instrumentConfig) {
		c.meterProvider = mp
	}
}

// WithTracerProvider sets the tracer provider. The global provider is used by
// default.
func WithTracerProvider(tp trace.TracerProvider) InstrumentOption {
	return func(c *instrumentConfig) {
		c.tracerProvider = tp
	}
}

// NewInstrumentedStore creates a store wrapper that records trace spans,
// operation latency histograms, and error counters for every call.
func NewInstrumentedStore(inner Store, opts ...InstrumentOption) (*InstrumentedStore, error) {
	cfg := instrumentConfig{
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, o := range opts {
		o(&cfg)
	}

	meter := cfg.meterProvider.Meter(instrumentationName)

	duration, err := meter.Float64Histogram(
		"ratelimit.store.duration",
		metric.WithDescription("Duration of rate limit store operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"ratelimit.store.errors",
		metric.WithDescription("Number of failed rate limit store operations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStore{
		inner:    inner,
		tracer:   cfg.tracerProvider.Tracer(instrumentationName),
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStore) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "ratelimit.store."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("ratelimit.store.operation", operation)),
	)
}

func (s *InstrumentedStore) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, time.Since(start).Seconds(), attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStore) IncrementAndPeek(ctx context.Context, currentKey, previousKey string, ttl time.Duration) (int64, int64, error) {
	ctx, span := s.startSpan(ctx, "increment")
	start := time.Now()
	current, previous, err := s.inner.IncrementAndPeek(ctx, currentKey, previousKey, ttl)
	s.record(ctx, span, "increment", start, err)
	return current, previous, err
}

func (s *InstrumentedStore) Peek(ctx context.Context, currentKey, previousKey string) (int64, int64, error) {
	ctx, span := s.startSpan(ctx, "peek")
	start := time.Now()
	current, previous, err := s.inner.Peek(ctx, currentKey, previousKey)
	s.record(ctx, span, "peek", start, err)
	return current, previous, err
}

// Close closes the wrapped store.
func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
