package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool
	Exporter       string // otlp-http, none
	Endpoint       string // host:port of the OTLP/HTTP collector
	ServiceName    string
	ServiceVersion string
	SampleRate     float64 // 0.0 to 1.0
}

// Provider wraps the OpenTelemetry TracerProvider.
type Provider struct {
	tp      *sdktrace.TracerProvider
	tracer  trace.Tracer
	enabled bool
}

var (
	providerMu     sync.RWMutex
	globalProvider = &Provider{tracer: noop.NewTracerProvider().Tracer("")}
)

func current() *Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return globalProvider
}

// Init installs the process-wide tracer provider. With tracing disabled
// every span is a no-op.
func Init(ctx context.Context, cfg Config) error {
	if !cfg.Enabled {
		providerMu.Lock()
		globalProvider = &Provider{tracer: noop.NewTracerProvider().Tracer("")}
		providerMu.Unlock()
		return nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "orkl"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return fmt.Errorf("create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "otlp-http", "otlp", "":
		exp, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("create OTLP exporter: %w", err)
		}
		exporter = exp
	case "none":
		// Spans are recorded and propagated but never exported.
		exporter = discardExporter{}
	default:
		return fmt.Errorf("unknown exporter: %s", cfg.Exporter)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate < 1.0 && cfg.SampleRate >= 0 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	providerMu.Lock()
	globalProvider = &Provider{
		tp:      tp,
		tracer:  tp.Tracer(cfg.ServiceName),
		enabled: true,
	}
	providerMu.Unlock()
	return nil
}

// Shutdown flushes and stops the tracer provider, if one was started.
func Shutdown(ctx context.Context) error {
	p := current()
	if p.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.tp.Shutdown(ctx)
}

// Tracer returns the process-wide tracer.
func Tracer() trace.Tracer {
	return current().tracer
}

// Enabled reports whether tracing is on.
func Enabled() bool {
	return current().enabled
}

type discardExporter struct{}

func (discardExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }

func (discardExporter) Shutdown(context.Context) error { return nil }
