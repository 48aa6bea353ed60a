// Package observability bootstraps OpenTelemetry tracing for the API process.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"call-insights/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Shutdown flushes pending spans.
type Shutdown func(context.Context) error

type options struct {
	stdout io.Writer
}

type Option func(*options)

// WithWriter redirects the stdout exporter.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// Setup installs the global tracer provider and propagators. With tracing disabled it
// installs nothing and returns a no-op Shutdown.
func Setup(ctx context.Context, cfg config.OTelConfig, env string, log *slog.Logger, opts ...Option) (Shutdown, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	o := options{stdout: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	exporter, err := newExporter(ctx, cfg, o)
	if err != nil {
		return nil, fmt.Errorf("otel exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("deployment.environment", env),
	))
	if err != nil {
		log.Warn("otel resource init failed (continuing)", "err", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	log.Info("otel tracing initialized", "service", cfg.ServiceName, "exporter", cfg.Exporter, "ratio", cfg.SampleRatio)
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg config.OTelConfig, o options) (sdktrace.SpanExporter, error) {
	if cfg.Exporter == "otlp" {
		return otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	}
	return stdouttrace.New(stdouttrace.WithWriter(o.stdout))
}
