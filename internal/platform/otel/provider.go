// Package otel wires opt-in OpenTelemetry tracing for entropy commands.
package otel

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/entropy/internal/platform/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config selects the trace exporter.
type Config struct {
	// Endpoint is an OTLP/HTTP URL such as http://localhost:4318. Empty
	// disables tracing.
	Endpoint string `env:"ENTROPY_OTEL_ENDPOINT"`
	Enabled  bool   `env:"ENTROPY_OTEL_ENABLED" envDefault:"true"`
}

// Shutdown flushes and stops the tracer provider.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// Setup reads Config from the environment and calls SetupWithConfig.
func Setup(ctx context.Context, serviceName string) (Shutdown, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return noop, fmt.Errorf("otel config: %w", err)
	}
	return SetupWithConfig(ctx, serviceName, cfg)
}

// SetupWithConfig registers a global tracer provider exporting to
// cfg.Endpoint. When tracing is disabled no provider is registered and the
// returned Shutdown does nothing.
func SetupWithConfig(ctx context.Context, serviceName string, cfg Config) (Shutdown, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if !cfg.Enabled || endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noop, fmt.Errorf("create otlp exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, fmt.Errorf("create otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}

// Tracer returns a tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
