// Package cmd holds the startup plumbing shared by entropy commands.
package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/entropy/internal/platform/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultShutdownTimeout = 5 * time.Second

// ServiceEntropy names the entropy CLI in telemetry.
const ServiceEntropy = "entropy"

// RunOptions controls RunWithTelemetryAndOptions.
type RunOptions struct {
	// ShutdownTimeout bounds the telemetry flush after run returns.
	ShutdownTimeout time.Duration
	// SpanName overrides the default "<service>.run" root span name.
	SpanName string
}

// ParseArgs parses command-line flags. A nil args slice parses as empty.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry calls RunWithTelemetryAndOptions with defaults.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	return RunWithTelemetryAndOptions(ctx, service, RunOptions{}, run)
}

// RunWithTelemetryAndOptions sets up tracing, runs run inside a root span
// and flushes telemetry before returning run's error. The span is reachable
// through trace.SpanFromContext so run can attach attributes.
func RunWithTelemetryAndOptions(ctx context.Context, service string, options RunOptions, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service name is required")
	}
	if run == nil {
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		timeout := options.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()

	name := options.SpanName
	if name == "" {
		name = service + ".run"
	}
	ctx, span := otel.Tracer(service).Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	if err := run(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
