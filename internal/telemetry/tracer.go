// Package telemetry wires OpenTelemetry tracing for the gateway and the
// document pipeline.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/tjfontaine/tutor-gateway/internal/config"
)

// ShutdownFunc flushes pending spans and releases the exporter.
type ShutdownFunc func(context.Context) error

// InitTracer installs a global tracer provider exporting spans to the
// configured output. When telemetry is disabled the global no-op provider
// stays in place and the returned shutdown does nothing.
func InitTracer(serviceName string, cfg config.TelemetryConfig, logger *slog.Logger) (ShutdownFunc, error) {
	if !cfg.Enabled {
		logger.Debug("tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	w, closeOutput, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	shutdown, err := initTracer(serviceName, w, cfg.SampleRatio, logger)
	if err != nil {
		closeOutput()
		return nil, err
	}
	return func(ctx context.Context) error {
		return errors.Join(shutdown(ctx), closeOutput())
	}, nil
}

func openOutput(output string) (io.Writer, func() error, error) {
	noop := func() error { return nil }
	switch output {
	case "", "stderr":
		return os.Stderr, noop, nil
	case "stdout":
		return os.Stdout, noop, nil
	}
	f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace output: %w", err)
	}
	return f, f.Close, nil
}

func initTracer(serviceName string, w io.Writer, ratio float64, logger *slog.Logger) (ShutdownFunc, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracing enabled",
		slog.String("service", serviceName),
		slog.Float64("sample_ratio", ratio),
	)
	return tp.Shutdown, nil
}
