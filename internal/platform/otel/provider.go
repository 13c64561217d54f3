// Package otel wires opt-in OpenTelemetry tracing for service commands.
package otel

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	envEndpoint = "LEASELOG_OTEL_ENDPOINT"
	envEnabled  = "LEASELOG_OTEL_ENABLED"
)

// Setup initialises OpenTelemetry tracing for the given service and returns
// a shutdown function that flushes pending spans.
//
// Tracing is opt-in: without an OTLP endpoint configured, or with
// LEASELOG_OTEL_ENABLED set to "false", no global provider is registered and
// the returned shutdown is a no-op.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	endpoint := tracingEndpoint()
	if endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, err
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

// tracingEndpoint returns the configured OTLP endpoint, or empty when
// tracing is disabled.
func tracingEndpoint() string {
	if strings.EqualFold(os.Getenv(envEnabled), "false") {
		return ""
	}
	return os.Getenv(envEndpoint)
}
