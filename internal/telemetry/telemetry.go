// Package telemetry wires kinlink's OpenTelemetry tracer and meter
// providers. Every component gets its tracer/meter from the global
// delegating provider via Tracer/Meter at package-init time, so
// instruments work (as no-ops) even before Init runs: callers always
// get the global provider, which is a no-op until telemetry.Init() is
// called.
package telemetry

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a tracer scoped to name (typically a package path).
func Tracer(name string) trace.Tracer { return otel.Tracer(name) }

// Meter returns a meter scoped to name.
func Meter(name string) metric.Meter { return otel.Meter(name) }

// Options configures Init.
type Options struct {
	// Enabled turns on real exporters; when false Init is a no-op and
	// every Tracer/Meter call keeps returning the SDK's default no-op
	// implementation.
	Enabled bool
	// Writer receives the stdout span/metric exporters' output.
	// Defaults to os.Stderr so it never interleaves with CLI output.
	Writer io.Writer
}

// Init installs real tracer/metric providers backed by the stdout
// exporters, so traces and metrics are visible without requiring a
// collector. The returned shutdown func must be called before process
// exit to flush buffered spans/metrics.
func Init(ctx context.Context, opts Options) (shutdown func(context.Context) error, err error) {
	if !opts.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	otel.SetTracerProvider(tp)

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return err
		}
		return mp.Shutdown(ctx)
	}, nil
}
