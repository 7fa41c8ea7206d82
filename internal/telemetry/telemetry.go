package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// ShutdownFunc flushes and stops the exporters.
type ShutdownFunc func(context.Context) error

// Options describes the process being instrumented.
type Options struct {
	ServiceName string
	Version     string
	// Command is the CLI command, build or serve, recorded on the resource.
	Command string
	// Mode is the build mode, recorded on the resource.
	Mode string
	// MetricInterval is how often metrics are pushed. A build exits before
	// the first push, so only serve needs a short interval; shutdown always
	// flushes the final readings.
	MetricInterval time.Duration
	// SampleRatio is the fraction of root spans sampled, 1 when zero.
	SampleRatio float64
}

func (o Options) withDefaults() Options {
	if o.ServiceName == "" {
		o.ServiceName = "sitepack"
	}
	if o.MetricInterval <= 0 {
		o.MetricInterval = time.Minute
	}
	if o.SampleRatio <= 0 || o.SampleRatio > 1 {
		o.SampleRatio = 1
	}
	return o
}

// InitTelemetry initializes OpenTelemetry with OTLP exporters for metrics and traces.
// Configuration is read from environment variables:
// - OTEL_EXPORTER_OTLP_ENDPOINT: The OTLP endpoint
// - OTEL_EXPORTER_OTLP_HEADERS: Headers for authentication
// - OTEL_SERVICE_NAME: Service name override (defaults to opts.ServiceName)
//
// A build is short lived, so the returned shutdown must run before exit or
// the last batch of spans and the final metric readings are lost.
func InitTelemetry(ctx context.Context, opts Options) (ShutdownFunc, error) {
	opts = opts.withDefaults()

	res, err := newResource(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceShutdown, err := initTraceProvider(ctx, res, opts.SampleRatio)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize trace provider, continuing without tracing")
		traceShutdown = noop
	}

	metricShutdown, err := initMeterProvider(ctx, res, opts.MetricInterval)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize meter provider, continuing without metrics")
		metricShutdown = noop
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Debug().
		Str("service", opts.ServiceName).
		Str("version", opts.Version).
		Str("command", opts.Command).
		Dur("metric_interval", opts.MetricInterval).
		Msg("OpenTelemetry initialized")

	return func(ctx context.Context) error {
		var errs []error
		if err := traceShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace shutdown: %w", err))
		}
		if err := metricShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric shutdown: %w", err))
		}
		return errors.Join(errs...)
	}, nil
}

func newResource(ctx context.Context, opts Options) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(opts.Version),
	}
	if opts.Command != "" {
		attrs = append(attrs, attribute.String("sitepack.command", opts.Command))
	}
	if opts.Mode != "" {
		attrs = append(attrs, attribute.String("sitepack.mode", opts.Mode))
	}
	return resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithOSType(),
	)
}

func noop(context.Context) error { return nil }

func initTraceProvider(ctx context.Context, res *resource.Resource, ratio float64) (ShutdownFunc, error) {
	traceExporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter,
			sdktrace.WithBatchTimeout(time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func initMeterProvider(ctx context.Context, res *resource.Resource, interval time.Duration) (ShutdownFunc, error) {
	metricExporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				metricExporter,
				sdkmetric.WithInterval(interval),
			),
		),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	return mp.Shutdown, nil
}
