package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/wolfeidau/sitepack"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Build metrics
	BuildsTotal       metric.Int64Counter
	BuildErrorsTotal  metric.Int64Counter
	BuildDuration     metric.Float64Histogram
	ResolveDuration   metric.Float64Histogram
	WriteDuration     metric.Float64Histogram
	ActiveBuilds      metric.Int64UpDownCounter
	TransformWaves    metric.Int64Counter
	ModulesHoisted    metric.Int64Counter
	ModulesTransform  metric.Int64Counter
	TransformDuration metric.Float64Histogram

	// Artifact metrics
	ArtifactsTotal metric.Int64Counter
	ArtifactBytes  metric.Int64Counter

	// Dev server metrics
	RequestsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// Tracer returns the tracer used for build spans.
func Tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(instrumentationName)
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(instrumentationName)

	m := &Metrics{}

	// Build metrics
	m.BuildsTotal, _ = meter.Int64Counter(
		"sitepack.builds.total",
		metric.WithDescription("Total number of builds started"),
		metric.WithUnit("{build}"),
	)

	m.BuildErrorsTotal, _ = meter.Int64Counter(
		"sitepack.builds.errors.total",
		metric.WithDescription("Total number of failed builds"),
		metric.WithUnit("{error}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"sitepack.builds.duration",
		metric.WithDescription("Duration of complete builds including writes"),
		metric.WithUnit("ms"),
	)

	m.ResolveDuration, _ = meter.Float64Histogram(
		"sitepack.resolve.duration",
		metric.WithDescription("Duration of resolving a config into a build plan"),
		metric.WithUnit("ms"),
	)

	m.WriteDuration, _ = meter.Float64Histogram(
		"sitepack.write.duration",
		metric.WithDescription("Duration of writing a build plan to disk"),
		metric.WithUnit("ms"),
	)

	m.ActiveBuilds, _ = meter.Int64UpDownCounter(
		"sitepack.builds.active",
		metric.WithDescription("Number of builds in progress"),
		metric.WithUnit("{build}"),
	)

	m.TransformWaves, _ = meter.Int64Counter(
		"sitepack.transform.waves.total",
		metric.WithDescription("Total number of parallel transform waves"),
		metric.WithUnit("{wave}"),
	)

	m.ModulesHoisted, _ = meter.Int64Counter(
		"sitepack.modules.hoisted.total",
		metric.WithDescription("Total number of modules moved into a shared chunk"),
		metric.WithUnit("{module}"),
	)

	m.ModulesTransform, _ = meter.Int64Counter(
		"sitepack.modules.transformed.total",
		metric.WithDescription("Total number of modules run through a rule chain"),
		metric.WithUnit("{module}"),
	)

	m.TransformDuration, _ = meter.Float64Histogram(
		"sitepack.modules.transform.duration",
		metric.WithDescription("Duration of a single module's transform chain"),
		metric.WithUnit("ms"),
	)

	// Artifact metrics
	m.ArtifactsTotal, _ = meter.Int64Counter(
		"sitepack.artifacts.total",
		metric.WithDescription("Total number of artifacts planned"),
		metric.WithUnit("{artifact}"),
	)

	m.ArtifactBytes, _ = meter.Int64Counter(
		"sitepack.artifacts.bytes",
		metric.WithDescription("Total size of planned artifacts"),
		metric.WithUnit("By"),
	)

	// Dev server metrics
	m.RequestsTotal, _ = meter.Int64Counter(
		"sitepack.serve.requests.total",
		metric.WithDescription("Total number of requests handled by the dev server"),
		metric.WithUnit("{request}"),
	)

	return m
}
