package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/sitepack/internal/logger"
	"github.com/wolfeidau/sitepack/internal/output"
	"github.com/wolfeidau/sitepack/internal/pipeline"
	"github.com/wolfeidau/sitepack/internal/telemetry"
	"github.com/wolfeidau/sitepack/internal/transform"
)

type BuildCmd struct {
	ConfigFlags `embed:""`

	Tracing     bool    `help:"enable tracing" default:"false" env:"SITEPACK_TRACING"`
	SampleRatio float64 `help:"fraction of traces sampled" default:"1" env:"SITEPACK_TRACE_SAMPLE_RATIO"`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting build")

	cfg, err := c.load()
	if err != nil {
		return err
	}

	flush := setupTracing(ctx, c.Tracing, telemetry.Options{
		Version:     globals.Version,
		Command:     "build",
		Mode:        string(cfg.Mode),
		SampleRatio: c.SampleRatio,
	})
	defer flush()

	plan, err := build(ctx, cfg, c.Sass, c.Concurrency)
	if err != nil {
		return err
	}

	log.Info().
		Str("out", plan.OutputDir).
		Int("artifacts", len(plan.Artifacts)).
		Int("bytes", plan.Size()).
		Msg("Build complete")
	return nil
}

// build resolves cfg and writes the plan. Nothing is written when resolution
// fails.
func build(ctx context.Context, cfg *pipeline.Config, sass string, concurrency int) (*pipeline.BuildPlan, error) {
	metrics := telemetry.GetMetrics()
	attrs := metric.WithAttributes(attribute.String("mode", string(cfg.Mode)))

	log := zerolog.Ctx(ctx).With().Str("build_id", uuid.NewString()).Str("mode", string(cfg.Mode)).Logger()
	ctx = log.WithContext(ctx)

	metrics.BuildsTotal.Add(ctx, 1, attrs)
	metrics.ActiveBuilds.Add(ctx, 1, attrs)
	defer metrics.ActiveBuilds.Add(ctx, -1, attrs)

	started := time.Now()
	plan, err := resolveAndWrite(ctx, cfg, sass, concurrency)
	metrics.BuildDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)
	if err != nil {
		metrics.BuildErrorsTotal.Add(ctx, 1, attrs)
		log.Error().Err(err).Msg("Build failed")
		return nil, err
	}

	log.Debug().Dur("duration", time.Since(started)).Msg("Build written")
	return plan, nil
}

func resolveAndWrite(ctx context.Context, cfg *pipeline.Config, sass string, concurrency int) (*pipeline.BuildPlan, error) {
	registry := transform.DefaultRegistry(sass)
	defer func() {
		if err := registry.Close(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to close transforms")
		}
	}()

	resolver := &pipeline.Resolver{Registry: registry, Concurrency: concurrency}
	plan, err := resolver.Resolve(ctx, cfg)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	err = output.Write(ctx, plan.OutputDir, plan.Files(), plan.Clean)
	telemetry.GetMetrics().WriteDuration.Record(ctx, float64(time.Since(started).Milliseconds()),
		metric.WithAttributes(attribute.Bool("clean", plan.Clean)))
	if err != nil {
		return nil, fmt.Errorf("failed to write build output: %w", err)
	}
	return plan, nil
}
