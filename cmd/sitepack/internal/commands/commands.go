package commands

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/sitepack/internal/config"
	"github.com/wolfeidau/sitepack/internal/pipeline"
	"github.com/wolfeidau/sitepack/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Version string
}

// ConfigFlags select and override the build configuration. They are shared
// by every command that resolves a plan.
type ConfigFlags struct {
	Config      string `help:"path to a YAML or JSON config file, the built-in profile for the mode when empty" type:"path" env:"SITEPACK_CONFIG"`
	Mode        string `help:"build mode (development or production)" default:"" env:"SITEPACK_MODE"`
	Context     string `help:"source directory, overrides the config" default:"" type:"path" env:"SITEPACK_CONTEXT"`
	Out         string `help:"output directory, overrides the config" default:"" env:"SITEPACK_OUT"`
	Sass        string `help:"path to the Dart Sass binary" default:"" env:"SITEPACK_SASS"`
	Concurrency int    `help:"maximum parallel transforms, GOMAXPROCS when zero" default:"0" env:"SITEPACK_CONCURRENCY"`
}

// load returns the resolver configuration with its output directory made
// absolute against the context.
func (f *ConfigFlags) load() (*pipeline.Config, error) {
	var (
		file *config.File
		err  error
	)
	if f.Config != "" {
		file, err = config.Load(f.Config)
	} else {
		mode := f.Mode
		if mode == "" {
			mode = string(pipeline.ModeDevelopment)
		}
		file, err = config.Profile(mode)
	}
	if err != nil {
		return nil, err
	}

	if f.Context != "" {
		file.Context = f.Context
	}
	if f.Out != "" {
		file.Output.Path = f.Out
	}

	cfg, err := file.Config(f.Mode)
	if err != nil {
		return nil, err
	}

	if !filepath.IsAbs(cfg.Output.Dir) {
		cfg.Output.Dir = filepath.Join(cfg.Context, cfg.Output.Dir)
	}
	return cfg, nil
}

// setupTracing starts the OpenTelemetry exporters and returns a function
// flushing them. Failures are logged and tracing is skipped.
func setupTracing(ctx context.Context, enabled bool, opts telemetry.Options) func() {
	if !enabled {
		return func() {}
	}

	log := zerolog.Ctx(ctx)
	log.Info().Msg("Tracing is enabled")
	shutdown, err := telemetry.InitTelemetry(ctx, opts)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
