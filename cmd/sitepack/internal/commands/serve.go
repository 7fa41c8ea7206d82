package commands

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	sphttp "github.com/wolfeidau/sitepack/internal/http"
	"github.com/wolfeidau/sitepack/internal/livereload"
	"github.com/wolfeidau/sitepack/internal/logger"
	"github.com/wolfeidau/sitepack/internal/output"
	"github.com/wolfeidau/sitepack/internal/pipeline"
	"github.com/wolfeidau/sitepack/internal/telemetry"
	"github.com/wolfeidau/sitepack/internal/watch"
)

type ServeCmd struct {
	ConfigFlags `embed:""`

	Listen      string   `help:"HTTP server listen address" default:"0.0.0.0:9000" env:"SITEPACK_LISTEN"`
	CORSOrigins []string `help:"allowed CORS origins" default:"*" env:"SITEPACK_CORS_ORIGINS"`
	Watch       bool     `help:"rebuild on source changes and reload open pages" default:"true" negatable:"" env:"SITEPACK_WATCH"`
	Tracing     bool     `help:"enable tracing" default:"false" env:"SITEPACK_TRACING"`
	SampleRatio float64  `help:"fraction of traces sampled" default:"1" env:"SITEPACK_TRACE_SAMPLE_RATIO"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := c.load()
	if err != nil {
		return err
	}

	flush := setupTracing(ctx, c.Tracing, telemetry.Options{
		Version:        globals.Version,
		Command:        "serve",
		Mode:           string(cfg.Mode),
		MetricInterval: 10 * time.Second,
		SampleRatio:    c.SampleRatio,
	})
	defer flush()

	plan, err := build(ctx, cfg, c.Sass, c.Concurrency)
	if err != nil {
		return err
	}

	var hub *livereload.Hub
	if c.Watch {
		hub = livereload.NewHub(log)
		go c.watch(ctx, cfg, hub)
	}

	handler, err := newSiteHandler(plan.OutputDir, plan.Mode, c.CORSOrigins, hub, log)
	if err != nil {
		return err
	}

	srv := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Str("dir", plan.OutputDir).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// watch rebuilds whenever a source changes. A failed rebuild keeps the
// previous output and is reported to the browsers.
func (c *ServeCmd) watch(ctx context.Context, cfg *pipeline.Config, hub *livereload.Hub) {
	log := zerolog.Ctx(ctx)
	w := &watch.Watcher{Dir: cfg.Context, Ignore: []string{cfg.Output.Dir}}

	err := w.Run(ctx, func(ctx context.Context, paths []string) {
		log.Info().Strs("paths", paths).Msg("Sources changed, rebuilding")
		if _, err := build(ctx, cfg, c.Sass, c.Concurrency); err != nil {
			hub.Broadcast(livereload.Message{Type: "error", Error: err.Error()})
			return
		}
		hub.Broadcast(livereload.Message{Type: "reload"})
	})
	if err != nil {
		log.Error().Err(err).Msg("Watcher stopped")
	}
}

// newSiteHandler serves a build output directory. Precompressed siblings are
// preferred when the client accepts them, everything else is compressed on
// the fly. Development output is never cached. A non-nil hub injects the
// live reload client into pages.
func newSiteHandler(dir string, mode pipeline.Mode, origins []string, hub *livereload.Hub, log zerolog.Logger) (http.Handler, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open output directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("output %s is not a directory", dir)
	}

	gzip, err := gzhttp.NewWrapper(gzhttp.MinSize(512))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip handler: %w", err)
	}
	compress := func(h http.Handler) http.Handler { return gzip(h) }

	middleware := []func(http.Handler) http.Handler{
		sphttp.ClientIPMiddleware(),
		logger.Requests(log),
		countRequests,
		cors.New(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		}).Handler,
	}
	if mode != pipeline.ModeProduction {
		middleware = append(middleware, sphttp.NoCache())
	}
	middleware = append(middleware, compress)

	var site http.Handler = &precompressed{dir: dir, files: http.FileServer(http.Dir(dir))}
	if hub == nil {
		return otelhttp.NewHandler(sphttp.Chain(site, middleware...), "sitepack.serve"), nil
	}

	// The socket skips the middleware, whose writers cannot be hijacked.
	mux := http.NewServeMux()
	mux.Handle(livereload.SocketPath, hub)
	mux.Handle("/", otelhttp.NewHandler(sphttp.Chain(hub.Handler(dir, site), middleware...), "sitepack.serve"))
	return mux, nil
}

// precompressed serves file.zst or file.gz in place of file when the
// client accepts that encoding and the sibling exists.
type precompressed struct {
	dir   string
	files http.Handler
}

func (p *precompressed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	if strings.HasSuffix(name, "/") || name == "/" {
		name = path.Join(name, "index.html")
	}

	accept := r.Header.Get("Accept-Encoding")
	for _, enc := range []string{"zstd", "gzip"} {
		if !strings.Contains(accept, enc) {
			continue
		}
		sibling := filepath.Join(p.dir, filepath.FromSlash(name)+output.Encodings[enc])
		f, err := os.Open(sibling)
		if err != nil {
			continue
		}
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			f.Close()
			continue
		}

		if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.Header().Set("Content-Encoding", enc)
		w.Header().Add("Vary", "Accept-Encoding")
		http.ServeContent(w, r, name, info.ModTime(), f)
		f.Close()
		return
	}

	p.files.ServeHTTP(w, r)
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		telemetry.GetMetrics().RequestsTotal.Add(r.Context(), 1,
			metric.WithAttributes(attribute.String("method", r.Method)))
		next.ServeHTTP(w, r)
	})
}
