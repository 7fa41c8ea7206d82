package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/wolfeidau/sitepack/internal/graph"
	"github.com/wolfeidau/sitepack/internal/minify"
	"github.com/wolfeidau/sitepack/internal/output"
	"github.com/wolfeidau/sitepack/internal/page"
	"github.com/wolfeidau/sitepack/internal/telemetry"
	"github.com/wolfeidau/sitepack/internal/transform"
)

const manifestPath = "manifest.json"

// Resolver turns a Config into a BuildPlan. The zero value reads sources
// from the config's context directory with the esbuild graph walker and the
// built-in transforms.
type Resolver struct {
	FS       fs.FS
	Walker   graph.Walker
	Registry *transform.Registry
	// Minifier replaces the minifier named by the optimization policy.
	Minifier minify.Minifier
	// Concurrency bounds parallel transforms, GOMAXPROCS when zero.
	Concurrency int
}

// Resolve computes the complete build plan. It never writes to disk, so a
// failed build leaves any previous output untouched.
func (r *Resolver) Resolve(ctx context.Context, cfg *Config) (*BuildPlan, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.Resolve",
		trace.WithAttributes(attribute.String("mode", string(cfg.Mode))))
	defer span.End()

	started := time.Now()
	plan, err := r.resolve(ctx, cfg)

	telemetry.GetMetrics().ResolveDuration.Record(ctx, float64(time.Since(started).Milliseconds()),
		metric.WithAttributes(attribute.String("mode", string(cfg.Mode)), attribute.Bool("success", err == nil)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("artifacts", len(plan.Artifacts)), attribute.Int("shared", len(plan.Shared)))
	return plan, nil
}

// build holds the state of a single resolution.
type build struct {
	cfg         *Config
	env         *transform.Env
	rules       *RuleTable
	registry    *transform.Registry
	hasher      *contentHasher
	minifier    minify.Minifier
	graph       *graph.Graph
	templates   map[string]bool
	concurrency int

	mu      sync.Mutex
	modules map[string]*transform.Module
	routes  map[string]*Route

	// outputs maps emitted and extracted sources to their output path.
	outputs   map[string]string
	entries   map[string]EntryOutput
	artifacts []Artifact
	origins   []string
}

func (r *Resolver) resolve(ctx context.Context, cfg *Config) (*BuildPlan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := r.Registry
	if registry == nil {
		registry = transform.DefaultRegistry("")
		defer registry.Close()
	}
	for _, rule := range cfg.Rules {
		for _, use := range rule.Use {
			if _, ok := registry.Lookup(use.Name); !ok {
				return nil, fmt.Errorf("%w: rule %s: %w %q", ErrInvalidConfig, rule.label(), transform.ErrUnknownStage, use.Name)
			}
		}
	}

	hasher, err := newContentHasher(cfg.Output)
	if err != nil {
		return nil, err
	}

	fsys := r.FS
	if fsys == nil {
		fsys = os.DirFS(cfg.Context)
	}
	walker := r.Walker
	if walker == nil {
		walker = &graph.Esbuild{Dir: cfg.Context}
	}

	b := &build{
		cfg:         cfg,
		env:         &transform.Env{FS: fsys, Dir: cfg.Context, Production: cfg.Mode == ModeProduction},
		rules:       NewRuleTable(cfg.Rules),
		registry:    registry,
		hasher:      hasher,
		templates:   make(map[string]bool),
		concurrency: r.Concurrency,
		modules:     make(map[string]*transform.Module),
		routes:      make(map[string]*Route),
		outputs:     make(map[string]string),
		entries:     make(map[string]EntryOutput),
	}
	if b.concurrency <= 0 {
		b.concurrency = runtime.GOMAXPROCS(0)
	}

	switch {
	case !cfg.Optimization.Minify:
	case r.Minifier != nil:
		b.minifier = r.Minifier
	default:
		b.minifier, err = minify.New(cfg.Optimization.Minifier)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	entries := make(map[string]string, len(cfg.Entries))
	for _, e := range cfg.Entries {
		entries[e.Name] = graph.CleanPath(e.Source)
	}
	b.graph, err = walker.Walk(ctx, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to walk module graph: %w", err)
	}

	work := b.graph.Reachable()
	known := make(map[string]bool, len(work))
	for _, p := range work {
		known[p] = true
	}
	for _, p := range cfg.Pages {
		tpl := graph.CleanPath(p.Template)
		b.templates[tpl] = true
		if !known[tpl] {
			known[tpl] = true
			work = append(work, tpl)
		}
	}

	if err := b.transformAll(ctx, work); err != nil {
		return nil, err
	}

	// Barrier: every module is final from here on.
	chunks, usesShared := b.planChunks(ctx)

	if err := b.emitAssets(); err != nil {
		return nil, err
	}
	if err := b.extractStyles(); err != nil {
		return nil, err
	}
	if err := b.writeChunks(chunks, usesShared); err != nil {
		return nil, err
	}
	if err := b.renderPages(); err != nil {
		return nil, err
	}

	return b.finish(ctx, chunks)
}

// transformAll runs rule chains in parallel waves. References discovered by
// one wave are transformed in the next.
func (b *build) transformAll(ctx context.Context, work []string) error {
	seen := make(map[string]bool, len(work))
	for _, p := range work {
		seen[p] = true
	}

	for wave := 1; len(work) > 0; wave++ {
		zerolog.Ctx(ctx).Debug().Int("wave", wave).Int("modules", len(work)).Msg("Transforming modules")
		telemetry.GetMetrics().TransformWaves.Add(ctx, 1)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.concurrency)
		for _, p := range work {
			g.Go(func() error {
				return b.transformModule(gctx, p)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		var next []string
		for _, p := range work {
			for _, ref := range b.modules[p].Refs {
				if !seen[ref] {
					seen[ref] = true
					next = append(next, ref)
				}
			}
		}
		sort.Strings(next)
		work = next
	}

	return nil
}

func (b *build) transformModule(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	started := time.Now()

	content, err := fs.ReadFile(b.env.FS, p)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", p, err)
	}

	m := &transform.Module{Path: p, Kind: transform.KindFor(p), Content: content}
	route := &Route{Path: p}

	rule, ok := b.rules.Match(p)
	switch {
	case ok:
		route.Rule = rule.label()
		for _, use := range rule.Use {
			stage, found := b.registry.Lookup(use.Name)
			if !found {
				return &TransformFailureError{Path: p, Transform: use.Name, Err: transform.ErrUnknownStage}
			}
			if err := stage.Apply(ctx, b.env, m, use.Options); err != nil {
				return &TransformFailureError{Path: p, Transform: use.Name, Err: err}
			}
			route.Transforms = append(route.Transforms, use.Name)
		}
	case isDefaultType(p), b.templates[p]:
		// handled without a rule
	default:
		return &UnhandledFileTypeError{Path: p}
	}
	route.Disposition = m.Disposition.String()

	zerolog.Ctx(ctx).Debug().
		Str("path", p).
		Str("rule", route.Rule).
		Strs("transforms", route.Transforms).
		Str("disposition", route.Disposition).
		Msg("Module resolved")

	metrics := telemetry.GetMetrics()
	metrics.ModulesTransform.Add(ctx, 1, metric.WithAttributes(attribute.String("disposition", route.Disposition)))
	metrics.TransformDuration.Record(ctx, float64(time.Since(started).Milliseconds()))

	b.mu.Lock()
	defer b.mu.Unlock()
	b.modules[p] = m
	b.routes[p] = route
	return nil
}

// isDefaultType reports whether a file is bundled as is without a rule.
func isDefaultType(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".js", ".mjs", ".cjs", ".jsx", ".json":
		return true
	}
	return false
}

// planChunks computes chunk membership and hoists shared modules. The
// returned map records which entries lost modules to the shared chunk.
func (b *build) planChunks(ctx context.Context) ([]*chunk, map[string]bool) {
	order := make([]string, 0, len(b.cfg.Entries))
	members := make(map[string][]string, len(b.cfg.Entries))
	sources := make(map[string]bool, len(b.cfg.Entries))
	for _, e := range b.cfg.Entries {
		order = append(order, e.Name)
		members[e.Name] = append([]string(nil), b.graph.Entries[e.Name]...)
		sources[graph.CleanPath(e.Source)] = true
	}

	before := make(map[string]int, len(members))
	for name, mods := range members {
		before[name] = len(mods)
	}

	shared := hoist(b.cfg.Optimization.SharedChunk, order, members, sources)

	usesShared := make(map[string]bool)
	chunks := make([]*chunk, 0, len(order)+1)
	for _, e := range b.cfg.Entries {
		mods := members[e.Name]
		sort.Strings(mods)
		chunks = append(chunks, &chunk{name: e.Name, entry: graph.CleanPath(e.Source), modules: mods})
		usesShared[e.Name] = len(mods) < before[e.Name]
	}

	if len(shared) > 0 {
		name := b.cfg.Optimization.SharedChunk.name()
		chunks = append(chunks, &chunk{name: name, modules: shared})

		zerolog.Ctx(ctx).Debug().Str("chunk", name).Strs("modules", shared).Msg("Hoisted shared modules")
		telemetry.GetMetrics().ModulesHoisted.Add(ctx, int64(len(shared)))
	}

	for _, c := range chunks {
		for _, p := range c.modules {
			if route, ok := b.routes[p]; ok {
				route.Chunks = append(route.Chunks, c.name)
			}
		}
	}

	return chunks, usesShared
}

// emitAssets names emitted files. Assets referencing other assets are named
// after their targets.
func (b *build) emitAssets() error {
	pending := b.byDisposition(transform.Emitted)

	for len(pending) > 0 {
		var rest []*transform.Module
		for _, m := range pending {
			if !b.refsNamed(m) {
				rest = append(rest, m)
				continue
			}

			stem, ext := splitName(m.Path)
			provisional := cleanOutput(interpolate(m.EmitName, stem, ext, noHash))
			content, err := b.substitute(m.Path, provisional, m.Content)
			if err != nil {
				return err
			}

			out := cleanOutput(interpolate(m.EmitName, stem, ext, func() string { return b.hasher.Sum(content) }))
			b.outputs[m.Path] = out
			b.add(Artifact{Path: out, Kind: ArtifactAsset, Content: content, Sources: []string{m.Path}}, m.Path)
		}

		if len(rest) == len(pending) {
			paths := make([]string, len(rest))
			for i, m := range rest {
				paths[i] = m.Path
			}
			return fmt.Errorf("circular references between assets: %s", strings.Join(paths, ", "))
		}
		pending = rest
	}

	return nil
}

// refsNamed reports whether every emitted asset m refers to has a name.
func (b *build) refsNamed(m *transform.Module) bool {
	for _, ref := range m.Refs {
		target, ok := b.modules[ref]
		if !ok || target.Disposition != transform.Emitted {
			continue
		}
		if _, named := b.outputs[ref]; !named {
			return false
		}
	}
	return true
}

// extractStyles writes each extracted stylesheet once, named by its stem.
func (b *build) extractStyles() error {
	pattern := b.cfg.Output.CSSFilename

	for _, m := range b.byDisposition(transform.Extracted) {
		stem, _ := splitName(m.Path)
		provisional := cleanOutput(interpolate(pattern, stem, "css", noHash))

		content, err := b.substitute(m.Path, provisional, m.Content)
		if err != nil {
			return err
		}
		if content, err = b.minify(provisional, minify.MediaCSS, content); err != nil {
			return err
		}

		out := cleanOutput(interpolate(pattern, stem, "css", func() string { return b.hasher.Sum(content) }))
		b.outputs[m.Path] = out
		b.add(Artifact{Path: out, Kind: ArtifactStylesheet, Content: content, Sources: []string{m.Path}}, m.Path)
	}

	for _, e := range b.cfg.Entries {
		var styles []string
		for _, p := range b.graph.Entries[e.Name] {
			if m := b.modules[p]; m.Disposition == transform.Extracted {
				styles = append(styles, b.outputs[p])
			}
		}
		b.entries[e.Name] = EntryOutput{Styles: styles}
	}

	return nil
}

func (b *build) writeChunks(chunks []*chunk, usesShared map[string]bool) error {
	bodies := make(map[string][]byte)
	for _, c := range chunks {
		for _, p := range c.modules {
			if _, ok := bodies[p]; ok {
				continue
			}
			body, err := factory(b.modules[p])
			if err != nil {
				return err
			}
			bodies[p] = body
		}
	}

	names := make(map[string]string, len(chunks))
	for _, c := range chunks {
		content, err := assemble(c, bodies, b.graph.ImportMap)
		if err != nil {
			return fmt.Errorf("failed to assemble chunk %s: %w", c.name, err)
		}
		if content, err = b.substitute(c.name, "", content); err != nil {
			return err
		}
		provisional := cleanOutput(interpolate(b.cfg.Output.Filename, c.name, "js", noHash))
		if content, err = b.minify(provisional, minify.MediaJS, content); err != nil {
			return err
		}

		out := cleanOutput(interpolate(b.cfg.Output.Filename, c.name, "js", func() string { return b.hasher.Sum(content) }))
		names[c.name] = out
		b.add(Artifact{Path: out, Kind: ArtifactChunk, Content: content, Sources: c.modules}, "chunk "+c.name)
	}

	shared := ""
	if sc := b.cfg.Optimization.SharedChunk; sc != nil {
		shared = names[sc.name()]
	}
	for _, e := range b.cfg.Entries {
		eo := b.entries[e.Name]
		if shared != "" && usesShared[e.Name] {
			eo.Scripts = append(eo.Scripts, shared)
		}
		eo.Scripts = append(eo.Scripts, names[e.Name])
		b.entries[e.Name] = eo
	}

	return nil
}

// renderPages generates every page from its template, loading the outputs
// of its entries. A page without chunks loads every entry.
func (b *build) renderPages() error {
	for _, p := range b.cfg.Pages {
		tpl := b.modules[graph.CleanPath(p.Template)]
		out := pageFilename(p)

		chunks := p.Chunks
		if len(chunks) == 0 {
			for _, e := range b.cfg.Entries {
				chunks = append(chunks, e.Name)
			}
		}

		assets := page.Assets{Title: p.Title}
		seen := make(map[string]bool)
		for _, name := range chunks {
			eo := b.entries[name]
			for _, s := range eo.Styles {
				if !seen[s] {
					seen[s] = true
					assets.Styles = append(assets.Styles, relativeURL(out, s))
				}
			}
			for _, s := range eo.Scripts {
				if !seen[s] {
					seen[s] = true
					assets.Scripts = append(assets.Scripts, relativeURL(out, s))
				}
			}
		}

		content, err := page.Render(tpl.Content, assets)
		if err != nil {
			return &TransformFailureError{Path: tpl.Path, Transform: "page", Err: err}
		}
		if content, err = b.substitute(tpl.Path, out, content); err != nil {
			return err
		}
		if p.Minify {
			if content, err = minify.HTML(content); err != nil {
				return &MinifyError{Path: out, Minifier: "tdewolff", Err: err}
			}
		}

		b.add(Artifact{Path: out, Kind: ArtifactPage, Content: content, Sources: []string{tpl.Path}}, tpl.Path)
	}

	return nil
}

// finish adds the manifest and compressed siblings, then validates the plan.
func (b *build) finish(ctx context.Context, chunks []*chunk) (*BuildPlan, error) {
	plan := &BuildPlan{
		Mode:      b.cfg.Mode,
		OutputDir: b.cfg.Output.Dir,
		Clean:     b.cfg.Output.Clean,
		Entries:   b.entries,
		Assets:    b.outputs,
	}
	if len(chunks) > len(b.cfg.Entries) {
		plan.Shared = chunks[len(chunks)-1].modules
	}

	data, err := plan.manifest()
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	b.add(Artifact{Path: manifestPath, Kind: ArtifactManifest, Content: data}, "manifest")

	for i := range b.artifacts {
		a := b.artifacts[i]
		switch a.Kind {
		case ArtifactChunk, ArtifactStylesheet, ArtifactPage:
		default:
			continue
		}
		for _, enc := range b.cfg.Output.Compress {
			compressed, err := output.Compress(enc, a.Content)
			if err != nil {
				return nil, fmt.Errorf("failed to compress %s: %w", a.Path, err)
			}
			b.add(Artifact{
				Path:    a.Path + output.Encodings[enc],
				Kind:    ArtifactCompressed,
				Content: compressed,
				Sources: []string{a.Path},
			}, b.origins[i])
		}
	}

	if err := b.checkCollisions(); err != nil {
		return nil, err
	}

	sort.Slice(b.artifacts, func(i, j int) bool { return b.artifacts[i].Path < b.artifacts[j].Path })
	plan.Artifacts = b.artifacts

	plan.Routes = make([]Route, 0, len(b.routes))
	for _, route := range b.routes {
		plan.Routes = append(plan.Routes, *route)
	}
	sort.Slice(plan.Routes, func(i, j int) bool { return plan.Routes[i].Path < plan.Routes[j].Path })

	metrics := telemetry.GetMetrics()
	for _, a := range plan.Artifacts {
		attrs := metric.WithAttributes(attribute.String("kind", string(a.Kind)))
		metrics.ArtifactsTotal.Add(ctx, 1, attrs)
		metrics.ArtifactBytes.Add(ctx, int64(a.Size), attrs)
	}

	zerolog.Ctx(ctx).Info().
		Str("mode", string(plan.Mode)).
		Int("modules", len(plan.Routes)).
		Int("artifacts", len(plan.Artifacts)).
		Int("shared", len(plan.Shared)).
		Int("bytes", plan.Size()).
		Msg("Build plan resolved")

	return plan, nil
}

// checkCollisions fails when two artifacts share an output path.
func (b *build) checkCollisions() error {
	byPath := make(map[string][]string)
	var paths []string
	for i, a := range b.artifacts {
		if _, ok := byPath[a.Path]; !ok {
			paths = append(paths, a.Path)
		}
		byPath[a.Path] = append(byPath[a.Path], b.origins[i])
	}
	sort.Strings(paths)

	for _, p := range paths {
		if origins := byPath[p]; len(origins) > 1 {
			sort.Strings(origins)
			return &OutputCollisionError{Path: p, Sources: origins}
		}
	}
	return nil
}

func (b *build) add(a Artifact, origin string) {
	a.Size = len(a.Content)
	b.artifacts = append(b.artifacts, a)
	b.origins = append(b.origins, origin)
}

// substitute replaces reference placeholders in content owned by owner.
// URLs are relative to the directory of from, or output root paths when
// from is empty.
func (b *build) substitute(owner, from string, content []byte) ([]byte, error) {
	out, err := transform.ReplaceRefs(content, func(ref string) (string, error) {
		target, ok := b.outputs[ref]
		if !ok {
			return "", fmt.Errorf("%s has no output file", ref)
		}
		if from == "" {
			return target, nil
		}
		return relativeURL(from, target), nil
	})
	if err != nil {
		return nil, &TransformFailureError{Path: owner, Transform: "references", Err: err}
	}
	return out, nil
}

func (b *build) minify(name, mediaType string, content []byte) ([]byte, error) {
	if b.minifier == nil {
		return content, nil
	}
	out, err := b.minifier.Minify(mediaType, content)
	if err != nil {
		return nil, &MinifyError{Path: name, Minifier: b.minifier.Name(), Err: err}
	}
	return out, nil
}

func (b *build) byDisposition(d transform.Disposition) []*transform.Module {
	var mods []*transform.Module
	for _, m := range b.modules {
		if m.Disposition == d && !b.templates[m.Path] {
			mods = append(mods, m)
		}
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Path < mods[j].Path })
	return mods
}

func noHash() string { return "" }

func cleanOutput(p string) string {
	return strings.TrimPrefix(path.Clean(p), "/")
}
