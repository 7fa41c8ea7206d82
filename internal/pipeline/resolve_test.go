package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/sitepack/internal/graph"
	"github.com/wolfeidau/sitepack/internal/transform"
)

const (
	globalCSS    = "body {\n  margin: 0;\n  color: #333;\n}\n"
	logoPNG      = "\x89PNG\r\n\x1a\nlogo"
	indexPage    = "<!DOCTYPE html>\n<html lang=\"en\">\n<head><meta charset=\"utf-8\"><title>Site</title></head>\n<body><h1>Home</h1></body>\n</html>\n"
	aboutPage    = "<!DOCTYPE html>\n<html>\n<head><title>About</title></head>\n<body><img src=\"../assets/logo.png\" alt=\"logo\"></body>\n</html>\n"
	sharedModule = "export const c = 42;\n"
)

// sharedSite is two entries importing one module and one global stylesheet.
func sharedSite() (fstest.MapFS, graph.Static) {
	fsys := fstest.MapFS{
		"src/a.js":       {Data: []byte("import { c } from \"src/c.js\";\nimport \"src/styles.css\";\nconsole.log(\"a\", c);\n")},
		"src/b.js":       {Data: []byte("import { c } from \"src/c.js\";\nimport \"src/styles.css\";\nconsole.log(\"b\", c);\n")},
		"src/c.js":       {Data: []byte(sharedModule)},
		"src/styles.css": {Data: []byte(globalCSS)},
		"src/index.html": {Data: []byte(indexPage)},
	}
	walker := graph.Static{
		"src/a.js": {"src/c.js", "src/styles.css"},
		"src/b.js": {"src/c.js", "src/styles.css"},
	}
	return fsys, walker
}

func stylesheetRules() []Rule {
	return []Rule{
		{
			Name:    "css",
			Test:    MustCompilePattern(`/\.css$/`),
			Exclude: MustCompilePattern(`/styles\.css$/`),
			Use:     []TransformRef{{Name: "css-loader"}, {Name: "style-loader"}},
		},
		{
			Name: "global css",
			Test: MustCompilePattern(`/styles\.css$/`),
			Use:  []TransformRef{{Name: "css-loader"}, {Name: "mini-css-extract-loader"}},
		},
		{
			Name: "images",
			Test: MustCompilePattern(`/\.(jpe?g|png|gif|svg|webp)$/i`),
			Use:  []TransformRef{{Name: "file-loader", Options: transform.Options{"name": "assets/[name].[ext]"}}},
		},
		{
			Name: "html",
			Test: MustCompilePattern(`/\.html$/`),
			Use:  []TransformRef{{Name: "html-loader"}},
		},
	}
}

func developmentConfig() *Config {
	return &Config{
		Mode:    ModeDevelopment,
		Entries: []Entry{{Name: "js", Source: "./src/a.js"}, {Name: "vanilla", Source: "./src/b.js"}},
		Rules:   stylesheetRules(),
		Output: OutputSpec{
			Dir:         "dist",
			Filename:    "[name].bundle.js",
			CSSFilename: "[name].css",
		},
		Optimization: OptimizationPolicy{SharedChunk: &SharedChunkPolicy{Name: "common"}},
		Pages:        []Page{{Template: "./src/index.html", Filename: "./index.html", Chunks: []string{"js"}}},
	}
}

func productionConfig() *Config {
	cfg := developmentConfig()
	cfg.Mode = ModeProduction
	cfg.Output.Filename = "[name].[contenthash].js"
	cfg.Output.CSSFilename = "[name].[contenthash].css"
	cfg.Output.HashFunction = "sha256"
	cfg.Output.Clean = true
	cfg.Optimization.Minify = true
	cfg.Pages[0].Minify = true
	return cfg
}

func newResolver(t *testing.T, fsys fstest.MapFS, walker graph.Walker) *Resolver {
	registry := transform.DefaultRegistry("")
	t.Cleanup(func() { _ = registry.Close() })
	return &Resolver{FS: fsys, Walker: walker, Registry: registry, Concurrency: 4}
}

func artifact(t *testing.T, plan *BuildPlan, p string) Artifact {
	t.Helper()
	a, ok := plan.Artifact(p)
	require.True(t, ok, "missing artifact %s in %v", p, plan.Paths())
	return a
}

func TestResolve_SharedChunkScenario(t *testing.T) {
	fsys, walker := sharedSite()

	plan, err := newResolver(t, fsys, walker).Resolve(context.Background(), developmentConfig())
	require.NoError(t, err)

	require.Equal(t, []string{
		"common.bundle.js",
		"index.html",
		"js.bundle.js",
		"manifest.json",
		"styles.css",
		"vanilla.bundle.js",
	}, plan.Paths())

	common := artifact(t, plan, "common.bundle.js")
	require.Equal(t, ArtifactChunk, common.Kind)
	require.Equal(t, []string{"src/c.js", "src/styles.css"}, common.Sources)
	require.Contains(t, string(common.Content), `__sitepack.d("src/c.js"`)
	require.Contains(t, string(common.Content), `module.exports = "styles.css";`)
	require.NotContains(t, string(common.Content), "__sitepack.r(")
	require.Equal(t, []string{"src/c.js", "src/styles.css"}, plan.Shared)

	for name, source := range map[string]string{"js.bundle.js": "src/a.js", "vanilla.bundle.js": "src/b.js"} {
		a := artifact(t, plan, name)
		require.Equal(t, []string{source}, a.Sources, name)
		require.NotContains(t, string(a.Content), `__sitepack.d("src/c.js"`, name)
		require.NotContains(t, string(a.Content), "margin: 0", "stylesheet is not inlined into %s", name)
		require.True(t, bytes.HasSuffix(a.Content, []byte(`__sitepack.r("`+source+"\");\n")), name)
	}

	styles := artifact(t, plan, "styles.css")
	require.Equal(t, ArtifactStylesheet, styles.Kind)
	require.Equal(t, globalCSS, string(styles.Content))

	require.Equal(t, EntryOutput{Scripts: []string{"common.bundle.js", "js.bundle.js"}, Styles: []string{"styles.css"}}, plan.Entries["js"])
	require.Equal(t, EntryOutput{Scripts: []string{"common.bundle.js", "vanilla.bundle.js"}, Styles: []string{"styles.css"}}, plan.Entries["vanilla"])
	require.Equal(t, map[string]string{"src/styles.css": "styles.css"}, plan.Assets)

	page := string(artifact(t, plan, "index.html").Content)
	require.Contains(t, page, `<link href="styles.css" rel="stylesheet"/>`)
	require.Contains(t, page, `src="common.bundle.js"`)
	require.Contains(t, page, `src="js.bundle.js"`)
	require.NotContains(t, page, "vanilla.bundle.js")
	require.Less(t, strings.Index(page, "common.bundle.js"), strings.Index(page, "js.bundle.js\""))

	var m manifest
	require.NoError(t, json.Unmarshal(artifact(t, plan, "manifest.json").Content, &m))
	require.Equal(t, plan.Entries, m.Entries)
}

func TestResolve_SingleEntryModulesAreNotHoisted(t *testing.T) {
	fsys, _ := sharedSite()
	walker := graph.Static{
		"src/a.js": {"src/c.js", "src/styles.css"},
		"src/b.js": {},
	}

	plan, err := newResolver(t, fsys, walker).Resolve(context.Background(), developmentConfig())
	require.NoError(t, err)

	_, ok := plan.Artifact("common.bundle.js")
	require.False(t, ok)
	require.Empty(t, plan.Shared)

	js := artifact(t, plan, "js.bundle.js")
	require.Equal(t, []string{"src/a.js", "src/c.js", "src/styles.css"}, js.Sources)
	require.Equal(t, []string{"js.bundle.js"}, plan.Entries["js"].Scripts)
	require.Equal(t, []string{"vanilla.bundle.js"}, plan.Entries["vanilla"].Scripts)
	require.Empty(t, plan.Entries["vanilla"].Styles)
}

func TestResolve_FirstMatchWins(t *testing.T) {
	fsys, walker := sharedSite()
	cfg := developmentConfig()
	cfg.Rules = []Rule{
		{Name: "inline css", Test: MustCompilePattern(`\.css$`), Use: []TransformRef{{Name: "css"}, {Name: "style"}}},
		{Name: "global css", Test: MustCompilePattern(`styles\.css$`), Use: []TransformRef{{Name: "css"}, {Name: "extract"}}},
	}

	plan, err := newResolver(t, fsys, walker).Resolve(context.Background(), cfg)
	require.NoError(t, err)

	_, ok := plan.Artifact("styles.css")
	require.False(t, ok, "the earlier rule inlines the stylesheet")
	require.Contains(t, string(artifact(t, plan, "common.bundle.js").Content), "margin: 0")

	route := findRoute(t, plan, "src/styles.css")
	require.Equal(t, "inline css", route.Rule)
	require.Equal(t, []string{"css", "style"}, route.Transforms)
	require.Equal(t, "inline", route.Disposition)

	// An explicit priority overrides declaration order.
	cfg.Rules[1].Priority = 1
	plan, err = newResolver(t, fsys, walker).Resolve(context.Background(), cfg)
	require.NoError(t, err)

	route = findRoute(t, plan, "src/styles.css")
	require.Equal(t, "global css", route.Rule)
	require.Equal(t, "extracted", route.Disposition)
	artifact(t, plan, "styles.css")
}

func TestResolve_ExclusionFallsThrough(t *testing.T) {
	fsys, walker := sharedSite()
	cfg := developmentConfig()

	plan, err := newResolver(t, fsys, walker).Resolve(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, "global css", findRoute(t, plan, "src/styles.css").Rule)

	// Without the global rule the excluded file has nowhere to go.
	cfg.Rules = cfg.Rules[:1]
	_, err = newResolver(t, fsys, walker).Resolve(context.Background(), cfg)
	require.ErrorIs(t, err, ErrUnhandledFileType)

	var unhandled *UnhandledFileTypeError
	require.True(t, errors.As(err, &unhandled))
	require.Equal(t, "src/styles.css", unhandled.Path)
}

func TestResolve_DefaultTypes(t *testing.T) {
	fsys := fstest.MapFS{
		"src/a.js":      {Data: []byte("const data = require(\"src/data.json\");\nconsole.log(data.name);\n")},
		"src/data.json": {Data: []byte("{\"name\": \"sitepack\"}\n")},
		"src/notes.txt": {Data: []byte("notes")},
	}
	cfg := developmentConfig()
	cfg.Entries = cfg.Entries[:1]
	cfg.Pages = nil

	plan, err := newResolver(t, fsys, graph.Static{"src/a.js": {"src/data.json"}}).Resolve(context.Background(), cfg)
	require.NoError(t, err)

	js := string(artifact(t, plan, "js.bundle.js").Content)
	require.Contains(t, js, `module.exports = {"name": "sitepack"};`)
	require.Contains(t, js, `{"src/data.json":"src/data.json"}`)

	_, err = newResolver(t, fsys, graph.Static{"src/a.js": {"src/notes.txt"}}).Resolve(context.Background(), cfg)
	require.ErrorIs(t, err, ErrUnhandledFileType)
	require.ErrorContains(t, err, "src/notes.txt")
}

func TestResolve_ProductionLogoScenario(t *testing.T) {
	fsys := fstest.MapFS{
		"src/a.js":                {Data: []byte("import \"src/styles.css\";\nconsole.log(\"a\");\n")},
		"src/b.js":                {Data: []byte("import \"src/css/component.css\";\nconsole.log(\"b\");\n")},
		"src/styles.css":          {Data: []byte(".logo {\n  background: url(./assets/logo.png) no-repeat;\n}\n")},
		"src/css/component.css":   {Data: []byte(".brand {\n  background-image: url(\"../assets/logo.png\");\n}\n")},
		"src/assets/logo.png":     {Data: []byte(logoPNG)},
		"src/index.html":          {Data: []byte(indexPage)},
		"src/pages/nosotros.html": {Data: []byte(aboutPage)},
	}
	walker := graph.Static{
		"src/a.js": {"src/styles.css"},
		"src/b.js": {"src/css/component.css"},
	}
	cfg := productionConfig()
	cfg.Pages = append(cfg.Pages, Page{Template: "src/pages/nosotros.html", Filename: "pages/nosotros.html", Chunks: []string{"vanilla"}})

	plan, err := newResolver(t, fsys, walker).Resolve(context.Background(), cfg)
	require.NoError(t, err)

	var assets []Artifact
	for _, a := range plan.Artifacts {
		if a.Kind == ArtifactAsset {
			assets = append(assets, a)
		}
	}
	require.Len(t, assets, 1)
	require.Equal(t, "assets/logo.png", assets[0].Path)
	require.Equal(t, logoPNG, string(assets[0].Content))
	require.Equal(t, []string{"src/assets/logo.png"}, assets[0].Sources)
	require.Equal(t, "assets/logo.png", plan.Assets["src/assets/logo.png"])

	styles := plan.Entries["js"].Styles
	require.Len(t, styles, 1)
	require.Regexp(t, `^styles\.[0-9a-f]{20}\.css$`, styles[0])
	require.Contains(t, string(artifact(t, plan, styles[0]).Content), "assets/logo.png")

	vanilla := plan.Entries["vanilla"].Scripts
	require.Len(t, vanilla, 1)
	require.Regexp(t, `^vanilla\.[0-9a-f]{20}\.js$`, vanilla[0])
	require.Contains(t, string(artifact(t, plan, vanilla[0]).Content), "assets/logo.png")

	about := string(artifact(t, plan, "pages/nosotros.html").Content)
	require.Contains(t, about, "../assets/logo.png")
	require.Contains(t, about, "../"+vanilla[0])
	require.NotContains(t, about, "__SITEPACK_REF")
}

func TestResolve_AssetPathWithEscapedCharacters(t *testing.T) {
	fsys := fstest.MapFS{
		"src/a.js":       {Data: []byte("const img = require(\"src/r&d.png\");\nconsole.log(img);\n")},
		"src/b.js":       {Data: []byte("console.log(\"b\");\n")},
		"src/r&d.png":    {Data: []byte(logoPNG)},
		"src/index.html": {Data: []byte(indexPage)},
		"src/styles.css": {Data: []byte(".x {\n  background: url(\"./r&d.png\");\n}\n")},
	}
	walker := graph.Static{
		"src/a.js": {"src/r&d.png", "src/styles.css"},
	}

	plan, err := newResolver(t, fsys, walker).Resolve(context.Background(), developmentConfig())
	require.NoError(t, err)

	require.Equal(t, "assets/r&d.png", plan.Assets["src/r&d.png"])
	js := string(artifact(t, plan, "js.bundle.js").Content)
	require.Contains(t, js, `module.exports = "assets/r&d.png";`)
	require.NotContains(t, js, "__SITEPACK_REF")
	require.Contains(t, string(artifact(t, plan, "styles.css").Content), "assets/r&d.png")
}

func TestResolve_ExtractedStylesheetInlinesImports(t *testing.T) {
	fsys, walker := sharedSite()
	fsys["src/styles.css"] = &fstest.MapFile{Data: []byte("@import \"./base.css\";\n" + globalCSS)}
	fsys["src/base.css"] = &fstest.MapFile{Data: []byte("html { font-size: 62.5%; }\n")}

	plan, err := newResolver(t, fsys, walker).Resolve(context.Background(), developmentConfig())
	require.NoError(t, err)

	styles := string(artifact(t, plan, "styles.css").Content)
	require.NotContains(t, styles, "@import")
	require.Contains(t, styles, "font-size: 62.5%")
	require.Contains(t, styles, "margin: 0")
	require.NotContains(t, plan.Paths(), "base.css")
}

func TestResolve_Idempotent(t *testing.T) {
	fsys, walker := sharedSite()

	first, err := newResolver(t, fsys, walker).Resolve(context.Background(), productionConfig())
	require.NoError(t, err)
	second, err := newResolver(t, fsys, walker).Resolve(context.Background(), productionConfig())
	require.NoError(t, err)

	require.Equal(t, first.Paths(), second.Paths())
	for i := range first.Artifacts {
		require.Equal(t, first.Artifacts[i].Content, second.Artifacts[i].Content, first.Artifacts[i].Path)
	}

	hashed := regexp.MustCompile(`^(js|vanilla|common)\.[0-9a-f]{20}\.js$`)
	chunks := 0
	for _, p := range first.Paths() {
		if hashed.MatchString(p) {
			chunks++
		}
	}
	require.Equal(t, 3, chunks)
}

func TestResolve_ContentChangesHash(t *testing.T) {
	fsys, walker := sharedSite()

	before, err := newResolver(t, fsys, walker).Resolve(context.Background(), productionConfig())
	require.NoError(t, err)

	fsys["src/c.js"] = &fstest.MapFile{Data: []byte("export const c = 43;\n")}
	after, err := newResolver(t, fsys, walker).Resolve(context.Background(), productionConfig())
	require.NoError(t, err)

	require.NotEqual(t, before.Entries["js"].Scripts[0], after.Entries["js"].Scripts[0], "shared chunk is renamed")
	require.Equal(t, before.Entries["js"].Scripts[1], after.Entries["js"].Scripts[1], "entry chunk is untouched")
	require.Equal(t, before.Entries["js"].Styles, after.Entries["js"].Styles)
}

func TestResolve_Minify(t *testing.T) {
	fsys, walker := sharedSite()

	dev, err := newResolver(t, fsys, walker).Resolve(context.Background(), developmentConfig())
	require.NoError(t, err)

	cfg := developmentConfig()
	cfg.Optimization.Minify = true
	minified, err := newResolver(t, fsys, walker).Resolve(context.Background(), cfg)
	require.NoError(t, err)

	for _, p := range []string{"common.bundle.js", "js.bundle.js", "styles.css"} {
		assert.Less(t, len(artifact(t, minified, p).Content), len(artifact(t, dev, p).Content), p)
	}
	require.Equal(t, "body{margin:0;color:#333}\n", string(artifact(t, minified, "styles.css").Content))

	cfg.Optimization.Minifier = "tdewolff"
	minified, err = newResolver(t, fsys, walker).Resolve(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, "body{margin:0;color:#333}", string(artifact(t, minified, "styles.css").Content))
}

type failingMinifier struct{}

func (failingMinifier) Name() string { return "failing" }

func (failingMinifier) Minify(string, []byte) ([]byte, error) {
	return nil, errors.New("boom")
}

func TestResolve_MinifyFailure(t *testing.T) {
	fsys, walker := sharedSite()
	cfg := developmentConfig()
	cfg.Optimization.Minify = true

	r := newResolver(t, fsys, walker)
	r.Minifier = failingMinifier{}

	plan, err := r.Resolve(context.Background(), cfg)
	require.Nil(t, plan)
	require.ErrorIs(t, err, ErrMinify)

	var minifyErr *MinifyError
	require.True(t, errors.As(err, &minifyErr))
	require.Equal(t, "failing", minifyErr.Minifier)
	require.Equal(t, "styles.css", minifyErr.Path)
}

func TestResolve_TransformFailure(t *testing.T) {
	fsys, walker := sharedSite()
	fsys["src/c.js"] = &fstest.MapFile{Data: []byte("export const = ;\n")}

	cfg := developmentConfig()
	cfg.Rules = append(cfg.Rules, Rule{Name: "scripts", Test: MustCompilePattern(`\.js$`), Use: []TransformRef{{Name: "babel-loader"}}})

	_, err := newResolver(t, fsys, walker).Resolve(context.Background(), cfg)
	require.ErrorIs(t, err, ErrTransformFailure)

	var failure *TransformFailureError
	require.True(t, errors.As(err, &failure))
	require.Equal(t, "src/c.js", failure.Path)
	require.Equal(t, "babel-loader", failure.Transform)
}

func TestResolve_MissingReference(t *testing.T) {
	fsys, walker := sharedSite()
	fsys["src/styles.css"] = &fstest.MapFile{Data: []byte(".x { background: url(./missing.png); }\n")}

	_, err := newResolver(t, fsys, walker).Resolve(context.Background(), developmentConfig())
	require.ErrorIs(t, err, ErrTransformFailure)
	require.ErrorContains(t, err, "missing.png")
}

func TestResolve_UnknownTransform(t *testing.T) {
	fsys, walker := sharedSite()
	cfg := developmentConfig()
	cfg.Rules[0].Use = append(cfg.Rules[0].Use, TransformRef{Name: "postcss-loader"})

	_, err := newResolver(t, fsys, walker).Resolve(context.Background(), cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.ErrorIs(t, err, transform.ErrUnknownStage)
}

func TestResolve_OutputCollision(t *testing.T) {
	fsys, walker := sharedSite()
	cfg := developmentConfig()
	cfg.Output.Filename = "bundle.js"

	_, err := newResolver(t, fsys, walker).Resolve(context.Background(), cfg)
	require.ErrorIs(t, err, ErrOutputCollision)

	var collision *OutputCollisionError
	require.True(t, errors.As(err, &collision))
	require.Equal(t, "bundle.js", collision.Path)
	require.Equal(t, []string{"chunk common", "chunk js", "chunk vanilla"}, collision.Sources)
}

func TestResolve_AssetCollision(t *testing.T) {
	fsys := fstest.MapFS{
		"src/a.js":         {Data: []byte("console.log(1);\n")},
		"src/a/styles.css": {Data: []byte(".a { background: url(./logo.png); }\n")},
		"src/a/logo.png":   {Data: []byte("a")},
		"src/b/styles.css": {Data: []byte(".b { background: url(./logo.png); }\n")},
		"src/b/logo.png":   {Data: []byte("b")},
	}
	cfg := developmentConfig()
	cfg.Entries = cfg.Entries[:1]
	cfg.Pages = nil

	walker := graph.Static{"src/a.js": {"src/a/styles.css", "src/b/styles.css"}}
	_, err := newResolver(t, fsys, walker).Resolve(context.Background(), cfg)
	require.ErrorIs(t, err, ErrOutputCollision)

	var collision *OutputCollisionError
	require.True(t, errors.As(err, &collision))
	require.Equal(t, "assets/logo.png", collision.Path)
	require.Equal(t, []string{"src/a/logo.png", "src/b/logo.png"}, collision.Sources)
}

func TestResolve_Compress(t *testing.T) {
	fsys, walker := sharedSite()
	cfg := developmentConfig()
	cfg.Output.Compress = []string{"gzip", "zstd"}

	plan, err := newResolver(t, fsys, walker).Resolve(context.Background(), cfg)
	require.NoError(t, err)

	for _, p := range []string{"js.bundle.js", "common.bundle.js", "styles.css", "index.html"} {
		for _, ext := range []string{".gz", ".zst"} {
			a := artifact(t, plan, p+ext)
			require.Equal(t, ArtifactCompressed, a.Kind)
			require.Equal(t, []string{p}, a.Sources)
		}
	}
	_, ok := plan.Artifact("manifest.json.gz")
	require.False(t, ok)

	require.Len(t, plan.Files(), len(plan.Artifacts))
}

func TestResolve_PageWithoutChunksLoadsEveryEntry(t *testing.T) {
	fsys, walker := sharedSite()
	cfg := developmentConfig()
	cfg.Pages[0].Chunks = nil
	cfg.Pages[0].Title = "Sitepack"
	cfg.Rules = cfg.Rules[:3]

	plan, err := newResolver(t, fsys, walker).Resolve(context.Background(), cfg)
	require.NoError(t, err)

	page := string(artifact(t, plan, "index.html").Content)
	require.Equal(t, 1, strings.Count(page, "common.bundle.js"))
	require.Contains(t, page, "js.bundle.js")
	require.Contains(t, page, "vanilla.bundle.js")
	require.Contains(t, page, "<title>Sitepack</title>")

	route := findRoute(t, plan, "src/index.html")
	require.Empty(t, route.Rule, "templates without a rule are used verbatim")
	require.Empty(t, route.Chunks)
}

func TestResolve_CancelledContext(t *testing.T) {
	fsys, walker := sharedSite()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newResolver(t, fsys, walker).Resolve(ctx, developmentConfig())
	require.ErrorIs(t, err, context.Canceled)
}

func TestResolve_InvalidConfig(t *testing.T) {
	fsys, walker := sharedSite()
	cfg := developmentConfig()
	cfg.Entries = nil

	_, err := newResolver(t, fsys, walker).Resolve(context.Background(), cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func findRoute(t *testing.T, plan *BuildPlan, p string) Route {
	t.Helper()
	for _, r := range plan.Routes {
		if r.Path == p {
			return r
		}
	}
	require.FailNow(t, "no route", p)
	return Route{}
}
