// Package pipeline resolves a declarative asset build configuration into a
// deterministic build plan.
package pipeline

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/wolfeidau/sitepack/internal/output"
	"github.com/wolfeidau/sitepack/internal/transform"
)

type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// Entry is the root of one independently output bundle. Rules and pages
// refer to entries by Name, never by Source.
type Entry struct {
	Name   string
	Source string
}

type TransformRef struct {
	Name    string
	Options transform.Options
}

// Rule maps matching source files onto a transform chain.
//
// Use lists stages in application order: the output of Use[i] is the input
// of Use[i+1]. This is the reverse of webpack's right-to-left "use" arrays.
//
// Rules are consulted by descending Priority and then declaration order; the
// first rule whose Test matches and whose Exclude does not wins.
type Rule struct {
	Name     string
	Test     Pattern
	Exclude  Pattern
	Priority int
	Use      []TransformRef
}

// Matches reports whether the rule applies to a module path.
func (r *Rule) Matches(p string) bool {
	return r.Test.Match(p) && !r.Exclude.Match(p)
}

func (r *Rule) label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Test.String()
}

// OutputSpec controls where artifacts are written and how they are named.
//
// Name patterns understand [name], [ext], [contenthash], [contenthash:N] and
// [chunkhash] (an alias of [contenthash]). Placeholders are case-insensitive.
type OutputSpec struct {
	Dir string
	// Filename names entry and shared chunks.
	Filename string
	// CSSFilename names extracted stylesheets; [name] is the source stem.
	CSSFilename string
	// HashFunction is sha256 or crc64nvme.
	HashFunction string
	// HashDigest is hex or base58.
	HashDigest string
	HashLength int
	// Clean replaces the output directory instead of writing into it.
	Clean bool
	// Compress lists encodings (gzip, zstd) written next to text artifacts.
	Compress []string
}

// SharedChunkPolicy hoists modules used by several entries into one chunk.
type SharedChunkPolicy struct {
	// Name of the shared chunk, "common" when empty.
	Name string
	// Test restricts hoisting to matching module paths; zero matches all.
	Test Pattern
	// Chunks restricts which entry chunks take part; empty means all.
	Chunks []string
	// MinChunks is the number of entries a module must appear in, at least 2.
	MinChunks int
}

// Matches reports whether modulePath, as included by the chunk named
// chunkName, is eligible for hoisting.
func (p *SharedChunkPolicy) Matches(modulePath, chunkName string) bool {
	if p == nil {
		return false
	}
	if !p.Test.IsZero() && !p.Test.Match(modulePath) {
		return false
	}
	if len(p.Chunks) == 0 {
		return true
	}
	for _, c := range p.Chunks {
		if c == chunkName {
			return true
		}
	}
	return false
}

func (p *SharedChunkPolicy) name() string {
	if p.Name == "" {
		return "common"
	}
	return p.Name
}

func (p *SharedChunkPolicy) minChunks() int {
	if p.MinChunks < 2 {
		return 2
	}
	return p.MinChunks
}

type OptimizationPolicy struct {
	Minify bool
	// Minifier is esbuild or tdewolff.
	Minifier    string
	SharedChunk *SharedChunkPolicy
}

// Page is an HTML document generated from a template, loading the chunks
// and stylesheets of the entries listed in Chunks.
type Page struct {
	Template string
	Filename string
	Chunks   []string
	Title    string
	Minify   bool
}

// Config is the complete, immutable description of one build.
type Config struct {
	Mode         Mode
	Context      string
	Entries      []Entry
	Rules        []Rule
	Output       OutputSpec
	Optimization OptimizationPolicy
	Pages        []Page
}

var ErrInvalidConfig = errors.New("invalid config")

// Validate checks the structural invariants the resolver relies on.
func (c *Config) Validate() error {
	var errs []error

	if c.Mode != ModeDevelopment && c.Mode != ModeProduction {
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}

	if len(c.Entries) == 0 {
		errs = append(errs, errors.New("at least one entry is required"))
	}
	entries := make(map[string]bool, len(c.Entries))
	for _, e := range c.Entries {
		switch {
		case e.Name == "":
			errs = append(errs, fmt.Errorf("entry %q has no name", e.Source))
		case e.Source == "":
			errs = append(errs, fmt.Errorf("entry %q has no source", e.Name))
		case entries[e.Name]:
			errs = append(errs, fmt.Errorf("duplicate entry name %q", e.Name))
		}
		entries[e.Name] = true
	}

	for i, r := range c.Rules {
		if r.Test.IsZero() {
			errs = append(errs, fmt.Errorf("rule %d (%s) has no test", i, r.Name))
		}
		if len(r.Use) == 0 {
			errs = append(errs, fmt.Errorf("rule %d (%s) uses no transforms", i, r.label()))
		}
	}

	if c.Output.Filename == "" {
		errs = append(errs, errors.New("output filename is required"))
	}
	if c.Output.CSSFilename == "" {
		errs = append(errs, errors.New("output css filename is required"))
	}
	if _, err := newContentHasher(c.Output); err != nil {
		errs = append(errs, err)
	}
	for _, enc := range c.Output.Compress {
		if _, ok := output.Encodings[enc]; !ok {
			errs = append(errs, fmt.Errorf("unsupported compression %q", enc))
		}
	}

	if sc := c.Optimization.SharedChunk; sc != nil {
		if entries[sc.name()] {
			errs = append(errs, fmt.Errorf("shared chunk name %q clashes with an entry", sc.name()))
		}
		for _, name := range sc.Chunks {
			if !entries[name] {
				errs = append(errs, fmt.Errorf("shared chunk references unknown entry %q", name))
			}
		}
	}

	for _, p := range c.Pages {
		if p.Template == "" || p.Filename == "" {
			errs = append(errs, fmt.Errorf("page %q requires a template and a filename", p.Filename))
		}
		for _, name := range p.Chunks {
			if !entries[name] {
				errs = append(errs, fmt.Errorf("page %q references unknown entry %q", p.Filename, name))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func pageFilename(p Page) string {
	return strings.TrimPrefix(path.Clean(strings.ReplaceAll(p.Filename, "\\", "/")), "/")
}
