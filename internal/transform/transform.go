// Package transform implements the stages a rule chains together to turn a
// source file into bundle content or a standalone artifact.
package transform

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
)

// Kind is the logical type of a module's current content.
type Kind string

const (
	KindScript Kind = "script"
	KindData   Kind = "data"
	KindStyle  Kind = "style"
	KindMarkup Kind = "markup"
	KindFile   Kind = "file"
)

// KindFor infers the initial kind of a source file from its extension.
func KindFor(p string) Kind {
	switch strings.ToLower(path.Ext(p)) {
	case ".js", ".mjs", ".cjs", ".jsx", ".ts", ".tsx":
		return KindScript
	case ".json":
		return KindData
	case ".css", ".scss", ".sass":
		return KindStyle
	case ".html", ".htm":
		return KindMarkup
	default:
		return KindFile
	}
}

// Disposition says where a module ends up once its chain has run.
type Disposition int

const (
	// Inline modules are embedded into the owning bundle.
	Inline Disposition = iota
	// Extracted modules are written as standalone stylesheets; the bundle
	// only keeps their output path.
	Extracted
	// Emitted modules are copied as assets under their own name pattern.
	Emitted
)

func (d Disposition) String() string {
	switch d {
	case Extracted:
		return "extracted"
	case Emitted:
		return "emitted"
	default:
		return "inline"
	}
}

// Module is a single source file flowing through a transform chain.
type Module struct {
	// Path is slash separated and relative to the build context.
	Path        string
	Kind        Kind
	Content     []byte
	Disposition Disposition
	// EmitName is the output name pattern used for emitted modules.
	EmitName string
	// Refs lists source paths referenced from Content through Ref placeholders.
	Refs []string
}

// AddRef records a reference to another source file, ignoring duplicates.
func (m *Module) AddRef(p string) {
	for _, existing := range m.Refs {
		if existing == p {
			return
		}
	}
	m.Refs = append(m.Refs, p)
}

// Env is the read-only build environment handed to every stage.
type Env struct {
	FS fs.FS
	// Dir is the build context on disk, empty for in-memory sources.
	Dir        string
	Production bool
}

// Exists reports whether p names a regular file in the build context.
func (e *Env) Exists(p string) bool {
	if e == nil || e.FS == nil {
		return false
	}
	info, err := fs.Stat(e.FS, p)
	return err == nil && !info.IsDir()
}

// Stage is one transformation in a rule's chain. Apply mutates the module in
// place; it must not depend on any other module's output.
type Stage interface {
	Name() string
	Apply(ctx context.Context, env *Env, m *Module, opts Options) error
}

var ErrUnknownStage = errors.New("unknown transform")

// Registry maps transform identifiers used in rules to stages.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
}

func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]Stage)}
}

// DefaultRegistry returns a registry holding every built-in stage, plus the
// webpack loader names as aliases so existing rule tables keep working.
func DefaultRegistry(sassBinary string) *Registry {
	r := NewRegistry()
	r.Register(Script{})
	r.Register(CSS{})
	r.Register(NewSass(sassBinary))
	r.Register(Style{})
	r.Register(Extract{})
	r.Register(HTML{})
	r.Register(File{})

	r.Alias("babel-loader", "script")
	r.Alias("css-loader", "css")
	r.Alias("sass-loader", "sass")
	r.Alias("style-loader", "style")
	r.Alias("mini-css-extract-loader", "extract")
	r.Alias("html-loader", "html")
	r.Alias("file-loader", "file")
	return r
}

func (r *Registry) Register(s Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[s.Name()] = s
}

// Alias makes an existing stage reachable under another name.
func (r *Registry) Alias(alias, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stages[name]; ok {
		r.stages[alias] = s
	}
}

func (r *Registry) Lookup(name string) (Stage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stages[name]
	return s, ok
}

// Names returns every registered identifier in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stages))
	for name := range r.stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases stages holding external processes, such as the Sass compiler.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[Stage]bool)
	var errs []error
	for _, s := range r.stages {
		if seen[s] {
			continue
		}
		seen[s] = true
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
