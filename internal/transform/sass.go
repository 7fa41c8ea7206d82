package transform

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bep/godartsass/v2"
)

// Sass compiles SCSS and indented Sass to CSS through an embedded Dart Sass
// process. The process is started on first use and shared by all modules.
// Options: outputStyle (expanded|compressed), includePaths.
type Sass struct {
	Binary string

	mu         sync.Mutex
	transpiler *godartsass.Transpiler
	startErr   error
}

func NewSass(binary string) *Sass {
	return &Sass{Binary: binary}
}

func (s *Sass) Name() string { return "sass" }

func (s *Sass) Apply(_ context.Context, env *Env, m *Module, opts Options) error {
	if m.Kind != KindStyle {
		return fmt.Errorf("sass expects a stylesheet, got %s", m.Kind)
	}

	t, err := s.start()
	if err != nil {
		return fmt.Errorf("failed to start dart sass: %w", err)
	}

	syntax := godartsass.SourceSyntaxSCSS
	if strings.EqualFold(path.Ext(m.Path), ".sass") {
		syntax = godartsass.SourceSyntaxSASS
	}

	style := godartsass.OutputStyleExpanded
	if opts.String("outputStyle", "") == "compressed" {
		style = godartsass.OutputStyleCompressed
	}

	var includePaths []string
	if env != nil && env.Dir != "" {
		includePaths = append(includePaths, filepath.Join(env.Dir, filepath.FromSlash(path.Dir(m.Path))))
		for _, p := range opts.Strings("includePaths") {
			includePaths = append(includePaths, filepath.Join(env.Dir, filepath.FromSlash(p)))
		}
	}

	result, err := t.Execute(godartsass.Args{
		Source:       string(m.Content),
		SourceSyntax: syntax,
		OutputStyle:  style,
		IncludePaths: includePaths,
	})
	if err != nil {
		return err
	}

	m.Content = []byte(result.CSS)
	return nil
}

func (s *Sass) start() (*godartsass.Transpiler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transpiler != nil || s.startErr != nil {
		return s.transpiler, s.startErr
	}

	s.transpiler, s.startErr = godartsass.Start(godartsass.Options{
		DartSassEmbeddedFilename: s.Binary,
	})
	return s.transpiler, s.startErr
}

// Close stops the Dart Sass process if one was started.
func (s *Sass) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transpiler == nil {
		return nil
	}
	err := s.transpiler.Close()
	s.transpiler = nil
	return err
}
