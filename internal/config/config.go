// Package config loads build configurations from YAML or JSON files and
// provides the built-in development and production profiles.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wolfeidau/sitepack/internal/pipeline"
	"github.com/wolfeidau/sitepack/internal/transform"
)

// File is the on-disk configuration. Field names follow webpack where the
// concept is the same.
type File struct {
	Mode         string           `yaml:"mode" json:"mode"`
	Context      string           `yaml:"context" json:"context"`
	Entry        Entries          `yaml:"entry" json:"entry"`
	Output       OutputFile       `yaml:"output" json:"output"`
	Optimization OptimizationFile `yaml:"optimization" json:"optimization"`
	Rules        []RuleFile       `yaml:"rules" json:"rules"`
	Pages        []PageFile       `yaml:"pages" json:"pages"`
}

type OutputFile struct {
	Path         string   `yaml:"path" json:"path"`
	Filename     string   `yaml:"filename" json:"filename"`
	CSSFilename  string   `yaml:"cssFilename" json:"cssFilename"`
	HashFunction string   `yaml:"hashFunction" json:"hashFunction"`
	HashDigest   string   `yaml:"hashDigest" json:"hashDigest"`
	HashLength   int      `yaml:"hashLength" json:"hashLength"`
	Clean        *bool    `yaml:"clean" json:"clean"`
	Compress     []string `yaml:"compress" json:"compress"`
}

type OptimizationFile struct {
	Minify      *bool           `yaml:"minify" json:"minify"`
	Minifier    string          `yaml:"minifier" json:"minifier"`
	SplitChunks *SplitChunkFile `yaml:"splitChunks" json:"splitChunks"`
}

type SplitChunkFile struct {
	Name      string        `yaml:"name" json:"name"`
	Test      string        `yaml:"test" json:"test"`
	Chunks    ChunkSelector `yaml:"chunks" json:"chunks"`
	MinChunks int           `yaml:"minChunks" json:"minChunks"`
}

type RuleFile struct {
	Name     string  `yaml:"name" json:"name"`
	Test     string  `yaml:"test" json:"test"`
	Exclude  string  `yaml:"exclude" json:"exclude"`
	Priority int     `yaml:"priority" json:"priority"`
	Use      UseList `yaml:"use" json:"use"`
}

type PageFile struct {
	Template string   `yaml:"template" json:"template"`
	Filename string   `yaml:"filename" json:"filename"`
	Chunks   []string `yaml:"chunks" json:"chunks"`
	Title    string   `yaml:"title" json:"title"`
	Minify   *bool    `yaml:"minify" json:"minify"`
}

// Load reads a configuration file, choosing the format by extension. A
// relative context is resolved against the file's directory.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	f, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	if !filepath.IsAbs(f.Context) {
		f.Context = filepath.Join(filepath.Dir(path), f.Context)
	}
	return f, nil
}

// Parse decodes a configuration. Anything other than .json is read as YAML.
func Parse(data []byte, ext string) (*File, error) {
	var f File
	if strings.EqualFold(ext, ".json") {
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
		return &f, nil
	}

	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return &f, nil
}

// Config converts the file into a resolver configuration. A non-empty mode
// overrides the file's mode; unset options take the mode's defaults.
func (f *File) Config(mode string) (*pipeline.Config, error) {
	if mode == "" {
		mode = f.Mode
	}
	if mode == "" {
		mode = string(pipeline.ModeDevelopment)
	}
	m := pipeline.Mode(mode)
	prod := m == pipeline.ModeProduction

	cfg := &pipeline.Config{
		Mode:    m,
		Context: f.Context,
		Output: pipeline.OutputSpec{
			Dir:          or(f.Output.Path, "dist"),
			Filename:     f.Output.Filename,
			CSSFilename:  f.Output.CSSFilename,
			HashFunction: f.Output.HashFunction,
			HashDigest:   f.Output.HashDigest,
			HashLength:   f.Output.HashLength,
			Clean:        boolOr(f.Output.Clean, prod),
			Compress:     f.Output.Compress,
		},
		Optimization: pipeline.OptimizationPolicy{
			Minify:   boolOr(f.Optimization.Minify, prod),
			Minifier: f.Optimization.Minifier,
		},
	}
	if cfg.Context == "" {
		cfg.Context = "."
	}
	if f.Output.Compress == nil && prod {
		cfg.Output.Compress = []string{"gzip", "zstd"}
	}

	if cfg.Output.Filename == "" {
		cfg.Output.Filename = "[name].bundle.js"
		if prod {
			cfg.Output.Filename = "[name].[contenthash].js"
		}
	}
	if cfg.Output.CSSFilename == "" {
		cfg.Output.CSSFilename = "[name].css"
		if prod {
			cfg.Output.CSSFilename = "[name].[contenthash].css"
		}
	}

	for _, e := range f.Entry {
		cfg.Entries = append(cfg.Entries, pipeline.Entry{Name: e.Name, Source: e.Source})
	}

	if sc := f.Optimization.SplitChunks; sc != nil {
		test, err := pipeline.CompilePattern(sc.Test)
		if err != nil {
			return nil, fmt.Errorf("splitChunks: %w", err)
		}
		cfg.Optimization.SharedChunk = &pipeline.SharedChunkPolicy{
			Name:      sc.Name,
			Test:      test,
			Chunks:    sc.Chunks,
			MinChunks: sc.MinChunks,
		}
	}

	for i, r := range f.Rules {
		rule, err := r.rule()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		cfg.Rules = append(cfg.Rules, rule)
	}

	for _, p := range f.Pages {
		cfg.Pages = append(cfg.Pages, pipeline.Page{
			Template: p.Template,
			Filename: p.Filename,
			Chunks:   p.Chunks,
			Title:    p.Title,
			Minify:   boolOr(p.Minify, prod),
		})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r RuleFile) rule() (pipeline.Rule, error) {
	test, err := pipeline.CompilePattern(r.Test)
	if err != nil {
		return pipeline.Rule{}, err
	}
	exclude, err := pipeline.CompilePattern(r.Exclude)
	if err != nil {
		return pipeline.Rule{}, err
	}

	rule := pipeline.Rule{Name: r.Name, Test: test, Exclude: exclude, Priority: r.Priority}
	for _, u := range r.Use {
		rule.Use = append(rule.Use, pipeline.TransformRef{Name: u.Loader, Options: transform.Options(u.Options)})
	}
	return rule, nil
}

func or(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
