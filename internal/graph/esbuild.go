package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
)

// Metafile is the subset of the esbuild metafile needed to rebuild the
// import graph.
type Metafile struct {
	Inputs map[string]InputInfo `json:"inputs"`
}

type InputInfo struct {
	Bytes   int          `json:"bytes"`
	Imports []ImportInfo `json:"imports"`
}

type ImportInfo struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
	Original string `json:"original,omitempty"`
}

// Esbuild walks the graph by running an esbuild bundle pass in memory and
// reading its metafile. Nothing is written to disk.
type Esbuild struct {
	// Dir is the build context; module paths are relative to it.
	Dir string
	// Loaders overrides the loader used for file extensions esbuild does not
	// understand natively.
	Loaders map[string]api.Loader
}

func DefaultLoaders() map[string]api.Loader {
	loaders := map[string]api.Loader{
		".css":  api.LoaderCSS,
		".scss": api.LoaderEmpty,
		".sass": api.LoaderEmpty,
		".html": api.LoaderText,
		".txt":  api.LoaderText,
		".xml":  api.LoaderText,
	}
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ttf", ".eot", ".woff", ".woff2", ".mp4", ".mp3", ".pdf"} {
		loaders[ext] = api.LoaderFile
	}
	return loaders
}

func (e *Esbuild) Walk(ctx context.Context, entries map[string]string) (*Graph, error) {
	dir, err := filepath.Abs(e.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve context: %w", err)
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	entryPoints := make([]api.EntryPoint, 0, len(names))
	for _, name := range names {
		entryPoints = append(entryPoints, api.EntryPoint{InputPath: "./" + CleanPath(entries[name]), OutputPath: name})
	}

	loaders := e.Loaders
	if loaders == nil {
		loaders = DefaultLoaders()
	}

	zerolog.Ctx(ctx).Debug().Strs("entries", names).Str("dir", dir).Msg("Walking module graph")

	result := api.Build(api.BuildOptions{
		EntryPointsAdvanced: entryPoints,
		AbsWorkingDir:       dir,
		Bundle:              true,
		Write:               false,
		Outdir:              "out",
		Format:              api.FormatESModule,
		Loader:              loaders,
		Metafile:            true,
		LogLevel:            api.LogLevelSilent,
	})

	if len(result.Errors) > 0 {
		errs := make([]error, 0, len(result.Errors))
		for _, msg := range result.Errors {
			zerolog.Ctx(ctx).Error().Str("error", msg.Text).Msg("Graph walk error")
			errs = append(errs, errors.New(msg.Text))
		}
		return nil, fmt.Errorf("esbuild failed with errors: %w", errors.Join(errs...))
	}

	var metadata Metafile
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}

	g := FromMetafile(&metadata)
	g.walkEntries(entries)
	return g, nil
}

// FromMetafile converts esbuild's input table into graph modules. External
// imports are dropped; they never reach the resolver.
func FromMetafile(meta *Metafile) *Graph {
	g := &Graph{Modules: make(map[string]*Module, len(meta.Inputs))}
	for p, input := range meta.Inputs {
		m := &Module{Path: CleanPath(p)}
		for _, imp := range input.Imports {
			if imp.External {
				continue
			}
			spec := imp.Original
			if spec == "" {
				spec = imp.Path
			}
			m.Imports = append(m.Imports, Import{Specifier: spec, Path: CleanPath(imp.Path)})
		}
		g.Modules[m.Path] = m
	}
	return g
}
