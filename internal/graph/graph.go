// Package graph discovers which source files are reachable from each entry.
package graph

import (
	"context"
	"path"
	"sort"
	"strings"
)

// Import is one edge of the module graph: the specifier as written in the
// importing file and the source path it resolved to.
type Import struct {
	Specifier string
	Path      string
}

type Module struct {
	Path    string
	Imports []Import
}

// Graph is the result of walking every entry.
type Graph struct {
	Modules map[string]*Module
	// Entries maps each entry name to its reachable module paths in
	// depth-first discovery order, starting with the entry source.
	Entries map[string][]string
}

// Walker builds the module graph for a set of entries keyed by entry name.
type Walker interface {
	Walk(ctx context.Context, entries map[string]string) (*Graph, error)
}

// ImportMap returns specifier to path mappings for a module.
func (g *Graph) ImportMap(p string) map[string]string {
	m, ok := g.Modules[p]
	if !ok || len(m.Imports) == 0 {
		return nil
	}
	imports := make(map[string]string, len(m.Imports))
	for _, imp := range m.Imports {
		imports[imp.Specifier] = imp.Path
	}
	return imports
}

// Reachable returns the union of modules reachable from any entry, sorted.
func (g *Graph) Reachable() []string {
	seen := make(map[string]bool)
	for _, mods := range g.Entries {
		for _, m := range mods {
			seen[m] = true
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// CleanPath normalizes a configured source path ("./src/index.js") into the
// slash separated, context relative form used as a module id.
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimPrefix(path.Clean(p), "/")
}

func (g *Graph) walkEntries(entries map[string]string) {
	g.Entries = make(map[string][]string, len(entries))
	for name, source := range entries {
		var order []string
		visited := make(map[string]bool)
		g.addDependencies(CleanPath(source), &order, visited)
		g.Entries[name] = order
	}
}

func (g *Graph) addDependencies(p string, order *[]string, visited map[string]bool) {
	if visited[p] {
		return
	}
	visited[p] = true
	*order = append(*order, p)

	if m, ok := g.Modules[p]; ok {
		for _, imp := range m.Imports {
			g.addDependencies(imp.Path, order, visited)
		}
	}
}

// Static is a Walker over an explicitly declared import table, keyed by
// module path. Specifiers equal the imported paths.
type Static map[string][]string

func (s Static) Walk(_ context.Context, entries map[string]string) (*Graph, error) {
	g := &Graph{Modules: make(map[string]*Module)}
	for p, imports := range s {
		m := &Module{Path: CleanPath(p)}
		for _, imp := range imports {
			m.Imports = append(m.Imports, Import{Specifier: imp, Path: CleanPath(imp)})
		}
		g.Modules[m.Path] = m
	}
	for _, source := range entries {
		p := CleanPath(source)
		if _, ok := g.Modules[p]; !ok {
			g.Modules[p] = &Module{Path: p}
		}
	}
	g.walkEntries(entries)
	return g, nil
}
