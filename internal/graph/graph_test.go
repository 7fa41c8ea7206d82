package graph

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "./src/index.js", expected: "src/index.js"},
		{input: "src/js/../index.js", expected: "src/index.js"},
		{input: "/src/index.js", expected: "src/index.js"},
		{input: `src\js\app.js`, expected: "src/js/app.js"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Equal(t, tt.expected, CleanPath(tt.input))
		})
	}
}

func TestStatic_Walk(t *testing.T) {
	walker := Static{
		"src/a.js": {"src/c.js", "src/styles.css"},
		"src/b.js": {"src/c.js", "src/styles.css"},
		"src/c.js": {"src/a.js"},
	}

	g, err := walker.Walk(context.Background(), map[string]string{
		"js":      "./src/a.js",
		"vanilla": "./src/b.js",
	})
	require.NoError(t, err)

	// cycles are visited once
	require.Equal(t, []string{"src/a.js", "src/c.js", "src/styles.css"}, g.Entries["js"])
	require.Equal(t, []string{"src/b.js", "src/c.js", "src/a.js", "src/styles.css"}, g.Entries["vanilla"])
	require.Equal(t, []string{"src/a.js", "src/b.js", "src/c.js", "src/styles.css"}, g.Reachable())
	require.Equal(t, map[string]string{"src/c.js": "src/c.js", "src/styles.css": "src/styles.css"}, g.ImportMap("src/a.js"))
	require.Nil(t, g.ImportMap("src/styles.css"))
}

func TestStatic_WalkUnknownEntry(t *testing.T) {
	g, err := Static{}.Walk(context.Background(), map[string]string{"main": "src/main.js"})
	require.NoError(t, err)
	require.Equal(t, []string{"src/main.js"}, g.Entries["main"])
}

func TestFromMetafile(t *testing.T) {
	meta := &Metafile{Inputs: map[string]InputInfo{
		"src/index.js": {Imports: []ImportInfo{
			{Path: "src/c.js", Kind: "import-statement", Original: "./c"},
			{Path: "src/styles.css", Kind: "import-statement"},
			{Path: "react", Kind: "import-statement", External: true},
		}},
		"src/c.js":       {},
		"src/styles.css": {Imports: []ImportInfo{{Path: "src/logo.png", Kind: "url-token", Original: "./logo.png"}}},
		"src/logo.png":   {},
	}}

	g := FromMetafile(meta)
	g.walkEntries(map[string]string{"js": "./src/index.js"})

	require.Equal(t, []string{"src/index.js", "src/c.js", "src/styles.css", "src/logo.png"}, g.Entries["js"])
	require.Equal(t, map[string]string{"./c": "src/c.js", "src/styles.css": "src/styles.css"}, g.ImportMap("src/index.js"))
}

func TestEsbuild_Walk(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/index.js", "import { shared } from './c.js';\nimport './styles.css';\nconsole.log(shared);\n")
	writeFile(t, dir, "src/js/other.js", "import { shared } from '../c.js';\nconsole.log(shared, 'other');\n")
	writeFile(t, dir, "src/c.js", "export const shared = 42;\n")
	writeFile(t, dir, "src/styles.css", "body { color: red; }\n")

	walker := &Esbuild{Dir: dir}
	g, err := walker.Walk(context.Background(), map[string]string{
		"js":      "./src/index.js",
		"vanilla": "./src/js/other.js",
	})
	require.NoError(t, err)

	require.Equal(t, []string{"src/index.js", "src/c.js", "src/styles.css"}, g.Entries["js"])
	require.Equal(t, []string{"src/js/other.js", "src/c.js"}, g.Entries["vanilla"])
	require.Contains(t, importTargets(g.ImportMap("src/index.js")), "src/c.js")
	require.Equal(t, []string{"src/c.js"}, importTargets(g.ImportMap("src/js/other.js")))
}

func TestEsbuild_WalkMissingImport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/index.js", "import './missing.js';\n")

	_, err := (&Esbuild{Dir: dir}).Walk(context.Background(), map[string]string{"js": "src/index.js"})
	require.Error(t, err)
}

func importTargets(imports map[string]string) []string {
	var out []string
	for _, p := range imports {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}
