package pipeline

import (
	"encoding/json"
	"sort"

	"github.com/wolfeidau/sitepack/internal/output"
)

type ArtifactKind string

const (
	ArtifactChunk      ArtifactKind = "chunk"
	ArtifactStylesheet ArtifactKind = "stylesheet"
	ArtifactAsset      ArtifactKind = "asset"
	ArtifactPage       ArtifactKind = "page"
	ArtifactManifest   ArtifactKind = "manifest"
	ArtifactCompressed ArtifactKind = "compressed"
)

// Artifact is one file of the build output. Sources lists the source modules
// that contributed to it, sorted.
type Artifact struct {
	Path    string       `json:"path"`
	Kind    ArtifactKind `json:"kind"`
	Size    int          `json:"size"`
	Sources []string     `json:"sources,omitempty"`
	Content []byte       `json:"-"`
}

// EntryOutput lists what a page must load for one entry, in load order.
type EntryOutput struct {
	Scripts []string `json:"scripts"`
	Styles  []string `json:"styles,omitempty"`
}

// Route records how a single source file was handled.
type Route struct {
	Path        string   `json:"path"`
	Rule        string   `json:"rule,omitempty"`
	Transforms  []string `json:"transforms,omitempty"`
	Disposition string   `json:"disposition"`
	// Chunks lists the chunks registering the module, empty for page templates.
	Chunks []string `json:"chunks,omitempty"`
}

// BuildPlan is the fully resolved output of a build. Nothing has been
// written when a plan is returned.
type BuildPlan struct {
	Mode      Mode                   `json:"mode"`
	OutputDir string                 `json:"outputDir"`
	Clean     bool                   `json:"clean"`
	Artifacts []Artifact             `json:"artifacts"`
	Entries   map[string]EntryOutput `json:"entries"`
	// Assets maps emitted and extracted source files to their output path.
	Assets map[string]string `json:"assets,omitempty"`
	// Shared lists the modules hoisted into the shared chunk.
	Shared []string `json:"shared,omitempty"`
	Routes []Route  `json:"routes"`
}

// Artifact returns the artifact written to p.
func (b *BuildPlan) Artifact(p string) (Artifact, bool) {
	i := sort.Search(len(b.Artifacts), func(i int) bool { return b.Artifacts[i].Path >= p })
	if i < len(b.Artifacts) && b.Artifacts[i].Path == p {
		return b.Artifacts[i], true
	}
	return Artifact{}, false
}

// Paths returns every output path in sorted order.
func (b *BuildPlan) Paths() []string {
	paths := make([]string, len(b.Artifacts))
	for i, a := range b.Artifacts {
		paths[i] = a.Path
	}
	return paths
}

// Files converts the plan into the writer's input.
func (b *BuildPlan) Files() []output.File {
	files := make([]output.File, len(b.Artifacts))
	for i, a := range b.Artifacts {
		files[i] = output.File{Path: a.Path, Content: a.Content}
	}
	return files
}

// Size is the total number of bytes the plan writes.
func (b *BuildPlan) Size() int {
	n := 0
	for _, a := range b.Artifacts {
		n += a.Size
	}
	return n
}

type manifest struct {
	Entries map[string]EntryOutput `json:"entries"`
	Assets  map[string]string      `json:"assets,omitempty"`
}

func (b *BuildPlan) manifest() ([]byte, error) {
	data, err := json.MarshalIndent(manifest{Entries: b.Entries, Assets: b.Assets}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
