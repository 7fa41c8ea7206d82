package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilePattern(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		match   []string
		noMatch []string
	}{
		{
			name:    "go regexp",
			expr:    `\.css$`,
			match:   []string{"src/styles.css", "a.css"},
			noMatch: []string{"src/styles.scss", "a.css.map"},
		},
		{
			name:    "javascript literal with flags",
			expr:    `/\.(jpe?g|png|gif|svg|webp)$/i`,
			match:   []string{"src/assets/logo.png", "LOGO.PNG", "a.jpeg"},
			noMatch: []string{"src/logo.png.txt"},
		},
		{
			name:    "javascript literal without flags",
			expr:    `/styles\.css$/`,
			match:   []string{"src/styles.css"},
			noMatch: []string{"src/STYLES.CSS"},
		},
		{
			name:    "path separators",
			expr:    `/[\\/]node_modules[\\/]/`,
			match:   []string{"node_modules/lodash/index.js", "src/node_modules/x.js", "/node_modules/x.js"},
			noMatch: []string{"my_node_modules/x.js", "src/node_modules.js"},
		},
		{
			name:    "slash without a closing literal",
			expr:    `/src`,
			match:   []string{"/src/a.js", "src/a.js"},
			noMatch: []string{"asrc/a.js"},
		},
		{
			name:    "anchored at the root",
			expr:    `^/src/`,
			match:   []string{"src/a.js"},
			noMatch: []string{"lib/src/a.js"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := CompilePattern(tt.expr)
			require.NoError(t, err)
			for _, s := range tt.match {
				assert.True(t, p.Match(s), s)
			}
			for _, s := range tt.noMatch {
				assert.False(t, p.Match(s), s)
			}
		})
	}
}

func TestCompilePattern_Invalid(t *testing.T) {
	_, err := CompilePattern(`(`)
	require.Error(t, err)

	zero, err := CompilePattern("")
	require.NoError(t, err)
	require.True(t, zero.IsZero())
	require.False(t, zero.Match("anything"))
}

func TestRuleTable_FirstMatchWins(t *testing.T) {
	table := NewRuleTable([]Rule{
		{Name: "inline", Test: MustCompilePattern(`\.css$`), Use: []TransformRef{{Name: "style"}}},
		{Name: "global", Test: MustCompilePattern(`styles\.css$`), Use: []TransformRef{{Name: "extract"}}},
	})

	rule, ok := table.Match("src/styles.css")
	require.True(t, ok)
	require.Equal(t, "inline", rule.Name)

	_, ok = table.Match("src/logo.png")
	require.False(t, ok)
}

func TestRuleTable_Priority(t *testing.T) {
	table := NewRuleTable([]Rule{
		{Name: "inline", Test: MustCompilePattern(`\.css$`), Use: []TransformRef{{Name: "style"}}},
		{Name: "global", Test: MustCompilePattern(`styles\.css$`), Priority: 10, Use: []TransformRef{{Name: "extract"}}},
		{Name: "fallback", Test: MustCompilePattern(`\.css$`), Use: []TransformRef{{Name: "css"}}},
	})

	rule, ok := table.Match("src/styles.css")
	require.True(t, ok)
	require.Equal(t, "global", rule.Name)

	rule, ok = table.Match("src/other.css")
	require.True(t, ok)
	require.Equal(t, "inline", rule.Name, "declaration order breaks ties")

	names := make([]string, 0, 3)
	for _, r := range table.Rules() {
		names = append(names, r.Name)
	}
	require.Equal(t, []string{"global", "inline", "fallback"}, names)
}

func TestRuleTable_Exclude(t *testing.T) {
	table := NewRuleTable([]Rule{
		{Name: "inline", Test: MustCompilePattern(`\.css$`), Exclude: MustCompilePattern(`styles\.css$`), Use: []TransformRef{{Name: "style"}}},
		{Name: "global", Test: MustCompilePattern(`styles\.css$`), Use: []TransformRef{{Name: "extract"}}},
	})

	rule, ok := table.Match("src/styles.css")
	require.True(t, ok)
	require.Equal(t, "global", rule.Name)

	rule, ok = table.Match("src/component.css")
	require.True(t, ok)
	require.Equal(t, "inline", rule.Name)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Mode:    ModeDevelopment,
			Entries: []Entry{{Name: "js", Source: "./src/a.js"}, {Name: "vanilla", Source: "./src/b.js"}},
			Rules: []Rule{
				{Test: MustCompilePattern(`\.css$`), Use: []TransformRef{{Name: "css"}}},
			},
			Output:       OutputSpec{Dir: "dist", Filename: "[name].bundle.js", CSSFilename: "[name].css"},
			Optimization: OptimizationPolicy{SharedChunk: &SharedChunkPolicy{}},
			Pages:        []Page{{Template: "src/index.html", Filename: "index.html", Chunks: []string{"js"}}},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		msg    string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "none" }, `unknown mode "none"`},
		{"no entries", func(c *Config) { c.Entries = nil }, "at least one entry"},
		{"duplicate entry", func(c *Config) { c.Entries[1].Name = "js" }, `duplicate entry name "js"`},
		{"entry without source", func(c *Config) { c.Entries[0].Source = "" }, "has no source"},
		{"rule without test", func(c *Config) { c.Rules[0].Test = Pattern{} }, "has no test"},
		{"rule without transforms", func(c *Config) { c.Rules[0].Use = nil }, "uses no transforms"},
		{"missing filename", func(c *Config) { c.Output.Filename = "" }, "output filename"},
		{"missing css filename", func(c *Config) { c.Output.CSSFilename = "" }, "output css filename"},
		{"hash function", func(c *Config) { c.Output.HashFunction = "md4" }, `unsupported hash function "md4"`},
		{"hash digest", func(c *Config) { c.Output.HashDigest = "base64" }, `unsupported hash digest "base64"`},
		{"compression", func(c *Config) { c.Output.Compress = []string{"br"} }, `unsupported compression "br"`},
		{"shared chunk clash", func(c *Config) { c.Optimization.SharedChunk.Name = "js" }, "clashes with an entry"},
		{"shared chunk entry", func(c *Config) { c.Optimization.SharedChunk.Chunks = []string{"main"} }, `unknown entry "main"`},
		{"page entry", func(c *Config) { c.Pages[0].Chunks = []string{"main"} }, `unknown entry "main"`},
		{"page template", func(c *Config) { c.Pages[0].Template = "" }, "requires a template"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			require.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestSharedChunkPolicy_Matches(t *testing.T) {
	var nilPolicy *SharedChunkPolicy
	require.False(t, nilPolicy.Matches("src/c.js", "js"))

	all := &SharedChunkPolicy{}
	require.True(t, all.Matches("src/c.js", "js"))

	vendors := &SharedChunkPolicy{Test: MustCompilePattern(`[\\/]node_modules[\\/]`), Chunks: []string{"js"}}
	require.True(t, vendors.Matches("node_modules/lodash/index.js", "js"))
	require.False(t, vendors.Matches("node_modules/lodash/index.js", "vanilla"))
	require.False(t, vendors.Matches("src/c.js", "js"))
}

func TestHoist(t *testing.T) {
	order := []string{"js", "vanilla", "admin"}
	sources := map[string]bool{"src/a.js": true, "src/b.js": true, "src/admin.js": true}

	tests := []struct {
		name    string
		policy  *SharedChunkPolicy
		members map[string][]string
		shared  []string
		after   map[string][]string
	}{
		{
			name:   "no policy",
			policy: nil,
			members: map[string][]string{
				"js":      {"src/a.js", "src/c.js"},
				"vanilla": {"src/b.js", "src/c.js"},
			},
			after: map[string][]string{
				"js":      {"src/a.js", "src/c.js"},
				"vanilla": {"src/b.js", "src/c.js"},
			},
		},
		{
			name:   "module in two entries is hoisted",
			policy: &SharedChunkPolicy{},
			members: map[string][]string{
				"js":      {"src/a.js", "src/c.js", "src/only-a.js"},
				"vanilla": {"src/b.js", "src/c.js"},
			},
			shared: []string{"src/c.js"},
			after: map[string][]string{
				"js":      {"src/a.js", "src/only-a.js"},
				"vanilla": {"src/b.js"},
			},
		},
		{
			name:   "module in one entry stays",
			policy: &SharedChunkPolicy{},
			members: map[string][]string{
				"js":      {"src/a.js", "src/c.js"},
				"vanilla": {"src/b.js"},
			},
			after: map[string][]string{
				"js":      {"src/a.js", "src/c.js"},
				"vanilla": {"src/b.js"},
			},
		},
		{
			name:   "min chunks",
			policy: &SharedChunkPolicy{MinChunks: 3},
			members: map[string][]string{
				"js":      {"src/a.js", "src/c.js", "src/d.js"},
				"vanilla": {"src/b.js", "src/c.js", "src/d.js"},
				"admin":   {"src/admin.js", "src/d.js"},
			},
			shared: []string{"src/d.js"},
			after: map[string][]string{
				"js":      {"src/a.js", "src/c.js"},
				"vanilla": {"src/b.js", "src/c.js"},
				"admin":   {"src/admin.js"},
			},
		},
		{
			name:   "entry sources are never hoisted",
			policy: &SharedChunkPolicy{},
			members: map[string][]string{
				"js":      {"src/a.js", "src/b.js"},
				"vanilla": {"src/b.js"},
			},
			after: map[string][]string{
				"js":      {"src/a.js", "src/b.js"},
				"vanilla": {"src/b.js"},
			},
		},
		{
			name:   "test and chunks restrict hoisting",
			policy: &SharedChunkPolicy{Test: MustCompilePattern(`node_modules`), Chunks: []string{"js", "vanilla"}},
			members: map[string][]string{
				"js":      {"src/a.js", "src/c.js", "node_modules/lib/index.js"},
				"vanilla": {"src/b.js", "src/c.js", "node_modules/lib/index.js"},
				"admin":   {"src/admin.js", "node_modules/lib/index.js"},
			},
			shared: []string{"node_modules/lib/index.js"},
			after: map[string][]string{
				"js":      {"src/a.js", "src/c.js"},
				"vanilla": {"src/b.js", "src/c.js"},
				"admin":   {"src/admin.js", "node_modules/lib/index.js"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shared := hoist(tt.policy, order, tt.members, sources)
			require.Equal(t, tt.shared, shared)
			for name, want := range tt.after {
				require.Equal(t, want, tt.members[name], name)
			}
		})
	}
}
