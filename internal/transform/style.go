package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Style turns a stylesheet into a script that injects it into the document
// at runtime. Options: insert (head|body), attributes (map of extra attributes).
type Style struct{}

func (Style) Name() string { return "style" }

func (Style) Apply(_ context.Context, _ *Env, m *Module, opts Options) error {
	if m.Kind != KindStyle {
		return fmt.Errorf("style expects a stylesheet, got %s", m.Kind)
	}

	insert := opts.String("insert", "head")
	if insert != "head" && insert != "body" {
		return fmt.Errorf("unsupported insert target %q", insert)
	}

	attrs := map[string]string{"data-sitepack": m.Path}
	for k, v := range opts.Map("attributes") {
		attrs[k] = fmt.Sprint(v)
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	css, err := json.Marshal(string(m.Content))
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "var css = %s;\n", css)
	b.WriteString("if (typeof document !== \"undefined\") {\n")
	b.WriteString("  var style = document.createElement(\"style\");\n")
	for _, k := range keys {
		name, _ := json.Marshal(k)
		value, _ := json.Marshal(attrs[k])
		fmt.Fprintf(&b, "  style.setAttribute(%s, %s);\n", name, value)
	}
	b.WriteString("  style.appendChild(document.createTextNode(css));\n")
	fmt.Fprintf(&b, "  document.%s.appendChild(style);\n", insert)
	b.WriteString("}\n")
	b.WriteString("module.exports = css;\n")

	m.Content = []byte(b.String())
	m.Kind = KindScript
	return nil
}

// Extract marks a stylesheet for extraction into its own file, referenced by
// the owning bundle instead of being inlined.
type Extract struct{}

func (Extract) Name() string { return "extract" }

func (Extract) Apply(_ context.Context, _ *Env, m *Module, _ Options) error {
	if m.Kind != KindStyle {
		return fmt.Errorf("extract expects a stylesheet, got %s", m.Kind)
	}
	m.Disposition = Extracted
	return nil
}

// File emits the module as a standalone asset. Options: name, the output
// name pattern (default "assets/[name].[ext]").
type File struct{}

func (File) Name() string { return "file" }

func (File) Apply(_ context.Context, _ *Env, m *Module, opts Options) error {
	m.EmitName = opts.String("name", "assets/[name].[ext]")
	m.Disposition = Emitted
	return nil
}
