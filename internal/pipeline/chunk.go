package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/wolfeidau/sitepack/internal/transform"
)

// runtimeJS is the module registry shared by every chunk of a build. Chunks
// may load in any order; the first one installs the registry.
const runtimeJS = `(function (g) {
  if (g.__sitepack) return;
  var defs = {}, cache = {};
  function load(id) {
    if (cache[id]) return cache[id].exports;
    var def = defs[id];
    if (!def) throw new Error("sitepack: unknown module " + id);
    var module = cache[id] = { exports: {} };
    def.f.call(module.exports, module, module.exports, function (s) {
      var target = def.m[s];
      if (target === undefined) throw new Error("sitepack: cannot resolve " + s + " from " + id);
      return load(target);
    });
    return module.exports;
  }
  g.__sitepack = {
    d: function (id, m, f) { defs[id] = { m: m, f: f }; },
    r: load
  };
})(typeof globalThis !== "undefined" ? globalThis : typeof self !== "undefined" ? self : this);
`

// chunk is a bundle under construction.
type chunk struct {
	name    string
	entry   string // empty for the shared chunk
	modules []string
}

// factory returns the CommonJS body registered for a module.
func factory(m *transform.Module) ([]byte, error) {
	if m.Disposition != transform.Inline {
		s, err := json.Marshal(transform.Ref(m.Path))
		if err != nil {
			return nil, err
		}
		return []byte("module.exports = " + string(s) + ";\n"), nil
	}

	switch m.Kind {
	case transform.KindScript:
		result := api.Transform(string(m.Content), api.TransformOptions{
			Loader:     transform.LoaderFor(m.Path),
			Format:     api.FormatCommonJS,
			Sourcefile: m.Path,
			LogLevel:   api.LogLevelSilent,
		})
		if len(result.Errors) > 0 {
			return nil, &TransformFailureError{Path: m.Path, Transform: "commonjs", Err: transform.MessagesError(result.Errors)}
		}
		return result.Code, nil

	case transform.KindData:
		if !json.Valid(m.Content) {
			return nil, &TransformFailureError{Path: m.Path, Transform: "json", Err: fmt.Errorf("invalid JSON")}
		}
		return []byte("module.exports = " + strings.TrimSpace(string(m.Content)) + ";\n"), nil

	default:
		s, err := json.Marshal(string(m.Content))
		if err != nil {
			return nil, err
		}
		return []byte("module.exports = " + string(s) + ";\n"), nil
	}
}

// assemble renders a chunk. modules must be sorted; imports maps each module
// to its specifier table.
func assemble(c *chunk, bodies map[string][]byte, imports func(string) map[string]string) ([]byte, error) {
	var b strings.Builder
	b.WriteString(runtimeJS)

	for _, id := range c.modules {
		idJSON, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		importMap := imports(id)
		if importMap == nil {
			importMap = map[string]string{}
		}
		// json.Marshal sorts map keys
		mapJSON, err := json.Marshal(importMap)
		if err != nil {
			return nil, err
		}

		fmt.Fprintf(&b, "__sitepack.d(%s, %s, function (module, exports, require) {\n", idJSON, mapJSON)
		body := bodies[id]
		b.Write(body)
		if len(body) > 0 && body[len(body)-1] != '\n' {
			b.WriteByte('\n')
		}
		b.WriteString("});\n")
	}

	if c.entry != "" {
		entryJSON, err := json.Marshal(c.entry)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, "__sitepack.r(%s);\n", entryJSON)
	}

	return []byte(b.String()), nil
}
