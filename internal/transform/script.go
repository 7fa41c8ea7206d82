package transform

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var targets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// Script transpiles modern JavaScript, JSX and TypeScript down to the
// configured ECMAScript target. Options: target (default es2015).
type Script struct{}

func (Script) Name() string { return "script" }

func (Script) Apply(_ context.Context, _ *Env, m *Module, opts Options) error {
	if m.Kind != KindScript {
		return fmt.Errorf("script expects a script, got %s", m.Kind)
	}

	targetName := strings.ToLower(opts.String("target", "es2015"))
	target, ok := targets[targetName]
	if !ok {
		return fmt.Errorf("unknown target %q", targetName)
	}

	result := api.Transform(string(m.Content), api.TransformOptions{
		Loader:     LoaderFor(m.Path),
		Target:     target,
		JSX:        api.JSXAutomatic,
		Sourcefile: m.Path,
	})
	if len(result.Errors) > 0 {
		return MessagesError(result.Errors)
	}

	m.Content = result.Code
	return nil
}

// LoaderFor picks the esbuild loader for a script path.
func LoaderFor(p string) api.Loader {
	switch strings.ToLower(path.Ext(p)) {
	case ".jsx":
		return api.LoaderJSX
	case ".ts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	default:
		return api.LoaderJS
	}
}

// MessagesError folds esbuild diagnostics into a single error.
func MessagesError(msgs []api.Message) error {
	errs := make([]error, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Location != nil {
			errs = append(errs, fmt.Errorf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text))
			continue
		}
		errs = append(errs, errors.New(msg.Text))
	}
	return errors.Join(errs...)
}
