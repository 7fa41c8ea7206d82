package minify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	tdminify "github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

// Media types understood by the minifiers.
const (
	MediaJS   = "application/javascript"
	MediaCSS  = "text/css"
	MediaHTML = "text/html"
)

var ErrUnsupportedMediaType = errors.New("unsupported media type")

// Minifier compacts a single artifact. Implementations must be deterministic.
type Minifier interface {
	Name() string
	Minify(mediaType string, src []byte) ([]byte, error)
}

// New returns the minifier registered under name. An empty name selects esbuild.
func New(name string) (Minifier, error) {
	switch strings.ToLower(name) {
	case "", "esbuild":
		return Esbuild{}, nil
	case "tdewolff":
		return NewTdewolff(), nil
	default:
		return nil, fmt.Errorf("unknown minifier %q", name)
	}
}

// Esbuild minifies scripts and stylesheets using the esbuild transform API.
type Esbuild struct{}

func (Esbuild) Name() string { return "esbuild" }

func (Esbuild) Minify(mediaType string, src []byte) ([]byte, error) {
	var loader api.Loader
	switch mediaType {
	case MediaJS:
		loader = api.LoaderJS
	case MediaCSS:
		loader = api.LoaderCSS
	default:
		return nil, fmt.Errorf("esbuild: %w: %s", ErrUnsupportedMediaType, mediaType)
	}

	result := api.Transform(string(src), api.TransformOptions{
		Loader:            loader,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		LegalComments:     api.LegalCommentsNone,
	})
	if len(result.Errors) > 0 {
		return nil, messagesError(result.Errors)
	}

	return result.Code, nil
}

// Tdewolff minifies scripts, stylesheets and HTML documents.
type Tdewolff struct {
	m *tdminify.M
}

func NewTdewolff() *Tdewolff {
	m := tdminify.New()
	m.AddFunc(MediaCSS, css.Minify)
	m.AddFunc(MediaJS, js.Minify)
	m.Add(MediaHTML, &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	return &Tdewolff{m: m}
}

func (t *Tdewolff) Name() string { return "tdewolff" }

func (t *Tdewolff) Minify(mediaType string, src []byte) ([]byte, error) {
	switch mediaType {
	case MediaJS, MediaCSS, MediaHTML:
	default:
		return nil, fmt.Errorf("tdewolff: %w: %s", ErrUnsupportedMediaType, mediaType)
	}
	return t.m.Bytes(mediaType, src)
}

// HTML minifies an HTML document with the tdewolff minifier, which is the
// only one of the two that understands markup.
func HTML(src []byte) ([]byte, error) {
	return NewTdewolff().Minify(MediaHTML, src)
}

func messagesError(msgs []api.Message) error {
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
