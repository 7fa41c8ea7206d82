package transform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/wolfeidau/sitepack/internal/minify"
)

// sourceAttrs lists the tag attributes that point at files the document
// depends on. Scripts are left alone; they belong to the entry graph.
var sourceAttrs = map[string][]string{
	"img":    {"src"},
	"source": {"src"},
	"video":  {"src", "poster"},
	"audio":  {"src"},
	"link":   {"href"},
}

// HTML processes a document, swapping local asset URLs for placeholders.
// Options: attributes (default true) toggles URL handling, minimize (default
// false) minifies the result.
type HTML struct{}

func (HTML) Name() string { return "html" }

func (HTML) Apply(_ context.Context, env *Env, m *Module, opts Options) error {
	if m.Kind != KindMarkup {
		return fmt.Errorf("html expects a document, got %s", m.Kind)
	}

	if opts.Bool("attributes", true) {
		content, err := rewriteSources(env, m)
		if err != nil {
			return err
		}
		m.Content = content
	}

	if opts.Bool("minimize", false) {
		content, err := minify.HTML(m.Content)
		if err != nil {
			return fmt.Errorf("failed to minimize: %w", err)
		}
		m.Content = content
	}

	return nil
}

func rewriteSources(env *Env, m *Module) ([]byte, error) {
	var buf bytes.Buffer
	z := html.NewTokenizer(bytes.NewReader(m.Content))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("failed to tokenize document: %w", err)
			}
			return buf.Bytes(), nil

		case html.StartTagToken, html.SelfClosingTagToken:
			// Token lower-cases the tokenizer buffer in place, copy first.
			raw := append([]byte(nil), z.Raw()...)
			tok := z.Token()

			changed, err := rewriteToken(env, m, &tok)
			if err != nil {
				return nil, err
			}
			if changed {
				buf.WriteString(tok.String())
			} else {
				buf.Write(raw)
			}

		default:
			buf.Write(z.Raw())
		}
	}
}

func rewriteToken(env *Env, m *Module, tok *html.Token) (bool, error) {
	names, ok := sourceAttrs[tok.Data]
	if !ok {
		return false, nil
	}
	if tok.Data == "link" && !isAssetLink(tok) {
		return false, nil
	}

	changed := false
	for i, attr := range tok.Attr {
		if attr.Namespace != "" || !contains(names, attr.Key) {
			continue
		}
		target, ok := ResolveRef(m.Path, attr.Val)
		if !ok {
			continue
		}
		if !env.Exists(target) {
			return false, fmt.Errorf("can't resolve %q in %s", attr.Val, m.Path)
		}
		m.AddRef(target)
		tok.Attr[i].Val = Ref(target)
		changed = true
	}

	return changed, nil
}

func isAssetLink(tok *html.Token) bool {
	for _, attr := range tok.Attr {
		if attr.Key != "rel" {
			continue
		}
		for _, rel := range strings.Fields(strings.ToLower(attr.Val)) {
			if rel == "stylesheet" || rel == "icon" || rel == "apple-touch-icon" {
				return true
			}
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
