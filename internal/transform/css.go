package transform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// CSS interprets url() references inside a stylesheet, replacing each local
// URL with a placeholder for the referenced file's output path. Local
// @import rules are replaced by the imported sheet, wrapped in @media when
// the import carries a media query.
// Options: url (default true) toggles url() handling, import (default true)
// toggles @import inlining.
type CSS struct{}

func (CSS) Name() string { return "css" }

func (CSS) Apply(_ context.Context, env *Env, m *Module, opts Options) error {
	if m.Kind != KindStyle {
		return fmt.Errorf("css expects a stylesheet, got %s", m.Kind)
	}

	s := &sheet{
		env:     env,
		module:  m,
		urls:    opts.Bool("url", true),
		imports: opts.Bool("import", true),
		seen:    map[string]bool{m.Path: true},
	}
	if !s.urls && !s.imports {
		return nil
	}

	out, err := s.rewrite(m.Path, m.Content)
	if err != nil {
		return err
	}
	m.Content = out
	return nil
}

type sheet struct {
	env     *Env
	module  *Module
	urls    bool
	imports bool
	seen    map[string]bool
}

// rewrite processes content as if it were the file at p, so relative URLs
// resolve against p.
func (s *sheet) rewrite(p string, content []byte) ([]byte, error) {
	var buf bytes.Buffer
	l := css.NewLexer(parse.NewInputBytes(content))
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			if err := l.Err(); err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to tokenize %s: %w", p, err)
			}
			break
		}

		switch {
		case tt == css.URLToken && s.urls:
			if target, ok := ResolveRef(p, urlValue(data)); ok {
				if !s.env.Exists(target) {
					return nil, fmt.Errorf("can't resolve %q in %s", urlValue(data), p)
				}
				s.module.AddRef(target)
				buf.WriteString(`url("` + Ref(target) + `")`)
				continue
			}

		case tt == css.AtKeywordToken && s.imports && strings.EqualFold(string(data), "@import"):
			if err := s.inline(&buf, l, p, data); err != nil {
				return nil, err
			}
			continue
		}

		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// inline consumes an @import rule. Remote or unresolvable imports are
// written back untouched.
func (s *sheet) inline(buf *bytes.Buffer, l *css.Lexer, p string, keyword []byte) error {
	rule := append([]byte(nil), keyword...)
	var href string
	var media []byte
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			break
		}
		rule = append(rule, data...)
		if tt == css.SemicolonToken {
			break
		}
		switch {
		case href == "" && (tt == css.StringToken || tt == css.URLToken):
			href = urlValue(data)
		case href != "":
			media = append(media, data...)
		}
	}

	target, ok := ResolveRef(p, href)
	if !ok {
		buf.Write(rule)
		return nil
	}
	if s.seen[target] {
		return nil
	}
	if !s.env.Exists(target) {
		return fmt.Errorf("can't resolve @import %q in %s", href, p)
	}
	s.seen[target] = true

	imported, err := fs.ReadFile(s.env.FS, target)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", target, err)
	}
	out, err := s.rewrite(target, imported)
	if err != nil {
		return err
	}

	query := strings.TrimSpace(string(media))
	if query != "" {
		fmt.Fprintf(buf, "@media %s {\n", query)
	}
	buf.Write(bytes.TrimSpace(out))
	buf.WriteByte('\n')
	if query != "" {
		buf.WriteString("}\n")
	}
	return nil
}

// urlValue extracts the address from a url(...) or string token.
func urlValue(token []byte) string {
	s := string(token)
	if len(s) >= 4 && strings.EqualFold(s[:4], "url(") {
		s = s[4:]
		s = strings.TrimSuffix(s, ")")
	}
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	return s
}
