// Package page generates HTML documents that load the bundles and
// stylesheets belonging to their entries.
package page

import (
	"bytes"
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Assets lists what a generated page must load, in load order.
type Assets struct {
	Title   string
	Styles  []string
	Scripts []string
}

// Render parses a template document and injects a stylesheet link per style
// at the end of <head> and a deferred script tag per script at the end of
// <body>. Missing <head> and <body> elements are synthesized by the parser.
func Render(template []byte, assets Assets) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(template))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	head := find(doc, atom.Head)
	body := find(doc, atom.Body)
	if head == nil || body == nil {
		return nil, fmt.Errorf("template has no document structure")
	}

	if assets.Title != "" {
		setTitle(head, assets.Title)
	}

	for _, href := range assets.Styles {
		head.AppendChild(element(atom.Link, []html.Attribute{
			{Key: "href", Val: href},
			{Key: "rel", Val: "stylesheet"},
		}))
	}

	for _, src := range assets.Scripts {
		body.AppendChild(element(atom.Script, []html.Attribute{
			{Key: "defer"},
			{Key: "src", Val: src},
		}))
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}
	return buf.Bytes(), nil
}

func setTitle(head *html.Node, title string) {
	existing := find(head, atom.Title)
	if existing == nil {
		existing = element(atom.Title, nil)
		head.AppendChild(existing)
	}
	for c := existing.FirstChild; c != nil; c = existing.FirstChild {
		existing.RemoveChild(c)
	}
	existing.AppendChild(&html.Node{Type: html.TextNode, Data: title})
}

func element(a atom.Atom, attrs []html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}
	return nil
}
