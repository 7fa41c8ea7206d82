package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultEntry names the entry of a configuration giving a single source.
const defaultEntry = "main"

type Entry struct {
	Name   string `yaml:"name" json:"name"`
	Source string `yaml:"source" json:"source"`
}

// Entries keeps declaration order, which decides chunk and page load order.
// It accepts a single source, a name to source mapping or a list of entries.
type Entries []Entry

func (e *Entries) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*e = Entries{{Name: defaultEntry, Source: node.Value}}
		return nil

	case yaml.MappingNode:
		entries := make(Entries, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var source string
			if err := node.Content[i+1].Decode(&source); err != nil {
				return fmt.Errorf("entry %q: %w", node.Content[i].Value, err)
			}
			entries = append(entries, Entry{Name: node.Content[i].Value, Source: source})
		}
		*e = entries
		return nil

	case yaml.SequenceNode:
		var entries []Entry
		if err := node.Decode(&entries); err != nil {
			return err
		}
		*e = entries
		return nil

	default:
		return fmt.Errorf("line %d: entry must be a string, mapping or list", node.Line)
	}
}

func (e *Entries) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var source string
		if err := json.Unmarshal(data, &source); err != nil {
			return err
		}
		*e = Entries{{Name: defaultEntry, Source: source}}
		return nil

	case '[':
		var entries []Entry
		if err := json.Unmarshal(data, &entries); err != nil {
			return err
		}
		*e = entries
		return nil

	case '{':
		dec := json.NewDecoder(bytes.NewReader(data))
		if _, err := dec.Token(); err != nil {
			return err
		}
		var entries Entries
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			name, _ := tok.(string)
			var source string
			if err := dec.Decode(&source); err != nil {
				return fmt.Errorf("entry %q: %w", name, err)
			}
			entries = append(entries, Entry{Name: name, Source: source})
		}
		*e = entries
		return nil

	default:
		return fmt.Errorf("entry must be a string, object or array")
	}
}

// Use is one transform of a rule. The loader may carry its options as a
// query string, as in "file-loader?name=assets/[name].[ext]".
type Use struct {
	Loader  string         `yaml:"loader" json:"loader"`
	Options map[string]any `yaml:"options" json:"options"`
}

// ParseUse parses the string shorthand of a transform. A bare query key is
// kept with an empty value, which reads as true.
func ParseUse(s string) (Use, error) {
	loader, query, _ := strings.Cut(strings.TrimSpace(s), "?")
	u := Use{Loader: loader}
	if loader == "" {
		return u, fmt.Errorf("empty loader in %q", s)
	}
	if query == "" {
		return u, nil
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return u, fmt.Errorf("invalid options in %q: %w", s, err)
	}
	u.Options = make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			u.Options[k] = vs[0]
			continue
		}
		u.Options[k] = vs
	}
	return u, nil
}

// normalize folds query options on the loader name into Options. Explicit
// options win over the query.
func (u Use) normalize() (Use, error) {
	if !strings.Contains(u.Loader, "?") {
		return u, nil
	}
	parsed, err := ParseUse(u.Loader)
	if err != nil {
		return u, err
	}
	keys := make([]string, 0, len(u.Options))
	for k := range u.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if parsed.Options == nil && len(keys) > 0 {
		parsed.Options = make(map[string]any, len(keys))
	}
	for _, k := range keys {
		parsed.Options[k] = u.Options[k]
	}
	return parsed, nil
}

// UseList is a rule's transform chain: a single loader string, a single
// mapping, or a list mixing both.
type UseList []Use

func (l *UseList) UnmarshalYAML(node *yaml.Node) error {
	items := []*yaml.Node{node}
	if node.Kind == yaml.SequenceNode {
		items = node.Content
	}

	list := make(UseList, 0, len(items))
	for _, item := range items {
		u, err := decodeUseYAML(item)
		if err != nil {
			return err
		}
		list = append(list, u)
	}
	*l = list
	return nil
}

func decodeUseYAML(node *yaml.Node) (Use, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return ParseUse(node.Value)
	case yaml.MappingNode:
		var u Use
		if err := node.Decode(&u); err != nil {
			return u, err
		}
		return u.normalize()
	default:
		return Use{}, fmt.Errorf("line %d: use must be a loader string or mapping", node.Line)
	}
}

func (l *UseList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	items := []json.RawMessage{data}
	if data[0] == '[' {
		items = nil
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
	}

	list := make(UseList, 0, len(items))
	for _, item := range items {
		u, err := decodeUseJSON(bytes.TrimSpace(item))
		if err != nil {
			return err
		}
		list = append(list, u)
	}
	*l = list
	return nil
}

func decodeUseJSON(data []byte) (Use, error) {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return Use{}, err
		}
		return ParseUse(s)
	}

	var u Use
	if err := json.Unmarshal(data, &u); err != nil {
		return u, fmt.Errorf("use must be a loader string or object: %w", err)
	}
	return u.normalize()
}

// ChunkSelector lists the entries taking part in shared chunk extraction.
// The webpack values "all", "initial" and "async" select every entry.
type ChunkSelector []string

func (c *ChunkSelector) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return c.fromString(node.Value)
	}
	var names []string
	if err := node.Decode(&names); err != nil {
		return err
	}
	*c = names
	return nil
}

func (c *ChunkSelector) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return c.fromString(s)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("chunks must be a string or array: %w", err)
	}
	*c = names
	return nil
}

func (c *ChunkSelector) fromString(s string) error {
	switch s {
	case "", "all", "initial", "async":
		*c = nil
		return nil
	default:
		return fmt.Errorf("unknown chunks selector %q", s)
	}
}
