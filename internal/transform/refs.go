package transform

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"strings"
)

const (
	refPrefix = "__SITEPACK_REF["
	refSuffix = "]__"
)

// Ref returns the placeholder standing in for the output path of the source
// file p. Placeholders are substituted once every output name is known. The
// path is hex encoded so JSON, HTML and CSS encoders leave it untouched.
func Ref(p string) string {
	return refPrefix + hex.EncodeToString([]byte(p)) + refSuffix
}

// ReplaceRefs substitutes every placeholder in content using resolve, which
// receives the decoded source path.
func ReplaceRefs(content []byte, resolve func(ref string) (string, error)) ([]byte, error) {
	if !bytes.Contains(content, []byte(refPrefix)) {
		return content, nil
	}

	var buf bytes.Buffer
	rest := content
	for {
		start := bytes.Index(rest, []byte(refPrefix))
		if start < 0 {
			buf.Write(rest)
			break
		}
		end := bytes.Index(rest[start+len(refPrefix):], []byte(refSuffix))
		if end < 0 {
			return nil, fmt.Errorf("unterminated reference at offset %d", len(content)-len(rest)+start)
		}
		ref, err := hex.DecodeString(string(rest[start+len(refPrefix) : start+len(refPrefix)+end]))
		if err != nil {
			return nil, fmt.Errorf("malformed reference at offset %d: %w", len(content)-len(rest)+start, err)
		}
		replacement, err := resolve(string(ref))
		if err != nil {
			return nil, err
		}
		buf.Write(rest[:start])
		buf.WriteString(replacement)
		rest = rest[start+len(refPrefix)+end+len(refSuffix):]
	}

	return buf.Bytes(), nil
}

// Refs lists the placeholders present in content, in order of appearance.
func Refs(content []byte) []string {
	var refs []string
	_, _ = ReplaceRefs(content, func(ref string) (string, error) {
		refs = append(refs, ref)
		return "", nil
	})
	return refs
}

// ResolveRef turns a URL found in a stylesheet or document into a source path
// relative to the build context. External, data and fragment URLs are not
// resolvable and report false.
func ResolveRef(from, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "//") {
		return "", false
	}

	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" {
		return "", false
	}
	p := u.Path

	switch {
	case strings.HasPrefix(p, "~"):
		// webpack module syntax
		return path.Clean(path.Join("node_modules", strings.TrimPrefix(p, "~"))), true
	case strings.HasPrefix(p, "/"):
		return path.Clean(strings.TrimPrefix(p, "/")), true
	default:
		joined := path.Join(path.Dir(from), p)
		if strings.HasPrefix(joined, "../") || joined == ".." {
			return "", false
		}
		return joined, true
	}
}
