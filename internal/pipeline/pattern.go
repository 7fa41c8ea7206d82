package pipeline

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is a regular expression predicate over slash separated module
// paths. Paths are matched in rooted form, so src/a.js is tested as /src/a.js
// and a separator class such as [\\/]node_modules[\\/] also matches a top
// level node_modules directory. The zero Pattern matches nothing.
type Pattern struct {
	re *regexp.Regexp
}

// CompilePattern accepts a Go regular expression or a JavaScript style
// literal such as /\.(png|jpe?g)$/i. The i flag maps to (?i); g and other
// flags have no meaning for a match test and are ignored.
func CompilePattern(expr string) (Pattern, error) {
	if expr == "" {
		return Pattern{}, nil
	}

	src := expr
	if strings.HasPrefix(expr, "/") {
		if end := strings.LastIndex(expr, "/"); end > 0 && isFlags(expr[end+1:]) {
			src = expr[1:end]
			if strings.Contains(expr[end+1:], "i") {
				src = "(?i)" + src
			}
		}
	}

	re, err := regexp.Compile(src)
	if err != nil {
		return Pattern{}, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	return Pattern{re: re}, nil
}

func MustCompilePattern(expr string) Pattern {
	p, err := CompilePattern(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func isFlags(s string) bool {
	for _, c := range s {
		if !strings.ContainsRune("dgimsuy", c) {
			return false
		}
	}
	return true
}

func (p Pattern) Match(path string) bool {
	if p.re == nil {
		return false
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return p.re.MatchString(path)
}

func (p Pattern) IsZero() bool {
	return p.re == nil
}

func (p Pattern) String() string {
	if p.re == nil {
		return ""
	}
	return p.re.String()
}
