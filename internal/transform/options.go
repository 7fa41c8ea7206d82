package transform

import (
	"fmt"
	"strconv"
)

// Options carries a stage's configuration as decoded from the rule table.
type Options map[string]any

func (o Options) String(key, def string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	switch val := v.(type) {
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// Bool accepts real booleans as well as the strings produced by
// query-string loader shorthand ("minimize=false", or a bare "minimize").
func (o Options) Bool(key string, def bool) bool {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		if val == "" {
			return true
		}
		b, err := strconv.ParseBool(val)
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

func (o Options) Strings(key string) []string {
	switch val := o[key].(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		return []string{val}
	default:
		return nil
	}
}

func (o Options) Map(key string) map[string]any {
	switch val := o[key].(type) {
	case map[string]any:
		return val
	case Options:
		return val
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = v
		}
		return out
	default:
		return nil
	}
}
