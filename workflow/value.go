package workflow

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Values flowing between nodes are JSON trees: map[string]any, []any, string,
// float64, bool, nil, plus []byte produced by the embedding executor.

// asMap returns v as a string-keyed map when it is one.
func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// asSlice returns v as a slice when it is one.
func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// cloneValue deep-copies a value tree. Nodes receive cloned inputs so an
// executor mutating its input cannot corrupt a predecessor's recorded output.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []byte:
		out := make([]byte, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// sanitizeValue recursively replaces []byte with its standard base64 encoding
// so the execution trace is always JSON-encodable.
func sanitizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = sanitizeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = sanitizeValue(val)
		}
		return out
	default:
		return v
	}
}

// stringifyValue renders a value for placeholder substitution. Scalars render
// bare; composites render as compact JSON.
func stringifyValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	default:
		b, err := json.Marshal(sanitizeValue(t))
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// toFloat coerces a value to float64 for numeric comparison. Strings holding
// plain integer or decimal literals are promoted.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// lookupPath resolves a dotted path (e.g. "user.address.city") inside a value
// tree. The second return is false when any segment is missing.
func lookupPath(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// mapKeys returns the keys of a mapping value sorted for stable messages.
func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// truncate shortens a string to at most n runes, appending an ellipsis marker
// when content was cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
