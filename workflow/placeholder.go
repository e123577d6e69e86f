package workflow

import "strings"

// substitutePlaceholders walks a value tree and replaces {key} markers inside
// strings with the string form of the matching field from input. Markers with
// no matching input key are left untouched, so substitution is idempotent on
// strings that happen to contain braces.
//
// This is deliberately literal string replacement, not a template language:
// no escaping, no nested expressions, no formatting directives.
func substitutePlaceholders(v any, input any) any {
	in, ok := asMap(input)
	if !ok || len(in) == 0 {
		return v
	}
	return substitute(v, in)
}

func substitute(v any, in map[string]any) any {
	switch t := v.(type) {
	case string:
		if !strings.Contains(t, "{") {
			return t
		}
		s := t
		for k, val := range in {
			marker := "{" + k + "}"
			if strings.Contains(s, marker) {
				s = strings.ReplaceAll(s, marker, stringifyValue(val))
			}
		}
		return s
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = substitute(val, in)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = substitute(val, in)
		}
		return out
	default:
		return v
	}
}
