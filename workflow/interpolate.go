package workflow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Placeholders resolved against the execution context:
//
//	{{query}}              the user query
//	{{steps.<id>}}         output data of a completed step
//	{{steps.<id>.<field>}} a field of a completed step's map output
//
// A param whose string value is exactly one placeholder is replaced with
// the referenced value itself, preserving its type. Placeholders embedded
// in a longer string are replaced with a string rendering. Unresolvable
// placeholders are left untouched so tools can surface them in errors.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.-]+)\s*\}\}`)

// interpolateParams resolves placeholders in all string params, recursing
// into nested maps and slices. The input map is never mutated.
func interpolateParams(params map[string]any, wctx *Context) map[string]any {
	if len(params) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = interpolateValue(v, wctx)
	}
	return out
}

func interpolateValue(v any, wctx *Context) any {
	switch val := v.(type) {
	case string:
		return interpolateString(val, wctx)
	case map[string]any:
		return interpolateParams(val, wctx)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = interpolateValue(item, wctx)
		}
		return out
	default:
		return v
	}
}

func interpolateString(s string, wctx *Context) any {
	// Exact-match placeholder keeps the referenced value's type.
	if m := placeholderPattern.FindStringSubmatch(s); m != nil && m[0] == strings.TrimSpace(s) {
		if resolved, ok := resolveRef(m[1], wctx); ok {
			return resolved
		}
		return s
	}

	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		ref := placeholderPattern.FindStringSubmatch(match)[1]
		resolved, ok := resolveRef(ref, wctx)
		if !ok {
			return match
		}
		return renderValue(resolved)
	})
}

func resolveRef(ref string, wctx *Context) (any, bool) {
	if ref == "query" {
		return wctx.UserQuery, true
	}
	rest, ok := strings.CutPrefix(ref, "steps.")
	if !ok {
		return nil, false
	}

	stepID, field, hasField := strings.Cut(rest, ".")
	data, ok := wctx.StepResult(stepID)
	if !ok {
		return nil, false
	}
	if !hasField {
		return data, true
	}
	if m, ok := data.(map[string]any); ok {
		v, ok := m[field]
		return v, ok
	}
	return nil, false
}

func renderValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}
