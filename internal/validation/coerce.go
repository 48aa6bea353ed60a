package validation

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"

	"call-insights/internal/schema"
)

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func isIntegral(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f) && math.Trunc(f) == f
}

func matchesType(data any, t schema.Type) bool {
	switch t {
	case schema.TypeNull:
		return data == nil
	case schema.TypeBoolean:
		_, ok := data.(bool)
		return ok
	case schema.TypeString:
		_, ok := data.(string)
		return ok
	case schema.TypeNumber:
		_, ok := toFloat(data)
		return ok
	case schema.TypeInteger:
		f, ok := toFloat(data)
		return ok && isIntegral(f)
	case schema.TypeObject:
		_, ok := data.(map[string]any)
		return ok
	case schema.TypeArray:
		_, ok := data.([]any)
		return ok
	}
	return false
}

func matchesAny(data any, types []schema.Type) bool {
	for _, t := range types {
		if matchesType(data, t) {
			return true
		}
	}
	return false
}

// coerce converts a scalar to the first of types it can represent.
// Objects and arrays are never coerced.
func coerce(data any, types []schema.Type) (any, bool) {
	for _, t := range types {
		if out, ok := coerceTo(data, t); ok {
			return out, true
		}
	}
	return data, false
}

func coerceTo(data any, t schema.Type) (any, bool) {
	switch t {
	case schema.TypeString:
		switch v := data.(type) {
		case nil:
			return "", true
		case bool:
			return strconv.FormatBool(v), true
		case json.Number:
			return v.String(), true
		default:
			if f, ok := toFloat(v); ok {
				return strconv.FormatFloat(f, 'f', -1, 64), true
			}
		}
	case schema.TypeNumber, schema.TypeInteger:
		var f float64
		switch v := data.(type) {
		case nil:
			f = 0
		case bool:
			if v {
				f = 1
			}
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				return data, false
			}
			n, err := strconv.ParseFloat(s, 64)
			if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
				return data, false
			}
			f = n
		default:
			n, ok := toFloat(v)
			if !ok {
				return data, false
			}
			f = n
		}
		if t == schema.TypeInteger && !isIntegral(f) {
			return data, false
		}
		return f, true
	case schema.TypeBoolean:
		switch v := data.(type) {
		case nil:
			return false, true
		case string:
			if v == "true" {
				return true, true
			}
			if v == "false" {
				return false, true
			}
		default:
			if f, ok := toFloat(v); ok {
				if f == 1 {
					return true, true
				}
				if f == 0 {
					return false, true
				}
			}
		}
	case schema.TypeNull:
		switch v := data.(type) {
		case string:
			if v == "" {
				return nil, true
			}
		case bool:
			if !v {
				return nil, true
			}
		default:
			if f, ok := toFloat(v); ok && f == 0 {
				return nil, true
			}
		}
	}
	return data, false
}

// equal compares JSON values, treating every numeric representation alike.
func equal(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA || okB {
		return okA && okB && fa == fb
	}
	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !equal(v, w) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func applyTransforms(s string, transforms []string) string {
	for _, t := range transforms {
		switch t {
		case schema.TransformTrim:
			s = strings.TrimSpace(s)
		case schema.TransformLowerCase:
			s = strings.ToLower(s)
		case schema.TransformUpperCase:
			s = strings.ToUpper(s)
		}
	}
	return s
}

func typeNames(types []schema.Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
