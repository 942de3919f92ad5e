// Package typeutil provides comma-ok accessors for loosely typed values,
// chiefly maps decoded from JSON and domain function results.
package typeutil

// String asserts value to string.
func String(value any) (string, bool) {
	s, ok := value.(string)
	return s, ok
}

// StringDefault asserts value to string, falling back to def.
func StringDefault(value any, def string) string {
	if s, ok := String(value); ok {
		return s
	}
	return def
}

// Float64 converts numeric values to float64.
// JSON numbers decode as float64; ints are accepted for values built in Go.
func Float64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	default:
		return 0, false
	}
}

// Float64Default converts value to float64, falling back to def.
func Float64Default(value any, def float64) float64 {
	if f, ok := Float64(value); ok {
		return f
	}
	return def
}

// Int converts numeric values to int, truncating floats.
func Int(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case int32:
		return int(v), true
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	default:
		return 0, false
	}
}

// IntDefault converts value to int, falling back to def.
func IntDefault(value any, def int) int {
	if i, ok := Int(value); ok {
		return i
	}
	return def
}

// Map asserts value to map[string]any.
func Map(value any) (map[string]any, bool) {
	m, ok := value.(map[string]any)
	return m, ok && m != nil
}

// Maps converts a []any of objects (or a []map[string]any) into []map[string]any.
// Elements that are not objects are skipped.
func Maps(value any) ([]map[string]any, bool) {
	switch v := value.(type) {
	case []map[string]any:
		return v, true
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := Map(item); ok {
				out = append(out, m)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// Strings converts a []any of strings (or a []string) into []string.
// Returns false if any element is not a string.
func Strings(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// Bool asserts value to bool.
func Bool(value any) (bool, bool) {
	b, ok := value.(bool)
	return b, ok
}
