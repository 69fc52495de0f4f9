package adapters

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Accessor helpers read loosely-typed vendor payloads (decoded JSON) without
// ever raising a type error: a missing key or an incompatible value degrades
// to the caller-supplied default. Numeric strings coerce to int/float and
// numbers coerce to string, but there is no coercion across array/scalar or
// bool/other-scalar boundaries.

// GetString returns the string at key, coercing numeric values.
func GetString(m map[string]any, key, def string) string {
	v, ok := m[key]
	if !ok {
		return def
	}
	return AsString(v, def)
}

// GetInt returns the int at key, coercing floats and numeric strings.
func GetInt(m map[string]any, key string, def int) int {
	v, ok := m[key]
	if !ok {
		return def
	}
	return AsInt(v, def)
}

// GetFloat returns the float at key, coercing ints and numeric strings.
func GetFloat(m map[string]any, key string, def float64) float64 {
	v, ok := m[key]
	if !ok {
		return def
	}
	return AsFloat(v, def)
}

// GetBool returns the bool at key. Only a real bool qualifies.
func GetBool(m map[string]any, key string, def bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return def
}

// GetArray returns the object at key, or def when the value is not a map.
func GetArray(m map[string]any, key string, def map[string]any) map[string]any {
	v, ok := m[key]
	if !ok {
		return def
	}
	return AsArray(v, def)
}

// GetList returns the list at key, or an empty slice when the key is missing
// or not list-shaped. An absent list means "no elements", never a default.
func GetList(m map[string]any, key string) []any {
	if v, ok := m[key].([]any); ok {
		return v
	}
	return []any{}
}

// GetNullableString returns nil for a missing key, explicit null, or an
// incompatible value; otherwise the coerced string.
func GetNullableString(m map[string]any, key string) *string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	if s, ok := coerceString(v); ok {
		return &s
	}
	return nil
}

// GetNullableInt returns nil for a missing key, explicit null, or an
// incompatible value; otherwise the coerced int.
func GetNullableInt(m map[string]any, key string) *int {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	if n, ok := coerceInt(v); ok {
		return &n
	}
	return nil
}

// GetNestedArray walks a dot-separated path of nested objects. Any missing
// segment or non-object intermediate short-circuits to def.
func GetNestedArray(m map[string]any, path string, def map[string]any) map[string]any {
	v, ok := walkPath(m, path)
	if !ok {
		return def
	}
	return AsArray(v, def)
}

// GetNestedString walks a dot-separated path and coerces the leaf to string.
func GetNestedString(m map[string]any, path, def string) string {
	v, ok := walkPath(m, path)
	if !ok {
		return def
	}
	return AsString(v, def)
}

// GetNestedInt walks a dot-separated path and coerces the leaf to int.
func GetNestedInt(m map[string]any, path string, def int) int {
	v, ok := walkPath(m, path)
	if !ok {
		return def
	}
	return AsInt(v, def)
}

// GetNestedFloat walks a dot-separated path and coerces the leaf to float64.
func GetNestedFloat(m map[string]any, path string, def float64) float64 {
	v, ok := walkPath(m, path)
	if !ok {
		return def
	}
	return AsFloat(v, def)
}

func walkPath(m map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var current any = m
	for _, seg := range segments {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// AsString coerces a raw value to string. Numbers qualify, bools and
// collections do not.
func AsString(v any, def string) string {
	if s, ok := coerceString(v); ok {
		return s
	}
	return def
}

// AsInt coerces a raw value to int. Floats truncate, numeric strings parse.
func AsInt(v any, def int) int {
	if n, ok := coerceInt(v); ok {
		return n
	}
	return def
}

// AsFloat coerces a raw value to float64.
func AsFloat(v any, def float64) float64 {
	if f, ok := coerceFloat(v); ok {
		return f
	}
	return def
}

// AsArray returns v as an object map, or def.
func AsArray(v any, def map[string]any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return def
}

// AsList returns v as a list, or def.
func AsList(v any, def []any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	return def
}

func coerceString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

func coerceInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), true
		}
		if f, err := t.Float64(); err == nil {
			return int(f), true
		}
		return 0, false
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return int(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func coerceFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f, true
		}
		return 0, false
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// DecodeJSONResponse parses text as JSON and requires an object or array at
// the top level. Vendors occasionally return bare arrays, so those pass; a
// bare string or number does not.
func DecodeJSONResponse(provider, text string) (any, error) {
	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil, NewMalformedPayloadError(provider, err)
	}
	switch decoded.(type) {
	case map[string]any, []any:
		return decoded, nil
	default:
		return nil, NewUnexpectedShapeError(provider, "expected JSON object or array at top level")
	}
}
