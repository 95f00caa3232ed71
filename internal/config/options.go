package config

import "encoding/json"

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It performs only minimal coercion and returns the provided default when a
// key is absent or of an unexpected type.
//
// Options is the operand map handed to fix functions; its shape is defined
// by each function.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64,
// so float64 is accepted and truncated.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		}
	}
	return def
}

// Float returns the numeric value for key or def.
func (o Options) Float(key string, def float64) float64 {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	}
	return def
}

// Map returns the nested object stored under key, or nil.
func (o Options) Map(key string) map[string]any {
	if v, ok := o[key]; ok {
		switch m := v.(type) {
		case map[string]any:
			return m
		case Options:
			return m
		}
	}
	return nil
}

// StringSlice returns a []string for key when the value is an array of
// strings. A bare string is returned as a one-element slice. Returns nil
// when the key is missing or the value has another shape.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		case string:
			return []string{vv}
		}
	}
	return nil
}

// Any returns the raw value for key.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON makes a missing or null object decode to an empty, non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
