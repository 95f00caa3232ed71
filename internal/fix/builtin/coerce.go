package builtin

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"daops/internal/dataset"
)

// cast converts v to the numpy-style dtype named by dtype: int*, uint*,
// float*, str/U/S/object, or bool. An empty dtype keeps v as given.
func cast(v any, dtype string) (any, error) {
	dt := strings.ToLower(strings.TrimLeft(dtype, "<>|="))
	switch {
	case dt == "":
		return v, nil
	case strings.HasPrefix(dt, "int"), strings.HasPrefix(dt, "uint"), dt == "i4", dt == "i8":
		f, err := number(v)
		if err != nil {
			return nil, err
		}
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("fix: %v is not an integer", v)
		}
		if strings.HasPrefix(dt, "uint") && f < 0 {
			return nil, fmt.Errorf("fix: %v is negative for %s", v, dtype)
		}
		return int64(f), nil
	case strings.HasPrefix(dt, "float"), dt == "f4", dt == "f8", dt == "double":
		return number(v)
	case dt == "str", dt == "object", strings.HasPrefix(dt, "u"), strings.HasPrefix(dt, "s"):
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	case dt == "bool":
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			return strconv.ParseBool(x)
		}
		f, err := number(v)
		if err != nil {
			return nil, err
		}
		return f != 0, nil
	}
	return nil, fmt.Errorf("fix: unsupported dtype %q", dtype)
}

func number(v any) (float64, error) {
	if f, ok := dataset.ToFloat(v); ok {
		return f, nil
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("fix: %q is not a number", s)
		}
		return f, nil
	}
	return 0, fmt.Errorf("fix: %T is not a number", v)
}

func castAll(vals []any, dtype string) ([]any, error) {
	out := make([]any, len(vals))
	for i, v := range vals {
		c, err := cast(v, dtype)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}
