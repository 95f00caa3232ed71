package dataset

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnsupportedRef is returned for Kerchunk references that point at byte
// ranges of other files or use compressed chunks.
var ErrUnsupportedRef = errors.New("dataset: unsupported kerchunk reference")

type zarray struct {
	Shape      []int           `json:"shape"`
	Chunks     []int           `json:"chunks"`
	DType      string          `json:"dtype"`
	FillValue  any             `json:"fill_value"`
	Compressor json.RawMessage `json:"compressor"`
	Filters    json.RawMessage `json:"filters"`
	Order      string          `json:"order"`
}

// DecodeKerchunk builds a dataset from a Kerchunk reference document whose
// chunks are all inline. Chunks may be JSON arrays or raw little/big-endian
// numeric bytes, optionally base64-encoded.
func DecodeKerchunk(b []byte) (*Dataset, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("dataset: decode kerchunk: %w", err)
	}
	refsRaw := json.RawMessage(b)
	if r, ok := doc["refs"]; ok {
		refsRaw = r
	}
	var refs map[string]any
	if err := json.Unmarshal(refsRaw, &refs); err != nil {
		return nil, fmt.Errorf("dataset: decode kerchunk refs: %w", err)
	}

	ds := New()
	if s, ok := refs[".zattrs"].(string); ok {
		if err := json.Unmarshal([]byte(s), &ds.Attrs); err != nil {
			return nil, fmt.Errorf("dataset: kerchunk .zattrs: %w", err)
		}
	}

	vars := map[string]*Variable{}
	for key := range refs {
		name, ok := strings.CutSuffix(key, "/.zarray")
		if !ok {
			continue
		}
		v, err := decodeKerchunkVar(refs, name)
		if err != nil {
			return nil, err
		}
		vars[name] = v
	}

	coordNames := map[string]bool{}
	for _, v := range vars {
		for _, d := range v.Dims {
			coordNames[d] = true
		}
		if s, ok := v.Attrs["coordinates"].(string); ok {
			for _, c := range strings.Fields(s) {
				coordNames[c] = true
			}
		}
	}
	for name, v := range vars {
		if coordNames[name] {
			ds.Coords[name] = v
		} else {
			ds.DataVars[name] = v
		}
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

func decodeKerchunkVar(refs map[string]any, name string) (*Variable, error) {
	metaStr, ok := refs[name+"/.zarray"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s/.zarray is not inline", ErrUnsupportedRef, name)
	}
	var za zarray
	if err := json.Unmarshal([]byte(metaStr), &za); err != nil {
		return nil, fmt.Errorf("dataset: kerchunk %s/.zarray: %w", name, err)
	}
	if c := strings.TrimSpace(string(za.Compressor)); c != "" && c != "null" {
		return nil, fmt.Errorf("%w: %s uses a compressor", ErrUnsupportedRef, name)
	}
	if f := strings.TrimSpace(string(za.Filters)); f != "" && f != "null" && f != "[]" {
		return nil, fmt.Errorf("%w: %s uses filters", ErrUnsupportedRef, name)
	}
	if za.Order != "" && za.Order != "C" {
		return nil, fmt.Errorf("%w: %s uses %s order", ErrUnsupportedRef, name, za.Order)
	}
	if len(za.Chunks) == 0 {
		za.Chunks = za.Shape
	}
	if len(za.Chunks) != len(za.Shape) {
		return nil, fmt.Errorf("dataset: kerchunk %s chunks %v do not match shape %v", name, za.Chunks, za.Shape)
	}

	attrs := Attrs{}
	if s, ok := refs[name+"/.zattrs"].(string); ok {
		if err := json.Unmarshal([]byte(s), &attrs); err != nil {
			return nil, fmt.Errorf("dataset: kerchunk %s/.zattrs: %w", name, err)
		}
	}
	var dims []string
	if raw, ok := attrs["_ARRAY_DIMENSIONS"].([]any); ok {
		for _, d := range raw {
			s, _ := d.(string)
			dims = append(dims, s)
		}
		delete(attrs, "_ARRAY_DIMENSIONS")
	}
	if len(dims) != len(za.Shape) {
		return nil, fmt.Errorf("dataset: kerchunk %s has %d dims for shape %v", name, len(dims), za.Shape)
	}

	if s, ok := za.FillValue.(string); ok && (s == "NaN" || s == "nan") {
		za.FillValue = nil
	}
	v := &Variable{Dims: dims, Shape: append([]int{}, za.Shape...), Attrs: attrs, Encoding: Attrs{"dtype": za.DType}}
	if za.FillValue != nil {
		v.Encoding["_FillValue"] = za.FillValue
	}
	v.Data = make([]any, v.Size())
	for i := range v.Data {
		v.Data[i] = za.FillValue
	}

	chunkSize := 1
	for _, c := range za.Chunks {
		chunkSize *= c
	}
	grid := make([]int, len(za.Shape))
	for i := range grid {
		grid[i] = (za.Shape[i] + za.Chunks[i] - 1) / za.Chunks[i]
	}

	err := forEachIndex(grid, func(ci []int) error {
		key := name + "/" + chunkKey(ci)
		raw, ok := refs[key]
		if !ok {
			return nil
		}
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("%w: %s points at external bytes", ErrUnsupportedRef, key)
		}
		vals, err := decodeChunk(s, za.DType, chunkSize)
		if err != nil {
			return fmt.Errorf("dataset: kerchunk %s: %w", key, err)
		}
		return forEachIndex(za.Chunks, func(li []int) error {
			flatGlobal, inside := 0, true
			flatLocal := 0
			for d := range li {
				g := ci[d]*za.Chunks[d] + li[d]
				if g >= za.Shape[d] {
					inside = false
					break
				}
				flatGlobal = flatGlobal*za.Shape[d] + g
				flatLocal = flatLocal*za.Chunks[d] + li[d]
			}
			if inside {
				v.Data[flatGlobal] = vals[flatLocal]
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func chunkKey(idx []int) string {
	if len(idx) == 0 {
		return "0"
	}
	parts := make([]string, len(idx))
	for i, n := range idx {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// forEachIndex visits every index of an n-d grid in row-major order.
func forEachIndex(shape []int, fn func([]int) error) error {
	for _, n := range shape {
		if n == 0 {
			return nil
		}
	}
	idx := make([]int, len(shape))
	for {
		if err := fn(idx); err != nil {
			return err
		}
		d := len(shape) - 1
		for d >= 0 {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
			d--
		}
		if d < 0 {
			return nil
		}
	}
}

func decodeChunk(s, dtype string, n int) ([]any, error) {
	var raw []byte
	if b64, ok := strings.CutPrefix(s, "base64:"); ok {
		b, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, err
		}
		raw = b
	} else {
		raw = []byte(s)
	}

	if t := strings.TrimSpace(string(raw)); strings.HasPrefix(t, "[") {
		var vals []any
		if err := json.Unmarshal([]byte(t), &vals); err != nil {
			return nil, err
		}
		flat := flatten(vals)
		if len(flat) != n {
			return nil, fmt.Errorf("inline chunk has %d values, want %d", len(flat), n)
		}
		return flat, nil
	}
	return decodeBinary(raw, dtype, n)
}

func flatten(vals []any) []any {
	var out []any
	for _, v := range vals {
		if inner, ok := v.([]any); ok {
			out = append(out, flatten(inner)...)
			continue
		}
		out = append(out, v)
	}
	return out
}

func decodeBinary(raw []byte, dtype string, n int) ([]any, error) {
	if len(dtype) < 3 {
		return nil, fmt.Errorf("bad dtype %q", dtype)
	}
	var order binary.ByteOrder = binary.LittleEndian
	if dtype[0] == '>' {
		order = binary.BigEndian
	}
	kind := dtype[1]
	width, err := strconv.Atoi(dtype[2:])
	if err != nil {
		return nil, fmt.Errorf("bad dtype %q", dtype)
	}
	if len(raw) != n*width {
		return nil, fmt.Errorf("chunk has %d bytes, want %d for %d x %s", len(raw), n*width, n, dtype)
	}
	out := make([]any, n)
	for i := 0; i < n; i++ {
		b := raw[i*width : (i+1)*width]
		var f float64
		switch {
		case kind == 'f' && width == 8:
			f = math.Float64frombits(order.Uint64(b))
		case kind == 'f' && width == 4:
			f = float64(math.Float32frombits(order.Uint32(b)))
		case kind == 'i' && width == 1:
			f = float64(int8(b[0]))
		case kind == 'i' && width == 2:
			f = float64(int16(order.Uint16(b)))
		case kind == 'i' && width == 4:
			f = float64(int32(order.Uint32(b)))
		case kind == 'i' && width == 8:
			f = float64(int64(order.Uint64(b)))
		case kind == 'u' && width == 1:
			f = float64(b[0])
		case kind == 'u' && width == 2:
			f = float64(order.Uint16(b))
		case kind == 'u' && width == 4:
			f = float64(order.Uint32(b))
		case kind == 'u' && width == 8:
			f = float64(order.Uint64(b))
		default:
			return nil, fmt.Errorf("unsupported dtype %q", dtype)
		}
		if math.IsNaN(f) {
			out[i] = nil
			continue
		}
		out[i] = f
	}
	return out, nil
}
