// Package dataset holds the in-memory dataset handle that fixes operate on:
// global attributes, coordinate variables and data variables, each variable
// carrying its dimension names, shape, attributes, encoding and a flat
// row-major value slice.
package dataset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Attrs is an attribute map. Values are JSON-compatible scalars, slices or
// nested maps.
type Attrs map[string]any

// Clone deep-copies nested maps and slices.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, vv := range x {
			m[k] = cloneValue(vv)
		}
		return m
	case Attrs:
		return x.Clone()
	case []any:
		s := make([]any, len(x))
		for i, vv := range x {
			s[i] = cloneValue(vv)
		}
		return s
	case []string:
		return append([]string(nil), x...)
	case []float64:
		return append([]float64(nil), x...)
	}
	return v
}

// Variable is one named array.
type Variable struct {
	Dims     []string `json:"dims"`
	Shape    []int    `json:"shape,omitempty"`
	Attrs    Attrs    `json:"attrs,omitempty"`
	Encoding Attrs    `json:"encoding,omitempty"`
	Data     []any    `json:"data"`
}

// NewScalar builds a zero-dimensional variable.
func NewScalar(v any, attrs Attrs) *Variable {
	return &Variable{Dims: []string{}, Shape: []int{}, Attrs: attrs, Data: []any{v}}
}

// New1D builds a one-dimensional variable along dim.
func New1D(dim string, data []any, attrs Attrs) *Variable {
	return &Variable{Dims: []string{dim}, Shape: []int{len(data)}, Attrs: attrs, Data: data}
}

// Size is the number of elements.
func (v *Variable) Size() int {
	n := 1
	for _, s := range v.Shape {
		n *= s
	}
	return n
}

// Clone deep-copies the variable.
func (v *Variable) Clone() *Variable {
	if v == nil {
		return nil
	}
	data := make([]any, len(v.Data))
	for i, x := range v.Data {
		data[i] = cloneValue(x)
	}
	return &Variable{
		Dims:     append([]string{}, v.Dims...),
		Shape:    append([]int{}, v.Shape...),
		Attrs:    v.Attrs.Clone(),
		Encoding: v.Encoding.Clone(),
		Data:     data,
	}
}

// DimIndex returns the position of dim, or -1.
func (v *Variable) DimIndex(dim string) int {
	for i, d := range v.Dims {
		if d == dim {
			return i
		}
	}
	return -1
}

// Floats returns the data as float64. Non-numeric values fail.
func (v *Variable) Floats() ([]float64, error) {
	out := make([]float64, len(v.Data))
	for i, x := range v.Data {
		f, ok := ToFloat(x)
		if !ok {
			return nil, fmt.Errorf("dataset: value %v at %d is not numeric", x, i)
		}
		out[i] = f
	}
	return out, nil
}

// ToFloat coerces JSON-ish numbers.
func ToFloat(x any) (float64, bool) {
	switch n := x.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

// normalize fills an omitted shape for scalars and 1-D variables and checks
// that data length matches the shape.
func (v *Variable) normalize(name string) error {
	if v.Dims == nil {
		v.Dims = []string{}
	}
	if len(v.Shape) == 0 {
		switch len(v.Dims) {
		case 0:
			v.Shape = []int{}
		case 1:
			v.Shape = []int{len(v.Data)}
		default:
			return fmt.Errorf("dataset: variable %q has %d dims but no shape", name, len(v.Dims))
		}
	}
	if len(v.Shape) != len(v.Dims) {
		return fmt.Errorf("dataset: variable %q has %d dims and %d shape entries", name, len(v.Dims), len(v.Shape))
	}
	if v.Size() != len(v.Data) {
		return fmt.Errorf("dataset: variable %q has shape %v but %d values", name, v.Shape, len(v.Data))
	}
	return nil
}

// Dataset is the assembled handle passed through fixes and operations.
type Dataset struct {
	Attrs    Attrs                `json:"attrs"`
	Coords   map[string]*Variable `json:"coords"`
	DataVars map[string]*Variable `json:"data_vars"`
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{Attrs: Attrs{}, Coords: map[string]*Variable{}, DataVars: map[string]*Variable{}}
}

// Var looks a name up among coordinates, then data variables.
func (d *Dataset) Var(name string) (*Variable, bool) {
	if v, ok := d.Coords[name]; ok {
		return v, true
	}
	v, ok := d.DataVars[name]
	return v, ok
}

// IsCoord reports whether name is a coordinate.
func (d *Dataset) IsCoord(name string) bool {
	_, ok := d.Coords[name]
	return ok
}

// Delete removes a variable from whichever map holds it.
func (d *Dataset) Delete(name string) {
	delete(d.Coords, name)
	delete(d.DataVars, name)
}

// VarNames lists every variable, coordinates first, each group sorted.
func (d *Dataset) VarNames() []string {
	out := sortedKeys(d.Coords)
	return append(out, sortedKeys(d.DataVars)...)
}

func sortedKeys(m map[string]*Variable) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Sizes returns each dimension's length, failing on conflicts.
func (d *Dataset) Sizes() (map[string]int, error) {
	sizes := map[string]int{}
	for _, name := range d.VarNames() {
		v, _ := d.Var(name)
		for i, dim := range v.Dims {
			if i >= len(v.Shape) {
				return nil, fmt.Errorf("dataset: variable %q shape shorter than dims", name)
			}
			if n, ok := sizes[dim]; ok && n != v.Shape[i] {
				return nil, fmt.Errorf("dataset: dimension %q is %d in %q but %d elsewhere", dim, v.Shape[i], name, n)
			}
			sizes[dim] = v.Shape[i]
		}
	}
	return sizes, nil
}

// Validate normalises shapes and checks dimension consistency.
func (d *Dataset) Validate() error {
	if d.Attrs == nil {
		d.Attrs = Attrs{}
	}
	if d.Coords == nil {
		d.Coords = map[string]*Variable{}
	}
	if d.DataVars == nil {
		d.DataVars = map[string]*Variable{}
	}
	for name, v := range d.Coords {
		if _, dup := d.DataVars[name]; dup {
			return fmt.Errorf("dataset: %q is both a coordinate and a data variable", name)
		}
		if v == nil {
			return fmt.Errorf("dataset: coordinate %q is null", name)
		}
		if err := v.normalize(name); err != nil {
			return err
		}
	}
	for name, v := range d.DataVars {
		if v == nil {
			return fmt.Errorf("dataset: variable %q is null", name)
		}
		if err := v.normalize(name); err != nil {
			return err
		}
	}
	_, err := d.Sizes()
	return err
}

// Clone deep-copies the dataset.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Attrs:    d.Attrs.Clone(),
		Coords:   make(map[string]*Variable, len(d.Coords)),
		DataVars: make(map[string]*Variable, len(d.DataVars)),
	}
	if out.Attrs == nil {
		out.Attrs = Attrs{}
	}
	for k, v := range d.Coords {
		out.Coords[k] = v.Clone()
	}
	for k, v := range d.DataVars {
		out.DataVars[k] = v.Clone()
	}
	return out
}

// ErrNoMainVariable is returned when a dataset has no data variables.
var ErrNoMainVariable = errors.New("dataset: no main variable")

// MainVariable picks the variable a dataset is about: the one named by the
// variable_id attribute when present, otherwise the data variable with the
// most dimensions (then the most elements, then by name). Bounds variables
// are never chosen.
func (d *Dataset) MainVariable() (string, error) {
	if id, ok := d.Attrs["variable_id"].(string); ok {
		if _, ok := d.DataVars[id]; ok {
			return id, nil
		}
	}
	bounds := map[string]bool{}
	for _, name := range d.VarNames() {
		v, _ := d.Var(name)
		if b, ok := v.Attrs["bounds"].(string); ok {
			bounds[b] = true
		}
	}
	best := ""
	for _, name := range sortedKeys(d.DataVars) {
		if bounds[name] || strings.HasSuffix(name, "_bnds") || strings.HasSuffix(name, "_bounds") {
			continue
		}
		if best == "" {
			best = name
			continue
		}
		v, b := d.DataVars[name], d.DataVars[best]
		if len(v.Dims) > len(b.Dims) || (len(v.Dims) == len(b.Dims) && v.Size() > b.Size()) {
			best = name
		}
	}
	if best == "" {
		return "", ErrNoMainVariable
	}
	return best, nil
}

// Squeeze drops length-1 dimensions. With no arguments every length-1
// dimension is dropped; otherwise only the named ones, which must have
// length 1.
func (d *Dataset) Squeeze(dims ...string) error {
	sizes, err := d.Sizes()
	if err != nil {
		return err
	}
	drop := map[string]bool{}
	if len(dims) == 0 {
		for dim, n := range sizes {
			if n == 1 {
				drop[dim] = true
			}
		}
	}
	for _, dim := range dims {
		n, ok := sizes[dim]
		if !ok {
			return fmt.Errorf("dataset: cannot squeeze unknown dimension %q", dim)
		}
		if n != 1 {
			return fmt.Errorf("dataset: cannot squeeze dimension %q of length %d", dim, n)
		}
		drop[dim] = true
	}
	for _, name := range d.VarNames() {
		v, _ := d.Var(name)
		keptDims := v.Dims[:0:0]
		keptShape := v.Shape[:0:0]
		for i, dim := range v.Dims {
			if drop[dim] {
				continue
			}
			keptDims = append(keptDims, dim)
			keptShape = append(keptShape, v.Shape[i])
		}
		v.Dims, v.Shape = keptDims, keptShape
	}
	return nil
}
