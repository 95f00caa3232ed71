package builtin

import (
	"fmt"
	"math"
	"strings"

	"daops/internal/config"
	"daops/internal/dataset"
	"daops/internal/fix"
)

func squeezeDims(_ string, ds *dataset.Dataset, ops config.Options) (*dataset.Dataset, error) {
	dims, err := stringList(ops.Any("dims"))
	if err != nil {
		return nil, err
	}
	for _, d := range dims {
		if err := ds.Squeeze(d); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// addScalarCoord adds a zero-dimensional coordinate and lists it in the main
// variable's coordinates encoding.
func (b *builtins) addScalarCoord(id string, ds *dataset.Dataset, ops config.Options) (*dataset.Dataset, error) {
	name := ops.String("var_id", "")
	if name == "" {
		return nil, fmt.Errorf("fix: operand var_id is required")
	}
	raw, err := fix.ResolveAny(ops.Any("value"), id, ds, b.reg)
	if err != nil {
		return nil, err
	}
	val, err := cast(raw, ops.String("dtype", ""))
	if err != nil {
		return nil, err
	}
	v := dataset.NewScalar(val, dataset.Attrs{})
	return b.attachCoord(id, ds, ops, name, v)
}

// addCoord adds a one-dimensional coordinate along operand dim.
func (b *builtins) addCoord(id string, ds *dataset.Dataset, ops config.Options) (*dataset.Dataset, error) {
	name, dim := ops.String("var_id", ""), ops.String("dim", "")
	if name == "" || dim == "" {
		return nil, fmt.Errorf("fix: operands var_id and dim are required")
	}
	raw, err := fix.ResolveAny(ops.Any("value"), id, ds, b.reg)
	if err != nil {
		return nil, err
	}
	vals, ok := raw.([]any)
	if !ok {
		if ss, isStrings := raw.([]string); isStrings {
			vals = make([]any, len(ss))
			for i, s := range ss {
				vals[i] = s
			}
		} else {
			vals = []any{raw}
		}
	}
	vals, err = castAll(vals, ops.String("dtype", ""))
	if err != nil {
		return nil, err
	}
	sizes, err := ds.Sizes()
	if err != nil {
		return nil, err
	}
	if n, ok := sizes[dim]; ok && n != len(vals) {
		return nil, fmt.Errorf("fix: coordinate %q has %d values but dimension %q has length %d", name, len(vals), dim, n)
	}
	v := dataset.New1D(dim, vals, dataset.Attrs{})
	return b.attachCoord(id, ds, ops, name, v)
}

func (b *builtins) attachCoord(id string, ds *dataset.Dataset, ops config.Options, name string, v *dataset.Variable) (*dataset.Dataset, error) {
	attrs, keys, err := b.resolved(id, ds, ops, "attrs")
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		v.Attrs[k] = attrs[k]
	}
	enc, keys, err := b.resolved(id, ds, ops, "encoding")
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		v.Encoding = dataset.Attrs{}
		for _, k := range keys {
			v.Encoding[k] = enc[k]
		}
	}
	if dt := ops.String("dtype", ""); dt != "" {
		if v.Encoding == nil {
			v.Encoding = dataset.Attrs{}
		}
		if _, set := v.Encoding["dtype"]; !set {
			v.Encoding["dtype"] = dt
		}
	}
	delete(ds.DataVars, name)
	ds.Coords[name] = v

	main, err := ds.MainVariable()
	if err != nil {
		return nil, err
	}
	mv := ds.DataVars[main]
	if mv.Encoding == nil {
		mv.Encoding = dataset.Attrs{}
	}
	coords, _ := mv.Encoding["coordinates"].(string)
	mv.Encoding["coordinates"] = strings.TrimSpace(coords + " " + name)
	return ds, nil
}

// addDataVar adds a scalar data variable.
func addDataVar(_ string, ds *dataset.Dataset, ops config.Options) (*dataset.Dataset, error) {
	name := ops.String("var_id", "")
	if name == "" {
		return nil, fmt.Errorf("fix: operand var_id is required")
	}
	val, err := cast(ops.Any("value"), ops.String("dtype", ""))
	if err != nil {
		return nil, err
	}
	attrs := dataset.Attrs{}
	for k, v := range ops.Map("attrs") {
		attrs[k] = v
	}
	delete(ds.Coords, name)
	ds.DataVars[name] = dataset.NewScalar(val, attrs)
	return ds, nil
}

// maskData replaces every main-variable element equal to value with a
// missing value.
func maskData(_ string, ds *dataset.Dataset, ops config.Options) (*dataset.Dataset, error) {
	target, err := number(ops.Any("value"))
	if err != nil {
		return nil, err
	}
	main, err := ds.MainVariable()
	if err != nil {
		return nil, err
	}
	v := ds.DataVars[main]
	for i, x := range v.Data {
		f, ok := dataset.ToFloat(x)
		if !ok {
			continue
		}
		if f == target || (math.IsNaN(target) && math.IsNaN(f)) {
			v.Data[i] = nil
		}
	}
	return ds, nil
}
