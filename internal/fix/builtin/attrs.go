package builtin

import (
	"fmt"
	"strings"

	"daops/internal/config"
	"daops/internal/dataset"
	"daops/internal/fix"
)

func (b *builtins) editVarAttrs(id string, ds *dataset.Dataset, ops config.Options) (*dataset.Dataset, error) {
	v, err := requireVar(ds, ops.String("var_id", ""))
	if err != nil {
		return nil, err
	}
	attrs, keys, err := b.resolved(id, ds, ops, "attrs")
	if err != nil {
		return nil, err
	}
	if v.Attrs == nil {
		v.Attrs = dataset.Attrs{}
	}
	for _, k := range keys {
		v.Attrs[k] = attrs[k]
	}
	return ds, nil
}

func (b *builtins) editGlobalAttrs(id string, ds *dataset.Dataset, ops config.Options) (*dataset.Dataset, error) {
	attrs, keys, err := b.resolved(id, ds, ops, "attrs")
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		ds.Attrs[k] = attrs[k]
	}
	return ds, nil
}

// addGlobalAttrsIfNeeded sets only attributes that are absent or empty.
func (b *builtins) addGlobalAttrsIfNeeded(id string, ds *dataset.Dataset, ops config.Options) (*dataset.Dataset, error) {
	attrs, keys, err := b.resolved(id, ds, ops, "attrs")
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if !isEmpty(ds.Attrs[k]) {
			continue
		}
		ds.Attrs[k] = attrs[k]
	}
	return ds, nil
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case []any:
		return len(x) == 0
	}
	if f, ok := dataset.ToFloat(v); ok {
		return f == 0
	}
	return false
}

func removeVarAttrs(_ string, ds *dataset.Dataset, ops config.Options) (*dataset.Dataset, error) {
	v, err := requireVar(ds, ops.String("var_id", ""))
	if err != nil {
		return nil, err
	}
	names, err := stringList(ops.Any("attrs"))
	if err != nil {
		return nil, err
	}
	for _, n := range names {
		if _, ok := v.Attrs[n]; !ok {
			return nil, fmt.Errorf("fix: variable %q has no attribute %q", ops.String("var_id", ""), n)
		}
		delete(v.Attrs, n)
	}
	return ds, nil
}

// removeCoordAttr clears the coordinates encoding of each listed variable so
// no coordinates attribute is written for it.
func (b *builtins) removeCoordAttr(id string, ds *dataset.Dataset, ops config.Options) (*dataset.Dataset, error) {
	raw, err := fix.ResolveAny(ops.Any("var_ids"), id, ds, b.reg)
	if err != nil {
		return nil, err
	}
	names, err := stringList(raw)
	if err != nil {
		return nil, err
	}
	for _, n := range names {
		v, err := requireVar(ds, n)
		if err != nil {
			return nil, err
		}
		if v.Encoding == nil {
			v.Encoding = dataset.Attrs{}
		}
		v.Encoding["coordinates"] = nil
	}
	return ds, nil
}

// fixMetadata applies "attr,value" pairs to the main variable.
func fixMetadata(_ string, ds *dataset.Dataset, ops config.Options) (*dataset.Dataset, error) {
	main, err := ds.MainVariable()
	if err != nil {
		return nil, err
	}
	pairs, err := stringList(ops.Any("fixes"))
	if err != nil {
		return nil, err
	}
	v := ds.DataVars[main]
	if v.Attrs == nil {
		v.Attrs = dataset.Attrs{}
	}
	for _, p := range pairs {
		attr, value, ok := strings.Cut(p, ",")
		if !ok {
			return nil, fmt.Errorf("fix: metadata fix %q is not attr,value", p)
		}
		v.Attrs[strings.TrimSpace(attr)] = value
	}
	return ds, nil
}
