package fix

import (
	"strings"

	"daops/internal/dataset"
	"daops/internal/errs"
	"daops/internal/registry"
)

const derivePrefix = "derive:"

// Value is an operand value: either a literal or a reference to a derive
// function evaluated against the merged dataset when its post-processor
// runs.
type Value struct {
	literal any

	fn     registry.DeriveFunc
	name   string
	arg    string
	hasArg bool
}

// Literal wraps a plain operand value.
func Literal(v any) Value { return Value{literal: v} }

// IsDerived reports whether v calls a derive function.
func (v Value) IsDerived() bool { return v.fn != nil }

// Name returns the derive function name, or "".
func (v Value) Name() string { return v.name }

// Resolve returns the literal, or invokes the derive function with the
// dataset id, the dataset and the optional literal argument.
func (v Value) Resolve(id string, ds *dataset.Dataset) (any, error) {
	if v.fn == nil {
		return v.literal, nil
	}
	if v.hasArg {
		return v.fn(id, ds, v.arg)
	}
	return v.fn(id, ds)
}

// ParseDerive splits "derive: <name>[: <arg>]". ok is false when s is not a
// derive expression. The argument keeps any further colons.
func ParseDerive(s string) (name, arg string, hasArg, ok bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, derivePrefix) {
		return "", "", false, false
	}
	parts := strings.SplitN(s, ":", 3)
	name = strings.TrimSpace(parts[1])
	if len(parts) == 3 {
		arg, hasArg = strings.TrimSpace(parts[2]), true
	}
	return name, arg, hasArg, true
}

// ParseValue converts a raw operand into a Value, resolving derive names
// through reg. Only strings are inspected; nested structures stay literal.
func ParseValue(raw any, reg *registry.Registry) (Value, error) {
	s, isString := raw.(string)
	if !isString {
		return Literal(raw), nil
	}
	name, arg, hasArg, ok := ParseDerive(s)
	if !ok {
		return Literal(raw), nil
	}
	if name == "" {
		return Value{}, errs.New(errs.CodeFixResolution, s, "derive expression names no function")
	}
	fn, found := reg.Derive(name)
	if !found {
		return Value{}, errs.New(errs.CodeFixResolution, s, "derive function %q is not registered", name)
	}
	return Value{fn: fn, name: name, arg: arg, hasArg: hasArg}, nil
}

// ResolveAny resolves raw if it is a derive expression, looking the function
// up in reg at call time. Post-processors use it for values nested inside
// their operand maps.
func ResolveAny(raw any, id string, ds *dataset.Dataset, reg *registry.Registry) (any, error) {
	v, err := ParseValue(raw, reg)
	if err != nil {
		return nil, err
	}
	return v.Resolve(id, ds)
}
