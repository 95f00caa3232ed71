package fix

import (
	"fmt"

	"daops/internal/dataset"
	"daops/internal/registry"
)

// Step is one named pre-processor.
type Step struct {
	Name string
	Fn   registry.PreFunc
}

// Chain composes pre-processors: Apply(x) == f_n(...f_1(x)...).
type Chain []Step

// Apply runs each step in order on ds. Step errors are returned unchanged.
func (c Chain) Apply(ds *dataset.Dataset) (*dataset.Dataset, error) {
	for _, s := range c {
		out, err := s.Fn(ds)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, fmt.Errorf("fix: pre-processor %s returned no dataset", s.Name)
		}
		ds = out
	}
	return ds, nil
}

// Empty reports whether the chain has no steps.
func (c Chain) Empty() bool { return len(c) == 0 }

// Names lists step names in order.
func (c Chain) Names() []string {
	out := make([]string, len(c))
	for i, s := range c {
		out[i] = s.Name
	}
	return out
}
