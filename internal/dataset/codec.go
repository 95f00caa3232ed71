package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Extension is the file suffix of the JSON dataset rendering.
const Extension = ".ncj"

// Decode reads a dataset in its JSON rendering and validates it.
func Decode(b []byte) (*Dataset, error) {
	var d Dataset
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("dataset: decode: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Encode writes the JSON rendering of d.
func Encode(w io.Writer, d *Dataset) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("dataset: encode: %w", err)
	}
	return nil
}
