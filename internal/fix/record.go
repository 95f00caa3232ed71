// Package fix turns fix records from the fix store into runnable fix sets:
// an ordered pre-processor chain applied to every file before merge, and an
// ordered list of post-processors applied once to the merged dataset.
package fix

import (
	"encoding/json"
	"fmt"

	"daops/internal/config"
)

// Process types accepted in a fix record.
const (
	PreProcessor  = "pre_processor"
	PostProcessor = "post_processor"
)

// Record is one stored fix. Store order is application order.
type Record struct {
	ReferenceImplementation string         `json:"reference_implementation"`
	ProcessType             string         `json:"process_type"`
	Operands                config.Options `json:"operands"`
}

// Document is the stored value for one dataset id.
type Document struct {
	Fixes []Record `json:"fixes"`
}

// DecodeDocument parses a stored fix document. A document wrapped in a
// search-engine envelope ({"_source": {...}}) is unwrapped.
func DecodeDocument(b []byte) (Document, error) {
	var env struct {
		Source *Document `json:"_source"`
		Document
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return Document{}, fmt.Errorf("fix: decode document: %w", err)
	}
	if env.Source != nil {
		return *env.Source, nil
	}
	return env.Document, nil
}
