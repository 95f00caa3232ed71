package ops

import (
	"path"
	"strings"

	"daops/internal/dsref"
)

// ResultSet holds per-dataset outputs in input order plus every output that
// names a file or remote object.
type ResultSet struct {
	ids      []string
	results  map[string][]any
	fileURIs []string
}

// NewResultSet returns an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{results: map[string][]any{}}
}

// Add appends result under id. A repeated id keeps its first position.
func (r *ResultSet) Add(id string, result any) {
	if _, ok := r.results[id]; !ok {
		r.ids = append(r.ids, id)
	}
	r.results[id] = append(r.results[id], result)
	r.collect(result)
}

func (r *ResultSet) collect(v any) {
	switch x := v.(type) {
	case string:
		if looksLikeFile(x) {
			r.fileURIs = append(r.fileURIs, x)
		}
	case []string:
		for _, s := range x {
			r.collect(s)
		}
	case []any:
		for _, s := range x {
			r.collect(s)
		}
	}
}

// looksLikeFile reports whether s is a URI or a path with an extension.
func looksLikeFile(s string) bool {
	if dsref.HasScheme(s) {
		return true
	}
	return strings.Contains(s, "/") && path.Ext(s) != ""
}

// IDs lists dataset ids in the order they were first added.
func (r *ResultSet) IDs() []string { return append([]string(nil), r.ids...) }

// Results returns the outputs recorded for id.
func (r *ResultSet) Results(id string) []any { return append([]any(nil), r.results[id]...) }

// FileURIs lists every file path or URI found among the outputs.
func (r *ResultSet) FileURIs() []string { return append([]string(nil), r.fileURIs...) }

// Len is the number of distinct dataset ids.
func (r *ResultSet) Len() int { return len(r.ids) }
