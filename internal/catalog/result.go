package catalog

import (
	"path"
	"strings"
)

// Result holds the matched paths of one search, relative to the project
// root, grouped by dataset id in first-seen order.
type Result struct {
	baseDir string
	baseURL string
	ids     []string
	records map[string][]string
}

func newResult(baseDir, baseURL string) *Result {
	return &Result{baseDir: baseDir, baseURL: baseURL, records: map[string][]string{}}
}

func (r *Result) add(id, p string) {
	if _, ok := r.records[id]; !ok {
		r.ids = append(r.ids, id)
	}
	r.records[id] = append(r.records[id], p)
}

// Matches is the number of matched dataset ids.
func (r *Result) Matches() int { return len(r.ids) }

// IDs lists matched dataset ids in first-seen order.
func (r *Result) IDs() []string { return append([]string(nil), r.ids...) }

// Files maps each id to its paths under the project base_dir.
func (r *Result) Files() map[string][]string {
	return r.prefixed(func(p string) string {
		if r.baseDir == "" || path.IsAbs(p) {
			return p
		}
		return path.Join(r.baseDir, p)
	})
}

// DownloadURLs maps each id to its URLs under the project data_node_root.
func (r *Result) DownloadURLs() map[string][]string {
	return r.prefixed(func(p string) string {
		if r.baseURL == "" {
			return p
		}
		return strings.TrimRight(r.baseURL, "/") + "/" + strings.TrimLeft(p, "/")
	})
}

func (r *Result) prefixed(fn func(string) string) map[string][]string {
	out := make(map[string][]string, len(r.records))
	for id, paths := range r.records {
		ps := make([]string, len(paths))
		for i, p := range paths {
			ps[i] = fn(p)
		}
		out[id] = ps
	}
	return out
}
