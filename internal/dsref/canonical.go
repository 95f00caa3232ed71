package dsref

import (
	"path"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"daops/internal/config"
	"daops/internal/errs"
)

// Canonicalizer turns references into canonical dotted ids and back into
// project paths. It is safe for concurrent use; it never mutates its input.
type Canonicalizer struct {
	projects map[string]config.Project
	roots    []root
}

type root struct {
	project string
	prefix  string
}

// NewCanonicalizer indexes every project's base_dir and data_node_root.
func NewCanonicalizer(projects map[string]config.Project) *Canonicalizer {
	c := &Canonicalizer{projects: make(map[string]config.Project, len(projects))}
	for name, p := range projects {
		name = strings.ToLower(name)
		c.projects[name] = p
		for _, pre := range []string{p.BaseDir, p.DataNodeRoot} {
			pre = strings.TrimRight(strings.TrimSpace(pre), "/")
			if pre != "" {
				c.roots = append(c.roots, root{project: name, prefix: pre})
			}
		}
	}
	// Longest prefix first so nested base dirs resolve to the deepest project.
	sort.SliceStable(c.roots, func(i, j int) bool {
		if len(c.roots[i].prefix) != len(c.roots[j].prefix) {
			return len(c.roots[i].prefix) > len(c.roots[j].prefix)
		}
		return c.roots[i].project < c.roots[j].project
	})
	return c
}

// Canonicalize returns the canonical id for ref. Kerchunk references are
// returned unchanged.
func (c *Canonicalizer) Canonicalize(ref Reference) (string, error) {
	switch ref.Kind {
	case KindKerchunk:
		return ref.Value, nil
	case KindID:
		return c.canonicalID(ref.Value)
	case KindFile:
		return c.fromPath(ref.Value, true, ref.Value)
	case KindDirectory:
		return c.fromPath(ref.Value, false, ref.Value)
	case KindFileMapper:
		return c.fromPath(ref.Value, false, ref.String())
	}
	return "", errs.New(errs.CodeUnrecognizedReference, ref.Value, "unknown reference kind %d", ref.Kind)
}

// CanonicalizeString canonicalises a raw string without touching the
// filesystem: s is an id when it has no slash and a path otherwise.
func (c *Canonicalizer) CanonicalizeString(s string) (string, error) {
	if LooksLikeKerchunk(s) {
		return s, nil
	}
	if strings.Contains(s, "/") {
		return c.fromPath(s, path.Ext(s) != "", s)
	}
	return c.canonicalID(s)
}

// ProjectOf returns the project name and settings a reference belongs to.
func (c *Canonicalizer) ProjectOf(ref Reference) (string, config.Project, error) {
	if ref.Kind == KindKerchunk {
		return "", config.Project{}, errs.New(errs.CodeUnrecognizedReference, ref.Value, "kerchunk references have no project")
	}
	id, err := c.Canonicalize(ref)
	if err != nil {
		return "", config.Project{}, err
	}
	name := ProjectName(id)
	p, ok := c.projects[name]
	if !ok {
		return "", config.Project{}, errs.New(errs.CodeUnrecognizedReference, ref.Value, "no configured project %q", name)
	}
	return name, p, nil
}

// Project returns the settings for a lowercased project name.
func (c *Canonicalizer) Project(name string) (config.Project, bool) {
	p, ok := c.projects[strings.ToLower(name)]
	return p, ok
}

// DirFor maps a canonical id onto its directory under the project base_dir.
// The project token itself is not repeated in the path.
func (c *Canonicalizer) DirFor(id string) (string, error) {
	name := ProjectName(id)
	p, ok := c.projects[name]
	if !ok || p.BaseDir == "" {
		return "", errs.New(errs.CodeUnrecognizedReference, id, "no base_dir configured for project %q", name)
	}
	toks := strings.Split(id, ".")
	return path.Join(append([]string{p.BaseDir}, toks[1:]...)...), nil
}

// ProjectName is the lowercased first token of a canonical id.
func ProjectName(id string) string {
	tok, _, _ := strings.Cut(id, ".")
	return strings.ToLower(tok)
}

func (c *Canonicalizer) canonicalID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if strings.Count(id, ".") >= minIDSeparators {
		return id, nil
	}
	if _, ok := c.projects[ProjectName(id)]; ok && strings.Contains(id, ".") {
		return id, nil
	}
	return "", errs.New(errs.CodeUnrecognizedReference, id, "not a dataset id and no configured project matches")
}

func (c *Canonicalizer) fromPath(p string, isFile bool, ref string) (string, error) {
	clean := strings.TrimRight(p, "/")
	if !HasScheme(clean) {
		clean = path.Clean(clean)
	}
	for _, r := range c.roots {
		if clean != r.prefix && !strings.HasPrefix(clean, r.prefix+"/") {
			continue
		}
		rest := strings.Trim(strings.TrimPrefix(clean, r.prefix), "/")
		var toks []string
		if rest != "" {
			toks = strings.Split(rest, "/")
		}
		if isFile && len(toks) > 0 {
			toks = toks[:len(toks)-1]
		}
		if c.projects[r.project].StripVersion && len(toks) > 0 && looksLikeVersion(toks[len(toks)-1]) {
			toks = toks[:len(toks)-1]
		}
		out := make([]string, 0, len(toks)+1)
		out = append(out, r.project)
		for _, t := range toks {
			out = append(out, norm.NFC.String(t))
		}
		return strings.Join(out, "."), nil
	}
	return "", errs.New(errs.CodeUnrecognizedReference, ref, "path is not under any configured project base_dir")
}
