// Package dsref parses dataset references and converts them into canonical
// dotted ids.
//
// A reference is one of: a dotted id (cmip5.output1.INM.inmcm4.rcp45.mon...),
// a local or remote file path, a directory, a FileMapper (an ordered file list
// treated as one dataset), or a Kerchunk index URI. Kerchunk references are
// never canonicalised; they pass through as themselves.
package dsref

import (
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"

	"daops/internal/errs"
)

// Kind tags the active form of a Reference.
type Kind int

const (
	KindID Kind = iota
	KindFile
	KindDirectory
	KindFileMapper
	KindKerchunk
)

func (k Kind) String() string {
	switch k {
	case KindID:
		return "id"
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindFileMapper:
		return "file_mapper"
	case KindKerchunk:
		return "kerchunk"
	}
	return "unknown"
}

// minIDSeparators is the number of dots at which a string is taken to be a
// canonical id already.
const minIDSeparators = 6

// Reference is an immutable dataset reference.
type Reference struct {
	Kind Kind
	// Value is the id, path or URI. For a FileMapper it is the directory
	// shared by its files.
	Value string
	// Files is set only for KindFileMapper.
	Files []string
}

// String renders the reference the way it is keyed in consolidated output.
func (r Reference) String() string {
	if r.Kind != KindFileMapper {
		return r.Value
	}
	names := make([]string, len(r.Files))
	for i, f := range r.Files {
		names[i] = path.Base(f)
	}
	return r.Value + "/[" + strings.Join(names, ",") + "]"
}

// IsRemote reports whether the reference value carries a URL scheme.
func (r Reference) IsRemote() bool { return HasScheme(r.Value) }

// NewID builds an id reference without inspecting it.
func NewID(id string) Reference { return Reference{Kind: KindID, Value: id} }

// NewFileMapper groups files into one dataset reference. The directory of the
// first file becomes the reference value.
func NewFileMapper(files []string) (Reference, error) {
	if len(files) == 0 {
		return Reference{}, errs.New(errs.CodeUnrecognizedReference, "", "file mapper needs at least one file")
	}
	cp := make([]string, len(files))
	copy(cp, files)
	return Reference{Kind: KindFileMapper, Value: path.Dir(cp[0]), Files: cp}, nil
}

// LooksLikeKerchunk reports whether s names a Kerchunk JSON index.
func LooksLikeKerchunk(s string) bool {
	p := s
	if u, err := url.Parse(s); err == nil && u.Scheme != "" {
		p = u.Path
	}
	p = strings.ToLower(p)
	return strings.HasSuffix(p, ".json")
}

// HasScheme reports whether s is a URL with a scheme (http://, s3://, file://).
func HasScheme(s string) bool {
	i := strings.Index(s, "://")
	if i <= 0 {
		return false
	}
	for _, r := range s[:i] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return false
		}
	}
	return true
}

// Parse classifies s. Local paths are checked against fs; paths that do not
// exist are classified by shape (an extension means a file).
func Parse(fs afero.Fs, s string) (Reference, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Reference{}, errs.New(errs.CodeUnrecognizedReference, s, "empty dataset reference")
	}

	if LooksLikeKerchunk(s) {
		return Reference{Kind: KindKerchunk, Value: s}, nil
	}
	if HasScheme(s) {
		if strings.HasSuffix(s, "/") {
			return Reference{Kind: KindDirectory, Value: strings.TrimRight(s, "/")}, nil
		}
		return Reference{Kind: KindFile, Value: s}, nil
	}
	if !strings.Contains(s, "/") {
		return Reference{Kind: KindID, Value: s}, nil
	}

	clean := path.Clean(s)
	if fs != nil {
		if fi, err := fs.Stat(clean); err == nil {
			if fi.IsDir() {
				return Reference{Kind: KindDirectory, Value: clean}, nil
			}
			return Reference{Kind: KindFile, Value: clean}, nil
		} else if !os.IsNotExist(err) {
			return Reference{}, errs.Wrap(err, errs.CodeUnrecognizedReference, s, "stat reference")
		}
	}
	if path.Ext(clean) != "" {
		return Reference{Kind: KindFile, Value: clean}, nil
	}
	return Reference{Kind: KindDirectory, Value: clean}, nil
}

// ParseAll parses every entry of a collection, preserving order and duplicates.
func ParseAll(fs afero.Fs, items []string) ([]Reference, error) {
	out := make([]Reference, 0, len(items))
	for _, it := range items {
		r, err := Parse(fs, it)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// looksLikeVersion matches vYYYYMMDD style segments and "latest".
func looksLikeVersion(seg string) bool {
	if seg == "latest" {
		return true
	}
	if len(seg) != 9 || seg[0] != 'v' {
		return false
	}
	for _, r := range seg[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
