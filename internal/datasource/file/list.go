package file

import (
	"bufio"
	"strings"

	"github.com/spf13/afero"
)

// ReadList reads a line-based list of dataset references. Blank lines and
// lines starting with '#' are skipped; order and duplicates are preserved.
func ReadList(fs afero.Fs, path string) ([]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
