// Package datasource picks a byte source for a dataset location: local paths
// go through the file package, http(s) URLs through httpds.
package datasource

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"

	"daops/internal/datasource/file"
	"daops/internal/datasource/httpds"
)

// Source opens a stream of bytes.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// For returns the Source for loc. Remote locations need a client.
func For(fs afero.Fs, client *httpds.Client, loc string) (Source, error) {
	lower := strings.ToLower(loc)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		if client == nil {
			return nil, fmt.Errorf("datasource: no http client for %s", loc)
		}
		return httpds.NewRemote(client, loc), nil
	case strings.HasPrefix(lower, "file://"):
		return file.NewLocal(fs, loc[len("file://"):]), nil
	case strings.Contains(loc, "://"):
		return nil, fmt.Errorf("datasource: unsupported scheme in %s", loc)
	}
	return file.NewLocal(fs, loc), nil
}

// ReadAll resolves loc and reads it fully.
func ReadAll(ctx context.Context, fs afero.Fs, client *httpds.Client, loc string) ([]byte, error) {
	src, err := For(fs, client, loc)
	if err != nil {
		return nil, err
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("datasource: read %s: %w", loc, err)
	}
	return b, nil
}
