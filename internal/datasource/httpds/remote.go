package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Remote is a data source bound to one URL.
type Remote struct {
	client *Client
	url    string
}

// NewRemote binds url to client.
func NewRemote(client *Client, url string) *Remote { return &Remote{client: client, url: url} }

// Open GETs the URL and returns the body. The caller must close it.
func (r *Remote) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := r.client.Get(ctx, r.url, nil)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, r.url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, &StatusError{Method: http.MethodGet, URL: r.url, Code: resp.StatusCode}
	}
	return resp.Body, nil
}
