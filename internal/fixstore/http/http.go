// Package http serves fix documents from an Elasticsearch-style document
// index: GET {endpoint}/{index}/_doc/{key}, with the document under _source.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"daops/internal/config"
	"daops/internal/datasource/httpds"
	"daops/internal/fixstore"
	"daops/internal/logging"
)

// Store is a read-only client for one index.
type Store struct {
	client   *httpds.Client
	endpoint string
	index    string
	log      *zap.Logger
}

// NewStore checks endpoint and index. A nil client gets library defaults.
func NewStore(client *httpds.Client, endpoint, index string, log *zap.Logger) (*Store, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("fixstore/http: endpoint must be an absolute URL, got %q", endpoint)
	}
	if strings.TrimSpace(index) == "" || strings.Contains(index, "/") {
		return nil, fmt.Errorf("fixstore/http: invalid index %q", index)
	}
	if client == nil {
		client = httpds.NewClient(httpds.Config{Logger: log})
	}
	return &Store{
		client:   client,
		endpoint: strings.TrimRight(endpoint, "/"),
		index:    index,
		log:      logging.OrNop(log),
	}, nil
}

func (s *Store) docURL(key string) string {
	return s.endpoint + "/" + url.PathEscape(s.index) + "/_doc/" + url.PathEscape(key)
}

type getResponse struct {
	Found  *bool           `json:"found"`
	Source json.RawMessage `json:"_source"`
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	u := s.docURL(key)
	b, err := s.client.Fetch(ctx, u)
	if errors.Is(err, httpds.ErrNotFound) {
		s.log.Debug("fix document not found", zap.String("key", key))
		return nil, fixstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var resp getResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, fmt.Errorf("fixstore/http: decode %s: %w", u, err)
	}
	if (resp.Found != nil && !*resp.Found) || len(resp.Source) == 0 || string(resp.Source) == "null" {
		return nil, fixstore.ErrNotFound
	}
	return resp.Source, nil
}

func (s *Store) Close() error { return nil }

func init() {
	fixstore.Register("http", func(_ context.Context, cfg config.FixStore, deps fixstore.Deps) (fixstore.Store, error) {
		return NewStore(deps.HTTP, cfg.Endpoint, cfg.Index, deps.Log)
	})
}
