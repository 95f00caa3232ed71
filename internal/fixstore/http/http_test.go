package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daops/internal/config"
	"daops/internal/datasource/httpds"
	"daops/internal/fixstore"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/roocs-fix/_doc/hit", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"_index":"roocs-fix","_id":"hit","found":true,"_source":{"fixes":[]}}`))
	})
	mux.HandleFunc("/roocs-fix/_doc/gone", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"_index":"roocs-fix","_id":"gone","found":false}`))
	})
	mux.HandleFunc("/roocs-fix/_doc/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStore_Get(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	s, err := fixstore.Open(context.Background(),
		config.FixStore{Kind: "http", Endpoint: srv.URL + "/", Index: "roocs-fix"},
		fixstore.Deps{HTTP: httpds.NewClient(httpds.Config{})})
	require.NoError(t, err)

	doc, err := s.Get(context.Background(), "hit")
	require.NoError(t, err)
	assert.JSONEq(t, `{"fixes":[]}`, string(doc))

	for _, key := range []string{"gone", "absent"} {
		_, err = s.Get(context.Background(), key)
		assert.ErrorIs(t, err, fixstore.ErrNotFound, key)
	}

	_, err = s.Get(context.Background(), "broken")
	var se *httpds.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.Code)
}

func TestNewStore_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewStore(nil, "es.example.org", "roocs-fix", nil)
	require.Error(t, err)

	_, err = NewStore(nil, "https://es.example.org", "a/b", nil)
	require.Error(t, err)

	s, err := NewStore(nil, "https://es.example.org:443/", "roocs-fix", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://es.example.org:443/roocs-fix/_doc/k%2F1", s.docURL("k/1"))
}
