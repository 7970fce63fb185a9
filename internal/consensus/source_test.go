package consensus

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetref/electrolyte-cli/internal/fetcher"
	"github.com/vetref/electrolyte-cli/internal/resilience"
	"github.com/vetref/electrolyte-cli/internal/store"
)

func TestFileSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "consensos.json")
	yamlPath := filepath.Join(dir, "consensos.yaml")
	require.NoError(t, os.WriteFile(jsonPath, embeddedRuleset, 0o600))
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlRuleset), 0o600))

	tests := []struct {
		path    string
		version string
	}{
		{jsonPath, "2024.2"},
		{yamlPath, "yaml-1"},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			t.Parallel()
			src := FileSource{Path: tt.path}
			assert.Equal(t, "file:"+tt.path, src.Name())
			rs, err := NewLoader(src).Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.version, rs.Version)
		})
	}
}

func TestFileSource_Errors(t *testing.T) {
	t.Parallel()

	_, err := FileSource{}.Fetch(context.Background())
	assert.Error(t, err)

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestHTTPSource(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/consensos.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(embeddedRuleset)
	}))
	t.Cleanup(srv.Close)

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Retry: resilience.Policy{Attempts: 1, Initial: time.Millisecond},
	})

	rs, err := NewLoader(NewHTTPSource(srv.URL+"/consensos.json", f)).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024.2", rs.Version)

	_, err = NewHTTPSource(srv.URL+"/missing", f).Fetch(context.Background())
	assert.Error(t, err)

	_, err = NewHTTPSource("", f).Fetch(context.Background())
	assert.Error(t, err)
}

func TestHTTPSource_ReusesUnchangedDocument(t *testing.T) {
	t.Parallel()

	var full, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		full.Add(1)
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(embeddedRuleset)
	}))
	t.Cleanup(srv.Close)

	src := NewHTTPSource(srv.URL, fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Retry: resilience.Policy{Attempts: 1, Initial: time.Millisecond},
	}))
	l := NewLoader(src)

	first, err := l.Load(context.Background())
	require.NoError(t, err)

	again, err := l.Reload(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, int32(1), full.Load())
	assert.Equal(t, int32(1), notModified.Load())

	body, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, embeddedRuleset, body)
	assert.Equal(t, int32(2), notModified.Load())
}

type fakeLatest struct {
	rec *store.RulesetRecord
	err error
}

func (f fakeLatest) LatestRuleset(context.Context) (*store.RulesetRecord, error) {
	return f.rec, f.err
}

func TestStoreSource(t *testing.T) {
	t.Parallel()

	src := StoreSource{Store: fakeLatest{rec: &store.RulesetRecord{Version: "yaml-1", Document: []byte(yamlRuleset)}}}
	assert.Equal(t, "store", src.Name())
	rs, err := NewLoader(src).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "yaml-1", rs.Version)

	_, err = NewLoader(StoreSource{Store: fakeLatest{err: store.ErrNotFound}}).Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.True(t, errors.Is(err, ErrRulesUnavailable))
}

func TestEmbeddedSource_ReturnsCopy(t *testing.T) {
	t.Parallel()

	a, err := EmbeddedSource{}.Fetch(context.Background())
	require.NoError(t, err)
	a[0] = 'x'
	b, err := EmbeddedSource{}.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, byte('{'), b[0])
}
