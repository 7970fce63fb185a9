package consensus

import (
	"context"
	_ "embed"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vetref/electrolyte-cli/internal/fetcher"
	"github.com/vetref/electrolyte-cli/internal/store"
)

//go:embed consensos.json
var embeddedRuleset []byte

// Source produces a raw ruleset document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	Name() string
}

// EmbeddedSource serves the ruleset compiled into the binary.
type EmbeddedSource struct{}

// Fetch returns a copy of the embedded document.
func (EmbeddedSource) Fetch(context.Context) ([]byte, error) {
	return append([]byte(nil), embeddedRuleset...), nil
}

// Name implements Source.
func (EmbeddedSource) Name() string { return "embedded" }

// Embedded parses the embedded ruleset.
func Embedded() (*Ruleset, error) {
	return Parse(embeddedRuleset)
}

// FileSource reads a JSON or YAML document from disk.
type FileSource struct {
	Path string
}

// Fetch reads the file.
func (s FileSource) Fetch(context.Context) ([]byte, error) {
	if s.Path == "" {
		return nil, eris.New("consensus: file source has no path")
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "consensus: read %s", s.Path)
	}
	return data, nil
}

// Name implements Source.
func (s FileSource) Name() string { return "file:" + s.Path }

// HTTPSource downloads the document, retrying transient failures. It keeps
// the last document and its ETag so a refetch of an unchanged document is a
// conditional request answered by 304.
type HTTPSource struct {
	URL     string
	Fetcher fetcher.Fetcher

	mu   sync.Mutex
	etag string
	body []byte
}

// NewHTTPSource returns a source downloading url through f.
func NewHTTPSource(url string, f fetcher.Fetcher) *HTTPSource {
	return &HTTPSource{URL: url, Fetcher: f}
}

// Fetch downloads the document, or returns the kept copy when the server
// reports it unchanged.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	if s.URL == "" {
		return nil, eris.New("consensus: http source has no url")
	}

	s.mu.Lock()
	etag, body := s.etag, s.body
	s.mu.Unlock()

	doc, changed, err := s.Fetcher.GetIfChanged(ctx, s.URL, etag)
	if err != nil {
		return nil, eris.Wrapf(err, "consensus: download %s", s.URL)
	}
	if !changed {
		zap.L().Debug("consensus: ruleset not modified", zap.String("url", s.URL), zap.String("etag", etag))
		return append([]byte(nil), body...), nil
	}

	s.mu.Lock()
	s.etag, s.body = doc.ETag, nil
	if doc.ETag != "" {
		s.body = doc.Body
	}
	s.mu.Unlock()
	return doc.Body, nil
}

// Name implements Source.
func (s *HTTPSource) Name() string { return "http:" + s.URL }

// LatestReader is the part of store.Store a StoreSource needs.
type LatestReader interface {
	LatestRuleset(ctx context.Context) (*store.RulesetRecord, error)
}

// StoreSource serves the most recently imported ruleset version.
type StoreSource struct {
	Store LatestReader
}

// Fetch returns the latest stored document.
func (s StoreSource) Fetch(ctx context.Context) ([]byte, error) {
	rec, err := s.Store.LatestRuleset(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "consensus: latest stored ruleset")
	}
	return rec.Document, nil
}

// Name implements Source.
func (s StoreSource) Name() string { return "store" }
