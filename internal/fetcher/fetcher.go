// Package fetcher downloads remote ruleset documents over HTTP.
package fetcher

import "context"

// Document is a downloaded body with its validator.
type Document struct {
	Body        []byte
	ETag        string
	ContentType string
}

// Fetcher retrieves documents by URL.
type Fetcher interface {
	// Get downloads url.
	Get(ctx context.Context, url string) (Document, error)

	// GetIfChanged downloads url unless the server reports that etag is
	// still current, in which case changed is false and doc is empty.
	GetIfChanged(ctx context.Context, url, etag string) (doc Document, changed bool, err error)
}
