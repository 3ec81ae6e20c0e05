// Package fetcher downloads source documents and fans a price lookup out
// to every registered source concurrently.
package fetcher

import (
	"context"
	"time"
)

// Document is a fetched response. Block is set when the body looks like a
// challenge page; it is a hint, since result pages can carry the same markers.
type Document struct {
	URL        string
	StatusCode int
	Body       string
	Block      BlockType
}

// Fetcher performs one outbound document fetch. Implementations return a
// *Error for every failure.
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) (*Document, error)
}

// FetchResult is the outcome of fetching one source. Exactly one of
// Document and Err is meaningful.
type FetchResult struct {
	SourceID string
	URL      string
	Document string
	Block    BlockType
	Err      error
}

// OK reports whether the fetch produced a document.
func (r FetchResult) OK() bool { return r.Err == nil }

// Kind returns the error kind, or "" for a successful fetch.
func (r FetchResult) Kind() ErrorKind { return KindOf(r.Err) }
