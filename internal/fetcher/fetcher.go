// Package fetcher acquires input datasets from local paths, HTTP(S), and
// FTP sources and decodes them into input records.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
