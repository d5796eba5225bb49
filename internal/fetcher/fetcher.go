// Package fetcher downloads remote archives over HTTP(S), FTP and S3, and
// reads block lists from CSV, JSON and XLSX files.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher downloads a URL to a local file.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Router dispatches downloads to a Fetcher registered for the URL scheme.
type Router struct {
	schemes map[string]Fetcher
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{schemes: make(map[string]Fetcher)}
}

// Register binds f to one or more URL schemes.
func (r *Router) Register(f Fetcher, schemes ...string) *Router {
	for _, s := range schemes {
		r.schemes[strings.ToLower(s)] = f
	}
	return r
}

func (r *Router) fetcherFor(rawURL string) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %q", rawURL)
	}
	f, ok := r.schemes[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, eris.Errorf("fetcher: no fetcher registered for scheme %q", u.Scheme)
	}
	return f, nil
}

// Download implements Fetcher.
func (r *Router) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f, err := r.fetcherFor(rawURL)
	if err != nil {
		return nil, err
	}
	return f.Download(ctx, rawURL)
}

// DownloadToFile implements Fetcher.
func (r *Router) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	f, err := r.fetcherFor(rawURL)
	if err != nil {
		return 0, err
	}
	return f.DownloadToFile(ctx, rawURL, path)
}

// copyToFile writes body to a newly created file at path.
func copyToFile(body io.Reader, path string) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}

	n, err := io.Copy(file, body)
	if err != nil {
		_ = file.Close()
		return n, eris.Wrap(err, "write file")
	}
	if err := file.Close(); err != nil {
		return n, eris.Wrap(err, "close file")
	}
	return n, nil
}
