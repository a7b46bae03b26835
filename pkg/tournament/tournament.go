// Package tournament fetches the current round data of a tabular
// tournament.
package tournament

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
)

const (
	ArchiveName = "numerai_dataset.zip"

	defTimeout = 10 * time.Minute
)

// Fetcher downloads round data into a directory and returns the archive
// path.
type Fetcher interface {
	Fetch(ctx context.Context, dir string) (string, error)
}

type httpFetcher struct {
	url    string
	client *http.Client
}

func NewFetcher(url string, client *http.Client) Fetcher {
	if client == nil {
		client = &http.Client{Timeout: defTimeout}
	}

	return &httpFetcher{url: url, client: client}
}

// Fetch makes a single attempt. Any failure is reported as ErrRemoteFetch.
func (f *httpFetcher) Fetch(ctx context.Context, dir string) (string, error) {
	if f.url == "" {
		return "", fmt.Errorf("%w: %w: empty data url", pkgerrors.ErrRemoteFetch, pkgerrors.ErrConfiguration)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("%w: %w", pkgerrors.ErrRemoteFetch, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", pkgerrors.ErrRemoteFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected response code: %d", pkgerrors.ErrRemoteFetch, resp.StatusCode)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", pkgerrors.ErrRemoteFetch, err)
	}
	path := filepath.Join(dir, ArchiveName)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", pkgerrors.ErrRemoteFetch, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return "", fmt.Errorf("%w: %w", pkgerrors.ErrRemoteFetch, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("%w: %w", pkgerrors.ErrRemoteFetch, err)
	}

	return path, nil
}
