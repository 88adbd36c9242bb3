// Package fetcher retrieves and normalizes single profiles from the remote
// source. It performs no retries; retry policy belongs to the caller.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dandantas/magpie/internal/model"
)

// The remote source serves full HTML pages; cap reads defensively.
const maxDocumentBytes = 10 << 20

// Fetcher fetches one profile per call from the remote source
type Fetcher struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a fetcher against the given base URL with a bounded request
// timeout. A stalled remote must never hold a chunk open indefinitely.
func New(baseURL string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// FetchProfile fetches and parses one profile. Failure classification:
// a source-confirmed 404 returns model.NotFoundError, any other non-success
// response or unparsable document returns model.FetchError.
func (f *Fetcher) FetchProfile(ctx context.Context, username string) (*model.ProfilePayload, error) {
	url := fmt.Sprintf("%s/%s", f.baseURL, username)
	slog.Info("Fetching profile", "username", username)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, model.NewFetchError("failed to create request: %v", err)
	}

	// Browser-like headers; the source rejects bare clients
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, model.NewFetchError("failed to fetch profile page: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, model.NewNotFoundError("profile %s not found", username)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.NewFetchError("failed to fetch profile page: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, model.NewFetchError("failed to read profile page: %v", err)
	}

	payload, err := ParseProfileDocument(string(body))
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			return nil, model.NewFetchError("%s", parseErr.Message)
		}
		return nil, model.NewFetchError("failed to parse profile page: %v", err)
	}

	return payload, nil
}
