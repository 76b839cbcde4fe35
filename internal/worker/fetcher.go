package worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// OriginFetcher pulls assets from the static origin over HTTP during
// install.
type OriginFetcher struct {
	base *url.URL
	http *http.Client
}

// NewOriginFetcher builds a Fetcher rooted at baseURL.
func NewOriginFetcher(baseURL string) (*OriginFetcher, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse origin url: %w", err)
	}
	return &OriginFetcher{
		base: base,
		http: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// FetchAsset implements Fetcher.
func (f *OriginFetcher) FetchAsset(ctx context.Context, path string) (CachedAsset, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return CachedAsset{}, fmt.Errorf("parse asset path: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.base.ResolveReference(ref).String(), nil)
	if err != nil {
		return CachedAsset{}, fmt.Errorf("build asset request: %w", err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return CachedAsset{}, fmt.Errorf("fetch asset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return CachedAsset{}, fmt.Errorf("fetch asset: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CachedAsset{}, fmt.Errorf("read asset body: %w", err)
	}
	return CachedAsset{Body: body, ContentType: resp.Header.Get("Content-Type")}, nil
}
