// Package worker carries the service-worker duties of the gateway in its
// own execution context: a version-tagged cache-first static asset cache, a
// background-sync retry queue and push notification handling.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// CacheName tags the asset cache with the release version. Bumping it
// invalidates the previous cache on the next install.
const CacheName = "eventhub-v1.2.0"

// StaticAssets is the fixed list pre-populated at install.
var StaticAssets = []string{
	"/",
	"/static/events/css/style.css",
	"/static/events/css/themes.css",
	"/static/events/js/theme_manager.js",
	"/static/events/js/main.js",
	"/static/images/logo.png",
}

// CachedAsset is one stored response.
type CachedAsset struct {
	Body        []byte `json:"body"`
	ContentType string `json:"content_type"`
}

// CacheStore persists named caches of assets.
type CacheStore interface {
	Get(ctx context.Context, cache, key string) (CachedAsset, bool, error)
	Put(ctx context.Context, cache, key string, asset CachedAsset) error
	// DropOthers deletes every cache except keep.
	DropOthers(ctx context.Context, keep string) error
}

// Fetcher retrieves an asset from its origin during install.
type Fetcher interface {
	FetchAsset(ctx context.Context, path string) (CachedAsset, error)
}

// Cache serves static assets cache-first out of a named cache.
type Cache struct {
	name   string
	store  CacheStore
	logger *slog.Logger
}

// NewCache binds a named cache to a store.
func NewCache(name string, store CacheStore, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{name: name, store: store, logger: logger}
}

// Install pre-populates the cache with the asset list and drops caches
// left over from previous versions. Any asset failing to fetch fails the
// install.
func (c *Cache) Install(ctx context.Context, fetch Fetcher, assets []string) error {
	for _, path := range assets {
		asset, err := fetch.FetchAsset(ctx, path)
		if err != nil {
			return fmt.Errorf("install %s: %w", path, err)
		}
		if err := c.store.Put(ctx, c.name, path, asset); err != nil {
			return fmt.Errorf("cache %s: %w", path, err)
		}
	}
	if err := c.store.DropOthers(ctx, c.name); err != nil {
		return fmt.Errorf("drop stale caches: %w", err)
	}
	c.logger.Info("[WORKER] cache installed", "cache", c.name, "assets", len(assets))
	return nil
}

// Handler intercepts GET requests cache-first: a hit is served from the
// cache, a miss passes through to next untouched. Misses do not populate
// the cache.
func (c *Cache) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		asset, ok, err := c.store.Get(r.Context(), c.name, r.URL.Path)
		if err != nil {
			c.logger.Warn("[WORKER] cache lookup failed", "path", r.URL.Path, "error", err)
		}
		if !ok || err != nil {
			next.ServeHTTP(w, r)
			return
		}
		if asset.ContentType != "" {
			w.Header().Set("Content-Type", asset.ContentType)
		}
		w.Header().Set("X-Cache", "HIT")
		if r.Method == http.MethodHead {
			return
		}
		if _, err := w.Write(asset.Body); err != nil {
			c.logger.Warn("[WORKER] writing cached asset failed", "path", r.URL.Path, "error", err)
		}
	})
}
