package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
)

// redisCachePrefix namespaces cache hashes in redis.
const redisCachePrefix = "sw:cache:"

// MemoryCacheStore is an in-process CacheStore for tests and single-node
// runs.
type MemoryCacheStore struct {
	mu     sync.RWMutex
	caches map[string]map[string]CachedAsset
}

// NewMemoryCacheStore constructs an empty MemoryCacheStore.
func NewMemoryCacheStore() *MemoryCacheStore {
	return &MemoryCacheStore{caches: make(map[string]map[string]CachedAsset)}
}

// Get implements CacheStore.
func (s *MemoryCacheStore) Get(_ context.Context, cache, key string) (CachedAsset, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asset, ok := s.caches[cache][key]
	return asset, ok, nil
}

// Put implements CacheStore.
func (s *MemoryCacheStore) Put(_ context.Context, cache, key string, asset CachedAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.caches[cache] == nil {
		s.caches[cache] = make(map[string]CachedAsset)
	}
	s.caches[cache][key] = asset
	return nil
}

// DropOthers implements CacheStore.
func (s *MemoryCacheStore) DropOthers(_ context.Context, keep string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.caches {
		if name != keep {
			delete(s.caches, name)
		}
	}
	return nil
}

// RedisCacheStore keeps each named cache in a redis hash so all gateway
// instances share one installed cache.
type RedisCacheStore struct {
	rdb *redis.Client
}

// NewRedisCacheStore wraps a redis client as a CacheStore.
func NewRedisCacheStore(rdb *redis.Client) *RedisCacheStore {
	return &RedisCacheStore{rdb: rdb}
}

// Get implements CacheStore.
func (s *RedisCacheStore) Get(ctx context.Context, cache, key string) (CachedAsset, bool, error) {
	raw, err := s.rdb.HGet(ctx, redisCachePrefix+cache, key).Result()
	if err == redis.Nil {
		return CachedAsset{}, false, nil
	}
	if err != nil {
		return CachedAsset{}, false, fmt.Errorf("cache get: %w", err)
	}
	var asset CachedAsset
	if err := json.Unmarshal([]byte(raw), &asset); err != nil {
		return CachedAsset{}, false, fmt.Errorf("decode cached asset: %w", err)
	}
	return asset, true, nil
}

// Put implements CacheStore.
func (s *RedisCacheStore) Put(ctx context.Context, cache, key string, asset CachedAsset) error {
	raw, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("encode cached asset: %w", err)
	}
	if err := s.rdb.HSet(ctx, redisCachePrefix+cache, key, raw).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// DropOthers implements CacheStore.
func (s *RedisCacheStore) DropOthers(ctx context.Context, keep string) error {
	keys, err := s.rdb.Keys(ctx, redisCachePrefix+"*").Result()
	if err != nil {
		return fmt.Errorf("list caches: %w", err)
	}
	for _, key := range keys {
		if strings.TrimPrefix(key, redisCachePrefix) == keep {
			continue
		}
		if err := s.rdb.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("drop cache %s: %w", key, err)
		}
	}
	return nil
}
