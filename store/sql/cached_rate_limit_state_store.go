package sqlstore

import (
	"context"
	"fmt"
	"net/url"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-marketo/ratelimit"
)

const rateLimitStateCacheKeyPrefix = "go-marketo::ratelimit_state::v1"

// CachedRateLimitStateStore serves bucket reads from a cache and drops the
// cached entry on every write. Other processes see a write once their cached
// entry expires.
type CachedRateLimitStateStore struct {
	base  ratelimit.StateStore
	cache repositorycache.CacheService
}

func NewCachedRateLimitStateStore(
	base ratelimit.StateStore,
	cacheService repositorycache.CacheService,
) (*CachedRateLimitStateStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base rate-limit state store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: rate-limit cache service is required")
	}
	return &CachedRateLimitStateStore{base: base, cache: cacheService}, nil
}

// RateLimitStateCacheKey returns go-marketo::ratelimit_state::v1::<bucket> with
// the normalized bucket URL-path escaped.
func RateLimitStateCacheKey(bucket string) (string, error) {
	normalized := normalizeBucket(bucket)
	if normalized == "" {
		return "", fmt.Errorf("sqlstore: rate-limit bucket is required")
	}
	return rateLimitStateCacheKeyPrefix + "::" + url.PathEscape(normalized), nil
}

func (s *CachedRateLimitStateStore) Get(ctx context.Context, bucket string) (ratelimit.State, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return ratelimit.State{}, fmt.Errorf("sqlstore: cached rate-limit state store is not configured")
	}
	normalized := normalizeBucket(bucket)
	cacheKey, err := RateLimitStateCacheKey(normalized)
	if err != nil {
		return ratelimit.State{}, err
	}

	state, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (ratelimit.State, error) {
		fetched, fetchErr := s.base.Get(ctx, normalized)
		if fetchErr != nil {
			return ratelimit.State{}, fetchErr
		}
		return cloneRateLimitState(fetched), nil
	})
	if err != nil {
		return ratelimit.State{}, err
	}
	return cloneRateLimitState(state), nil
}

func (s *CachedRateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached rate-limit state store is not configured")
	}
	cacheKey, err := RateLimitStateCacheKey(state.Bucket)
	if err != nil {
		return err
	}
	state.Bucket = normalizeBucket(state.Bucket)
	if err := s.base.Upsert(ctx, state); err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func cloneRateLimitState(state ratelimit.State) ratelimit.State {
	cloned := state
	cloned.Bucket = normalizeBucket(state.Bucket)
	cloned.ThrottledUntil = copyTimePointer(state.ThrottledUntil)
	return cloned
}
