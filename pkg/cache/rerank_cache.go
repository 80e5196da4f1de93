package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rankbridge/rerankgate/pkg/common"
	"github.com/rankbridge/rerankgate/pkg/domain/rerank"
	"github.com/sirupsen/logrus"
)

// ResponseCache stores completed rerank results keyed by the request
// fingerprint. A process-local TTL map fronts redis so repeated hits on the
// same instance skip the network round trip. Failures are soft: a broken
// cache never fails a request.
type ResponseCache struct {
	cache   *Cache
	local   *common.TTLMap
	logger  *logrus.Logger
	ttl     time.Duration
	enabled bool
}

func NewResponseCache(cache *Cache, logger *logrus.Logger, ttl time.Duration, enabled bool) *ResponseCache {
	if ttl <= 0 {
		ttl = common.RerankCacheTTL
	}
	r := &ResponseCache{
		cache:   cache,
		logger:  logger,
		ttl:     ttl,
		enabled: enabled,
	}
	if enabled && cache != nil {
		r.local = cache.CreateTTLMap(RerankTTLName, ttl)
	}
	return r
}

func (r *ResponseCache) Enabled() bool {
	return r.enabled && r.cache != nil
}

// Get returns a previously cached result for the fingerprint, marked as
// cached. The local TTL map is consulted before redis; a redis hit is
// written back to the local map. A miss returns (nil, false).
func (r *ResponseCache) Get(ctx context.Context, fingerprint string) (*rerank.Result, bool) {
	if !r.Enabled() {
		return nil, false
	}

	key := fmt.Sprintf(RerankKeyPattern, fingerprint)

	if r.local != nil {
		if raw, ok := r.local.Get(key); ok {
			if stored, ok := raw.(string); ok {
				if result := r.decode(stored); result != nil {
					return result, true
				}
			}
			r.local.Delete(key)
		}
	}

	raw, err := r.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.WithError(err).Warn("rerank cache read failed")
		}
		return nil, false
	}

	result := r.decode(raw)
	if result == nil {
		r.logger.Warn("rerank cache entry is not valid JSON")
		return nil, false
	}
	if r.local != nil {
		r.local.Set(key, raw)
	}
	return result, true
}

func (r *ResponseCache) Set(ctx context.Context, fingerprint string, result *rerank.Result) {
	if !r.Enabled() {
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		r.logger.WithError(err).Warn("failed to marshal rerank result for cache")
		return
	}
	key := fmt.Sprintf(RerankKeyPattern, fingerprint)
	if r.local != nil {
		r.local.Set(key, string(raw))
	}
	if err := r.cache.Set(ctx, key, string(raw), r.ttl); err != nil {
		r.logger.WithError(err).Warn("rerank cache write failed")
	}
}

func (r *ResponseCache) decode(raw string) *rerank.Result {
	result := new(rerank.Result)
	if err := json.Unmarshal([]byte(raw), result); err != nil {
		return nil
	}
	result.Cached = true
	return result
}
