// Package cache memoizes pipeline results in Redis, keyed by a hash of the
// input text and the redaction flag. Concurrent misses for one key share a
// single computation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/redis"
)

const keyPrefix = "result:"

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
	CountByPattern(ctx context.Context, pattern string) (int64, error)
}

// Stats is a snapshot of cache effectiveness.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Keys    int64   `json:"keys"`
}

type ResultCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *ResultCache {
	return &ResultCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "result-cache"),
	}
}

func (c *ResultCache) Get(ctx context.Context, text string, redact bool) (*pipeline.Result, bool) {
	key := Key(text, redact)
	data, err := c.backend.GetBytes(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result pipeline.Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "key", key)
	return &result, true
}

// Set stores result. Degraded results are not cached so that a recovered
// model gets another chance. Unredacted results are never cached since
// their summaries and key points may quote PHI.
func (c *ResultCache) Set(ctx context.Context, text string, redact bool, result *pipeline.Result) {
	if !redact || result.Degraded() {
		return
	}
	key := Key(text, redact)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or runs compute once across all
// concurrent callers for the same key. The bool reports a cache hit.
func (c *ResultCache) GetOrCompute(
	ctx context.Context,
	text string,
	redact bool,
	compute func() (*pipeline.Result, error),
) (*pipeline.Result, bool, error) {
	if !redact {
		result, err := compute()
		return result, false, err
	}
	if result, ok := c.Get(ctx, text, redact); ok {
		return result, true, nil
	}
	key := Key(text, redact)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, text, redact, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*pipeline.Result), false, nil
}

func (c *ResultCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return deleted, nil
}

func (c *ResultCache) Stats(ctx context.Context) Stats {
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	keys, err := c.backend.CountByPattern(ctx, keyPrefix+"*")
	if err != nil {
		c.logger.Warn("counting cache keys failed", "error", err)
	}
	s.Keys = keys
	return s
}

func (c *ResultCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// Key derives the cache key. The text itself never appears in Redis keys.
func Key(text string, redact bool) string {
	hash := sha256.Sum256([]byte(strconv.FormatBool(redact) + "\x00" + text))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
