package source

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Cache stores search results by key. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]Record, bool)
	Put(ctx context.Context, key string, records []Record) error
}

// Cached wraps a Source so repeated searches with the same keywords are
// served from a cache. Failed searches are never cached.
type Cached struct {
	src    Source
	cache  Cache
	logger *zap.Logger
}

// WithCache decorates src with cache. A nil cache returns src unchanged.
func WithCache(src Source, cache Cache, logger *zap.Logger) Source {
	if cache == nil {
		return src
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{src: src, cache: cache, logger: logger}
}

func (c *Cached) Name() SourceType { return c.src.Name() }

func (c *Cached) Search(ctx context.Context, keywords []string) ([]Record, error) {
	key := CacheKey(c.src.Name(), keywords)
	if recs, ok := c.cache.Get(ctx, key); ok {
		c.logger.Debug("cache hit", zap.String("source", string(c.src.Name())), zap.Int("count", len(recs)))
		return recs, nil
	}

	recs, err := c.src.Search(ctx, keywords)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Put(ctx, key, recs); err != nil {
		c.logger.Warn("cache put failed", zap.String("source", string(c.src.Name())), zap.Error(err))
	}
	return recs, nil
}

// CacheKey builds the cache key for a source and keyword set.
func CacheKey(st SourceType, keywords []string) string {
	return string(st) + "|" + strings.Join(keywords, " ")
}
