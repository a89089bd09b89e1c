package oracle

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"agent-launchpad/internal/domain"
	"agent-launchpad/internal/observability"
	"agent-launchpad/internal/storage"
)

// Cache stores quotes with a TTL. Implementations: MemoryCache, RedisCache.
type Cache interface {
	// Get returns the cached quote for key, or false when absent or expired.
	Get(ctx context.Context, key string) (*Quote, bool, error)

	// Set stores the quote under key for ttl.
	Set(ctx context.Context, key string, q *Quote, ttl time.Duration) error
}

// MemoryCache is a mutex-guarded in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	data    map[string]memoryEntry
	nowFunc func() time.Time
}

type memoryEntry struct {
	quote     Quote
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data:    make(map[string]memoryEntry),
		nowFunc: time.Now,
	}
}

// Get returns the cached quote for key when still fresh.
func (c *MemoryCache) Get(_ context.Context, key string) (*Quote, bool, error) {
	c.mu.RLock()
	e, exists := c.data[key]
	c.mu.RUnlock()

	if !exists || c.nowFunc().After(e.expiresAt) {
		return nil, false, nil
	}
	q := e.quote
	return &q, true, nil
}

// Set stores the quote under key for ttl.
func (c *MemoryCache) Set(_ context.Context, key string, q *Quote, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = memoryEntry{quote: *q, expiresAt: c.nowFunc().Add(ttl)}
	return nil
}

// CachingSource wraps a Source with a Cache so each token pair hits the live
// source at most once per TTL window. Observed prices are mirrored to the
// optional history sink on a best-effort basis.
type CachingSource struct {
	src     Source
	cache   Cache
	ttl     time.Duration
	history storage.PriceHistoryStore // optional
	metrics *observability.Metrics
	logger  *zap.Logger
	nowFunc func() time.Time
}

// CachingSourceOptions contains configuration for creating a CachingSource.
type CachingSourceOptions struct {
	Source  Source
	Cache   Cache
	TTL     time.Duration             // default 5s
	History storage.PriceHistoryStore // optional analytics sink
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// NewCachingSource creates a new CachingSource.
func NewCachingSource(opts CachingSourceOptions) *CachingSource {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryCache()
	}

	return &CachingSource{
		src:     opts.Source,
		cache:   cache,
		ttl:     ttl,
		history: opts.History,
		metrics: opts.Metrics,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// GetPrice returns the cached quote when fresh, otherwise fetches from the
// live source and refreshes the cache. A broken cache degrades to a direct
// source fetch rather than failing the lookup.
func (s *CachingSource) GetPrice(ctx context.Context, token, vsToken string) (*Quote, error) {
	key := quoteKey(token, vsToken)

	cached, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("quote cache get failed", zap.String("token", token), zap.Error(err))
	} else if hit {
		if s.metrics != nil {
			s.metrics.OracleCacheHits.Inc()
		}
		return cached, nil
	}

	q, err := s.src.GetPrice(ctx, token, vsToken)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, q, s.ttl); err != nil {
		s.logger.Warn("quote cache set failed", zap.String("token", token), zap.Error(err))
	}
	s.record(q)

	return q, nil
}

// record mirrors the observation to the analytics sink. Best effort only.
func (s *CachingSource) record(q *Quote) {
	if s.history == nil {
		return
	}
	point := &domain.PricePoint{
		TokenMint:   q.Token,
		VsToken:     q.VsToken,
		TimestampMs: q.FetchedAt.UnixMilli(),
		Price:       q.Price,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.history.InsertBulk(ctx, []*domain.PricePoint{point}); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("price history append failed",
				zap.String("token", q.Token), zap.Error(err))
		}
	}()
}

var (
	_ Cache  = (*MemoryCache)(nil)
	_ Source = (*CachingSource)(nil)
)
