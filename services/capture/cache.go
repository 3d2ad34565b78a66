package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/upb/case-events/internal/observability"
	"github.com/upb/case-events/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// FailOpenOnLoadError is the eligibility answer when the policy cannot be
// loaded. Events are captured rather than dropped.
const FailOpenOnLoadError = true

// DefaultTTL is how long a loaded policy snapshot is served
const DefaultTTL = 5 * time.Second

const loadKey = "capture_state"

// Loader loads the merged capture state
type Loader interface {
	LoadCaptureState(ctx context.Context) (*models.CaptureState, error)
}

// Cache serves capture eligibility from a TTL snapshot. Concurrent misses
// share a single load.
type Cache struct {
	loader  Loader
	ttl     time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
	group   singleflight.Group

	mu         sync.RWMutex
	state      *models.CaptureState
	loadedAt   time.Time
	generation uint64

	hits     atomic.Uint64
	misses   atomic.Uint64
	loads    atomic.Uint64
	failures atomic.Uint64
}

// CacheStats represents cache statistics
type CacheStats struct {
	Populated    bool          `json:"populated"`
	Age          time.Duration `json:"age"`
	TTL          time.Duration `json:"ttl"`
	Hits         uint64        `json:"hits"`
	Misses       uint64        `json:"misses"`
	Loads        uint64        `json:"loads"`
	LoadFailures uint64        `json:"load_failures"`
	HitRate      float64       `json:"hit_rate"`
}

// NewCache creates a cache over loader. A non-positive ttl uses DefaultTTL.
func NewCache(loader Loader, ttl time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		loader:  loader,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// IsCaptureEnabled reports whether events of typeID in categoryID should be
// recorded. Locked types are always captured and never touch the cache.
func (c *Cache) IsCaptureEnabled(ctx context.Context, categoryID, typeID string, catalogType *models.EventType) bool {
	if catalogType != nil && catalogType.Locked {
		return true
	}

	state, err := c.Snapshot(ctx)
	if err != nil {
		c.logger.Warn("capture policy unavailable, capturing event",
			zap.String("category_id", categoryID),
			zap.String("type_id", typeID),
			zap.Error(err),
		)
		return FailOpenOnLoadError
	}
	return Evaluate(state, categoryID, typeID)
}

// Evaluate applies capture precedence to a loaded state: unknown category
// is enabled, a type-level override wins, then a disabled category or
// disabled type suppresses.
func Evaluate(state *models.CaptureState, categoryID, typeID string) bool {
	cat, ok := state.Category(categoryID)
	if !ok {
		return true
	}
	t, hasType := cat.Type(typeID)
	if hasType && (t.Locked || t.Overridden) {
		return t.Enabled || t.Locked
	}
	if !cat.Enabled {
		return false
	}
	if hasType && !t.Enabled {
		return false
	}
	return true
}

// Snapshot returns the cached state, loading it when absent or expired
func (c *Cache) Snapshot(ctx context.Context) (*models.CaptureState, error) {
	c.mu.RLock()
	state, loadedAt, gen := c.state, c.loadedAt, c.generation
	c.mu.RUnlock()

	if state != nil && c.now().Sub(loadedAt) < c.ttl {
		c.hits.Add(1)
		return state, nil
	}
	c.misses.Add(1)

	// The shared load must not die with whichever caller started it.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(loadKey, func() (interface{}, error) {
		// a load may have finished between the read above and Do
		c.mu.RLock()
		fresh := c.state != nil && c.generation == gen && c.now().Sub(c.loadedAt) < c.ttl
		current := c.state
		c.mu.RUnlock()
		if fresh {
			return current, nil
		}

		c.loads.Add(1)
		loaded, err := c.loader.LoadCaptureState(loadCtx)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.failures.Add(1)
			c.metrics.PolicyLoad(false)
			c.state = nil
			return nil, err
		}
		c.metrics.PolicyLoad(true)
		// an Invalidate during the load makes this result stale
		if c.generation == gen {
			c.state = loaded
			c.loadedAt = c.now()
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.CaptureState), nil
}

// Invalidate drops the snapshot. Loads already in flight are not cached.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.state = nil
	c.generation++
	c.mu.Unlock()
	c.group.Forget(loadKey)
	c.logger.Debug("capture policy cache invalidated")
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	populated := c.state != nil
	var age time.Duration
	if populated {
		age = c.now().Sub(c.loadedAt)
	}
	c.mu.RUnlock()

	hits, misses := c.hits.Load(), c.misses.Load()
	stats := CacheStats{
		Populated:    populated,
		Age:          age,
		TTL:          c.ttl,
		Hits:         hits,
		Misses:       misses,
		Loads:        c.loads.Load(),
		LoadFailures: c.failures.Load(),
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}
