package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/folio/pkg/auth"
)

// Loader fetches a user's roles from the source of truth.
type Loader func(ctx context.Context, userID int64) ([]auth.Role, error)

// Config configures a RoleCache.
type Config struct {
	MaxEntries int
	TTL        time.Duration
	// LocalTTL bounds the in-process tier. Zero means TTL without Redis and
	// DefaultSharedLocalTTL with it, since other instances cannot evict
	// this one's entries.
	LocalTTL time.Duration
	// Redis is optional; nil disables the shared tier.
	Redis *redis.Client
	// Recorder is optional.
	Recorder Recorder
}

// Recorder observes in-process hits and misses.
type Recorder interface {
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCacheHit(string)  {}
func (nopRecorder) RecordCacheMiss(string) {}

// DefaultSharedLocalTTL is the in-process lifetime used when Redis is shared
// between instances.
const DefaultSharedLocalTTL = 5 * time.Second

// DefaultConfig returns a memory-only configuration.
func DefaultConfig() Config {
	return Config{
		MaxEntries: 10000,
		TTL:        time.Minute,
	}
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	ItemCount int64   `json:"item_count"`
	HitRate   float64 `json:"hit_rate"`
}

// RoleCache caches role sets keyed by user ID.
type RoleCache struct {
	local    *lru.LRU[int64, []auth.Role]
	redis    *redis.Client
	ttl      time.Duration
	localTTL time.Duration
	load     Loader
	group    singleflight.Group
	logger   logrus.FieldLogger
	rec      Recorder

	// gens counts invalidations per user so a load that raced one is not
	// written back.
	mu   sync.Mutex
	gens map[int64]uint64

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRoleCache creates a role cache in front of load.
func NewRoleCache(config Config, load Loader, logger logrus.FieldLogger) *RoleCache {
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultConfig().MaxEntries
	}
	if config.TTL <= 0 {
		config.TTL = DefaultConfig().TTL
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if config.Recorder == nil {
		config.Recorder = nopRecorder{}
	}
	if config.LocalTTL <= 0 {
		config.LocalTTL = config.TTL
		if config.Redis != nil && DefaultSharedLocalTTL < config.TTL {
			config.LocalTTL = DefaultSharedLocalTTL
		}
	}
	return &RoleCache{
		local:    lru.NewLRU[int64, []auth.Role](config.MaxEntries, nil, config.LocalTTL),
		gens:     make(map[int64]uint64),
		redis:    config.Redis,
		ttl:      config.TTL,
		localTTL: config.LocalTTL,
		load:     load,
		logger:   logger,
		rec:      config.Recorder,
	}
}

func redisKey(userID int64) string {
	return "folio:roles:" + strconv.FormatInt(userID, 10)
}

// Get returns userID's roles, loading them on a miss.
func (c *RoleCache) Get(ctx context.Context, userID int64) ([]auth.Role, error) {
	if roles, ok := c.local.Get(userID); ok {
		c.hits.Add(1)
		c.rec.RecordCacheHit("roles")
		return roles, nil
	}
	c.misses.Add(1)
	c.rec.RecordCacheMiss("roles")

	v, err, _ := c.group.Do(redisKey(userID), func() (interface{}, error) {
		gen := c.generation(userID)
		if roles, ok := c.getShared(ctx, userID); ok {
			c.storeLocal(userID, gen, roles)
			return roles, nil
		}

		roles, err := c.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !c.storeLocal(userID, gen, roles) {
			return roles, nil
		}
		c.setShared(ctx, userID, roles)
		if c.generation(userID) != gen {
			// Invalidated while writing; the Del may have run first.
			c.deleteShared(ctx, userID)
		}
		return roles, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]auth.Role), nil
}

// Invalidate drops userID from both tiers. Call it after any role change.
func (c *RoleCache) Invalidate(ctx context.Context, userID int64) error {
	c.mu.Lock()
	c.gens[userID]++
	c.local.Remove(userID)
	c.mu.Unlock()
	c.group.Forget(redisKey(userID))
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, redisKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate roles: %w", err)
	}
	return nil
}

func (c *RoleCache) generation(userID int64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[userID]
}

// storeLocal adds roles to the in-process tier unless userID was invalidated
// since gen was read.
func (c *RoleCache) storeLocal(userID int64, gen uint64, roles []auth.Role) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[userID] != gen {
		return false
	}
	c.local.Add(userID, roles)
	return true
}

// Purge empties the in-process tier.
func (c *RoleCache) Purge() {
	c.local.Purge()
}

// Stats returns cache statistics
func (c *RoleCache) Stats() Stats {
	stats := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		ItemCount: int64(c.local.Len()),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

func (c *RoleCache) getShared(ctx context.Context, userID int64) ([]auth.Role, bool) {
	if c.redis == nil {
		return nil, false
	}
	key := redisKey(userID)
	data, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false
	} else if err != nil {
		c.logger.WithError(err).Warn("role cache: redis get failed")
		return nil, false
	}

	var roles []auth.Role
	if err := json.Unmarshal([]byte(data), &roles); err != nil {
		// If unmarshal fails, delete corrupt data
		c.redis.Del(ctx, key)
		return nil, false
	}
	return roles, true
}

func (c *RoleCache) deleteShared(ctx context.Context, userID int64) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, redisKey(userID)).Err(); err != nil {
		c.logger.WithError(err).Warn("role cache: redis del failed")
	}
}

func (c *RoleCache) setShared(ctx context.Context, userID int64, roles []auth.Role) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(roles)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, redisKey(userID), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("role cache: redis set failed")
	}
}
