package weather

import (
	"context"
	"encoding/json"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// Cache stores reports by city. Implementations also count hits per city, so
// operators can see which lookups the cache is absorbing.
//
// The Redis keys are organized as:
//   - `<prefix>/weather/report/<city>` for the cached report (with TTL)
//   - `<prefix>/weather/hits/<city>` for the hit counter
type Cache interface {
	// Get returns the cached report and whether it was present.
	Get(ctx context.Context, city string) (*Report, bool, error)
	// Set stores the report under the configured TTL.
	Set(ctx context.Context, city string, report *Report) error
	// Hits returns the hit count for a city.
	Hits(ctx context.Context, city string) (int64, error)
}

func cityKey(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

type redisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache returns a Cache backed by Redis.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) Cache {
	return &redisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *redisCache) reportKey(city string) string {
	return path.Join(c.prefix, "weather", "report", cityKey(city))
}

func (c *redisCache) hitsKey(city string) string {
	return path.Join(c.prefix, "weather", "hits", cityKey(city))
}

func (c *redisCache) Get(ctx context.Context, city string) (*Report, bool, error) {
	data, err := c.client.Get(ctx, c.reportKey(city)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "failed to get report from Redis")
	}

	var report Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, false, errors.Wrap(err, "failed to unmarshal cached report")
	}

	if err := c.client.Incr(ctx, c.hitsKey(city)).Err(); err != nil {
		return nil, false, errors.Wrap(err, "failed to count cache hit")
	}
	return &report, true, nil
}

func (c *redisCache) Set(ctx context.Context, city string, report *Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return errors.Wrap(err, "failed to marshal report")
	}
	err = c.client.Set(ctx, c.reportKey(city), data, c.ttl).Err()
	if err != nil {
		return errors.Wrap(err, "failed to store report in Redis")
	}
	return nil
}

func (c *redisCache) Hits(ctx context.Context, city string) (int64, error) {
	n, err := c.client.Get(ctx, c.hitsKey(city)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to get hit count from Redis")
	}
	return n, nil
}

type memoryEntry struct {
	report  Report
	expires time.Time
}

type inMemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	storage map[string]memoryEntry
	hits    map[string]int64
}

// NewMemoryCache returns an in-process Cache, used when no Redis is
// configured and in tests.
func NewMemoryCache(ttl time.Duration) Cache {
	return &inMemoryCache{
		ttl: ttl,
		now: time.Now,
	}
}

func (c *inMemoryCache) Get(_ context.Context, city string) (*Report, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.storage[cityKey(city)]
	if !ok || c.now().After(entry.expires) {
		return nil, false, nil
	}
	if c.hits == nil {
		c.hits = make(map[string]int64)
	}
	c.hits[cityKey(city)]++
	report := entry.report
	return &report, true, nil
}

func (c *inMemoryCache) Set(_ context.Context, city string, report *Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.storage == nil {
		c.storage = make(map[string]memoryEntry)
	}
	c.storage[cityKey(city)] = memoryEntry{
		report:  *report,
		expires: c.now().Add(c.ttl),
	}
	return nil
}

func (c *inMemoryCache) Hits(_ context.Context, city string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits[cityKey(city)], nil
}
