package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shuv1824/kisan/internal/types"
)

// Cache stores weather reports by key until their TTL passes.
type Cache interface {
	Get(ctx context.Context, key string) (types.WeatherReport, bool, error)
	Set(ctx context.Context, key string, report types.WeatherReport, ttl time.Duration) error
}

type memoryEntry struct {
	report    types.WeatherReport
	expiresAt time.Time
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (types.WeatherReport, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return types.WeatherReport{}, false, nil
	}
	return copyReport(e.report), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, report types.WeatherReport, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{report: copyReport(report), expiresAt: c.now().Add(ttl)}
	return nil
}

// copyReport returns a deep copy so callers never share values with a
// cached entry.
func copyReport(r types.WeatherReport) types.WeatherReport {
	r.Current.WindSpeed = clonePtr(r.Current.WindSpeed)
	r.Current.SunshineHours = clonePtr(r.Current.SunshineHours)
	if r.Forecast == nil {
		return r
	}
	forecast := make([]types.ForecastDay, len(r.Forecast))
	for i, day := range r.Forecast {
		day.TempAvg = clonePtr(day.TempAvg)
		day.HumidityAvg = clonePtr(day.HumidityAvg)
		day.Rainfall = clonePtr(day.Rainfall)
		forecast[i] = day
	}
	r.Forecast = forecast
	return r
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

const redisKeyPrefix = "kisan:weather:"

// RedisCache shares reports between instances. Values are JSON.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (types.WeatherReport, bool, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.WeatherReport{}, false, nil
	}
	if err != nil {
		return types.WeatherReport{}, false, fmt.Errorf("failed to get weather report: %w", err)
	}

	var report types.WeatherReport
	if err := json.Unmarshal(data, &report); err != nil {
		return types.WeatherReport{}, false, fmt.Errorf("failed to unmarshal weather report: %w", err)
	}
	return report, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, report types.WeatherReport, ttl time.Duration) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal weather report: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set weather report: %w", err)
	}
	return nil
}
