package weather

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/shuv1824/kisan/internal/types"
)

// warmConcurrency bounds parallel provider calls to stay under its rate limit.
const (
	warmConcurrency = 8
	fetchTimeout    = 30 * time.Second
)

// CacheObserver is told about every cache lookup.
type CacheObserver interface {
	ObserveCache(hit bool)
}

// CachedService wraps a Provider with a Cache. Concurrent misses for the
// same district share one provider call.
type CachedService struct {
	provider Provider
	cache    Cache
	ttl      time.Duration
	days     int
	group    singleflight.Group
	observer CacheObserver
	logger   *slog.Logger
}

type CachedOption func(*CachedService)

func WithObserver(o CacheObserver) CachedOption {
	return func(s *CachedService) { s.observer = o }
}

func WithLogger(l *slog.Logger) CachedOption {
	return func(s *CachedService) { s.logger = l }
}

func NewCachedService(provider Provider, cache Cache, ttl time.Duration, days int, opts ...CachedOption) *CachedService {
	if cache == nil {
		cache = NewMemoryCache()
	}
	s := &CachedService{
		provider: provider,
		cache:    cache,
		ttl:      ttl,
		days:     days,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CachedService) key(d types.District) string {
	return fmt.Sprintf("%s:%d", d.ID, s.days)
}

// Report returns cached weather for d or fetches fresh data. A failing
// cache backend degrades to a direct provider call.
func (s *CachedService) Report(ctx context.Context, d types.District) (types.WeatherReport, error) {
	key := s.key(d)

	report, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("weather cache read failed", "district", d.Name, "error", err)
	}
	s.observe(ok)
	if ok {
		return report, nil
	}

	// The flight is shared by every waiting caller, so it must outlive the
	// one that started it.
	v, err, _ := s.group.Do(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		// Double-check: an earlier flight may have filled the cache.
		if report, ok, _ := s.cache.Get(fctx, key); ok {
			return report, nil
		}
		return s.refresh(fctx, d)
	})
	if err != nil {
		return types.WeatherReport{}, err
	}
	return copyReport(v.(types.WeatherReport)), nil
}

func (s *CachedService) refresh(ctx context.Context, d types.District) (types.WeatherReport, error) {
	report, err := s.provider.Fetch(ctx, d, s.days)
	if err != nil {
		return types.WeatherReport{}, err
	}
	if err := s.cache.Set(ctx, s.key(d), report, s.ttl); err != nil {
		s.logger.Warn("weather cache write failed", "district", d.Name, "error", err)
	}
	return report, nil
}

func (s *CachedService) observe(hit bool) {
	if s.observer != nil {
		s.observer.ObserveCache(hit)
	}
}

// WarmCache fetches every district with bounded concurrency. Individual
// failures are logged; the returned count is the number cached.
func (s *CachedService) WarmCache(ctx context.Context, districts []types.District) int {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)

	results := make([]bool, len(districts))
	for i, d := range districts {
		g.Go(func() error {
			if _, err := s.refresh(ctx, d); err != nil {
				s.logger.Warn("weather warm-up failed", "district", d.Name, "error", err)
				return nil
			}
			results[i] = true
			return nil
		})
	}
	_ = g.Wait()

	warmed := 0
	for _, ok := range results {
		if ok {
			warmed++
		}
	}
	return warmed
}

// StartBackgroundRefresh re-warms the districts every TTL/2 until ctx ends.
func (s *CachedService) StartBackgroundRefresh(ctx context.Context, districts []types.District) {
	if s.ttl <= 0 || len(districts) == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.ttl / 2)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refreshCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
				n := s.WarmCache(refreshCtx, districts)
				cancel()
				s.logger.Debug("weather cache refreshed", "districts", n)
			}
		}
	}()
}
