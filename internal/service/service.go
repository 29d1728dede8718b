package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/forecast"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

// Cache type labels for metrics and keys.
const (
	CacheWeather      = "weather"
	CacheGeocode      = "geocode"
	CacheAirPollution = "air_pollution"
)

// Caches groups the per-endpoint caches.
type Caches struct {
	Weather      cache.Cache[models.WeatherResponse]
	Geocode      cache.Cache[models.GeocodeResult]
	AirPollution cache.Cache[models.AirPollutionResponse]
}

// TTLs are the per-endpoint cache lifetimes.
type TTLs struct {
	Weather      time.Duration
	Geocode      time.Duration
	AirPollution time.Duration
}

// DefaultFetchTimeout bounds a shared upstream fetch when none is configured.
const DefaultFetchTimeout = 10 * time.Second

// DashboardService is the data-fetching layer: cache-aside reads keyed by
// coordinates (or normalized location), with concurrent misses for the same
// key sharing a single upstream call.
type DashboardService struct {
	client       client.WeatherAPI
	caches       Caches
	ttls         TTLs
	forecast     forecast.Builder
	group        singleflight.Group
	fetchTimeout time.Duration
}

// NewDashboardService creates a DashboardService. Nil caches default to in-memory.
func NewDashboardService(api client.WeatherAPI, caches Caches, ttls TTLs, cards forecast.Builder) *DashboardService {
	if caches.Weather == nil {
		caches.Weather = cache.NewInMemoryCache[models.WeatherResponse]()
	}
	if caches.Geocode == nil {
		caches.Geocode = cache.NewInMemoryCache[models.GeocodeResult]()
	}
	if caches.AirPollution == nil {
		caches.AirPollution = cache.NewInMemoryCache[models.AirPollutionResponse]()
	}
	return &DashboardService{client: api, caches: caches, ttls: ttls, forecast: cards, fetchTimeout: DefaultFetchTimeout}
}

// SetFetchTimeout bounds each shared upstream fetch. A shared fetch outlives
// the caller that started it, so it runs under this deadline instead of the
// caller's. Call before the service handles requests; d <= 0 keeps the default.
func (s *DashboardService) SetFetchTimeout(d time.Duration) {
	if d > 0 {
		s.fetchTimeout = d
	}
}

// GetWeather returns weather for c, from cache when fresh.
func (s *DashboardService) GetWeather(ctx context.Context, c models.Coordinates) (models.WeatherResponse, error) {
	if err := validation.ValidateCoordinates(c); err != nil {
		return models.WeatherResponse{}, err
	}
	return cached(ctx, s, CacheWeather, s.caches.Weather, c.Key(), s.ttls.Weather,
		func(ctx context.Context) (models.WeatherResponse, error) {
			return s.client.GetWeather(ctx, c)
		})
}

// GetGeocode resolves location, from cache when fresh. Keys are case-insensitive.
func (s *DashboardService) GetGeocode(ctx context.Context, location string) (models.GeocodeResult, error) {
	loc, err := validation.ValidateLocation(location)
	if err != nil {
		return models.GeocodeResult{}, err
	}
	key := normalizeLocation(loc)
	return cached(ctx, s, CacheGeocode, s.caches.Geocode, key, s.ttls.Geocode,
		func(ctx context.Context) (models.GeocodeResult, error) {
			return s.client.GetGeocode(ctx, key)
		})
}

// GetAirPollution returns the air quality reading for c, from cache when fresh.
func (s *DashboardService) GetAirPollution(ctx context.Context, c models.Coordinates) (models.AirPollutionResponse, error) {
	if err := validation.ValidateCoordinates(c); err != nil {
		return models.AirPollutionResponse{}, err
	}
	return cached(ctx, s, CacheAirPollution, s.caches.AirPollution, c.Key(), s.ttls.AirPollution,
		func(ctx context.Context) (models.AirPollutionResponse, error) {
			return s.client.GetAirPollution(ctx, c)
		})
}

// GetHourlyForecast builds the hourly forecast card for c.
func (s *DashboardService) GetHourlyForecast(ctx context.Context, c models.Coordinates) (forecast.Card, error) {
	w, err := s.GetWeather(ctx, c)
	if err != nil {
		return forecast.Card{}, err
	}
	return s.forecast.Build(w), nil
}

// Prefetch loads weather and air pollution for c into the caches.
func (s *DashboardService) Prefetch(ctx context.Context, c models.Coordinates) error {
	_, werr := s.GetWeather(ctx, c)
	_, perr := s.GetAirPollution(ctx, c)
	return errors.Join(werr, perr)
}

// cached implements cache-aside for one cache. Backend errors degrade to a
// miss on read and are logged on write.
func cached[T any](ctx context.Context, s *DashboardService, cacheType string, c cache.Cache[T], key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	logger := observability.LoggerFromContext(ctx)
	start := time.Now()

	val, ok, err := c.Get(ctx, key)
	if err != nil {
		logger.Warn("cache get failed", zap.String("cache", cacheType), zap.String("key", key), zap.Error(err))
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues(cacheType).Inc()
		logger.Debug("cache hit", zap.String("cache", cacheType), zap.String("key", key))
		return val, nil
	}
	observability.CacheMissesTotal.WithLabelValues(cacheType).Inc()

	ch := s.group.DoChan(cacheType+"|"+key, func() (any, error) {
		// Waiters share this call; one of them leaving must not fail the rest.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		v, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		if setErr := c.Set(fctx, key, v, ttl); setErr != nil {
			logger.Warn("cache set failed", zap.String("cache", cacheType), zap.String("key", key), zap.Error(setErr))
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, fmt.Errorf("fetch %s for %s: %w", cacheType, key, res.Err)
		}
		logger.Debug("upstream served",
			zap.String("cache", cacheType),
			zap.String("key", key),
			zap.Bool("shared", res.Shared),
			zap.Duration("duration", time.Since(start)),
		)
		return res.Val.(T), nil
	}
}

// normalizeLocation normalizes location strings by trimming whitespace and converting to lowercase.
// Used to ensure consistent cache keys and API requests regardless of input format.
func normalizeLocation(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}
