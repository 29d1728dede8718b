package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	// Embedded zoneinfo so forecast times resolve IANA names on minimal images.
	_ "time/tzdata"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/circuitbreaker"
	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/config"
	"github.com/kjstillabower/weather-dashboard/internal/forecast"
	httphandler "github.com/kjstillabower/weather-dashboard/internal/http"
	"github.com/kjstillabower/weather-dashboard/internal/icon"
	"github.com/kjstillabower/weather-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/service"
	"github.com/kjstillabower/weather-dashboard/internal/traffic"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if missing := cfg.Credentials.Missing(); len(missing) > 0 {
		logger.Warn("api keys not configured; upstream requests will fail", zap.Strings("missing", missing))
	}

	// The client itself has no timeout; requests are bounded by TimeoutMiddleware
	// and shared fetches by the service's fetch timeout.
	upstream := &http.Client{}
	weatherClient := client.NewOpenWeatherClient(cfg.Credentials, cfg.OpenWeatherAPIURL, upstream)
	styleClient := client.NewMapTilerClient(cfg.Credentials, cfg.MapTilerURL, upstream)
	breaker := newStyleBreaker(cfg, logger)

	caches, mc := buildCaches(cfg, logger)
	weatherService := service.NewDashboardService(weatherClient, caches, service.TTLs{
		Weather:      cfg.WeatherCacheTTL,
		Geocode:      cfg.GeocodeCacheTTL,
		AirPollution: cfg.PollutionCacheTTL,
	}, forecast.Builder{Icons: icon.Resolver{BaseURL: cfg.IconBaseURL}})
	weatherService.SetFetchTimeout(cfg.RequestTimeout)

	healthConfig := httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
	}
	if mc != nil {
		healthConfig.CachePing = mc.Ping
	}
	mapConfig := httphandler.MapConfig{
		Credentials:   cfg.Credentials,
		TileBaseURL:   cfg.OpenWeatherTileURL,
		StyleID:       cfg.MapStyleID,
		Styles:        styleClient,
		Breaker:       breaker,
		AttachTimeout: cfg.MapAttachTimeout,
	}

	tracker := traffic.NewTracker()
	drain := &lifecycle.Drain{}
	inFlight := &httphandler.InFlightTracker{}
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(weatherService, mapConfig, healthConfig, tracker, drain, logger)
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        limiter,
		Traffic:        tracker,
		InFlight:       inFlight,
		Logger:         logger,
	})

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()
	startWarming(appCtx, cfg, weatherService, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	drain.Begin()
	appCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight.Count()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := inFlight.WaitForZero(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", inFlight.Count()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	if mc != nil {
		if err := mc.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

// newStyleBreaker guards the MapTiler style fetch and mirrors its state into
// the styleBreakerState gauge.
func newStyleBreaker(cfg *config.Config, logger *zap.Logger) *circuitbreaker.CircuitBreaker {
	observability.StyleBreakerState.Set(0)
	return circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.StyleBreakerFailureThreshold,
		SuccessThreshold: cfg.StyleBreakerSuccessThreshold,
		Timeout:          cfg.StyleBreakerTimeout,
		Component:        client.EndpointStyle,
		OnStateChange: func(from, to circuitbreaker.State) {
			observability.StyleBreakerState.Set(float64(to))
			logger.Info("style breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// buildCaches selects the cache backend. The memcache client is returned so
// main can ping and close it; it is nil for the in-memory backend.
func buildCaches(cfg *config.Config, logger *zap.Logger) (service.Caches, *memcache.Client) {
	if cfg.CacheBackend != "memcached" {
		logger.Info("cache backend: in_memory")
		return service.Caches{
			Weather:      cache.NewInMemoryCache[models.WeatherResponse](),
			Geocode:      cache.NewInMemoryCache[models.GeocodeResult](),
			AirPollution: cache.NewInMemoryCache[models.AirPollutionResponse](),
		}, nil
	}
	mc := cache.NewMemcachedClient(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
	logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	return service.Caches{
		Weather:      cache.NewMemcachedCache[models.WeatherResponse](mc, service.CacheWeather),
		Geocode:      cache.NewMemcachedCache[models.GeocodeResult](mc, service.CacheGeocode),
		AirPollution: cache.NewMemcachedCache[models.AirPollutionResponse](mc, service.CacheAirPollution),
	}, mc
}

// startWarming prefetches pinned locations once at startup and, when an
// interval is configured, periodically until ctx is done.
func startWarming(ctx context.Context, cfg *config.Config, fetcher cache.Prefetcher, logger *zap.Logger) {
	if len(cfg.PinnedLocations) == 0 {
		return
	}
	warmer := cache.NewCacheWarmer(fetcher, logger)
	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := warmer.Warm(warmCtx, cfg.PinnedLocations); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		cancel()
		if cfg.WarmInterval <= 0 {
			return
		}
		if err := warmer.WarmPeriodic(ctx, cfg.PinnedLocations, cfg.WarmInterval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("periodic cache warming stopped", zap.Error(err))
		}
	}()
}
