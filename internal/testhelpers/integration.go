//go:build integration

// Package testhelpers builds live-upstream fixtures for integration tests.
package testhelpers

import (
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/config"
	"github.com/kjstillabower/weather-dashboard/internal/forecast"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	Credentials   config.Credentials
	APIURL        string
	MapTilerURL   string
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test if OPENWEATHER_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	creds := config.Credentials{
		OpenWeatherKey: os.Getenv("OPENWEATHER_KEY"),
		MapTilerKey:    os.Getenv("MAPTILER_KEY"),
	}
	if creds.OpenWeatherKey == "" {
		t.Skip("OPENWEATHER_KEY not set, skipping integration test")
	}
	cfg := IntegrationTestConfig{
		Credentials:   creds,
		APIURL:        envOr("OPENWEATHER_API_URL", "https://api.openweathermap.org"),
		MapTilerURL:   envOr("MAPTILER_URL", "https://api.maptiler.com"),
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: envOr("MEMCACHED_ADDRS", "localhost:11211"),
	}
	return cfg
}

// SetupIntegrationService creates a DashboardService against the live API,
// backed by memcached when configured and reachable.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) *service.DashboardService {
	t.Helper()
	httpClient := &http.Client{Timeout: 10 * time.Second}
	api := client.NewOpenWeatherClient(cfg.Credentials, cfg.APIURL, httpClient)

	var caches service.Caches
	if cfg.CacheBackend == "memcached" {
		mc := cache.NewMemcachedClient(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		weather := cache.NewMemcachedCache[models.WeatherResponse](mc, "it-weather")
		if err := weather.Ping(); err != nil {
			t.Logf("Memcached not available (%v), using in-memory cache", err)
		} else {
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
			caches = service.Caches{
				Weather:      weather,
				Geocode:      cache.NewMemcachedCache[models.GeocodeResult](mc, "it-geocode"),
				AirPollution: cache.NewMemcachedCache[models.AirPollutionResponse](mc, "it-pollution"),
			}
		}
	}
	ttls := service.TTLs{Weather: time.Minute, Geocode: time.Minute, AirPollution: time.Minute}
	return service.NewDashboardService(api, caches, ttls, forecast.Builder{})
}

// SetupStyleClient creates a MapTiler client, skipping the test without a key.
func SetupStyleClient(t *testing.T, cfg IntegrationTestConfig) *client.MapTilerClient {
	t.Helper()
	if cfg.Credentials.MapTilerKey == "" {
		t.Skip("MAPTILER_KEY not set, skipping style integration test")
	}
	return client.NewMapTilerClient(cfg.Credentials, cfg.MapTilerURL, &http.Client{Timeout: 10 * time.Second})
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
