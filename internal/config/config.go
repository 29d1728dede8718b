package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Credentials holds the two upstream API keys. It is passed explicitly to the
// API client and the map component; nothing reads keys from process state.
type Credentials struct {
	OpenWeatherKey string
	MapTilerKey    string
}

// Missing lists the names of unset keys.
func (c Credentials) Missing() []string {
	var out []string
	if strings.TrimSpace(c.OpenWeatherKey) == "" {
		out = append(out, "openweather_key")
	}
	if strings.TrimSpace(c.MapTilerKey) == "" {
		out = append(out, "maptiler_key")
	}
	return out
}

// PinnedLocation is a named point whose data is kept warm in the cache.
type PinnedLocation struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	Credentials Credentials

	OpenWeatherAPIURL  string
	OpenWeatherTileURL string
	MapTilerURL        string
	MapStyleID         string
	IconBaseURL        string

	RequestTimeout   time.Duration
	MapAttachTimeout time.Duration

	CacheBackend      string // "in_memory" or "memcached"
	WeatherCacheTTL   time.Duration
	GeocodeCacheTTL   time.Duration
	PollutionCacheTTL time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitRPS   int
	RateLimitBurst int

	StyleBreakerFailureThreshold int
	StyleBreakerSuccessThreshold int
	StyleBreakerTimeout          time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	WarmInterval    time.Duration
	PinnedLocations []PinnedLocation
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	OpenWeather struct {
		APIURL  string `yaml:"api_url"`
		TileURL string `yaml:"tile_url"`
		IconURL string `yaml:"icon_url"`
	} `yaml:"openweather"`

	MapTiler struct {
		URL     string `yaml:"url"`
		StyleID string `yaml:"style_id"`
	} `yaml:"maptiler"`

	Request struct {
		Timeout       string `yaml:"timeout"`
		MapAttachWait string `yaml:"map_attach_wait"`
	} `yaml:"request"`

	Cache struct {
		Backend      string `yaml:"backend"`
		WeatherTTL   string `yaml:"weather_ttl"`
		GeocodeTTL   string `yaml:"geocode_ttl"`
		PollutionTTL string `yaml:"pollution_ttl"`
		WarmInterval string `yaml:"warm_interval"`
		Memcached    struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RateLimitRPS                 int    `yaml:"rate_limit_rps"`
		RateLimitBurst               int    `yaml:"rate_limit_burst"`
		StyleBreakerFailureThreshold int    `yaml:"style_breaker_failure_threshold"`
		StyleBreakerSuccessThreshold int    `yaml:"style_breaker_success_threshold"`
		StyleBreakerTimeout          string `yaml:"style_breaker_timeout"`
		DegradedWindow               string `yaml:"degraded_window"`
		DegradedErrorPct             int    `yaml:"degraded_error_pct"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	PinnedLocations []PinnedLocation `yaml:"pinned_locations"`
}

type secretsFile struct {
	OpenWeatherKey string `yaml:"openweather_key"`
	MapTilerKey    string `yaml:"maptiler_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) under the
// working directory. See LoadFrom.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom reads configuration rooted at dir. A .env file in dir is loaded
// first (existing env wins); a missing one is fine, a malformed one is an error. API keys come from OPENWEATHER_KEY / MAPTILER_KEY
// or config/secrets.yaml; missing keys are not an error here, they surface as
// upstream request failures.
func LoadFrom(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(dir, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	creds, err := loadCredentials(filepath.Join(dir, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{Credentials: creds}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.OpenWeatherAPIURL = orDefault(fc.OpenWeather.APIURL, "https://api.openweathermap.org")
	cfg.OpenWeatherTileURL = orDefault(fc.OpenWeather.TileURL, "https://tile.openweathermap.org")
	cfg.IconBaseURL = orDefault(fc.OpenWeather.IconURL, "https://openweathermap.org/img/wn")
	cfg.MapTilerURL = orDefault(fc.MapTiler.URL, "https://api.maptiler.com")
	cfg.MapStyleID = orDefault(fc.MapTiler.StyleID, "streets-v4-dark")

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)
	cfg.MapAttachTimeout = parseDuration(fc.Request.MapAttachWait, 3*time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.WeatherCacheTTL = parseDuration(fc.Cache.WeatherTTL, 10*time.Minute)
	cfg.GeocodeCacheTTL = parseDuration(fc.Cache.GeocodeTTL, 24*time.Hour)
	cfg.PollutionCacheTTL = parseDuration(fc.Cache.PollutionTTL, 30*time.Minute)
	cfg.WarmInterval = parseDurationOrZero(fc.Cache.WarmInterval, 0)

	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS < 0 {
		cfg.RateLimitRPS = 0
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 2 * cfg.RateLimitRPS
	}
	cfg.StyleBreakerFailureThreshold = positiveOr(fc.Reliability.StyleBreakerFailureThreshold, 3)
	cfg.StyleBreakerSuccessThreshold = positiveOr(fc.Reliability.StyleBreakerSuccessThreshold, 1)
	cfg.StyleBreakerTimeout = parseDuration(fc.Reliability.StyleBreakerTimeout, time.Minute)
	cfg.DegradedWindow = parseDuration(fc.Reliability.DegradedWindow, time.Minute)
	cfg.DegradedErrorPct = positiveOr(fc.Reliability.DegradedErrorPct, 50)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.PinnedLocations = fc.PinnedLocations

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadCredentials resolves each key from env first, then the secrets file.
func loadCredentials(secretsPath string) (Credentials, error) {
	creds := Credentials{
		OpenWeatherKey: strings.TrimSpace(os.Getenv("OPENWEATHER_KEY")),
		MapTilerKey:    strings.TrimSpace(os.Getenv("MAPTILER_KEY")),
	}
	if creds.OpenWeatherKey != "" && creds.MapTilerKey != "" {
		return creds, nil
	}
	data, err := os.ReadFile(secretsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return creds, nil
		}
		return Credentials{}, fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return Credentials{}, fmt.Errorf("parse secrets file: %w", err)
	}
	if creds.OpenWeatherKey == "" {
		creds.OpenWeatherKey = strings.TrimSpace(sec.OpenWeatherKey)
	}
	if creds.MapTilerKey == "" {
		creds.MapTilerKey = strings.TrimSpace(sec.MapTilerKey)
	}
	return creds, nil
}

func orDefault(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return strings.TrimRight(s, "/")
}

func positiveOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero or negative durations are returned as-is.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.MapAttachTimeout >= cfg.RequestTimeout {
		cfg.MapAttachTimeout = cfg.RequestTimeout / 2
	}
	for i, p := range cfg.PinnedLocations {
		if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			return fmt.Errorf("pinned_locations[%d] (%s): coordinates out of range", i, p.Name)
		}
	}
	return nil
}
