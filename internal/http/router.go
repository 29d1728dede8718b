package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/traffic"
)

// RouterConfig holds middleware settings for NewRouter.
type RouterConfig struct {
	RequestTimeout time.Duration
	// Limiter throttles data routes; nil disables rate limiting.
	Limiter  *rate.Limiter
	Traffic  *traffic.Tracker
	InFlight *InFlightTracker
	Logger   *zap.Logger
}

// NewRouter wires the handler's routes. Operational routes (/health,
// /metrics, /schemas) skip rate limiting, timeouts and outcome tracking.
func NewRouter(h *Handler, cfg RouterConfig) *mux.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Traffic == nil {
		cfg.Traffic = h.traffic
	}

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware(cfg.InFlight))

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/schemas/{name}", h.GetSchema).Methods(http.MethodGet)

	data := router.NewRoute().Subrouter()
	data.Use(RateLimitMiddleware(cfg.Limiter, cfg.Traffic))
	data.Use(OutcomeMiddleware(cfg.Traffic))
	data.Use(TimeoutMiddleware(cfg.RequestTimeout))
	data.HandleFunc("/weather", h.GetWeather).Methods(http.MethodGet)
	data.HandleFunc("/geocode", h.GetGeocode).Methods(http.MethodGet)
	data.HandleFunc("/air-pollution", h.GetAirPollution).Methods(http.MethodGet)
	data.HandleFunc("/forecast/hourly", h.GetHourlyForecast).Methods(http.MethodGet)
	data.HandleFunc("/map", h.GetMap).Methods(http.MethodGet)

	return router
}
