package http

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/circuitbreaker"
	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/config"
	"github.com/kjstillabower/weather-dashboard/internal/forecast"
	"github.com/kjstillabower/weather-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weather-dashboard/internal/mapview"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/schema"
	"github.com/kjstillabower/weather-dashboard/internal/service"
	"github.com/kjstillabower/weather-dashboard/internal/traffic"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// MapConfig holds what the /map handler needs to mount a map per request.
type MapConfig struct {
	Credentials config.Credentials
	TileBaseURL string
	StyleID     string
	Styles      client.StyleFetcher
	Breaker     *circuitbreaker.CircuitBreaker
	// AttachTimeout bounds how long a request waits for the styled layer.
	AttachTimeout time.Duration
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	svc     *service.DashboardService
	maps    MapConfig
	health  HealthConfig
	traffic *traffic.Tracker
	drain   *lifecycle.Drain
	logger  *zap.Logger

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. tracker and drain may be nil.
func NewHandler(
	svc *service.DashboardService,
	maps MapConfig,
	health HealthConfig,
	tracker *traffic.Tracker,
	drain *lifecycle.Drain,
	logger *zap.Logger,
) *Handler {
	if tracker == nil {
		tracker = traffic.NewTracker()
	}
	if drain == nil {
		drain = &lifecycle.Drain{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, maps: maps, health: health, traffic: tracker, drain: drain, logger: logger}
}

// GetWeather handles GET /weather?lat=&lon=.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	coords, err := validation.ParseCoordinates(r.URL.Query().Get("lat"), r.URL.Query().Get("lon"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	result, err := h.svc.GetWeather(r.Context(), coords)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetGeocode handles GET /geocode?q=.
func (h *Handler) GetGeocode(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetGeocode(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetAirPollution handles GET /air-pollution?lat=&lon=.
func (h *Handler) GetAirPollution(w http.ResponseWriter, r *http.Request) {
	coords, err := validation.ParseCoordinates(r.URL.Query().Get("lat"), r.URL.Query().Get("lon"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	result, err := h.svc.GetAirPollution(r.Context(), coords)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetHourlyForecast handles GET /forecast/hourly?lat=&lon=. Clients sending
// Accept: text/html get the rendered card, or the error fragment on failure.
func (h *Handler) GetHourlyForecast(w http.ResponseWriter, r *http.Request) {
	html := wantsHTML(r)
	coords, err := validation.ParseCoordinates(r.URL.Query().Get("lat"), r.URL.Query().Get("lon"))
	if err == nil {
		var card forecast.Card
		card, err = h.svc.GetHourlyForecast(r.Context(), coords)
		if err == nil {
			if html {
				writeHTML(w, r, http.StatusOK, func(buf *bytes.Buffer) error { return forecast.Render(buf, card) })
				return
			}
			writeJSON(w, http.StatusOK, card)
			return
		}
	}
	if !html {
		writeServiceError(w, r, err)
		return
	}
	e := classify(err)
	logServiceError(r, e, err)
	writeHTML(w, r, e.Status, func(buf *bytes.Buffer) error { return forecast.RenderError(buf, e.Message) })
}

// mapResponse is the scene a client would render for the requested map.
type mapResponse struct {
	SessionID  string              `json:"sessionId"`
	MapType    string              `json:"mapType"`
	StyleState string              `json:"styleState"`
	Marker     *mapview.LatLng     `json:"marker"`
	Center     mapview.LatLng      `json:"center"`
	Zoom       int                 `json:"zoom"`
	Layers     []mapview.LayerView `json:"layers"`
}

// GetMap handles GET /map?lat=&lon=&type=. It mounts a map on an in-memory
// scene, waits up to the attach timeout for the styled layer, snapshots the
// scene and unmounts.
func (h *Handler) GetMap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	coords, err := validation.ParseCoordinates(q.Get("lat"), q.Get("lon"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	mapType := strings.TrimSpace(q.Get("type"))
	if mapType != "" {
		if err := mapview.ValidateMapType(mapType); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	scene := mapview.NewScene(mapview.CenterOf(coords), mapview.DefaultZoom)
	m := mapview.New(scene, mapview.Options{
		Credentials: h.maps.Credentials,
		TileBaseURL: h.maps.TileBaseURL,
		StyleID:     h.maps.StyleID,
		Styles:      h.maps.Styles,
		Breaker:     h.maps.Breaker,
		Logger:      observability.LoggerFromContext(r.Context()),
	})
	defer m.Close()

	if err := m.Mount(r.Context(), coords, mapType); err != nil {
		writeServiceError(w, r, err)
		return
	}

	waitCtx := r.Context()
	if h.maps.AttachTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(waitCtx, h.maps.AttachTimeout)
		defer cancel()
	}
	state, err := m.Lifecycle().Wait(waitCtx)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Debug("style not attached before deadline",
			zap.String("map_session", m.SessionID()),
			zap.String("style_state", state.String()))
	}

	snap := scene.Snapshot()
	writeJSON(w, http.StatusOK, mapResponse{
		SessionID:  m.SessionID(),
		MapType:    m.MapType(),
		StyleState: state.String(),
		Marker:     m.Marker(),
		Center:     snap.Center,
		Zoom:       snap.Zoom,
		Layers:     snap.Layers,
	})
}

// GetSchema handles GET /schemas/{name}.
func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	doc, ok := schema.Document(name)
	if !ok {
		writeError(w, r, apiError{
			Status:  http.StatusNotFound,
			Code:    "SCHEMA_NOT_FOUND",
			Message: "unknown schema " + name + "; known: " + strings.Join(schema.Names(), ", "),
		})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

type healthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"upstream": "healthy", "credentials": "present"}
	if result.reason == "error_rate_breach" {
		checks["upstream"] = "unhealthy"
	}
	if len(h.maps.Credentials.Missing()) > 0 {
		checks["credentials"] = "missing"
	}
	if h.maps.Breaker != nil {
		checks["styleBreaker"] = h.maps.Breaker.State().String()
	}
	if h.health.CachePing != nil {
		if h.health.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	writeJSON(w, result.statusCode, healthResponse{
		Status:    result.status,
		Service:   observability.ServiceName,
		Version:   "dev",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > credentials missing > error-rate degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if h.drain.Draining() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if len(h.maps.Credentials.Missing()) > 0 {
		return healthResult{"degraded", http.StatusServiceUnavailable, "credentials_missing"}
	}
	if h.health.DegradedWindow > 0 && h.health.DegradedErrorPct > 0 &&
		h.traffic.Degraded(h.health.DegradedWindow, h.health.DegradedErrorPct) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// writeHTML renders into a buffer first so a template failure can still
// produce a clean 500.
func writeHTML(w http.ResponseWriter, r *http.Request, status int, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		observability.LoggerFromContext(r.Context()).Error("render html", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
