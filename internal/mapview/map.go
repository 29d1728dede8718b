package mapview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/circuitbreaker"
	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/config"
	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// ErrNotMounted is returned by operations that need a mounted map.
var ErrNotMounted = errors.New("map not mounted")

// Options configures a Map.
type Options struct {
	Credentials config.Credentials
	TileBaseURL string
	StyleID     string
	Styles      client.StyleFetcher
	Breaker     *circuitbreaker.CircuitBreaker
	Logger      *zap.Logger
	// OnClick receives clicked positions while mounted.
	OnClick      func(lat, lng float64)
	OnTransition func(from, to State)
}

// Map composes a widget with the style lifecycle, the weather overlay, the
// location marker, panning and click forwarding.
type Map struct {
	widget    Widget
	creds     config.Credentials
	tileBase  string
	onClick   func(lat, lng float64)
	styles    client.StyleFetcher
	sessionID string
	logger    *zap.Logger
	lifecycle *StyleLifecycle
	panner    *Panner

	// ops serializes Mount, Unmount, SetStyle and Close. It is taken before
	// mu and before the lifecycle lock.
	ops sync.Mutex

	mu       sync.Mutex
	styleID  string
	mounted  bool
	overlay  *RasterLayer
	marker   *MarkerLayer
	click    *ClickBinding
	coords   models.Coordinates
	mapType  string
	overlayN int
}

// New creates an unmounted Map on w.
func New(w Widget, opts Options) *Map {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	session := ulid.Make().String()
	m := &Map{
		widget:    w,
		creds:     opts.Credentials,
		tileBase:  opts.TileBaseURL,
		onClick:   opts.OnClick,
		styles:    opts.Styles,
		sessionID: session,
		styleID:   opts.StyleID,
		logger:    logger.With(zap.String("map_session", session)),
		panner:    NewPanner(w),
	}
	m.lifecycle = NewStyleLifecycle(LifecycleConfig{
		Widget:       w,
		Load:         m.loadStyle,
		NewLayer:     m.newStyleLayer,
		Breaker:      opts.Breaker,
		Logger:       m.logger,
		OnTransition: opts.OnTransition,
	})
	return m
}

// SessionID identifies this map in logs.
func (m *Map) SessionID() string { return m.sessionID }

// Lifecycle exposes the style lifecycle.
func (m *Map) Lifecycle() *StyleLifecycle { return m.lifecycle }

// Mount attaches the overlay and marker, pans to coords, subscribes to clicks
// and starts the style fetch. A map may be mounted again after Unmount but not
// after Close. A failed Mount leaves the map unmounted.
func (m *Map) Mount(ctx context.Context, coords models.Coordinates, mapType string) error {
	if mapType == "" {
		mapType = DefaultMapType
	}
	if err := ValidateMapType(mapType); err != nil {
		return err
	}

	m.ops.Lock()
	defer m.ops.Unlock()
	if m.lifecycle.TornDown() {
		return ErrTornDown
	}

	m.mu.Lock()
	if m.mounted {
		m.mu.Unlock()
		return errors.New("map already mounted")
	}
	m.mounted = true
	m.coords = coords
	m.setOverlayLocked(mapType)
	m.setMarkerLocked(coords)
	if m.onClick != nil {
		m.click = BindClick(m.widget, m.onClick)
	}
	m.mu.Unlock()

	m.panner.Update(coords)
	if err := m.lifecycle.Start(ctx); err != nil {
		m.detach()
		return err
	}
	m.logger.Debug("map mounted", zap.String("map_type", mapType))
	return nil
}

// SetCoordinates moves the marker and pans to coords.
func (m *Map) SetCoordinates(coords models.Coordinates) error {
	m.mu.Lock()
	if !m.mounted {
		m.mu.Unlock()
		return ErrNotMounted
	}
	m.coords = coords
	m.setMarkerLocked(coords)
	m.mu.Unlock()

	m.panner.Update(coords)
	return nil
}

// SetOverlay replaces the weather overlay.
func (m *Map) SetOverlay(mapType string) error {
	if err := ValidateMapType(mapType); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mounted {
		return ErrNotMounted
	}
	if m.mapType == mapType {
		return nil
	}
	m.setOverlayLocked(mapType)
	return nil
}

// SetStyle switches the base style and restarts the style lifecycle.
func (m *Map) SetStyle(ctx context.Context, styleID string) error {
	m.ops.Lock()
	defer m.ops.Unlock()
	m.mu.Lock()
	if !m.mounted {
		m.mu.Unlock()
		return ErrNotMounted
	}
	changed := m.styleID != styleID
	m.styleID = styleID
	m.mu.Unlock()
	if !changed {
		return nil
	}
	return m.lifecycle.Start(ctx)
}

// Unmount cancels the style sequence, unsubscribes clicks and removes every
// layer the map added. Unmounting an unmounted map does nothing.
func (m *Map) Unmount() {
	m.ops.Lock()
	defer m.ops.Unlock()
	if m.detach() {
		m.lifecycle.Cancel()
		m.logger.Debug("map unmounted")
	}
}

// Close unmounts the map for good and waits for the style fetch to return.
func (m *Map) Close() {
	m.ops.Lock()
	defer m.ops.Unlock()
	m.detach()
	m.lifecycle.Close()
}

// detach drops the click binding, overlay and marker and reports whether the
// map was mounted.
func (m *Map) detach() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mounted {
		return false
	}
	m.mounted = false
	if m.click != nil {
		m.click.Unbind()
		m.click = nil
	}
	if m.overlay != nil {
		m.widget.RemoveLayer(m.overlay)
		m.overlay = nil
	}
	if m.marker != nil {
		m.widget.RemoveLayer(m.marker)
		m.marker = nil
	}
	return true
}

// Coordinates returns the last coordinates set.
func (m *Map) Coordinates() models.Coordinates {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.coords
}

// MapType returns the current overlay type.
func (m *Map) MapType() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mapType
}

// Marker returns the marker position, or nil when coordinates are not finite.
func (m *Map) Marker() *LatLng {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.marker == nil {
		return nil
	}
	p := m.marker.Position
	return &p
}

func (m *Map) loadStyle(ctx context.Context) (models.StyleDescriptor, error) {
	m.mu.Lock()
	id := m.styleID
	m.mu.Unlock()
	if m.styles == nil {
		return models.StyleDescriptor{}, errors.New("no style source configured")
	}
	return m.styles.GetStyle(ctx, id)
}

func (m *Map) newStyleLayer(seq uint64, style models.StyleDescriptor) Layer {
	return &StyleLayer{
		ID:     fmt.Sprintf("style-%d", seq),
		APIKey: m.creds.MapTilerKey,
		Style:  style,
	}
}

// setOverlayLocked removes the current overlay before adding the new one.
func (m *Map) setOverlayLocked(mapType string) {
	if m.overlay != nil {
		m.widget.RemoveLayer(m.overlay)
		m.overlay = nil
	}
	m.overlayN++
	m.overlay = &RasterLayer{
		ID:          fmt.Sprintf("overlay-%d", m.overlayN),
		MapType:     mapType,
		URL:         OverlayURL(m.tileBase, mapType, m.creds.OpenWeatherKey),
		Opacity:     OverlayOpacity,
		Attribution: OverlayAttribution,
	}
	m.mapType = mapType
	m.widget.AddLayer(m.overlay)
}

// setMarkerLocked shows a marker only for finite coordinates.
func (m *Map) setMarkerLocked(c models.Coordinates) {
	pos := FromCoordinates(c)
	if m.marker != nil {
		if pos.IsFinite() && m.marker.Position == pos {
			return
		}
		m.widget.RemoveLayer(m.marker)
		m.marker = nil
	}
	if pos.IsFinite() {
		m.marker = &MarkerLayer{ID: "marker", Position: pos}
		m.widget.AddLayer(m.marker)
	}
}
