// Package mapview drives the interactive weather map: a styled vector base
// layer whose fetch-then-attach lifecycle is an explicit state machine, a
// weather raster overlay, a location marker, panning and click forwarding.
//
// All mutation of a Widget goes through this package. Widget methods may be
// called with internal locks held and must not call back into a Map or
// StyleLifecycle synchronously.
package mapview

import (
	"math"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// LatLng is a widget position.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsFinite reports whether both components are finite.
func (p LatLng) IsFinite() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lng) && !math.IsInf(p.Lng, 0)
}

// FromCoordinates converts model coordinates to a widget position.
func FromCoordinates(c models.Coordinates) LatLng {
	return LatLng{Lat: c.Lat, Lng: c.Lon}
}

// CenterOf returns the initial map center for c, with non-finite components
// coerced to 0.
func CenterOf(c models.Coordinates) LatLng {
	return LatLng{Lat: finiteOr(c.Lat, 0), Lng: finiteOr(c.Lon, 0)}
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// Widget is the underlying map the package mutates.
type Widget interface {
	AddLayer(l Layer)
	RemoveLayer(l Layer)
	PanTo(p LatLng)
	// OnClick subscribes fn to click events and returns the unsubscribe func.
	OnClick(fn func(LatLng)) (off func())
}

// ReadyNotifier is implemented by widgets that load asynchronously. WhenReady
// runs fn once the widget is ready, immediately if it already is. Widgets
// without it are treated as always ready.
type ReadyNotifier interface {
	WhenReady(fn func())
}
