package mapview

import (
	"encoding/json"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// Layer kinds.
const (
	KindStyle  = "style"
	KindRaster = "raster"
	KindMarker = "marker"
)

// Layer is something attachable to a Widget.
type Layer interface {
	LayerID() string
	Kind() string
	View() LayerView
}

// LayerView is the serializable description of an attached layer.
type LayerView struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	URL         string          `json:"url,omitempty"`
	Opacity     float64         `json:"opacity,omitempty"`
	Attribution string          `json:"attribution,omitempty"`
	APIKey      string          `json:"apiKey,omitempty"`
	Style       json.RawMessage `json:"style,omitempty"`
	Position    *LatLng         `json:"position,omitempty"`
}

// StyleLayer is the vector base map built from a validated style document.
type StyleLayer struct {
	ID     string
	APIKey string
	Style  models.StyleDescriptor
}

func (l *StyleLayer) LayerID() string { return l.ID }
func (l *StyleLayer) Kind() string    { return KindStyle }

func (l *StyleLayer) View() LayerView {
	return LayerView{ID: l.ID, Kind: KindStyle, APIKey: l.APIKey, Style: l.Style.Raw}
}

// RasterLayer is a weather overlay tile layer.
type RasterLayer struct {
	ID          string
	MapType     string
	URL         string
	Opacity     float64
	Attribution string
}

func (l *RasterLayer) LayerID() string { return l.ID }
func (l *RasterLayer) Kind() string    { return KindRaster }

func (l *RasterLayer) View() LayerView {
	return LayerView{ID: l.ID, Kind: KindRaster, URL: l.URL, Opacity: l.Opacity, Attribution: l.Attribution}
}

// MarkerLayer pins the selected location.
type MarkerLayer struct {
	ID       string
	Position LatLng
}

func (l *MarkerLayer) LayerID() string { return l.ID }
func (l *MarkerLayer) Kind() string    { return KindMarker }

func (l *MarkerLayer) View() LayerView {
	pos := l.Position
	return LayerView{ID: l.ID, Kind: KindMarker, Position: &pos}
}
