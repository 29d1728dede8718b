package mapview

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidMapType is returned for overlay types the tile server does not serve.
var ErrInvalidMapType = errors.New("invalid map type")

// Overlay rendering constants.
const (
	DefaultZoom        = 5
	OverlayOpacity     = 0.6
	OverlayAttribution = `&copy; <a href="https://openweathermap.org/">OpenWeather</a>`
	DefaultMapType     = "clouds_new"
)

// mapTypes are the OpenWeather 1.0 weather map layers.
var mapTypes = []string{"clouds_new", "precipitation_new", "pressure_new", "wind_new", "temp_new"}

// MapTypes lists the accepted overlay types.
func MapTypes() []string {
	return append([]string(nil), mapTypes...)
}

// ValidateMapType returns ErrInvalidMapType unless t is a known overlay.
func ValidateMapType(t string) error {
	for _, m := range mapTypes {
		if t == m {
			return nil
		}
	}
	return fmt.Errorf("%w: %q (want one of %s)", ErrInvalidMapType, t, strings.Join(mapTypes, ", "))
}

// OverlayURL returns the raster tile template for mapType. The {z}/{x}/{y}
// placeholders are left for the widget to fill.
func OverlayURL(tileBaseURL, mapType, apiKey string) string {
	return fmt.Sprintf("%s/map/%s/{z}/{x}/{y}.png?appid=%s",
		strings.TrimRight(tileBaseURL, "/"), url.PathEscape(mapType), url.QueryEscape(apiKey))
}
