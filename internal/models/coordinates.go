package models

import (
	"math"
	"strconv"
)

// Coordinates is a geographic point in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat" jsonschema:"required,minimum=-90,maximum=90"`
	Lon float64 `json:"lon" jsonschema:"required,minimum=-180,maximum=180"`
}

// IsFinite reports whether both components are finite numbers.
func (c Coordinates) IsFinite() bool {
	return !math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0) &&
		!math.IsNaN(c.Lon) && !math.IsInf(c.Lon, 0)
}

// Key returns a stable string form used for cache keys. Uses the shortest
// representation that round-trips, so distinct points never share a key.
func (c Coordinates) Key() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}
