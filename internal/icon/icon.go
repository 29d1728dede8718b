// Package icon maps OpenWeather condition icon codes to image URLs.
package icon

import (
	"net/url"
	"strings"
)

// DefaultBaseURL serves the standard OpenWeather icon set.
const DefaultBaseURL = "https://openweathermap.org/img/wn"

// Resolver builds icon URLs against BaseURL. The zero value uses DefaultBaseURL.
type Resolver struct {
	BaseURL string
}

// URL returns the image URL for code. The URL is not checked for existence.
func (r Resolver) URL(code string) string {
	base := strings.TrimRight(r.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return base + "/" + url.PathEscape(code) + ".png"
}

// URL resolves code against DefaultBaseURL.
func URL(code string) string {
	return Resolver{}.URL(code)
}
