package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kjstillabower/weather-dashboard/internal/config"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/schema"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

// Endpoint labels used in errors and metrics.
const (
	EndpointWeather      = "weather"
	EndpointGeocode      = "geocode"
	EndpointAirPollution = "air_pollution"
	EndpointStyle        = "style"
)

// WeatherAPI is the OpenWeather surface used by the dashboard.
type WeatherAPI interface {
	GetWeather(ctx context.Context, c models.Coordinates) (models.WeatherResponse, error)
	GetGeocode(ctx context.Context, location string) (models.GeocodeResult, error)
	GetAirPollution(ctx context.Context, c models.Coordinates) (models.AirPollutionResponse, error)
}

// OpenWeatherClient calls the OpenWeather REST API. Every operation is a
// single attempt; failures are returned as *NetworkError, *HTTPError,
// *ParseError or *schema.ValidationError.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	r       requester
}

// NewOpenWeatherClient builds a client for baseURL (for example
// https://api.openweathermap.org). A nil httpClient uses a default client
// without a timeout.
func NewOpenWeatherClient(creds config.Credentials, baseURL string, httpClient *http.Client) *OpenWeatherClient {
	return &OpenWeatherClient{
		apiKey:  creds.OpenWeatherKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		r:       newRequester(httpClient),
	}
}

// GetWeather fetches current, hourly and daily conditions in imperial units.
func (c *OpenWeatherClient) GetWeather(ctx context.Context, coords models.Coordinates) (models.WeatherResponse, error) {
	if err := validation.ValidateCoordinates(coords); err != nil {
		return models.WeatherResponse{}, err
	}
	q := coordinateQuery(coords)
	q.Set("units", "imperial")
	q.Set("exclude", "minutely,alerts")
	return fetch(ctx, c.r, EndpointWeather, c.endpointURL("/data/3.0/onecall", q), schema.Weather)
}

// GetGeocode resolves a free-text location to candidate coordinates.
func (c *OpenWeatherClient) GetGeocode(ctx context.Context, location string) (models.GeocodeResult, error) {
	loc, err := validation.ValidateLocation(location)
	if err != nil {
		return models.GeocodeResult{}, err
	}
	q := url.Values{}
	q.Set("q", loc)
	q.Set("limit", "1")
	return fetch(ctx, c.r, EndpointGeocode, c.endpointURL("/geo/1.0/direct", q), schema.Geocode)
}

// GetAirPollution fetches the current air quality reading.
func (c *OpenWeatherClient) GetAirPollution(ctx context.Context, coords models.Coordinates) (models.AirPollutionResponse, error) {
	if err := validation.ValidateCoordinates(coords); err != nil {
		return models.AirPollutionResponse{}, err
	}
	return fetch(ctx, c.r, EndpointAirPollution, c.endpointURL("/data/2.5/air_pollution", coordinateQuery(coords)), schema.AirPollution)
}

func (c *OpenWeatherClient) endpointURL(path string, q url.Values) string {
	q.Set("appid", c.apiKey)
	return c.baseURL + path + "?" + q.Encode()
}

// coordinateQuery formats lat/lon with the shortest representation that
// round-trips, so the request carries exactly the given values.
func coordinateQuery(c models.Coordinates) url.Values {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(c.Lon, 'f', -1, 64))
	return q
}
