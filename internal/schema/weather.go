package schema

import "github.com/kjstillabower/weather-dashboard/internal/models"

// Weather validates One Call 3.0 responses.
var Weather = Schema[models.WeatherResponse]{
	Name:  "weather",
	model: &models.WeatherResponse{},
	build: decodeAs[models.WeatherResponse],
}
