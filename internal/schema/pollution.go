package schema

import "github.com/kjstillabower/weather-dashboard/internal/models"

// AirPollution validates air pollution responses.
var AirPollution = Schema[models.AirPollutionResponse]{
	Name:  "air_pollution",
	model: &models.AirPollutionResponse{},
	build: decodeAs[models.AirPollutionResponse],
}
