package models

// Condition is one OpenWeather weather condition entry. Only the icon is
// required; renderers fall back to it when the text fields are absent.
type Condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon" jsonschema:"required"`
}

// CurrentWeather holds the "current" block of a One Call response.
type CurrentWeather struct {
	Dt        int64       `json:"dt" jsonschema:"required"`
	Temp      float64     `json:"temp" jsonschema:"required"`
	FeelsLike float64     `json:"feels_like"`
	Humidity  float64     `json:"humidity"`
	Pressure  float64     `json:"pressure"`
	WindSpeed float64     `json:"wind_speed"`
	Weather   []Condition `json:"weather" jsonschema:"required,minItems=1"`
}

// HourlyWeather is one entry of the hourly forecast.
type HourlyWeather struct {
	Dt        int64       `json:"dt" jsonschema:"required"`
	Temp      float64     `json:"temp" jsonschema:"required"`
	FeelsLike float64     `json:"feels_like"`
	Humidity  float64     `json:"humidity"`
	Pop       float64     `json:"pop"`
	Weather   []Condition `json:"weather" jsonschema:"required,minItems=1"`
}

// DailyTemp is the min/max temperature pair of a daily entry.
type DailyTemp struct {
	Min float64 `json:"min" jsonschema:"required"`
	Max float64 `json:"max" jsonschema:"required"`
}

// DailyWeather is one entry of the daily forecast.
type DailyWeather struct {
	Dt      int64       `json:"dt" jsonschema:"required"`
	Temp    DailyTemp   `json:"temp" jsonschema:"required"`
	Weather []Condition `json:"weather" jsonschema:"required,minItems=1"`
}

// WeatherResponse is a validated One Call 3.0 response in imperial units.
type WeatherResponse struct {
	Lat            float64         `json:"lat" jsonschema:"required,minimum=-90,maximum=90"`
	Lon            float64         `json:"lon" jsonschema:"required,minimum=-180,maximum=180"`
	Timezone       string          `json:"timezone" jsonschema:"required"`
	TimezoneOffset int             `json:"timezone_offset" jsonschema:"required"`
	Current        CurrentWeather  `json:"current" jsonschema:"required"`
	Hourly         []HourlyWeather `json:"hourly" jsonschema:"required"`
	Daily          []DailyWeather  `json:"daily,omitempty"`
}
