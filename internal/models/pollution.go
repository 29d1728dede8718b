package models

// PollutantComponents holds concentrations in μg/m3. Every component is
// optional; an absent one reads as zero.
type PollutantComponents struct {
	CO   float64 `json:"co"`
	NO   float64 `json:"no"`
	NO2  float64 `json:"no2"`
	O3   float64 `json:"o3"`
	SO2  float64 `json:"so2"`
	PM25 float64 `json:"pm2_5"`
	PM10 float64 `json:"pm10"`
	NH3  float64 `json:"nh3"`
}

// AirQualityIndex wraps the 1 (good) to 5 (very poor) index.
type AirQualityIndex struct {
	AQI int `json:"aqi" jsonschema:"required,minimum=1,maximum=5"`
}

// PollutionReading is one timestamped reading.
type PollutionReading struct {
	Dt         int64               `json:"dt" jsonschema:"required"`
	Main       AirQualityIndex     `json:"main" jsonschema:"required"`
	Components PollutantComponents `json:"components" jsonschema:"required"`
}

// AirPollutionResponse is a validated air pollution response.
type AirPollutionResponse struct {
	Coord Coordinates        `json:"coord" jsonschema:"required"`
	List  []PollutionReading `json:"list" jsonschema:"required,minItems=1"`
}
