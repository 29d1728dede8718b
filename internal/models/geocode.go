package models

// GeocodeCandidate is one match returned by the direct geocoding endpoint.
type GeocodeCandidate struct {
	Name       string            `json:"name" jsonschema:"required"`
	Lat        float64           `json:"lat" jsonschema:"required,minimum=-90,maximum=90"`
	Lon        float64           `json:"lon" jsonschema:"required,minimum=-180,maximum=180"`
	Country    string            `json:"country"`
	State      string            `json:"state,omitempty"`
	LocalNames map[string]string `json:"local_names,omitempty"`
}

// Coordinates returns the candidate position.
func (g GeocodeCandidate) Coordinates() Coordinates {
	return Coordinates{Lat: g.Lat, Lon: g.Lon}
}

// GeocodeResult is the validated candidate list for a location query. It always
// holds at least one candidate.
type GeocodeResult struct {
	Candidates []GeocodeCandidate `json:"candidates" jsonschema:"minItems=1"`
}

// First returns the best candidate.
func (g GeocodeResult) First() GeocodeCandidate {
	return g.Candidates[0]
}
