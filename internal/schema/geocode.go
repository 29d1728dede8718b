package schema

import (
	"github.com/invopop/jsonschema"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// Geocode validates direct geocoding responses: a non-empty array of candidates.
var Geocode = Schema[models.GeocodeResult]{
	Name:  "geocode",
	model: &geocodeDocument{},
	build: func(raw []byte) (models.GeocodeResult, error) {
		items, err := decodeAs[geocodeDocument](raw)
		if err != nil {
			return models.GeocodeResult{}, err
		}
		return models.GeocodeResult{Candidates: items}, nil
	},
}

// geocodeDocument is the wire shape: a bare array of candidates.
type geocodeDocument []models.GeocodeCandidate

// JSONSchemaExtend requires at least one candidate.
func (geocodeDocument) JSONSchemaExtend(s *jsonschema.Schema) {
	one := uint64(1)
	s.MinItems = &one
}
