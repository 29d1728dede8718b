package schema

import (
	gojson "github.com/goccy/go-json"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// Style validates vector map style documents before a layer is built from them.
var Style = Schema[models.StyleDescriptor]{
	Name:  "style",
	model: &styleDocument{},
	build: func(raw []byte) (models.StyleDescriptor, error) {
		var out models.StyleDescriptor
		if err := gojson.Unmarshal(raw, &out); err != nil {
			return models.StyleDescriptor{}, err
		}
		out.Raw = raw
		return out, nil
	},
}

// styleDocument documents the subset of a MapLibre style that is checked.
type styleDocument struct {
	Version int              `json:"version" jsonschema:"required"`
	Name    string           `json:"name,omitempty"`
	Sources map[string]any   `json:"sources" jsonschema:"required"`
	Layers  []map[string]any `json:"layers" jsonschema:"required"`
}
