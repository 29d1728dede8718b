package models

import "encoding/json"

// StyleDescriptor is a validated vector map style. Raw is the whole validated
// document re-encoded as JSON; key order is not preserved.
type StyleDescriptor struct {
	Version int             `json:"version"`
	Name    string          `json:"name,omitempty"`
	Raw     json.RawMessage `json:"-"`
}
