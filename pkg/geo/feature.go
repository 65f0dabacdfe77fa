// Package geo normalizes the GeoJSON features carried by map events: loose
// extraction from backend payloads, coordinate rounding, and a canonical
// collection the map layer renders from.
package geo

import (
	"encoding/json"
	"math"
)

const roundingPrecision = 10000 // 4 decimal places

// Geometry keeps coordinates loosely typed: only Point coordinates are
// interpreted, every other geometry passes through untouched.
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

type Feature struct {
	Type       string         `json:"type"`
	Geometry   *Geometry      `json:"geometry,omitempty"`
	Properties map[string]any `json:"properties"`
}

func round4(x float64) float64 {
	return math.Round(x*roundingPrecision) / roundingPrecision
}

// RoundCoordinates rounds a Point feature's longitude and latitude to 4
// decimal places. Non-Point geometries and malformed coordinate arrays are
// returned unmodified. Rounding is stable under repeated application.
func RoundCoordinates(f Feature) Feature {
	if f.Geometry == nil || f.Geometry.Type != "Point" {
		return f
	}

	switch coords := f.Geometry.Coordinates.(type) {
	case []float64:
		if len(coords) < 2 {
			return f
		}
		out := append([]float64(nil), coords...)
		out[0] = round4(out[0])
		out[1] = round4(out[1])
		f.Geometry = &Geometry{Type: f.Geometry.Type, Coordinates: out}
	case []any:
		if len(coords) < 2 {
			return f
		}
		lon, lonOK := coords[0].(float64)
		lat, latOK := coords[1].(float64)
		if !lonOK || !latOK {
			return f
		}
		out := append([]any(nil), coords...)
		out[0] = round4(lon)
		out[1] = round4(lat)
		f.Geometry = &Geometry{Type: f.Geometry.Type, Coordinates: out}
	}
	return f
}

// featureShaped accepts objects that declare type "Feature", and untyped
// objects that still carry a geometry or properties member. Arbitrary
// objects with neither are not features.
func featureShaped(raw map[string]any) bool {
	if t, ok := raw["type"].(string); ok {
		return t == "Feature"
	}
	_, hasGeometry := raw["geometry"]
	_, hasProperties := raw["properties"]
	return hasGeometry || hasProperties
}

func decodeFeature(raw map[string]any) (Feature, bool) {
	if !featureShaped(raw) {
		return Feature{}, false
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return Feature{}, false
	}
	var f Feature
	if err := json.Unmarshal(b, &f); err != nil {
		return Feature{}, false
	}
	return f, true
}
