// Package geojson holds the wire types for the openrouteservice JSON
// contract consumed by this suite. Both the routing endpoint and the
// geocoding endpoint answer with a FeatureCollection; the two differ only
// in what a feature carries (a distance/duration summary and a polyline
// versus a label and a single point), so the geometry decoder tolerates
// either coordinate encoding.
package geojson

import (
	"encoding/json"
	"fmt"
)

// FeatureCollection is the top-level response body of the routing and
// geocoding endpoints.
type FeatureCollection struct {
	Type     string    `json:"type,omitempty"`
	Features []Feature `json:"features"`
}

// Feature is one routing or geocoding result record.
type Feature struct {
	Type       string     `json:"type,omitempty"`
	Properties Properties `json:"properties"`
	Geometry   Geometry   `json:"geometry"`
}

// Properties carries the route summary (routing) or the address label
// (geocoding). Exactly one of the two is expected to be present.
type Properties struct {
	Summary *Summary `json:"summary,omitempty"`
	Label   string   `json:"label,omitempty"`
}

// Summary is the distance/duration pair attached to a route feature.
// Distance is meters, Duration is seconds.
type Summary struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

// Point is a single [lon, lat] coordinate pair.
type Point struct {
	Lon float64
	Lat float64
}

// UnmarshalJSON decodes the GeoJSON positional array form.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) < 2 {
		return fmt.Errorf("geojson: coordinate pair has %d elements, want at least 2", len(pair))
	}
	p.Lon, p.Lat = pair[0], pair[1]
	return nil
}

// MarshalJSON encodes the point back to the positional array form.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lon, p.Lat})
}

// Geometry is the coordinates attached to a feature. Routing features carry
// a LineString (list of pairs), geocoding features carry a Point (one pair).
// Coordinates always holds the list form after decoding; a Point geometry
// becomes a one-element list.
type Geometry struct {
	Type        string
	Coordinates []Point
}

func (g *Geometry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.Type = raw.Type
	g.Coordinates = nil
	if len(raw.Coordinates) == 0 || string(raw.Coordinates) == "null" {
		return nil
	}

	var line []Point
	if err := json.Unmarshal(raw.Coordinates, &line); err == nil {
		g.Coordinates = line
		return nil
	}

	var single Point
	if err := json.Unmarshal(raw.Coordinates, &single); err != nil {
		return fmt.Errorf("geojson: coordinates are neither a pair nor a list of pairs: %w", err)
	}
	g.Coordinates = []Point{single}
	return nil
}

func (g Geometry) MarshalJSON() ([]byte, error) {
	type wire struct {
		Type        string      `json:"type"`
		Coordinates interface{} `json:"coordinates"`
	}
	if g.Type == "Point" && len(g.Coordinates) == 1 {
		return json.Marshal(wire{Type: g.Type, Coordinates: g.Coordinates[0]})
	}
	return json.Marshal(wire{Type: g.Type, Coordinates: g.Coordinates})
}

// IsPoint reports whether the geometry is a single coordinate.
func (g Geometry) IsPoint() bool {
	return g.Type == "Point" || len(g.Coordinates) == 1
}

// Decode parses a response body into a FeatureCollection.
func Decode(body []byte) (*FeatureCollection, error) {
	var fc FeatureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, fmt.Errorf("geojson: decoding feature collection: %w", err)
	}
	return &fc, nil
}
