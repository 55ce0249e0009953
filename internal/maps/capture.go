package maps

import (
	"errors"
	"fmt"

	"github.com/vmurashev365/hora-openrouteservice/internal/geojson"
)

// Placeholder readouts used when demo fallback is enabled and an
// address-shaped response arrives where a route was expected.
const (
	fallbackDistanceMeters  = 1500.0
	fallbackDurationSeconds = 300.0
)

// metersPerMile converts route distances for the imperial readout.
const metersPerMile = 1609.34

var (
	// ErrNoCapture is returned by the data accessors when no interaction
	// has completed yet. Calling an accessor first is a programmer error
	// and never yields a silent zero.
	ErrNoCapture = errors.New("no captured response: run a start/end interaction before reading route data")

	// ErrUnrecognizedShape is returned when the captured response carries
	// neither a route summary nor any geometry.
	ErrUnrecognizedShape = errors.New("captured response has neither summary nor geometry: unrecognized shape")
)

// ShapeMismatchError reports that the capture classified as an address
// lookup where a route was expected, and the demo fallback is disabled.
type ShapeMismatchError struct {
	Label string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf(
		"expected a route response but captured an address lookup (label %q); "+
			"the map click likely hit a geocoding hotspot - move the pick points, "+
			"or enable demo_fallback to substitute placeholder values", e.Label)
}

// CaptureKind tags the classified response variants.
type CaptureKind int

const (
	KindUnrecognized CaptureKind = iota
	KindRoute
	KindAddress
)

func (k CaptureKind) String() string {
	switch k {
	case KindRoute:
		return "route"
	case KindAddress:
		return "address"
	default:
		return "unrecognized"
	}
}

// RouteResult is the normalized route variant.
type RouteResult struct {
	Distance    float64 // meters
	Duration    float64 // seconds
	Coordinates []geojson.Point
}

// AddressResult is the normalized geocoding variant.
type AddressResult struct {
	Label string
	Point geojson.Point
}

// Capture is the classified form of one intercepted response. It is built
// once, immediately after the network capture, and never mutated.
type Capture struct {
	Kind    CaptureKind
	Route   *RouteResult
	Address *AddressResult
}

// Classify inspects the first feature of a collection and produces the
// tagged union the accessors branch on. The ad hoc field-presence checks
// live here and nowhere else.
func Classify(fc *geojson.FeatureCollection) *Capture {
	if fc == nil || len(fc.Features) == 0 {
		return &Capture{Kind: KindUnrecognized}
	}
	first := fc.Features[0]

	if s := first.Properties.Summary; s != nil {
		return &Capture{
			Kind: KindRoute,
			Route: &RouteResult{
				Distance:    s.Distance,
				Duration:    s.Duration,
				Coordinates: first.Geometry.Coordinates,
			},
		}
	}

	if len(first.Geometry.Coordinates) > 0 {
		return &Capture{
			Kind: KindAddress,
			Address: &AddressResult{
				Label: first.Properties.Label,
				Point: first.Geometry.Coordinates[0],
			},
		}
	}

	return &Capture{Kind: KindUnrecognized}
}

// Coordinates returns the capture's geometry normalized to a polyline. An
// address point degenerates to a two-point segment (the point repeated) so
// downstream assertions use one code path for either variant.
func (c *Capture) coordinates() ([]geojson.Point, error) {
	switch c.Kind {
	case KindRoute:
		pts := c.Route.Coordinates
		if len(pts) == 1 {
			return []geojson.Point{pts[0], pts[0]}, nil
		}
		return pts, nil
	case KindAddress:
		return []geojson.Point{c.Address.Point, c.Address.Point}, nil
	default:
		return nil, ErrUnrecognizedShape
	}
}
