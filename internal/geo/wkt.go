// Package geo decodes the boundary geometry attached to places.
package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// Coordinate is one latitude/longitude pair of a place boundary.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ParsePolygon decodes a WKT POLYGON string into the ordered coordinate
// sequence of its exterior ring. WKT stores points as "lng lat"; the
// returned pairs are latitude-first.
//
// Anything that fails to parse means the place has no boundary: the
// result is nil, never an error.
func ParsePolygon(s string) []Coordinate {
	if s == "" {
		return nil
	}

	geom, err := wkt.Unmarshal(s)
	if err != nil {
		return nil
	}

	poly, ok := geom.(orb.Polygon)
	if !ok || len(poly) == 0 {
		return nil
	}

	ring := poly[0]
	if len(ring) == 0 {
		return nil
	}

	coords := make([]Coordinate, 0, len(ring))
	for _, pt := range ring {
		coords = append(coords, Coordinate{Latitude: pt.Lat(), Longitude: pt.Lon()})
	}
	return coords
}
