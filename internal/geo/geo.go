// Package geo holds the coordinate math shared by the store and the map view:
// lat/lng validity, equirectangular projection against an SVG viewBox,
// weighted centroids, curved route paths and tooltip placement.
package geo

import (
	"encoding/json"
	"math"
)

// LatLng is a geographic coordinate in degrees.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// InvalidLatLng returns the explicit "no position" marker. It is never (0,0).
func InvalidLatLng() LatLng {
	return LatLng{Latitude: math.NaN(), Longitude: math.NaN()}
}

// Valid reports whether the coordinate can be placed on the map. Non-finite,
// out-of-range and exactly (0,0) coordinates are treated as unset.
func (l LatLng) Valid() bool {
	if !finite(l.Latitude) || !finite(l.Longitude) {
		return false
	}
	if l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
		return false
	}
	return !(l.Latitude == 0 && l.Longitude == 0)
}

// MarshalJSON encodes invalid coordinates as null.
func (l LatLng) MarshalJSON() ([]byte, error) {
	if !finite(l.Latitude) || !finite(l.Longitude) {
		return []byte("null"), nil
	}
	type plain LatLng
	return json.Marshal(plain(l))
}

// UnmarshalJSON decodes null as the invalid marker.
func (l *LatLng) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*l = InvalidLatLng()
		return nil
	}
	type plain LatLng
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*l = LatLng(p)
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Point is a position in viewBox (SVG user) space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned rectangle in the same space as Point.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Weighted is one input to Centroid.
type Weighted struct {
	LatLng LatLng
	Weight float64
}

// Centroid returns the weighted mean of the valid coordinates. Weights below 1
// count as 1. When no valid coordinate remains the invalid marker is returned.
func Centroid(points []Weighted) LatLng {
	var sumLat, sumLng, sumW float64
	for _, p := range points {
		if !p.LatLng.Valid() {
			continue
		}
		w := p.Weight
		if !finite(w) || w < 1 {
			w = 1
		}
		sumLat += p.LatLng.Latitude * w
		sumLng += p.LatLng.Longitude * w
		sumW += w
	}
	if sumW == 0 {
		return InvalidLatLng()
	}
	return LatLng{Latitude: sumLat / sumW, Longitude: sumLng / sumW}
}
