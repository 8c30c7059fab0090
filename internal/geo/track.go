package geo

import (
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/dronelab/tellosim/internal/drone"
)

// Track accumulates the planar path of a flight. Consecutive duplicate
// positions are collapsed.
type Track struct {
	coords []float64
}

// Add appends pos to the track.
func (t *Track) Add(pos drone.Vec2) {
	n := len(t.coords)
	if n >= 2 && t.coords[n-2] == pos.X && t.coords[n-1] == pos.Y {
		return
	}
	t.coords = append(t.coords, pos.X, pos.Y)
}

// Len returns the number of distinct points.
func (t *Track) Len() int {
	return len(t.coords) / 2
}

// LineString returns the track in simulation units. Tracks with fewer than
// two points are empty.
func (t *Track) LineString() geom.LineString {
	if t.Len() < 2 {
		return geom.LineString{}
	}
	flat := make([]float64, len(t.coords))
	copy(flat, t.coords)
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
}

// LengthMetres returns the ground distance covered.
func (t *Track) LengthMetres() float64 {
	return t.LineString().Length() / 100
}

// WKT returns the track as well known text in simulation units.
func (t *Track) WKT() string {
	return t.LineString().AsText()
}

// Reset discards all points.
func (t *Track) Reset() {
	t.coords = t.coords[:0]
}
