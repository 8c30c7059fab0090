// Package geo places the simulation plane on the globe.
//
// Simulation units are centimetres on a flat plane whose negative Y axis
// points north. The plane is anchored at a home coordinate and projected
// through web mercator (EPSG:3857), which is accurate enough over the few
// hundred metres a flight covers.
package geo

import (
	"errors"
	"math"

	"github.com/wroge/wgs84"

	"github.com/dronelab/tellosim/internal/drone"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Projector converts simulation positions to WGS84 coordinates.
type Projector struct {
	homeLat, homeLon float64
	originX, originY float64
	scale            float64

	toWGS84 func(x, y, z float64) (float64, float64, float64)
}

// NewProjector anchors the simulation origin at the given home coordinate.
func NewProjector(latitude, longitude float64) (*Projector, error) {
	if math.IsNaN(latitude) || math.IsNaN(longitude) ||
		latitude <= -85 || latitude >= 85 || longitude < -180 || longitude > 180 {
		return nil, ErrInvalidCoordinates
	}

	epsg := wgs84.EPSG()
	x, y, _ := epsg.Transform(4326, 3857)(longitude, latitude, 0)

	return &Projector{
		homeLat: latitude,
		homeLon: longitude,
		originX: x,
		originY: y,
		// Mercator stretches ground distances by 1/cos(latitude).
		scale:   1 / math.Cos(latitude*math.Pi/180),
		toWGS84: epsg.Transform(3857, 4326),
	}, nil
}

// Home returns the anchor coordinate.
func (p *Projector) Home() (latitude, longitude float64) {
	return p.homeLat, p.homeLon
}

// ToWGS84 converts a simulation position to latitude and longitude.
func (p *Projector) ToWGS84(pos drone.Vec2) (latitude, longitude float64) {
	x, y := p.ToMercator(pos)
	lon, lat, _ := p.toWGS84(x, y, 0)
	return lat, lon
}

// ToMercator converts a simulation position to EPSG:3857 metres.
func (p *Projector) ToMercator(pos drone.Vec2) (x, y float64) {
	east := pos.X / 100
	north := -pos.Y / 100
	return p.originX + east*p.scale, p.originY + north*p.scale
}
