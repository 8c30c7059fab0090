package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/dronelab/tellosim/internal/drone"
)

func TestNewProjector_InvalidCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
	}{
		{"latitude too high", 89, 0},
		{"latitude too low", -89, 0},
		{"longitude out of range", 10, 181},
		{"nan", math.NaN(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProjector(tt.lat, tt.lon)
			if !errors.Is(err, ErrInvalidCoordinates) {
				t.Errorf("expected ErrInvalidCoordinates, got %v", err)
			}
		})
	}
}

func TestProjector_OriginIsHome(t *testing.T) {
	p, err := NewProjector(47.3977, 8.5456)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lat, lon := p.ToWGS84(drone.Vec2{})
	if math.Abs(lat-47.3977) > 1e-7 {
		t.Errorf("expected lat=47.3977, got %f", lat)
	}
	if math.Abs(lon-8.5456) > 1e-7 {
		t.Errorf("expected lon=8.5456, got %f", lon)
	}

	homeLat, homeLon := p.Home()
	if homeLat != 47.3977 || homeLon != 8.5456 {
		t.Errorf("unexpected home %f,%f", homeLat, homeLon)
	}
}

func TestProjector_NorthIsNegativeY(t *testing.T) {
	p, err := NewProjector(0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 1000 m north and east of the equator origin.
	lat, lon := p.ToWGS84(drone.Vec2{X: 100000, Y: -100000})

	// One degree of latitude is roughly 110.6 km at the equator.
	if math.Abs(lat-0.00904) > 1e-4 {
		t.Errorf("expected ~0.00904 deg north, got %f", lat)
	}
	if math.Abs(lon-0.00898) > 1e-4 {
		t.Errorf("expected ~0.00898 deg east, got %f", lon)
	}
}

func TestProjector_ScaleAtLatitude(t *testing.T) {
	p, err := NewProjector(60, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	x0, y0 := p.ToMercator(drone.Vec2{})
	x1, y1 := p.ToMercator(drone.Vec2{X: 100, Y: -100})

	// One metre on the ground is two mercator metres at 60 degrees.
	if math.Abs((x1-x0)-2) > 1e-9 || math.Abs((y1-y0)-2) > 1e-9 {
		t.Errorf("expected 2m mercator offset, got %f,%f", x1-x0, y1-y0)
	}
}
