package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dronelab/tellosim/internal/drone"
)

func TestTrack_Empty(t *testing.T) {
	var tr Track

	assert.Equal(t, 0, tr.Len())
	assert.Equal(t, 0.0, tr.LengthMetres())
	assert.Equal(t, "LINESTRING EMPTY", tr.WKT())
}

func TestTrack_SinglePointIsEmpty(t *testing.T) {
	var tr Track
	tr.Add(drone.Vec2{X: 1, Y: 2})
	tr.Add(drone.Vec2{X: 1, Y: 2})

	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, "LINESTRING EMPTY", tr.WKT())
}

func TestTrack_Length(t *testing.T) {
	var tr Track
	tr.Add(drone.Vec2{X: 0, Y: 0})
	tr.Add(drone.Vec2{X: 0, Y: -100})
	tr.Add(drone.Vec2{X: 0, Y: -100})
	tr.Add(drone.Vec2{X: 300, Y: -500})

	assert.Equal(t, 3, tr.Len())
	// 100 cm + 500 cm
	assert.InDelta(t, 6.0, tr.LengthMetres(), 1e-9)
	assert.Equal(t, "LINESTRING(0 0,0 -100,300 -500)", tr.WKT())

	tr.Reset()
	assert.Equal(t, 0, tr.Len())
}
