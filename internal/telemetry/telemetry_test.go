package telemetry

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/dronelab/tellosim/internal/drone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator() *Generator {
	return NewGenerator(rand.New(rand.NewPCG(7, 11)))
}

func TestGenerate_DerivedFields(t *testing.T) {
	g := newTestGenerator()

	s := g.Generate(drone.Snapshot{
		Heading:    270,
		Elevation:  504,
		FlightTime: 61.7,
		InFlight:   true,
	})

	assert.Equal(t, -90, s.Yaw)
	assert.Equal(t, 500, s.H)
	assert.Equal(t, 504, s.TOF)
	assert.Equal(t, 61, s.Time)
	assert.Equal(t, 90, s.Bat)
	assert.Equal(t, 0, s.VGX, "no planar motion")
}

func TestGenerate_Ranges(t *testing.T) {
	g := newTestGenerator()
	snap := drone.Snapshot{
		InFlight:       true,
		TargetPosition: drone.Vec2{X: 100},
	}

	for i := 0; i < 500; i++ {
		s := g.Generate(snap)
		assert.True(t, s.Pitch >= -10 && s.Pitch < 10)
		assert.True(t, s.Roll >= -10 && s.Roll < 10)
		assert.True(t, s.VGX >= -40 && s.VGX < 40)
		assert.True(t, s.TempL >= 74 && s.TempL < 86)
		assert.True(t, s.TempH >= 77 && s.TempH < 90)
		assert.True(t, s.Baro >= 90 && s.Baro < 150)
		assert.True(t, s.AGX >= -1000 && s.AGX < 1000)
		assert.Equal(t, 10, s.TOF, "ground reading")
	}
}

func TestGenerate_GroundedAttitudeIsLevel(t *testing.T) {
	g := newTestGenerator()
	s := g.Generate(drone.Snapshot{Powered: true})

	assert.Equal(t, 0, s.Pitch)
	assert.Equal(t, 0, s.Roll)
	assert.Equal(t, 100, s.Bat)
}

func TestBattery(t *testing.T) {
	assert.Equal(t, 100, battery(0))
	assert.Equal(t, 99, battery(6))
	assert.Equal(t, 0, battery(10_000))
}

func TestStats_StringRoundTrip(t *testing.T) {
	s := Stats{
		Pitch: 1, Roll: -2, Yaw: 90, VGX: 5, TempL: 80, TempH: 85, TOF: 100, H: 100,
		Bat: 87, Baro: 101.25, Time: 12, AGX: -3.5, AGY: 0.25, AGZ: -999.99,
	}

	line := s.String()
	require.True(t, strings.HasSuffix(line, ";\r\n"))

	var got Stats
	n, err := fmt.Sscanf(line,
		"pitch:%d;roll:%d;yaw:%d;vgx:%d;vgy:%d;vgz:%d;templ:%d;temph:%d;tof:%d;h:%d;bat:%d;baro:%f;time:%d;agx:%f;agy:%f;agz:%f;",
		&got.Pitch, &got.Roll, &got.Yaw, &got.VGX, &got.VGY, &got.VGZ, &got.TempL, &got.TempH,
		&got.TOF, &got.H, &got.Bat, &got.Baro, &got.Time, &got.AGX, &got.AGY, &got.AGZ)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Equal(t, s, got)
}

func TestStats_Map(t *testing.T) {
	m := Stats{Bat: 55, Baro: 120.5, H: 30}.Map()

	assert.Len(t, m, 16)
	assert.Equal(t, "55", m["bat"])
	assert.Equal(t, "120.50", m["baro"])
	assert.Equal(t, "30", m["h"])
	assert.Equal(t, "0.00", m["agz"])
}
