package drone

import (
	"math"
	"testing"

	"github.com/dronelab/tellosim/internal/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStep_ArrivesWithoutOvershoot(t *testing.T) {
	sim, _, _ := newTestSimulator(t)
	airborne(t, sim)
	exec(sim, "speed 30")
	require.Equal(t, ResponseOK, exec(sim, "forward 100"))

	prev := sim.Snapshot().Position.Y
	frames := 0
	for sim.Snapshot().Moving() {
		sim.Step(1.0 / 60)
		frames++
		y := sim.Snapshot().Position.Y
		assert.LessOrEqual(t, y, prev, "moves monotonically toward target")
		assert.GreaterOrEqual(t, y, -100.0, "never passes the target")
		prev = y
		require.Less(t, frames, 1000)
	}

	// 100 units at 3 units per frame.
	assert.Equal(t, 34, frames)
	assert.Equal(t, -100.0, sim.Snapshot().Position.Y)
}

func TestStep_StraightLine(t *testing.T) {
	sim, _, _ := newTestSimulator(t)
	airborne(t, sim)
	exec(sim, "cw 45")
	settle(t, sim)

	require.Equal(t, ResponseOK, exec(sim, "forward 100"))
	target := sim.Snapshot().TargetPosition
	assert.Equal(t, Vec2{X: 71, Y: -71}, target)

	for sim.Snapshot().Moving() {
		sim.Step(1.0 / 60)
		pos := sim.Snapshot().Position
		// Both axes progress in proportion.
		assert.InDelta(t, pos.X, -pos.Y, 1e-9)
	}
}

func TestStep_HeadingSnapsWithinOneFrame(t *testing.T) {
	sim, _, _ := newTestSimulator(t)
	airborne(t, sim)

	exec(sim, "cw 25")
	frames := settle(t, sim)
	assert.Equal(t, 3, frames)
	assert.Equal(t, 25.0, sim.Snapshot().Heading)

	exec(sim, "ccw 7")
	assert.Equal(t, 1, settle(t, sim))
	assert.Equal(t, 18.0, sim.Snapshot().Heading)
}

func TestStep_UnpoweredOnlySettlesElevation(t *testing.T) {
	sim, _, _ := newTestSimulator(t)
	sim.state.Position = Vec2{X: 1, Y: 1}
	sim.state.TargetPosition = Vec2{X: 50, Y: 50}
	sim.state.TargetHeading = 90
	sim.state.TargetElevation = 30

	for i := 0; i < 10; i++ {
		sim.Step(1.0 / 60)
	}

	snap := sim.Snapshot()
	assert.Equal(t, Vec2{X: 1, Y: 1}, snap.Position)
	assert.Equal(t, 0.0, snap.Heading)
	assert.Equal(t, 30.0, snap.Elevation)
}

func TestStep_FlightTimeOnlyWhileFlying(t *testing.T) {
	sim, _, _ := newTestSimulator(t)
	exec(sim, "start")
	sim.Step(1)
	assert.Equal(t, 0.0, sim.Snapshot().FlightTime)

	exec(sim, "takeoff")
	sim.Step(0.25)
	sim.Step(0.25)
	assert.Equal(t, 0.5, sim.Snapshot().FlightTime)
	assert.Equal(t, "0s", exec(sim, "time?"))
}

func TestStep_NoChangeReturnsFalse(t *testing.T) {
	sim, _, pub := newTestSimulator(t)
	assert.False(t, sim.Step(1.0/60))

	sim.OnTick(tick(1.0 / 60))
	assert.Empty(t, pub.snapshots)
}

func TestSnapshot_Yaw(t *testing.T) {
	tests := []struct {
		heading float64
		want    float64
	}{
		{0, 0},
		{90, 90},
		{180, -180},
		{270, -90},
		{-90, -90},
		{450, 90},
		{-450, -90},
	}
	for _, tt := range tests {
		got := Snapshot{Heading: tt.heading}.Yaw()
		assert.True(t, math.Abs(got-tt.want) < 1e-9, "heading %v: got %v want %v", tt.heading, got, tt.want)
	}
}

func tick(delta float64) bus.Tick {
	return bus.Tick{DeltaSeconds: delta}
}
