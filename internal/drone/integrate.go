package drone

import (
	"math"

	"github.com/dronelab/tellosim/internal/bus"
)

// OnTick advances the state by one frame and publishes it if anything moved.
func (s *Simulator) OnTick(t bus.Tick) {
	if s.Step(t.DeltaSeconds) {
		s.publishState()
	}
}

// Step advances every quantity one frame toward its target. Motion is per
// frame; deltaSeconds only accumulates flight time. Position and heading
// only change while powered, elevation always settles.
func (s *Simulator) Step(deltaSeconds float64) bool {
	if s.state.InFlight && deltaSeconds > 0 {
		s.state.FlightTime += deltaSeconds
	}

	changed := false
	if s.state.Powered {
		changed = s.stepPosition() || changed
		changed = s.stepHeading() || changed
	}
	changed = s.stepElevation() || changed
	return changed
}

func (s *Simulator) stepPosition() bool {
	st := &s.state
	dx := st.TargetPosition.X - st.Position.X
	dy := st.TargetPosition.Y - st.Position.Y
	if dx == 0 && dy == 0 {
		return false
	}

	rate := float64(st.Speed) / 10
	frames := math.Hypot(dx, dy) / rate
	if rate <= 0 || frames <= 1 {
		st.Position = st.TargetPosition
		return true
	}
	st.Position.X += dx / frames
	st.Position.Y += dy / frames
	return true
}

func (s *Simulator) stepHeading() bool {
	st := &s.state
	delta := st.TargetHeading - st.Heading
	if delta == 0 {
		return false
	}

	rate := s.settings.RotationRate
	if math.Abs(delta)/rate <= 1 {
		st.Heading = st.TargetHeading
		return true
	}
	dir := float64(st.Rotation)
	// Follow the target if the recorded sign disagrees with it.
	if dir*delta < 0 {
		dir = -dir
	}
	st.Heading += rate * dir
	return true
}

func (s *Simulator) stepElevation() bool {
	st := &s.state
	delta := st.TargetElevation - st.Elevation
	if delta == 0 {
		return false
	}

	rate := s.settings.ElevationRate
	if math.Abs(delta)/rate <= 1 {
		s.setElevation(st.TargetElevation)
		return true
	}
	if delta > 0 {
		s.setElevation(st.Elevation + rate)
	} else {
		s.setElevation(st.Elevation - rate)
	}
	return true
}
