package drone

import "math"

// Vec2 is a planar position in simulation units (centimetres).
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rotation is the direction the heading turns toward its target.
type Rotation int

const (
	Clockwise        Rotation = 1
	CounterClockwise Rotation = -1
)

func (r Rotation) String() string {
	if r == CounterClockwise {
		return "ccw"
	}
	return "cw"
}

// Phase summarises the lifecycle position of the drone.
type Phase string

const (
	PhaseOff     Phase = "off"
	PhaseIdle    Phase = "idle"
	PhaseFlying  Phase = "flying"
	PhaseLanding Phase = "landing"
)

// State is the full simulation state. It is owned by the Simulator and only
// touched from the loop goroutine.
type State struct {
	Position        Vec2
	TargetPosition  Vec2
	Heading         float64
	TargetHeading   float64
	Rotation        Rotation
	Elevation       float64
	TargetElevation float64
	Speed           int
	Powered         bool
	InFlight        bool
	FlightTime      float64
}

// Snapshot is an immutable copy of State handed to readers.
type Snapshot struct {
	Position        Vec2     `json:"position"`
	TargetPosition  Vec2     `json:"targetPosition"`
	Heading         float64  `json:"heading"`
	TargetHeading   float64  `json:"targetHeading"`
	Rotation        Rotation `json:"rotation"`
	Elevation       float64  `json:"elevation"`
	TargetElevation float64  `json:"targetElevation"`
	Speed           int      `json:"speed"`
	Powered         bool     `json:"powered"`
	InFlight        bool     `json:"inFlight"`
	FlightTime      float64  `json:"flightTime"`
	Phase           Phase    `json:"phase"`
}

func (st State) snapshot() Snapshot {
	return Snapshot{
		Position:        st.Position,
		TargetPosition:  st.TargetPosition,
		Heading:         st.Heading,
		TargetHeading:   st.TargetHeading,
		Rotation:        st.Rotation,
		Elevation:       st.Elevation,
		TargetElevation: st.TargetElevation,
		Speed:           st.Speed,
		Powered:         st.Powered,
		InFlight:        st.InFlight,
		FlightTime:      st.FlightTime,
		Phase:           st.phase(),
	}
}

func (st State) phase() Phase {
	switch {
	case !st.Powered:
		return PhaseOff
	case st.InFlight:
		return PhaseFlying
	case st.Elevation > 0:
		return PhaseLanding
	default:
		return PhaseIdle
	}
}

// Yaw returns the heading folded into [-180, 180).
func (s Snapshot) Yaw() float64 {
	h := math.Mod(s.Heading+180, 360)
	if h < 0 {
		h += 360
	}
	return h - 180
}

// Moving reports whether any target differs from its current value.
func (s Snapshot) Moving() bool {
	return s.Position != s.TargetPosition ||
		s.Heading != s.TargetHeading ||
		s.Elevation != s.TargetElevation
}
