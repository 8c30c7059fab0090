package drone

import "time"

// Settings are the tunable constants of the flight model.
type Settings struct {
	MaxElevation  float64
	MinSpeed      int
	MaxSpeed      int
	DefaultSpeed  int
	RotationRate  float64 // degrees per tick
	ElevationRate float64 // units per tick
	TakeoffHeight float64
	FlipDistance  float64
	FlipLift      float64
	FlipDuration  time.Duration
	ReplyDelayMin time.Duration
	ReplyDelayMax time.Duration
	StartPosition Vec2
	StartHeading  float64
}

// DefaultSettings returns the stock flight model.
func DefaultSettings() Settings {
	return Settings{
		MaxElevation:  3000,
		MinSpeed:      10,
		MaxSpeed:      100,
		DefaultSpeed:  10,
		RotationRate:  10,
		ElevationRate: 10,
		TakeoffHeight: 500,
		FlipDistance:  10,
		FlipLift:      100,
		FlipDuration:  175 * time.Millisecond,
		ReplyDelayMin: 600 * time.Millisecond,
		ReplyDelayMax: 1200 * time.Millisecond,
	}
}
