// Package core holds the storage-neutral records of a simulated flight.
package core

import "time"

// Position3D is a point on the simulation plane. X and Y are centimetres
// with -Y pointing north, Z is the elevation in centimetres.
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Flight is one recording session, from the first command after start-up
// until the simulator shuts down.
type Flight struct {
	ID            uint
	Name          string
	StartTime     time.Time
	EndTime       time.Time
	HomeLatitude  float64
	HomeLongitude float64
	Version       string
}

// FlightSummary is written when a flight is closed.
type FlightSummary struct {
	EndTime        time.Time
	Commands       int
	Samples        int
	FlightSeconds  float64
	DistanceMetres float64
	Track          []Position3D // path over ground, Z ignored
}

// CommandRecord is one command and its reply.
type CommandRecord struct {
	FlightID uint
	Time     time.Time
	Verb     string
	Command  string
	Result   string
	Latency  time.Duration
}

// StateSample is a throttled copy of the aircraft state plus the telemetry
// line that was broadcast for it.
type StateSample struct {
	FlightID   uint
	Time       time.Time
	Position   Position3D
	Latitude   float64
	Longitude  float64
	Heading    float64
	Speed      int
	Phase      string
	InFlight   bool
	FlightTime float64
	Telemetry  map[string]string
}

// UploadMetadata accompanies an exported flight sent to an archive server.
type UploadMetadata struct {
	FlightName      string
	DurationSeconds float64
	DistanceMetres  float64
	Tag             string
}
