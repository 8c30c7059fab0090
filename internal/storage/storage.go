// Package storage defines where flight records go.
package storage

import "github.com/dronelab/tellosim/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Flight management (StartFlight assigns the ID)
	StartFlight(f *core.Flight) error
	EndFlight(summary core.FlightSummary) error

	// Records
	RecordCommand(c *core.CommandRecord) error
	RecordState(s *core.StateSample) error
}

// Exporter is an optional interface for backends that write a flight file.
type Exporter interface {
	ExportedFilePath() string
}
