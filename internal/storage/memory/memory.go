// Package memory keeps a flight in memory and exports it as JSON when the
// flight ends.
package memory

import (
	"sync"

	"github.com/dronelab/tellosim/internal/config"
	"github.com/dronelab/tellosim/pkg/core"
)

// Backend stores flight data in memory and exports to JSON
type Backend struct {
	cfg    config.MemoryConfig
	flight *core.Flight

	commands []core.CommandRecord
	samples  []core.StateSample

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartFlight begins recording a new flight and assigns its ID.
func (b *Backend) StartFlight(f *core.Flight) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	f.ID = b.idCounter

	flight := *f
	b.flight = &flight
	b.commands = nil
	b.samples = nil

	return nil
}

// EndFlight exports the flight. Without a started flight it does nothing.
func (b *Backend) EndFlight(summary core.FlightSummary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.flight == nil {
		return nil
	}
	b.flight.EndTime = summary.EndTime
	err := b.exportJSON(summary)
	b.flight = nil
	return err
}

// RecordCommand appends a command record.
func (b *Backend) RecordCommand(c *core.CommandRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.commands = append(b.commands, *c)
	return nil
}

// RecordState appends a state sample.
func (b *Backend) RecordState(s *core.StateSample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = append(b.samples, *s)
	return nil
}

// ExportedFilePath returns the file written by the last EndFlight.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// Counts returns how many records the current flight holds.
func (b *Backend) Counts() (commands, samples int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.commands), len(b.samples)
}
