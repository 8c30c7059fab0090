package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dronelab/tellosim/internal/drone"
	"github.com/dronelab/tellosim/internal/recorder"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// PointWriter receives the periodic performance point.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger     *slog.Logger
	Interval   time.Duration
	StatusFile string

	Snapshot    func() drone.Snapshot
	Telemetry   func(drone.Snapshot) map[string]string
	Flight      func() recorder.Stats
	WriteQueues func() map[string]int
	LoopPending func() int
	Viewers     func() int

	// Points is optional.
	Points PointWriter
}

// Status is one monitor sample, written to the status file as JSON.
type Status struct {
	Time        time.Time         `json:"time"`
	Uptime      string            `json:"uptime"`
	Phase       drone.Phase       `json:"phase"`
	Position    drone.Vec2        `json:"position"`
	Elevation   float64           `json:"elevation"`
	Telemetry   map[string]string `json:"telemetry,omitempty"`
	Flight      *recorder.Stats   `json:"flight,omitempty"`
	WriteQueues map[string]int    `json:"writeQueues,omitempty"`
	LoopPending int               `json:"loopPending"`
	Viewers     int               `json:"viewers"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	started   time.Time
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		started:  time.Now(),
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus collects the current status.
func (s *Service) GetProgramStatus() Status {
	st := Status{
		Time:   time.Now(),
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}

	if s.deps.Snapshot != nil {
		snap := s.deps.Snapshot()
		st.Phase = snap.Phase
		st.Position = snap.Position
		st.Elevation = snap.Elevation
		if s.deps.Telemetry != nil {
			st.Telemetry = s.deps.Telemetry(snap)
		}
	}
	if s.deps.Flight != nil {
		flight := s.deps.Flight()
		st.Flight = &flight
	}
	if s.deps.WriteQueues != nil {
		st.WriteQueues = s.deps.WriteQueues()
	}
	if s.deps.LoopPending != nil {
		st.LoopPending = s.deps.LoopPending()
	}
	if s.deps.Viewers != nil {
		st.Viewers = s.deps.Viewers()
	}
	return st
}

// WriteStatus replaces the status file with st.
func (s *Service) WriteStatus(st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.deps.StatusFile), 0755); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}
	tmp := s.deps.StatusFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	return os.Rename(tmp, s.deps.StatusFile)
}

// PerformancePoint converts st into a sim_performance point.
func PerformancePoint(st Status) *influxdb2_write.Point {
	p := influxdb2.NewPointWithMeasurement("sim_performance").
		AddTag("phase", string(st.Phase)).
		AddField("loop_pending", st.LoopPending).
		AddField("viewers", st.Viewers).
		SetTime(st.Time)
	for name, n := range st.WriteQueues {
		p.AddField("queue_"+name, n)
	}
	if st.Flight != nil {
		p.AddField("flight_commands", st.Flight.Commands).
			AddField("flight_samples", st.Flight.Samples).
			AddField("flight_distance_m", st.Flight.DistanceMetres)
	}
	return p.SortFields()
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval, "file", s.deps.StatusFile)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				st := s.GetProgramStatus()

				if s.deps.StatusFile != "" {
					if err := s.WriteStatus(st); err != nil {
						logger.Error("Error writing status file", "error", err)
					}
				}

				if s.deps.Points != nil {
					if err := s.deps.Points.WritePoint(PerformancePoint(st)); err != nil {
						logger.Debug("Error writing performance point", "error", err)
					}
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.isRunning = false
	done := s.done
	s.mu.Unlock()
	<-done
}
