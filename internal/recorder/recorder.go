// Package recorder turns bus traffic into a flight log: every completed
// command and a throttled stream of state samples go to a storage backend
// and, optionally, to InfluxDB.
package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dronelab/tellosim/internal/bus"
	"github.com/dronelab/tellosim/internal/command"
	"github.com/dronelab/tellosim/internal/drone"
	"github.com/dronelab/tellosim/internal/geo"
	"github.com/dronelab/tellosim/internal/influx"
	"github.com/dronelab/tellosim/internal/storage"
	"github.com/dronelab/tellosim/internal/telemetry"
	"github.com/dronelab/tellosim/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// ErrNoFlight is returned by Stop when no flight was started.
var ErrNoFlight = errors.New("no flight in progress")

// PointWriter receives InfluxDB points.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point) error
}

// Config holds recorder settings.
type Config struct {
	SampleInterval time.Duration
	Version        string
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithPointWriter mirrors records to InfluxDB.
func WithPointWriter(w PointWriter) Option {
	return func(r *Recorder) {
		r.points = w
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = l
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// Stats describes the flight being recorded.
type Stats struct {
	FlightID       uint    `json:"flightId"`
	Name           string  `json:"name"`
	Commands       int     `json:"commands"`
	Samples        int     `json:"samples"`
	Errors         int     `json:"errors"`
	DistanceMetres float64 `json:"distanceMetres"`
	TrackPoints    int     `json:"trackPoints"`
}

// Recorder handlers run on the loop goroutine; Start, Stop and Stats may be
// called from others.
type Recorder struct {
	cfg       Config
	backend   storage.Backend
	projector *geo.Projector
	telemetry *telemetry.Generator
	points    PointWriter
	logger    *slog.Logger
	now       func() time.Time

	mu         sync.Mutex
	flight     *core.Flight
	track      geo.Track
	lastSample time.Time
	lastPhase  drone.Phase
	last       drone.Snapshot
	commands   int
	samples    int
	errors     int
}

// New creates a recorder writing to backend.
func New(cfg Config, backend storage.Backend, projector *geo.Projector, gen *telemetry.Generator, opts ...Option) *Recorder {
	r := &Recorder{
		cfg:       cfg,
		backend:   backend,
		projector: projector,
		telemetry: gen,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start opens a new flight named name.
func (r *Recorder) Start(name string) (*core.Flight, error) {
	lat, lon := r.projector.Home()
	f := &core.Flight{
		Name:          name,
		StartTime:     r.now(),
		HomeLatitude:  lat,
		HomeLongitude: lon,
		Version:       r.cfg.Version,
	}
	if err := r.backend.StartFlight(f); err != nil {
		return nil, fmt.Errorf("starting flight: %w", err)
	}

	r.mu.Lock()
	r.flight = f
	r.track.Reset()
	r.lastSample = time.Time{}
	r.lastPhase = ""
	r.last = drone.Snapshot{}
	r.commands, r.samples, r.errors = 0, 0, 0
	r.mu.Unlock()

	r.logger.Info("Flight recording started", "flightId", f.ID, "name", name)
	return f, nil
}

// Attach subscribes the recorder to command and state topics.
func (r *Recorder) Attach(b *bus.Bus) []*bus.Subscription {
	return []*bus.Subscription{
		bus.On(b, bus.TopicCommandCompleted, r.OnCommandCompleted),
		bus.On(b, bus.TopicStateChanged, r.OnStateChanged),
	}
}

// OnCommandCompleted records a command and its reply.
func (r *Recorder) OnCommandCompleted(c bus.CommandCompleted) {
	r.mu.Lock()
	if r.flight == nil {
		r.mu.Unlock()
		return
	}
	rec := core.CommandRecord{
		FlightID: r.flight.ID,
		Time:     c.Sent,
		Command:  c.Command,
		Result:   c.Result,
		Latency:  c.Latency,
	}
	rec.Verb = command.Parse(c.Command).Verb
	r.commands++
	if c.Result != drone.ResponseOK && !isQueryReply(rec.Verb) {
		r.errors++
	}
	r.mu.Unlock()

	if err := r.backend.RecordCommand(&rec); err != nil {
		r.logger.Error("Failed to record command", "command", c.Command, "error", err)
	}
	r.writePoint(influx.CommandPoint(rec))
}

func isQueryReply(verb string) bool {
	return len(verb) > 0 && verb[len(verb)-1] == '?'
}

// OnStateChanged stores a sample when the sample interval has passed or the
// phase changed, and extends the ground track.
func (r *Recorder) OnStateChanged(snap drone.Snapshot) {
	now := r.now()

	r.mu.Lock()
	if r.flight == nil {
		r.mu.Unlock()
		return
	}
	r.last = snap
	due := r.lastSample.IsZero() ||
		now.Sub(r.lastSample) >= r.cfg.SampleInterval ||
		snap.Phase != r.lastPhase
	arrived := snap.Position == snap.TargetPosition
	if due || arrived {
		r.track.Add(snap.Position)
	}
	if !due {
		r.mu.Unlock()
		return
	}
	r.lastSample = now
	r.lastPhase = snap.Phase
	r.samples++
	flightID := r.flight.ID
	r.mu.Unlock()

	sample := r.sample(flightID, now, snap)
	if err := r.backend.RecordState(&sample); err != nil {
		r.logger.Error("Failed to record state", "error", err)
	}
	r.writePoint(influx.SamplePoint(sample))
}

func (r *Recorder) sample(flightID uint, now time.Time, snap drone.Snapshot) core.StateSample {
	lat, lon := r.projector.ToWGS84(snap.Position)
	s := core.StateSample{
		FlightID:   flightID,
		Time:       now,
		Position:   core.Position3D{X: snap.Position.X, Y: snap.Position.Y, Z: snap.Elevation},
		Latitude:   lat,
		Longitude:  lon,
		Heading:    snap.Heading,
		Speed:      snap.Speed,
		Phase:      string(snap.Phase),
		InFlight:   snap.InFlight,
		FlightTime: snap.FlightTime,
	}
	if r.telemetry != nil {
		s.Telemetry = r.telemetry.Generate(snap).Map()
	}
	return s
}

func (r *Recorder) writePoint(p *influxdb2_write.Point) {
	if r.points == nil {
		return
	}
	if err := r.points.WritePoint(p); err != nil {
		r.logger.Debug("Failed to write point", "measurement", p.Name(), "error", err)
	}
}

// Stats returns counters for the current flight.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		Commands:       r.commands,
		Samples:        r.samples,
		Errors:         r.errors,
		DistanceMetres: r.track.LengthMetres(),
		TrackPoints:    r.track.Len(),
	}
	if r.flight != nil {
		s.FlightID = r.flight.ID
		s.Name = r.flight.Name
	}
	return s
}

// TrackWKT returns the ground track so far as well known text.
func (r *Recorder) TrackWKT() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.track.WKT()
}

// Stop closes the flight and hands the summary to the backend.
func (r *Recorder) Stop() (core.FlightSummary, error) {
	r.mu.Lock()
	if r.flight == nil {
		r.mu.Unlock()
		return core.FlightSummary{}, ErrNoFlight
	}
	if r.samples > 0 {
		r.track.Add(r.last.Position)
	}
	summary := core.FlightSummary{
		EndTime:        r.now(),
		Commands:       r.commands,
		Samples:        r.samples,
		FlightSeconds:  r.last.FlightTime,
		DistanceMetres: r.track.LengthMetres(),
		Track:          r.trackPoints(),
	}
	id := r.flight.ID
	r.flight = nil
	r.mu.Unlock()

	if err := r.backend.EndFlight(summary); err != nil {
		return summary, fmt.Errorf("ending flight %d: %w", id, err)
	}
	r.logger.Info("Flight recording stopped",
		"flightId", id,
		"commands", summary.Commands,
		"distanceMetres", summary.DistanceMetres)
	return summary, nil
}

func (r *Recorder) trackPoints() []core.Position3D {
	ls := r.track.LineString()
	seq := ls.Coordinates()
	out := make([]core.Position3D, seq.Length())
	for i := range out {
		xy := seq.GetXY(i)
		out[i] = core.Position3D{X: xy.X, Y: xy.Y}
	}
	return out
}
