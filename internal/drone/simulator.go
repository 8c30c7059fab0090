// Package drone implements the quadcopter flight model: a command driven
// state machine whose targets are approached a little on every tick.
package drone

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dronelab/tellosim/internal/bus"
	"github.com/dronelab/tellosim/internal/command"
	"github.com/dronelab/tellosim/internal/loop"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Scheduler defers callbacks onto the simulation loop.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) loop.Timer
}

// Publisher is the part of the bus the simulator needs.
type Publisher interface {
	Publish(topic bus.Topic, payload any)
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithRand sets the random source used for reply delays.
func WithRand(r *rand.Rand) Option {
	return func(s *Simulator) {
		s.rng = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) {
		s.logger = l
	}
}

// WithPublisher sets where state snapshots are published.
func WithPublisher(p Publisher) Option {
	return func(s *Simulator) {
		s.publisher = p
	}
}

// Simulator owns the drone state. HandleCommand, OnTick and Step must run on
// the loop goroutine; Latest may be called from anywhere.
type Simulator struct {
	settings  Settings
	state     State
	sched     Scheduler
	publisher Publisher
	rng       *rand.Rand
	logger    *slog.Logger

	latest atomic.Pointer[Snapshot]

	commands metric.Int64Counter
}

// New creates a simulator at rest, unpowered, with all targets equal to the
// current values.
func New(settings Settings, sched Scheduler, opts ...Option) (*Simulator, error) {
	s := &Simulator{
		settings: settings,
		sched:    sched,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x74656c6c6f)),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.state = State{
		Position:       settings.StartPosition,
		TargetPosition: settings.StartPosition,
		Heading:        settings.StartHeading,
		TargetHeading:  settings.StartHeading,
		Rotation:       Clockwise,
		Speed:          s.clampSpeed(settings.DefaultSpeed),
	}
	s.storeLatest()

	var err error
	s.commands, err = meter().Int64Counter(
		"drone.commands",
		metric.WithDescription("Commands handled by result"),
	)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Attach subscribes the simulator to commands and ticks on b.
func (s *Simulator) Attach(b *bus.Bus) []*bus.Subscription {
	if s.publisher == nil {
		s.publisher = b
	}
	return []*bus.Subscription{
		bus.On(b, bus.TopicSendCommand, s.HandleCommand),
		bus.On(b, bus.TopicTick, s.OnTick),
	}
}

// Latest returns the most recently published snapshot.
func (s *Simulator) Latest() Snapshot {
	return *s.latest.Load()
}

// Snapshot returns a copy of the current state. Loop goroutine only.
func (s *Simulator) Snapshot() Snapshot {
	return s.state.snapshot()
}

// HandleCommand executes a request and schedules its reply.
func (s *Simulator) HandleCommand(req command.Request) {
	cmd := command.Parse(req.Command)
	reply, silent := s.Execute(cmd)
	s.publishState()

	if silent {
		s.logger.Info("command accepted without reply", "command", req.Command)
		return
	}
	s.logger.Debug("command handled", "command", req.Command, "reply", reply)
	s.reply(req.Callback, reply)
}

// Execute applies cmd to the state and returns the reply text. silent is true
// for commands that must never be answered.
func (s *Simulator) Execute(cmd command.Command) (reply string, silent bool) {
	result, err := s.apply(cmd)

	outcome := "ok"
	switch {
	case errors.Is(err, errNoReply):
		outcome = "silent"
		silent = true
	case err != nil:
		outcome = "rejected"
		reply = err.Error()
	default:
		reply = result
	}

	s.commands.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("verb", cmd.Verb),
		attribute.String("outcome", outcome),
	))

	return reply, silent
}

func (s *Simulator) apply(cmd command.Command) (string, error) {
	// "command" is the SDK mode handshake sent by real clients.
	if cmd.Verb == "start" || cmd.Verb == "command" {
		if !s.state.Powered {
			s.logger.Info("drone powered on")
		}
		s.state.Powered = true
		return ResponseOK, nil
	}

	if !s.state.Powered {
		return "", ErrUnpowered
	}

	switch cmd.Verb {
	case "takeoff":
		return s.takeoff()
	case "land":
		return s.land()
	case "emergency":
		s.emergency()
		return "", errNoReply
	case "streamon", "streamoff":
		return ResponseOK, nil
	case "forward", "back", "left", "right":
		return s.move(cmd)
	case "cw", "ccw":
		return s.rotate(cmd)
	case "up", "down":
		return s.climb(cmd)
	case "speed":
		return s.setSpeed(cmd)
	case "flip":
		return s.flip(cmd)
	case "speed?":
		return strconv.Itoa(s.state.Speed), nil
	case "height?":
		return strconv.Itoa(int(s.state.Elevation/10)) + "dm", nil
	case "time?":
		return strconv.Itoa(int(s.state.FlightTime)) + "s", nil
	default:
		return "", &UnknownCommandError{Verb: cmd.Verb}
	}
}

func (s *Simulator) takeoff() (string, error) {
	if s.state.Elevation != 0 {
		return "", ErrMotorStop
	}
	s.state.InFlight = true
	s.setTargetElevation(s.state.TargetElevation + s.settings.TakeoffHeight)
	s.logger.Info("takeoff", "targetElevation", s.state.TargetElevation)
	return ResponseOK, nil
}

func (s *Simulator) land() (string, error) {
	if s.state.Elevation <= 0 && !s.state.InFlight {
		return "", ErrMotorStop
	}
	s.setTargetElevation(0)
	s.state.InFlight = false
	s.logger.Info("landing", "elevation", s.state.Elevation)
	return ResponseOK, nil
}

func (s *Simulator) emergency() {
	st := &s.state
	st.TargetPosition = st.Position
	st.TargetHeading = st.Heading
	s.setTargetElevation(0)
	st.Powered = false
	st.InFlight = false
	s.logger.Warn("emergency stop", "elevation", st.Elevation)
}

func (s *Simulator) airborne() bool {
	return s.state.InFlight && s.state.Elevation > 0
}

func (s *Simulator) move(cmd command.Command) (string, error) {
	if !s.airborne() {
		return "", ErrMotorStop
	}
	dist, err := magnitude(cmd)
	if err != nil {
		return "", err
	}

	offset := directionOffset(s.state.Heading, cmd.Verb, float64(dist))
	s.state.TargetPosition = Vec2{
		X: roundUnit(s.state.Position.X + offset.X),
		Y: roundUnit(s.state.Position.Y + offset.Y),
	}
	return ResponseOK, nil
}

func (s *Simulator) rotate(cmd command.Command) (string, error) {
	if !s.airborne() {
		return "", ErrMotorStop
	}
	deg, err := magnitude(cmd)
	if err != nil {
		return "", err
	}

	if cmd.Verb == "cw" {
		s.state.Rotation = Clockwise
	} else {
		s.state.Rotation = CounterClockwise
	}
	s.state.TargetHeading = s.state.Heading + float64(s.state.Rotation)*float64(deg)
	return ResponseOK, nil
}

func (s *Simulator) climb(cmd command.Command) (string, error) {
	if !s.state.InFlight {
		return "", ErrMotorStop
	}
	dist, err := magnitude(cmd)
	if err != nil {
		return "", err
	}

	if cmd.Verb == "up" {
		s.setTargetElevation(s.state.TargetElevation + float64(dist))
	} else {
		s.setTargetElevation(s.state.TargetElevation - float64(dist))
	}
	return ResponseOK, nil
}

func (s *Simulator) setSpeed(cmd command.Command) (string, error) {
	v, err := cmd.IntArg(0)
	if err != nil {
		return "", ErrInvalidArgument
	}
	s.state.Speed = s.clampSpeed(v)
	return ResponseOK, nil
}

var flipDirections = map[string]string{
	"f": "forward",
	"b": "back",
	"l": "left",
	"r": "right",
}

func (s *Simulator) flip(cmd command.Command) (string, error) {
	if !s.state.InFlight {
		return "", ErrNotFlying
	}
	arg, err := cmd.Arg(0)
	if err != nil {
		return "", ErrInvalidArgument
	}
	dir, ok := flipDirections[arg]
	if !ok {
		return "", ErrInvalidArgument
	}

	var offset Vec2
	if s.state.Elevation > 0 {
		raw := directionOffset(s.state.Heading, dir, s.settings.FlipDistance)
		offset = Vec2{X: roundUnit(raw.X), Y: roundUnit(raw.Y)}
		s.state.TargetPosition.X += offset.X
		s.state.TargetPosition.Y += offset.Y
	}
	s.setTargetElevation(s.state.TargetElevation + s.settings.FlipLift)

	s.sched.AfterFunc(s.settings.FlipDuration, func() {
		if !s.state.Powered || !s.state.InFlight {
			return
		}
		s.state.TargetPosition.X -= offset.X
		s.state.TargetPosition.Y -= offset.Y
		s.setTargetElevation(s.state.TargetElevation - s.settings.FlipLift)
		s.publishState()
	})
	return ResponseOK, nil
}

func (s *Simulator) reply(cb command.Callback, text string) {
	if cb == nil {
		return
	}
	s.sched.AfterFunc(s.replyDelay(), func() {
		cb.Invoke(text)
	})
}

func (s *Simulator) replyDelay() time.Duration {
	lo, hi := s.settings.ReplyDelayMin, s.settings.ReplyDelayMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.rng.Int64N(int64(hi-lo)))
}

func (s *Simulator) publishState() {
	snap := s.storeLatest()
	if s.publisher != nil {
		s.publisher.Publish(bus.TopicStateChanged, snap)
	}
}

func (s *Simulator) storeLatest() Snapshot {
	snap := s.state.snapshot()
	s.latest.Store(&snap)
	return snap
}

func (s *Simulator) setElevation(v float64) {
	s.state.Elevation = clamp(v, 0, s.settings.MaxElevation)
}

func (s *Simulator) setTargetElevation(v float64) {
	s.state.TargetElevation = clamp(v, 0, s.settings.MaxElevation)
}

func (s *Simulator) clampSpeed(v int) int {
	return min(max(v, s.settings.MinSpeed), s.settings.MaxSpeed)
}

// magnitude parses the first argument as a non-negative integer.
func magnitude(cmd command.Command) (int, error) {
	v, err := cmd.IntArg(0)
	if err != nil || v < 0 {
		return 0, ErrInvalidArgument
	}
	return v, nil
}

var directionIndex = map[string]int{
	"forward": 0,
	"right":   1,
	"back":    2,
	"left":    3,
}

// directionOffset rotates a move of dist units in the named direction by
// heading. Heading 0 faces negative Y.
func directionOffset(heading float64, direction string, dist float64) Vec2 {
	angle := (heading + float64(directionIndex[direction])*90) * math.Pi / 180
	return Vec2{
		X: math.Sin(angle) * dist,
		Y: -math.Cos(angle) * dist,
	}
}

func roundUnit(v float64) float64 {
	r := math.Round(v)
	if r == 0 {
		return 0
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
