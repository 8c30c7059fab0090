package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DroneContext is the live simulator state stamped on every record.
type DroneContext struct {
	Powered  bool
	InFlight bool
	Phase    string
	FlightID uint
}

func (c DroneContext) attrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.Bool("powered", c.Powered),
		slog.Bool("inFlight", c.InFlight),
	}
	if c.Phase != "" {
		attrs = append(attrs, slog.String("phase", c.Phase))
	}
	if c.FlightID != 0 {
		attrs = append(attrs, slog.Uint64("flightId", uint64(c.FlightID)))
	}
	return attrs
}

// ContextProvider reports the current drone context. It returns false
// while there is nothing to report yet, e.g. during startup.
type ContextProvider func() (DroneContext, bool)

type droneHandler struct {
	slog.Handler
	provider ContextProvider
}

func (h droneHandler) Handle(ctx context.Context, r slog.Record) error {
	if dc, ok := h.provider(); ok {
		r.AddAttrs(dc.attrs()...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h droneHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return droneHandler{Handler: h.Handler.WithAttrs(attrs), provider: h.provider}
}

func (h droneHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return droneHandler{Handler: h.Handler.WithGroup(name), provider: h.provider}
}

// sinkBackoff is how long a sink is skipped after a failed write.
const sinkBackoff = 30 * time.Second

// sinkHealth is shared by every clone of a sink so a failure seen through
// a derived logger suspends the sink for all of them.
type sinkHealth struct {
	mu       sync.Mutex
	failures int
	retryAt  time.Time
}

func (s *sinkHealth) suspended(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Before(s.retryAt)
}

func (s *sinkHealth) failed(now time.Time) {
	s.mu.Lock()
	s.failures++
	s.retryAt = now.Add(sinkBackoff)
	s.mu.Unlock()
}

type sink struct {
	handler slog.Handler
	health  *sinkHealth
}

// fanout writes every record to each sink. A sink whose write fails is
// skipped for sinkBackoff so an unreachable Graylog or collector does not
// cost every later record another failed write.
type fanout struct {
	sinks []sink
	now   func() time.Time
}

func newFanout(handlers ...slog.Handler) *fanout {
	f := &fanout{now: time.Now}
	for _, h := range handlers {
		if h != nil {
			f.sinks = append(f.sinks, sink{handler: h, health: &sinkHealth{}})
		}
	}
	return f
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range f.sinks {
		if s.handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	now := f.now()
	for _, s := range f.sinks {
		if !s.handler.Enabled(ctx, r.Level) || s.health.suspended(now) {
			continue
		}
		if err := s.handler.Handle(ctx, r.Clone()); err != nil {
			s.health.failed(now)
		}
	}
	return nil
}

func (f *fanout) derive(fn func(slog.Handler) slog.Handler) *fanout {
	d := &fanout{now: f.now, sinks: make([]sink, len(f.sinks))}
	for i, s := range f.sinks {
		d.sinks[i] = sink{handler: fn(s.handler), health: s.health}
	}
	return d
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}
