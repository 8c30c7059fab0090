package drone

import (
	"math/rand/v2"
	"sort"
	"testing"
	"time"

	"github.com/dronelab/tellosim/internal/bus"
	"github.com/dronelab/tellosim/internal/command"
	"github.com/dronelab/tellosim/internal/loop"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type scheduled struct {
	at    time.Duration
	delay time.Duration
	fn    func()
	timer *fakeTimer
}

// fakeScheduler runs deferred callbacks when the test advances virtual time.
type fakeScheduler struct {
	now     time.Duration
	pending []scheduled
	delays  []time.Duration
}

func (f *fakeScheduler) AfterFunc(d time.Duration, fn func()) loop.Timer {
	t := &fakeTimer{}
	f.pending = append(f.pending, scheduled{at: f.now + d, delay: d, fn: fn, timer: t})
	f.delays = append(f.delays, d)
	return t
}

func (f *fakeScheduler) Advance(d time.Duration) {
	target := f.now + d
	for {
		sort.SliceStable(f.pending, func(i, j int) bool { return f.pending[i].at < f.pending[j].at })
		if len(f.pending) == 0 || f.pending[0].at > target {
			break
		}
		next := f.pending[0]
		f.pending = f.pending[1:]
		f.now = next.at
		if !next.timer.stopped {
			next.fn()
		}
	}
	f.now = target
}

type recordingPublisher struct {
	snapshots []Snapshot
}

func (p *recordingPublisher) Publish(topic bus.Topic, payload any) {
	if snap, ok := payload.(Snapshot); ok && topic == bus.TopicStateChanged {
		p.snapshots = append(p.snapshots, snap)
	}
}

func newTestSimulator(t *testing.T) (*Simulator, *fakeScheduler, *recordingPublisher) {
	t.Helper()
	sched := &fakeScheduler{}
	pub := &recordingPublisher{}
	sim, err := New(DefaultSettings(), sched,
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithPublisher(pub),
	)
	require.NoError(t, err)
	return sim, sched, pub
}

func exec(sim *Simulator, raw string) string {
	reply, _ := sim.Execute(command.Parse(raw))
	return reply
}

// settle steps until no target is pending and returns the number of frames.
func settle(t *testing.T, sim *Simulator) int {
	t.Helper()
	for i := 0; i < 100000; i++ {
		if !sim.Snapshot().Moving() {
			return i
		}
		sim.Step(1.0 / 60)
	}
	t.Fatal("simulation never settled")
	return 0
}

// airborne powers up, takes off and climbs to takeoff height.
func airborne(t *testing.T, sim *Simulator) {
	t.Helper()
	require.Equal(t, ResponseOK, exec(sim, "start"))
	require.Equal(t, ResponseOK, exec(sim, "takeoff"))
	settle(t, sim)
	require.Equal(t, 500.0, sim.Snapshot().Elevation)
}
