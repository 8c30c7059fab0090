package command

import (
	"testing"
	"time"

	"github.com/dronelab/tellosim/internal/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw  string
		verb string
		args []string
	}{
		{"takeoff", "takeoff", []string{}},
		{"forward 100", "forward", []string{"100"}},
		{"  cw   90  ", "cw", []string{"90"}},
		{"FLIP f", "FLIP", []string{"f"}},
		{"go 1 2 3 10", "go", []string{"1", "2", "3", "10"}},
		{"", "", nil},
		{"   ", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			cmd := Parse(tt.raw)
			assert.Equal(t, tt.verb, cmd.Verb)
			if len(tt.args) == 0 {
				assert.Empty(t, cmd.Args)
			} else {
				assert.Equal(t, tt.args, cmd.Args)
			}
		})
	}
}

func TestCommand_IntArg(t *testing.T) {
	cmd := Parse("forward 100 abc")

	n, err := cmd.IntArg(0)
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	_, err = cmd.IntArg(1)
	assert.Error(t, err)

	_, err = cmd.IntArg(2)
	assert.ErrorIs(t, err, ErrMissingArgument)
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "forward 100", Parse("forward   100").String())
	assert.Equal(t, "land", Parse("land").String())
}

func TestCallback_NilInvoke(t *testing.T) {
	var cb Callback
	assert.NotPanics(t, func() { cb.Invoke("ok") })
}

type recordingPublisher struct {
	topics   []bus.Topic
	payloads []any
}

func (p *recordingPublisher) Publish(topic bus.Topic, payload any) {
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
}

type inlinePoster struct{}

func (inlinePoster) Post(fn func()) error {
	fn()
	return nil
}

func TestChannel_Send(t *testing.T) {
	pub := &recordingPublisher{}
	ch := NewChannel(pub, inlinePoster{})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	ch.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls-1) * 700 * time.Millisecond)
	}

	var reply string
	require.NoError(t, ch.Send("takeoff", func(r string) { reply = r }))

	require.Len(t, pub.topics, 1)
	assert.Equal(t, bus.TopicSendCommand, pub.topics[0])
	req, ok := pub.payloads[0].(Request)
	require.True(t, ok)
	assert.Equal(t, "takeoff", req.Command)

	req.Callback.Invoke("ok")

	assert.Equal(t, "ok", reply)
	require.Len(t, pub.topics, 2)
	assert.Equal(t, bus.TopicCommandCompleted, pub.topics[1])
	done := pub.payloads[1].(bus.CommandCompleted)
	assert.Equal(t, "takeoff", done.Command)
	assert.Equal(t, "ok", done.Result)
	assert.Equal(t, 700*time.Millisecond, done.Latency)
}

func TestChannel_SendWithoutCallback(t *testing.T) {
	pub := &recordingPublisher{}
	ch := NewChannel(pub, inlinePoster{})

	require.NoError(t, ch.Send("streamon", nil))
	req := pub.payloads[0].(Request)

	assert.NotPanics(t, func() { req.Callback.Invoke("ok") })
	assert.Equal(t, bus.TopicCommandCompleted, pub.topics[1])
}
