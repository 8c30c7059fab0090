package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dronelab/tellosim/internal/command"
	"github.com/dronelab/tellosim/internal/config"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []string
	silent  map[string]bool
	failing bool
}

func (f *fakeSender) Send(raw string, cb command.Callback) error {
	if f.failing {
		return errors.New("loop stopped")
	}
	f.mu.Lock()
	f.sent = append(f.sent, raw)
	f.mu.Unlock()
	if f.silent[raw] {
		return nil
	}
	go cb.Invoke("ok")
	return nil
}

func (f *fakeSender) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func newTestServer(t *testing.T, sender Sender, sources Sources) *httptest.Server {
	t.Helper()
	cfg := config.ServerConfig{CommandTimeout: 200 * time.Millisecond}
	srv := httptest.NewServer(New(cfg, sender, sources, "1.0.0", nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestStart(t *testing.T) {
	sender := &fakeSender{}
	srv := newTestServer(t, sender, Sources{})

	resp, body := get(t, srv.URL+"/start")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `Command sent: "command", drone responded: "ok"`, body)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, []string{"command"}, sender.commands())
}

func TestStreamOn(t *testing.T) {
	sender := &fakeSender{}
	srv := newTestServer(t, sender, Sources{})

	_, body := get(t, srv.URL+"/streamon")
	assert.Equal(t, `Command sent: "streamon", drone responded: "ok"`, body)
}

func TestCommand_URLDecoded(t *testing.T) {
	sender := &fakeSender{}
	srv := newTestServer(t, sender, Sources{})

	resp, body := get(t, srv.URL+"/forward%2050")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `Command sent: "forward 50", drone responded: "ok"`, body)
	assert.Equal(t, []string{"forward 50"}, sender.commands())
}

func TestCommand_Empty(t *testing.T) {
	sender := &fakeSender{}
	srv := newTestServer(t, sender, Sources{})

	resp, _ := get(t, srv.URL+"/")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, sender.commands())
}

func TestCommand_Timeout(t *testing.T) {
	sender := &fakeSender{silent: map[string]bool{"emergency": true}}
	srv := newTestServer(t, sender, Sources{})

	resp, body := get(t, srv.URL+"/emergency")
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	assert.Equal(t, `Command sent: "emergency", no response`, body)
}

func TestCommand_SenderUnavailable(t *testing.T) {
	srv := newTestServer(t, &fakeSender{failing: true}, Sources{})

	resp, _ := get(t, srv.URL+"/takeoff")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStats(t *testing.T) {
	srv := newTestServer(t, &fakeSender{}, Sources{
		Stats: func() map[string]string { return map[string]string{"bat": "97", "h": "50"} },
	})

	resp, body := get(t, srv.URL+"/stats")
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var stats map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &stats))
	assert.Equal(t, "97", stats["bat"])
}

func TestStats_Offline(t *testing.T) {
	srv := newTestServer(t, &fakeSender{}, Sources{})

	_, body := get(t, srv.URL+"/stats")
	assert.Equal(t, "Drone offline", body)
}

func TestFlight(t *testing.T) {
	srv := newTestServer(t, &fakeSender{}, Sources{
		Flight: func() any { return map[string]int{"commands": 3} },
	})
	_, body := get(t, srv.URL+"/flight")
	assert.JSONEq(t, `{"commands":3}`, body)

	bare := newTestServer(t, &fakeSender{}, Sources{})
	resp, _ := get(t, bare.URL+"/flight")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthcheck(t *testing.T) {
	srv := newTestServer(t, &fakeSender{}, Sources{
		Phase:   func() string { return "flying" },
		Viewers: func() int { return 2 },
	})

	resp, body := get(t, srv.URL+"/healthcheck")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var h Health
	require.NoError(t, json.Unmarshal([]byte(body), &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "1.0.0", h.Version)
	assert.Equal(t, "flying", h.Phase)
	assert.Equal(t, 2, h.Viewers)
}

func TestLiveHandlerMounted(t *testing.T) {
	srv := newTestServer(t, &fakeSender{}, Sources{
		Live: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
	})

	resp, _ := get(t, srv.URL+"/ws")
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}

func TestServe_Shutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(config.ServerConfig{}, &fakeSender{}, Sources{}, "dev", nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthcheck")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
