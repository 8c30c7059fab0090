package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeRelay(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthcheck":
			fmt.Fprint(w, `{"status":"ok"}`)
		case "/stats":
			fmt.Fprint(w, `{"h":"50","bat":"99"}`)
		case "/flight":
			fmt.Fprint(w, `{"commands":2}`)
		default:
			fmt.Fprintf(w, `Command sent: "%s", drone responded: "ok"`, r.URL.Path[1:])
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runCtl(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestSend(t *testing.T) {
	srv := fakeRelay(t)
	out, err := runCtl(t, "-url", srv.URL, "send", "forward", "50")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestStats_Sorted(t *testing.T) {
	srv := fakeRelay(t)
	out, err := runCtl(t, "-url", srv.URL, "stats")
	require.NoError(t, err)
	assert.Equal(t, "bat:99\nh:50\n", out)
}

func TestFlight(t *testing.T) {
	srv := fakeRelay(t)
	out, err := runCtl(t, "-url", srv.URL, "flight")
	require.NoError(t, err)
	assert.JSONEq(t, `{"commands":2}`, out)
}

func TestHealth(t *testing.T) {
	srv := fakeRelay(t)
	out, err := runCtl(t, "-url", srv.URL, "health")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestRunScript(t *testing.T) {
	srv := fakeRelay(t)
	path := filepath.Join(t.TempDir(), "hop.yaml")
	require.NoError(t, os.WriteFile(path, []byte("steps:\n  - takeoff\n  - land\n"), 0644))

	out, err := runCtl(t, "-url", srv.URL, "run", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "name: hop\n"))
	assert.Contains(t, out, "command: takeoff")
	assert.Contains(t, out, "failed: 0")
}

func TestUsage(t *testing.T) {
	for _, args := range [][]string{{}, {"send"}, {"run"}, {"bogus"}} {
		_, err := runCtl(t, args...)
		assert.ErrorIs(t, err, errUsage, "args %v", args)
	}
}
