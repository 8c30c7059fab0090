// Package httpserver is the browser-facing relay: one GET per command, the
// reply written back as text, plus JSON telemetry for dashboards.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dronelab/tellosim/internal/command"
	"github.com/dronelab/tellosim/internal/config"
)

// Sender submits a command and delivers the reply to cb.
type Sender interface {
	Send(raw string, cb command.Callback) error
}

// Health is the /healthcheck body.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Phase   string `json:"phase"`
	Viewers int    `json:"viewers"`
}

// Sources provides the read-only views served next to the command relay.
// Any field may be nil.
type Sources struct {
	// Stats returns the Tello telemetry fields.
	Stats func() map[string]string
	// Flight returns the recorder's view of the current flight.
	Flight func() any
	// Phase returns the simulator lifecycle phase.
	Phase func() string
	// Viewers returns the number of live view connections.
	Viewers func() int
	// Live serves the live view WebSocket.
	Live http.Handler
}

// Server is the HTTP relay.
type Server struct {
	cfg     config.ServerConfig
	sender  Sender
	sources Sources
	version string
	logger  *slog.Logger
	started time.Time

	srv *http.Server
}

// New creates a relay server.
func New(cfg config.ServerConfig, sender Sender, sources Sources, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		sender:  sender,
		sources: sources,
		version: version,
		logger:  logger,
		started: time.Now(),
	}
	s.srv = &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /start", s.relay("command"))
	mux.HandleFunc("GET /streamon", s.relay("streamon"))
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /flight", s.handleFlight)
	mux.HandleFunc("GET /healthcheck", s.handleHealth)
	if s.sources.Live != nil {
		mux.Handle("GET /ws", s.sources.Live)
	}
	mux.HandleFunc("GET /{command...}", s.handleCommand)
	return cors(mux)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.HTTPAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.HTTPAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("HTTP relay listening", "address", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) relay(cmd string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.forward(w, r, cmd)
	}
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), "/"))
	if err != nil {
		http.Error(w, "bad command encoding", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(raw) == "" {
		http.Error(w, "missing command", http.StatusNotFound)
		return
	}
	s.forward(w, r, raw)
}

// forward sends cmd and waits for the reply or the command timeout.
func (s *Server) forward(w http.ResponseWriter, r *http.Request, cmd string) {
	reply := make(chan string, 1)
	if err := s.sender.Send(cmd, func(result string) { reply <- result }); err != nil {
		s.logger.Error("Failed to submit command", "command", cmd, "error", err)
		http.Error(w, "simulator unavailable", http.StatusServiceUnavailable)
		return
	}

	ctx := r.Context()
	if s.cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CommandTimeout)
		defer cancel()
	}

	select {
	case result := <-reply:
		writeText(w, http.StatusOK, fmt.Sprintf(`Command sent: "%s", drone responded: "%s"`, cmd, result))
	case <-ctx.Done():
		s.logger.Warn("No reply before timeout", "command", cmd)
		writeText(w, http.StatusGatewayTimeout, fmt.Sprintf(`Command sent: "%s", no response`, cmd))
	}
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	if s.sources.Stats == nil {
		writeText(w, http.StatusOK, "Drone offline")
		return
	}
	writeJSON(w, s.sources.Stats())
}

func (s *Server) handleFlight(w http.ResponseWriter, r *http.Request) {
	if s.sources.Flight == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, s.sources.Flight())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := Health{
		Status:  "ok",
		Version: s.version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}
	if s.sources.Phase != nil {
		h.Phase = s.sources.Phase()
	}
	if s.sources.Viewers != nil {
		h.Viewers = s.sources.Viewers()
	}
	writeJSON(w, h)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
