// Package udpserver speaks the Tello SDK over UDP so existing Tello clients
// can fly the simulator: text commands in on the command port with the reply
// sent back to the sender, and the state string pushed to the client's state
// port at a fixed interval.
package udpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/dronelab/tellosim/internal/command"
	"github.com/dronelab/tellosim/internal/config"
)

const maxPacket = 1518

// Sender submits a command and delivers the reply to cb.
type Sender interface {
	Send(raw string, cb command.Callback) error
}

// StateFunc returns the current Tello state string.
type StateFunc func() string

// Server handles the command and state sockets.
type Server struct {
	cfg    config.ServerConfig
	sender Sender
	state  StateFunc
	logger *slog.Logger

	conn      net.PacketConn
	stateConn net.PacketConn

	mu       sync.Mutex
	client   *net.UDPAddr
	received int
	replied  int
}

// New creates a server. state may be nil to disable the state broadcast.
func New(cfg config.ServerConfig, sender Sender, state StateFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		sender: sender,
		state:  state,
		logger: logger,
	}
}

// Listen binds the command socket and returns its address.
func (s *Server) Listen() (net.Addr, error) {
	conn, err := net.ListenPacket("udp", s.cfg.UDPAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.cfg.UDPAddress, err)
	}
	stateConn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open state socket: %w", err)
	}
	s.conn = conn
	s.stateConn = stateConn
	s.logger.Info("UDP command server listening", "address", conn.LocalAddr().String())
	return conn.LocalAddr(), nil
}

// Serve reads commands until ctx is cancelled. It calls Listen if needed.
func (s *Server) Serve(ctx context.Context) error {
	if s.conn == nil {
		if _, err := s.Listen(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		s.conn.Close()
		s.stateConn.Close()
	}()
	go func() {
		defer wg.Done()
		s.broadcastState(ctx)
	}()

	err := s.readLoop()
	cancel()
	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Server) readLoop() error {
	buf := make([]byte, maxPacket)
	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("reading command: %w", err)
		}

		raw := strings.TrimSpace(string(buf[:n]))
		if raw == "" {
			continue
		}
		s.handle(raw, addr)
	}
}

func (s *Server) handle(raw string, addr net.Addr) {
	s.mu.Lock()
	s.received++
	if udp, ok := addr.(*net.UDPAddr); ok {
		s.client = udp
	}
	s.mu.Unlock()

	s.logger.Debug("Command received", "command", raw, "from", addr.String())

	err := s.sender.Send(raw, func(result string) {
		if _, err := s.conn.WriteTo([]byte(result), addr); err != nil {
			s.logger.Warn("Failed to send reply", "to", addr.String(), "error", err)
			return
		}
		s.mu.Lock()
		s.replied++
		s.mu.Unlock()
	})
	if err != nil {
		s.logger.Error("Failed to submit command", "command", raw, "error", err)
	}
}

func (s *Server) broadcastState(ctx context.Context) {
	if s.state == nil || s.cfg.StateInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.cfg.StateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			target := s.stateTarget()
			if target == nil {
				continue
			}
			if _, err := s.stateConn.WriteTo([]byte(s.state()), target); err != nil {
				s.logger.Debug("Failed to send state", "to", target.String(), "error", err)
			}
		}
	}
}

// stateTarget is the last command sender's IP on the configured state port.
func (s *Server) stateTarget() *net.UDPAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	return &net.UDPAddr{IP: s.client.IP, Port: s.cfg.StatePort, Zone: s.client.Zone}
}

// Stats returns packet counters.
func (s *Server) Stats() (received, replied int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received, s.replied
}
