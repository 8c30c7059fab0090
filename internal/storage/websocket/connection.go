package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/dronelab/tellosim/pkg/streaming"
)

const (
	outboxSize   = 4096
	ackChSize    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// link is a collector connection with one writer goroutine and one reader
// goroutine. After a dropped connection it redials and replays the current
// start_flight message.
type link struct {
	mu     sync.Mutex
	conn   *ws.Conn
	outbox chan []byte
	acks   chan streaming.AckMessage
	done   chan struct{}
	closed bool

	target string
	secret string

	// replayed after reconnect
	startMsg []byte

	logger *slog.Logger
}

func newLink(logger *slog.Logger) *link {
	return &link{
		outbox: make(chan []byte, outboxSize),
		acks:   make(chan streaming.AckMessage, ackChSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (l *link) open(rawURL, secret string) error {
	l.target = rawURL
	l.secret = secret

	conn, err := l.dial()
	if err != nil {
		return err
	}
	l.attach(conn)
	return nil
}

func (l *link) dial() (*ws.Conn, error) {
	u, err := url.Parse(l.target)
	if err != nil {
		return nil, fmt.Errorf("invalid collector URL: %w", err)
	}
	if l.secret != "" {
		q := u.Query()
		q.Set("secret", l.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("collector dial failed: %w", err)
	}
	return conn, nil
}

func (l *link) attach(conn *ws.Conn) {
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()

	go l.writeLoop(conn)
	go l.readLoop(conn)
}

func (l *link) writeLoop(conn *ws.Conn) {
	for {
		select {
		case <-l.done:
			return
		case data := <-l.outbox:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				l.logger.Warn("Collector SetWriteDeadline error", "error", err)
				go l.reconnect(conn)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				l.logger.Warn("Collector write error", "error", err)
				go l.reconnect(conn)
				return
			}
		}
	}
}

func (l *link) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-l.done:
				return
			default:
			}
			l.logger.Warn("Collector read error", "error", err)
			go l.reconnect(conn)
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			l.logger.Debug("Ignoring collector message", "raw", string(message))
			continue
		}

		select {
		case l.acks <- ack:
		default:
			l.logger.Debug("Ack channel full, dropping", "for", ack.For)
		}
	}
}

// reconnect replaces broken. Both loops may call it for the same broken
// connection; only the first caller redials.
func (l *link) reconnect(broken *ws.Conn) {
	l.mu.Lock()
	if l.closed || l.conn != broken {
		l.mu.Unlock()
		return
	}
	_ = broken.Close()
	l.conn = nil
	l.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-l.done:
			return
		case <-time.After(backoff):
		}

		l.logger.Info("Reconnecting to collector", "attempt", attempt)
		conn, err := l.dial()
		if err != nil {
			l.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		l.mu.Lock()
		start := l.startMsg
		l.mu.Unlock()

		if start != nil {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(ws.TextMessage, start); err != nil {
				l.logger.Warn("Failed to replay start_flight", "error", err)
				_ = conn.Close()
				continue
			}
		}

		l.logger.Info("Collector reconnected", "attempt", attempt)
		l.attach(conn)
		return
	}

	l.logger.Error("Collector reconnect failed", "maxAttempts", maxReconnect)
}

// send queues data without blocking; it drops when the outbox is full.
func (l *link) send(data []byte) {
	select {
	case l.outbox <- data:
	default:
		l.logger.Warn("Collector outbox full, dropping message")
	}
}

func (l *link) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	l.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-l.acks:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-l.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

func (l *link) close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.done)
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}
