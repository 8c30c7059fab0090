package bus

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Listener receives the payload published on a topic.
type Listener func(payload any)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type entry struct {
	id       uint64
	listener Listener
}

// Bus is a synchronous publish/subscribe registry keyed by Topic.
// Listeners run on the publisher's goroutine in registration order.
type Bus struct {
	logger Logger

	mu        sync.RWMutex
	nextID    uint64
	listeners map[Topic][]entry

	published metric.Int64Counter
	delivered metric.Int64Counter
	active    metric.Int64ObservableGauge
}

// New creates a new Bus with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Bus, error) {
	b := &Bus{
		logger:    logger,
		listeners: make(map[Topic][]entry),
	}

	m := meter()

	var err error

	b.published, err = m.Int64Counter(
		"bus.events.published",
		metric.WithDescription("Total events published"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating published counter: %w", err)
	}

	b.delivered, err = m.Int64Counter(
		"bus.events.delivered",
		metric.WithDescription("Total listener invocations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating delivered counter: %w", err)
	}

	b.active, err = m.Int64ObservableGauge(
		"bus.listeners.active",
		metric.WithDescription("Current number of listeners per topic"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating listeners gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			b.mu.RLock()
			defer b.mu.RUnlock()
			for topic, list := range b.listeners {
				o.ObserveInt64(b.active, int64(len(list)),
					metric.WithAttributes(attribute.String("topic", topic.String())))
			}
			return nil
		},
		b.active,
	)
	if err != nil {
		return nil, fmt.Errorf("registering listeners callback: %w", err)
	}

	return b, nil
}

// Subscribe registers listener for topic. The returned Subscription removes it.
func (b *Bus) Subscribe(topic Topic, listener Listener) *Subscription {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[topic] = append(b.listeners[topic], entry{id: id, listener: listener})
	b.mu.Unlock()

	b.logger.Debug("listener subscribed", "topic", topic.String(), "id", id)

	return &Subscription{bus: b, topic: topic, id: id}
}

// Publish delivers payload to every listener currently registered for topic.
// A nil payload is delivered as Empty{}.
func (b *Bus) Publish(topic Topic, payload any) {
	if payload == nil {
		payload = Empty{}
	}

	// Snapshot so listeners may subscribe or unsubscribe while being notified.
	b.mu.RLock()
	list := make([]entry, len(b.listeners[topic]))
	copy(list, b.listeners[topic])
	b.mu.RUnlock()

	topicAttr := metric.WithAttributes(attribute.String("topic", topic.String()))
	b.published.Add(context.Background(), 1, topicAttr)

	for _, e := range list {
		e.listener(payload)
	}

	if len(list) > 0 {
		b.delivered.Add(context.Background(), int64(len(list)), topicAttr)
	}
}

// ListenerCount returns the number of listeners registered for topic.
func (b *Bus) ListenerCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[topic])
}

func (b *Bus) remove(topic Topic, id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.listeners[topic]
	for i, e := range list {
		if e.id != id {
			continue
		}
		updated := make([]entry, 0, len(list)-1)
		updated = append(updated, list[:i]...)
		updated = append(updated, list[i+1:]...)
		if len(updated) == 0 {
			delete(b.listeners, topic)
		} else {
			b.listeners[topic] = updated
		}
		return true
	}
	return false
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	bus   *Bus
	topic Topic
	id    uint64
	once  sync.Once
}

// Remove unregisters the listener. Calling it more than once is a no-op.
func (s *Subscription) Remove() {
	s.once.Do(func() {
		if s.bus.remove(s.topic, s.id) {
			s.bus.logger.Debug("listener removed", "topic", s.topic.String(), "id", s.id)
		}
	})
}

// On subscribes a listener that only receives payloads of type T.
// Payloads of any other type are logged and skipped.
func On[T any](b *Bus, topic Topic, fn func(T)) *Subscription {
	return b.Subscribe(topic, func(payload any) {
		v, ok := payload.(T)
		if !ok {
			b.logger.Error("unexpected payload type",
				"topic", topic.String(), "type", fmt.Sprintf("%T", payload))
			return
		}
		fn(v)
	})
}
