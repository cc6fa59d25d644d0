// Package messaging carries events and notifications inside one process: an
// in-memory event bus for learning and progress events, a router that runs
// handlers with retries and a dead letter queue, and an asynchronous
// notification bus.
package messaging

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/pkg/logger"
)

var (
	ErrEventBusClosed = errors.New("event bus is closed")
	ErrNilHandler     = errors.New("handler cannot be nil")
	ErrNilEvent       = errors.New("event cannot be nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// anyEvent keys handlers registered with SubscribeAll.
const anyEvent shared.EventType = ""

// InMemoryEventBus fans events out to subscribers in the same process.
//
// In sync mode a handler runs on the publisher's goroutine and its error is
// logged; the learning bus relies on that so a cascade finishes before
// Publish returns. In async mode each handler call takes a slot from a
// bounded pool.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	handlers map[shared.EventType][]shared.EventHandler
	closed   bool

	async   bool
	slots   chan struct{}
	done    chan struct{}
	running sync.WaitGroup

	logger  *logger.Logger
	metrics *EventBusMetrics
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)

type InMemoryEventBusConfig struct {
	AsyncMode      bool
	WorkerPoolSize int
	Logger         *logger.Logger
}

// DefaultInMemoryEventBusConfig is async with ten workers.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 10}
}

func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}
	workers := config.WorkerPoolSize
	if workers <= 0 {
		workers = 10
	}
	return &InMemoryEventBus{
		handlers: make(map[shared.EventType][]shared.EventHandler),
		async:    config.AsyncMode,
		slots:    make(chan struct{}, workers),
		done:     make(chan struct{}),
		logger:   log.With(logger.Component("eventbus")),
		metrics:  NewEventBusMetrics(),
	}
}

// Subscribe adds handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if err := b.add(eventType, handler); err != nil {
		return err
	}
	b.logger.Debug("subscribed handler", logger.Event(string(eventType)))
	return nil
}

// SubscribeAll adds handler for every event type.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.add(anyEvent, handler)
}

func (b *InMemoryEventBus) add(key shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	b.handlers[key] = append(b.handlers[key], handler)
	return nil
}

// targets snapshots the handlers for t and, in async mode, reserves them on
// the wait group before the lock is released so Close cannot miss them.
func (b *InMemoryEventBus) targets(t shared.EventType) ([]shared.EventHandler, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrEventBusClosed
	}
	typed, wildcard := b.handlers[t], b.handlers[anyEvent]
	out := make([]shared.EventHandler, 0, len(typed)+len(wildcard))
	out = append(append(out, typed...), wildcard...)
	if b.async {
		b.running.Add(len(out))
	}
	return out, nil
}

// Publish delivers event to its type's handlers, then to the wildcard ones.
// Handler failures never reach the publisher.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}
	eventType := event.EventType()
	handlers, err := b.targets(eventType)
	if err != nil {
		return err
	}
	b.metrics.RecordPublish(eventType)

	if len(handlers) == 0 {
		b.logger.Debug("no handlers for event", logger.Event(string(eventType)))
	}
	for _, h := range handlers {
		if b.async {
			go b.runPooled(event, h)
		} else {
			b.run(event, h)
		}
	}
	return nil
}

func (b *InMemoryEventBus) runPooled(event shared.Event, h shared.EventHandler) {
	defer b.running.Done()
	select {
	case b.slots <- struct{}{}:
	case <-b.done:
		return
	}
	defer func() { <-b.slots }()
	b.run(event, h)
}

func (b *InMemoryEventBus) run(event shared.Event, h shared.EventHandler) {
	start := time.Now()
	err := h(event)
	b.metrics.RecordHandlerExecution(event.EventType(), time.Since(start), err == nil)
	if err != nil {
		b.logger.Error("handler error",
			logger.Event(string(event.EventType())),
			logger.Bool("async", b.async),
			logger.Err(err),
		)
	}
}

// Drain blocks until every handler call started so far has returned.
func (b *InMemoryEventBus) Drain() {
	b.running.Wait()
}

// Close rejects further publishes and waits for running handlers. Calls
// still queued for a worker slot are dropped.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.running.Wait()
	b.logger.Info("event bus closed")
	return nil
}

func (b *InMemoryEventBus) Metrics() *EventBusMetrics {
	return b.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics counts publishes per type and handler outcomes.
type EventBusMetrics struct {
	mu        sync.Mutex
	published map[shared.EventType]int64

	execs     atomic.Int64
	successes atomic.Int64
	busyNanos atomic.Int64
}

func NewEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{published: make(map[shared.EventType]int64)}
}

func (m *EventBusMetrics) RecordPublish(eventType shared.EventType) {
	m.mu.Lock()
	m.published[eventType]++
	m.mu.Unlock()
}

func (m *EventBusMetrics) RecordHandlerExecution(_ shared.EventType, d time.Duration, ok bool) {
	m.execs.Add(1)
	m.busyNanos.Add(int64(d))
	if ok {
		m.successes.Add(1)
	}
}

// EventBusMetricsSnapshot is a copy safe to read without locks.
type EventBusMetricsSnapshot struct {
	TotalPublished         int64
	PublishedByType        map[shared.EventType]int64
	TotalHandlerExecs      int64
	HandlerSuccessRate     float64 // 1 when nothing has run yet
	AverageHandlerDuration time.Duration
}

func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	snap := EventBusMetricsSnapshot{HandlerSuccessRate: 1}

	m.mu.Lock()
	snap.PublishedByType = make(map[shared.EventType]int64, len(m.published))
	for t, n := range m.published {
		snap.PublishedByType[t] = n
		snap.TotalPublished += n
	}
	m.mu.Unlock()

	if execs := m.execs.Load(); execs > 0 {
		snap.TotalHandlerExecs = execs
		snap.HandlerSuccessRate = float64(m.successes.Load()) / float64(execs)
		snap.AverageHandlerDuration = time.Duration(m.busyNanos.Load() / execs)
	}
	return snap
}
