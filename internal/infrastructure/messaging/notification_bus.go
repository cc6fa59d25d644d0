package messaging

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rhythmofsigns/progress-engine/internal/domain/notification"
	"github.com/rhythmofsigns/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION BUS
// ══════════════════════════════════════════════════════════════════════════════

// NotificationBus is an asynchronous notification.Sink. Emit enqueues and
// returns; workers deliver each notification to every subscriber. A full
// queue drops the notification.
type NotificationBus struct {
	mu          sync.RWMutex
	subscribers []notification.Sink
	queue       chan notification.Notification
	logger      *logger.Logger
	closed      bool
	wg          sync.WaitGroup
	dropped     atomic.Int64
}

var _ notification.Sink = (*NotificationBus)(nil)

// NotificationBusConfig configures a NotificationBus.
type NotificationBusConfig struct {
	QueueSize int
	Workers   int
	Logger    *logger.Logger
}

// DefaultNotificationBusConfig returns sensible defaults.
func DefaultNotificationBusConfig() NotificationBusConfig {
	return NotificationBusConfig{QueueSize: 256, Workers: 2}
}

// NewNotificationBus starts the bus workers.
func NewNotificationBus(config NotificationBusConfig) *NotificationBus {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}

	b := &NotificationBus{
		queue:  make(chan notification.Notification, config.QueueSize),
		logger: config.Logger.With(logger.Component("notification_bus")),
	}
	b.wg.Add(config.Workers)
	for i := 0; i < config.Workers; i++ {
		go b.worker()
	}
	return b
}

// Subscribe adds a delivery target.
func (b *NotificationBus) Subscribe(sink notification.Sink) error {
	if sink == nil {
		return ErrNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	b.subscribers = append(b.subscribers, sink)
	return nil
}

// Emit implements notification.Sink.
func (b *NotificationBus) Emit(_ context.Context, n notification.Notification) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrEventBusClosed
	}
	select {
	case b.queue <- n:
	default:
		b.dropped.Add(1)
		b.logger.Warn("notification queue full, dropping",
			logger.UserID(n.UserID.Int64()),
			logger.String("type", string(n.Type)),
		)
	}
	return nil
}

func (b *NotificationBus) worker() {
	defer b.wg.Done()
	for n := range b.queue {
		b.mu.RLock()
		subs := b.subscribers
		b.mu.RUnlock()

		for _, s := range subs {
			if err := s.Emit(context.Background(), n); err != nil {
				b.logger.Warn("notification delivery failed",
					logger.UserID(n.UserID.Int64()),
					logger.String("type", string(n.Type)),
					logger.Err(err),
				)
			}
		}
	}
}

// Dropped returns how many notifications a full queue rejected.
func (b *NotificationBus) Dropped() int64 {
	return b.dropped.Load()
}

// Close stops accepting notifications and waits for queued ones to be
// delivered.
func (b *NotificationBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LOG SINK
// ══════════════════════════════════════════════════════════════════════════════

// LogSink writes each notification to the structured log.
type LogSink struct {
	logger *logger.Logger
}

var _ notification.Sink = (*LogSink)(nil)

// NewLogSink creates a LogSink.
func NewLogSink(log *logger.Logger) *LogSink {
	if log == nil {
		log = logger.Nop()
	}
	return &LogSink{logger: log.With(logger.Component("notifications"))}
}

// Emit implements notification.Sink.
func (s *LogSink) Emit(_ context.Context, n notification.Notification) error {
	s.logger.Info("notification",
		logger.UserID(n.UserID.Int64()),
		logger.String("type", string(n.Type)),
		logger.String("title", n.Title),
	)
	return nil
}
