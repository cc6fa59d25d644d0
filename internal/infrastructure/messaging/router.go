package messaging

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/pkg/logger"
	"github.com/rhythmofsigns/progress-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// ══════════════════════════════════════════════════════════════════════════════

// Router runs named handlers for the events on a bus. A handler failing
// with a retryable error (storage unavailable, timeout) is retried with
// backoff; once it gives up, or on any other error, the event is parked in
// the dead letter queue.
type Router struct {
	bus     shared.EventSubscriber
	retry   RetryConfig
	backoff retry.Backoff
	dlq     *DeadLetterQueue
	logger  *logger.Logger

	mu     sync.RWMutex
	routes map[shared.EventType][]Route
	chain  []Middleware

	slots  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// Route is one handler registration. Zero MaxRetries and Timeout take the
// router defaults.
type Route struct {
	Name       string
	Handler    shared.EventHandler
	MaxRetries int
	Timeout    time.Duration
}

// RetryConfig shapes the per-route retry loop. MaxRetries counts retries,
// so a handler runs at most MaxRetries+1 times.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2,
	}
}

type RouterConfig struct {
	Bus shared.EventSubscriber
	// WorkerPoolSize bounds handlers running at once across all routes.
	WorkerPoolSize      int
	Retry               RetryConfig
	DeadLetterQueueSize int
	Logger              *logger.Logger
}

func DefaultRouterConfig(bus shared.EventSubscriber) RouterConfig {
	return RouterConfig{
		Bus:                 bus,
		WorkerPoolSize:      10,
		Retry:               DefaultRetryConfig(),
		DeadLetterQueueSize: 1000,
	}
}

const defaultRouteTimeout = 30 * time.Second

func NewRouter(config RouterConfig) *Router {
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}
	workers := config.WorkerPoolSize
	if workers <= 0 {
		workers = 10
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		bus:   config.Bus,
		retry: config.Retry,
		backoff: retry.Backoff{
			Initial: config.Retry.InitialBackoff,
			Max:     config.Retry.MaxBackoff,
			Factor:  config.Retry.BackoffMultiplier,
		},
		dlq:    NewDeadLetterQueue(config.DeadLetterQueueSize),
		logger: log.With(logger.Component("router")),
		routes: make(map[shared.EventType][]Route),
		slots:  make(chan struct{}, workers),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (r *Router) Register(eventType shared.EventType, route Route) error {
	if route.Handler == nil {
		return ErrNilHandler
	}
	if route.Name == "" {
		route.Name = string(eventType)
	}
	if route.MaxRetries <= 0 {
		route.MaxRetries = r.retry.MaxRetries
	}
	if route.Timeout <= 0 {
		route.Timeout = defaultRouteTimeout
	}

	r.mu.Lock()
	r.routes[eventType] = append(r.routes[eventType], route)
	r.mu.Unlock()
	return nil
}

// RegisterAll registers route once per type.
func (r *Router) RegisterAll(eventTypes []shared.EventType, route Route) error {
	var errs []error
	for _, t := range eventTypes {
		if err := r.Register(t, route); err != nil {
			errs = append(errs, fmt.Errorf("register %s: %w", t, err))
		}
	}
	return errors.Join(errs...)
}

// Start subscribes Dispatch to every event on the bus.
func (r *Router) Start() error {
	return r.bus.SubscribeAll(r.Dispatch)
}

// Stop abandons pending retries and handler waits.
func (r *Router) Stop() {
	r.cancel()
	r.logger.Info("router stopped")
}

func (r *Router) DeadLetters() *DeadLetterQueue {
	return r.dlq
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCH
// ══════════════════════════════════════════════════════════════════════════════

// Dispatch runs every route registered for the event's type in order and
// joins their failures.
func (r *Router) Dispatch(event shared.Event) error {
	r.mu.RLock()
	routes := r.routes[event.EventType()]
	chain := r.chain
	r.mu.RUnlock()

	var errs []error
	for _, route := range routes {
		if err := r.deliver(event, route, wrap(route.Handler, chain)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("dispatch %s: %w", event.EventType(), errors.Join(errs...))
}

func (r *Router) deliver(event shared.Event, route Route, handler shared.EventHandler) error {
	select {
	case r.slots <- struct{}{}:
		defer func() { <-r.slots }()
	case <-r.ctx.Done():
		return r.ctx.Err()
	}

	attempts := 0
	var err error
	for {
		attempts++
		if err = r.call(handler, event, route.Timeout); err == nil {
			return nil
		}
		r.logger.Warn("handler attempt failed",
			logger.String("handler", route.Name),
			logger.Int("attempt", attempts),
			logger.Err(err),
		)
		if !retryable(err) || attempts > route.MaxRetries {
			break
		}
		if !r.sleep(r.backoff.Delay(attempts)) {
			return r.ctx.Err()
		}
	}

	r.dlq.Add(DeadLetterEntry{
		Event:       event,
		HandlerName: route.Name,
		Error:       err,
		Attempts:    attempts,
		FailedAt:    time.Now(),
	})
	return fmt.Errorf("handler %s failed after %d attempt(s): %w", route.Name, attempts, err)
}

// retryable reports whether a failed attempt may be repeated. A handler can
// force either answer with retry.Retryable or retry.Permanent; unmarked
// errors follow the domain classification.
func retryable(err error) bool {
	switch {
	case retry.IsPermanent(err):
		return false
	case retry.IsRetryable(err):
		return true
	}
	return shared.IsRetryable(err)
}

// sleep waits d unless the router stops first.
func (r *Router) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// call bounds one handler invocation. A timed-out call is not retried: it
// keeps running and may still commit.
func (r *Router) call(handler shared.EventHandler, event shared.Event, timeout time.Duration) error {
	result := make(chan error, 1)
	go func() { result <- handler(event) }()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case err := <-result:
		return err
	case <-t.C:
		return fmt.Errorf("handler timeout after %v", timeout)
	case <-r.ctx.Done():
		return r.ctx.Err()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

type Middleware func(shared.EventHandler) shared.EventHandler

// Use appends m. Middleware added first runs outermost.
func (r *Router) Use(m Middleware) {
	r.mu.Lock()
	r.chain = append(r.chain, m)
	r.mu.Unlock()
}

func wrap(h shared.EventHandler, chain []Middleware) shared.EventHandler {
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

// RecoveryMiddleware converts a handler panic into an error carrying the
// panic value, and logs the stack.
func RecoveryMiddleware(log *logger.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) (err error) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				log.Error("handler panic recovered",
					logger.Event(string(event.EventType())),
					logger.Any("panic", rec),
					logger.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("handler panic: %v", rec)
			}()
			return next(event)
		}
	}
}

// LoggingMiddleware logs every handler run: failures at WARN, successes at
// DEBUG.
func LoggingMiddleware(log *logger.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			began := time.Now()
			err := next(event)

			fields := []logger.Field{
				logger.Event(string(event.EventType())),
				logger.String("aggregate_id", event.AggregateID()),
				logger.Latency(time.Since(began)),
			}
			if err == nil {
				log.Debug("handler completed", fields...)
				return nil
			}
			log.Warn("handler failed", append(fields, logger.Err(err))...)
			return err
		}
	}
}
