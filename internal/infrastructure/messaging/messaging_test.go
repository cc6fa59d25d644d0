package messaging_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmofsigns/progress-engine/internal/application/command"
	"github.com/rhythmofsigns/progress-engine/internal/domain/notification"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/internal/infrastructure/messaging"
	"github.com/rhythmofsigns/progress-engine/internal/infrastructure/persistence/memory"
	"github.com/rhythmofsigns/progress-engine/pkg/logger"
	"github.com/rhythmofsigns/progress-engine/pkg/retry"
	"github.com/rhythmofsigns/progress-engine/pkg/timeutil"
)

func nopLogger() *logger.Logger { return logger.Nop() }

func syncBus() *messaging.InMemoryEventBus {
	return messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{AsyncMode: false})
}

func fastRouter(bus shared.EventSubscriber) *messaging.Router {
	cfg := messaging.DefaultRouterConfig(bus)
	cfg.Retry = messaging.RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
	}
	return messaging.NewRouter(cfg)
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var typed, all int
	require.NoError(t, bus.Subscribe(shared.EventLessonViewed, func(shared.Event) error {
		typed++
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		all++
		return errors.New("logged, not returned")
	}))

	require.NoError(t, bus.Publish(shared.NewLessonViewedEvent(1, 1)))
	require.NoError(t, bus.Publish(shared.NewForumPostCreatedEvent(1, 9)))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, all)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(3), snap.TotalHandlerExecs)
	assert.InDelta(t, 1.0/3.0, snap.HandlerSuccessRate, 1e-9)
}

func TestInMemoryEventBus_AsyncDrain(t *testing.T) {
	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	defer bus.Close()

	var n atomic.Int64
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		n.Add(1)
		return nil
	}))
	for i := 0; i < 50; i++ {
		require.NoError(t, bus.Publish(shared.NewLessonViewedEvent(shared.UserID(i+1), 1)))
	}
	bus.Drain()
	assert.Equal(t, int64(50), n.Load())
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewLessonViewedEvent(1, 1)), messaging.ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), messaging.ErrEventBusClosed)
	assert.ErrorIs(t, bus.Publish(nil), messaging.ErrNilEvent)
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// ══════════════════════════════════════════════════════════════════════════════

func TestRouter_RetriesRetryableErrors(t *testing.T) {
	r := fastRouter(syncBus())
	defer r.Stop()

	calls := 0
	require.NoError(t, r.Register(shared.EventQuizCompleted, messaging.Route{
		Name: "flaky",
		Handler: func(shared.Event) error {
			calls++
			if calls < 3 {
				return shared.ErrStorageUnavailable
			}
			return nil
		},
	}))

	require.NoError(t, r.Dispatch(shared.NewQuizCompletedEvent(1, 1, true, 8, 10)))
	assert.Equal(t, 3, calls)
	assert.Zero(t, r.DeadLetters().Size())
}

func TestRouter_NonRetryableGoesToDeadLetters(t *testing.T) {
	r := fastRouter(syncBus())
	defer r.Stop()

	calls := 0
	require.NoError(t, r.Register(shared.EventQuizCompleted, messaging.Route{
		Name: "invalid",
		Handler: func(shared.Event) error {
			calls++
			return shared.NewDomainError("test", "Handle", shared.ErrInvalidInput, "bad event")
		},
	}))

	err := r.Dispatch(shared.NewQuizCompletedEvent(1, 1, true, 8, 10))
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	assert.Equal(t, 1, calls)

	entry, ok := r.DeadLetters().Pop()
	require.True(t, ok)
	assert.Equal(t, "invalid", entry.HandlerName)
	assert.Equal(t, 1, entry.Attempts)
	assert.Equal(t, shared.EventQuizCompleted, entry.Event.EventType())
}

func TestRouter_ExhaustedRetries(t *testing.T) {
	r := fastRouter(syncBus())
	defer r.Stop()

	calls := 0
	require.NoError(t, r.Register(shared.EventLessonViewed, messaging.Route{
		Handler: func(shared.Event) error {
			calls++
			return shared.ErrStorageUnavailable
		},
	}))

	require.Error(t, r.Dispatch(shared.NewLessonViewedEvent(1, 1)))
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, r.DeadLetters().Entries()[0].Attempts)
}

func TestRouter_RetryMarksOverrideClassification(t *testing.T) {
	r := fastRouter(syncBus())
	defer r.Stop()

	var forced, stopped int
	require.NoError(t, r.Register(shared.EventLessonViewed, messaging.Route{
		Name: "forced",
		Handler: func(shared.Event) error {
			forced++
			if forced < 2 {
				return retry.Retryable(errors.New("upstream hiccup"))
			}
			return nil
		},
	}))
	require.NoError(t, r.Register(shared.EventLessonViewed, messaging.Route{
		Name: "stopped",
		Handler: func(shared.Event) error {
			stopped++
			return retry.Permanent(shared.ErrStorageUnavailable)
		},
	}))

	err := r.Dispatch(shared.NewLessonViewedEvent(1, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrStorageUnavailable)
	assert.Equal(t, 2, forced, "a Retryable mark is retried")
	assert.Equal(t, 1, stopped, "a Permanent mark is not retried")

	entry, ok := r.DeadLetters().Pop()
	require.True(t, ok)
	assert.Equal(t, "stopped", entry.HandlerName)
	assert.Zero(t, r.DeadLetters().Size())
}

func TestRouter_RecoveryMiddleware(t *testing.T) {
	r := fastRouter(syncBus())
	defer r.Stop()
	r.Use(messaging.RecoveryMiddleware(nopLogger()))
	r.Use(messaging.LoggingMiddleware(nopLogger()))

	require.NoError(t, r.Register(shared.EventLessonViewed, messaging.Route{
		Name:    "panics",
		Handler: func(shared.Event) error { panic("boom") },
	}))

	err := r.Dispatch(shared.NewLessonViewedEvent(1, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic: boom")
	assert.Equal(t, 1, r.DeadLetters().Size())
}

func TestRouter_RejectsNilHandler(t *testing.T) {
	r := fastRouter(syncBus())
	defer r.Stop()
	assert.ErrorIs(t, r.Register(shared.EventLessonViewed, messaging.Route{}), messaging.ErrNilHandler)
}

func TestDeadLetterQueue_DropsOldest(t *testing.T) {
	q := messaging.NewDeadLetterQueue(2)
	q.Add(messaging.DeadLetterEntry{HandlerName: "a"})
	q.Add(messaging.DeadLetterEntry{HandlerName: "b"})
	q.Add(messaging.DeadLetterEntry{HandlerName: "c"})

	entries := q.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].HandlerName)
	assert.Equal(t, "c", entries[1].HandlerName)
}

// ══════════════════════════════════════════════════════════════════════════════
// BUS TO ENGINE
// ══════════════════════════════════════════════════════════════════════════════

func newEngine(t *testing.T, opts ...command.RunnerOption) (*command.Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	seeded, err := command.NewSeedBadgesHandler(store.Badges()).Handle(context.Background(), nil)
	require.NoError(t, err)
	clock := timeutil.NewManualClock(time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC))
	return command.NewEngine(store, clock, seeded.Catalog, opts...), store
}

func TestDispatcherSubscribedToBus(t *testing.T) {
	engine, store := newEngine(t)
	bus := syncBus()
	defer bus.Close()
	require.NoError(t, engine.Dispatcher.Subscribe(bus))

	require.NoError(t, bus.Publish(shared.NewLessonViewedEvent(10, 1)))
	require.NoError(t, bus.Publish(shared.NewLessonViewedEvent(10, 2)))

	acc, err := store.Points().Get(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 10, acc.Total)
}

func TestRouterDrivesCascades(t *testing.T) {
	progress := syncBus()
	defer progress.Close()

	var mu sync.Mutex
	var seen []shared.EventType
	require.NoError(t, progress.SubscribeAll(func(e shared.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.EventType())
		return nil
	}))

	engine, store := newEngine(t, command.WithPublisher(progress))
	learning := syncBus()
	defer learning.Close()

	r := fastRouter(learning)
	defer r.Stop()
	require.NoError(t, r.RegisterAll(command.LearningEvents, messaging.Route{
		Name: "progress-cascade",
		Handler: func(e shared.Event) error {
			_, err := engine.Dispatcher.Handle(context.Background(), e)
			return err
		},
	}))
	require.NoError(t, r.Start())

	require.NoError(t, learning.Publish(shared.NewForumPostCreatedEvent(20, 1)))

	acc, err := store.Points().Get(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, 15+20, acc.Total, "forum post plus Social Butterfly")

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, shared.EventBadgeEarned)
	assert.Contains(t, seen, shared.EventPointsAwarded)
	assert.Zero(t, r.DeadLetters().Size())
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION BUS
// ══════════════════════════════════════════════════════════════════════════════

func TestNotificationBus_DeliversToEverySubscriber(t *testing.T) {
	bus := messaging.NewNotificationBus(messaging.DefaultNotificationBusConfig())

	var mu sync.Mutex
	got := map[string]int{}
	record := func(name string) notification.Sink {
		return notification.SinkFunc(func(_ context.Context, n notification.Notification) error {
			mu.Lock()
			defer mu.Unlock()
			got[name]++
			return nil
		})
	}
	require.NoError(t, bus.Subscribe(record("a")))
	require.NoError(t, bus.Subscribe(record("b")))
	require.NoError(t, bus.Subscribe(messaging.NewLogSink(nil)))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Emit(context.Background(), notification.Notification{UserID: 1, Type: notification.TypeBadge}))
	}
	require.NoError(t, bus.Close())

	assert.Equal(t, map[string]int{"a": 5, "b": 5}, got)
	assert.Zero(t, bus.Dropped())
	assert.ErrorIs(t, bus.Emit(context.Background(), notification.Notification{}), messaging.ErrEventBusClosed)
}

func TestNotificationBus_AsEngineSink(t *testing.T) {
	bus := messaging.NewNotificationBus(messaging.DefaultNotificationBusConfig())

	var mu sync.Mutex
	var titles []string
	require.NoError(t, bus.Subscribe(notification.SinkFunc(func(_ context.Context, n notification.Notification) error {
		mu.Lock()
		defer mu.Unlock()
		titles = append(titles, n.Title)
		return nil
	})))

	engine, _ := newEngine(t, command.WithSink(bus))
	_, err := engine.Dispatcher.Handle(context.Background(), shared.NewForumPostCreatedEvent(30, 1))
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	assert.Equal(t, []string{"Badge Earned: Social Butterfly"}, titles)
}
