package eventhandler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/internal/infrastructure/messaging"
)

type recordingPublisher struct {
	mu   sync.Mutex
	envs []shared.EventEnvelope
	err  error
}

func (p *recordingPublisher) PublishEnvelope(_ context.Context, env shared.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.envs = append(p.envs, env)
	return nil
}

func TestProgressRelay_ForwardsProgressEvents(t *testing.T) {
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
	defer bus.Close()

	pub := &recordingPublisher{}
	relay := NewProgressRelay(pub, nil, DefaultRelayConfig())
	require.NoError(t, relay.Subscribe(bus))

	require.NoError(t, bus.Publish(shared.NewBadgeEarnedEvent(7, 3, "Social Butterfly", 20)))
	require.NoError(t, bus.Publish(shared.NewLessonViewedEvent(7, 1)))

	require.Len(t, pub.envs, 1, "learning events are not relayed")
	env := pub.envs[0]
	assert.Equal(t, shared.EventBadgeEarned, env.Type)
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, 1, env.Version)
	assert.True(t, json.Valid(env.Payload))

	relayed, failed := relay.Stats()
	assert.Equal(t, int64(1), relayed)
	assert.Zero(t, failed)
}

func TestProgressRelay_TypeFilter(t *testing.T) {
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
	defer bus.Close()

	pub := &recordingPublisher{}
	relay := NewProgressRelay(pub, nil, RelayConfig{Types: []shared.EventType{shared.EventLevelUp}})
	require.NoError(t, relay.Subscribe(bus))

	require.NoError(t, bus.Publish(shared.NewPointsAwardedEvent(1, 5, "lesson", 5)))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent(1, 1, 2, "Beginner")))

	require.Len(t, pub.envs, 1)
	assert.Equal(t, shared.EventLevelUp, pub.envs[0].Type)
}

func TestProgressRelay_CountsFailures(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	relay := NewProgressRelay(pub, nil, DefaultRelayConfig())

	err := relay.Handle(shared.NewPointsResetEvent("weekly", 3))
	require.Error(t, err)

	relayed, failed := relay.Stats()
	assert.Zero(t, relayed)
	assert.Equal(t, int64(1), failed)
}
