package redis

import (
	"context"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// EventPublisher publishes progress event envelopes on the per-type channel
// and the broadcast channel.
type EventPublisher struct {
	cache *Cache
}

// NewEventPublisher creates an EventPublisher.
func NewEventPublisher(cache *Cache) *EventPublisher {
	return &EventPublisher{cache: cache}
}

// PublishEnvelope sends env to subscribers.
func (p *EventPublisher) PublishEnvelope(ctx context.Context, env shared.EventEnvelope) error {
	err := p.cache.Publish(ctx, env, EventChannel(env.Type), EventBroadcastChannel())
	if err != nil {
		return unavailable("PublishEvent", err)
	}
	return nil
}
