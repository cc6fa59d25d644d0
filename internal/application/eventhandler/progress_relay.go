// Package eventhandler reacts to progress events raised by the engine after
// a cascade commits.
package eventhandler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/pkg/logger"
)

// ProgressEvents are the event types the engine publishes.
var ProgressEvents = []shared.EventType{
	shared.EventPointsAwarded,
	shared.EventLevelUp,
	shared.EventStreakUpdated,
	shared.EventStreakMilestone,
	shared.EventBadgeEarned,
	shared.EventPointsReset,
}

// EnvelopePublisher delivers serialized events to other processes.
type EnvelopePublisher interface {
	PublishEnvelope(ctx context.Context, env shared.EventEnvelope) error
}

// ═══════════════════════════════════════════════════════════════════════════
// PROGRESS RELAY
// ═══════════════════════════════════════════════════════════════════════════

// ProgressRelay wraps each progress event in an envelope and hands it to a
// publisher. Delivery is best effort: a failure is logged and counted, and
// the committed progress it describes stands.
type ProgressRelay struct {
	publisher EnvelopePublisher
	logger    *logger.Logger
	config    RelayConfig

	relayed atomic.Int64
	failed  atomic.Int64
}

// RelayConfig configures a ProgressRelay.
type RelayConfig struct {
	// Timeout bounds one publish.
	Timeout time.Duration

	// Types limits relayed events. Empty means every progress event.
	Types []shared.EventType
}

// DefaultRelayConfig returns the default configuration.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{Timeout: 2 * time.Second}
}

// NewProgressRelay creates a relay.
func NewProgressRelay(publisher EnvelopePublisher, log *logger.Logger, config RelayConfig) *ProgressRelay {
	if log == nil {
		log = logger.Nop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRelayConfig().Timeout
	}
	if len(config.Types) == 0 {
		config.Types = ProgressEvents
	}
	return &ProgressRelay{
		publisher: publisher,
		logger:    log.With(logger.Component("progress_relay")),
		config:    config,
	}
}

// Subscribe registers the relay for its event types on bus.
func (r *ProgressRelay) Subscribe(bus shared.EventSubscriber) error {
	for _, t := range r.config.Types {
		if err := bus.Subscribe(t, r.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}

// Handle implements shared.EventHandler.
func (r *ProgressRelay) Handle(event shared.Event) error {
	env, err := shared.NewEnvelope(uuid.NewString(), event)
	if err != nil {
		r.failed.Add(1)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.config.Timeout)
	defer cancel()

	if err := r.publisher.PublishEnvelope(ctx, env); err != nil {
		r.failed.Add(1)
		r.logger.Warn("progress event not relayed",
			logger.Event(string(env.Type)),
			logger.String("aggregate_id", env.AggregateID),
			logger.Err(err),
		)
		return err
	}
	r.relayed.Add(1)
	return nil
}

// Stats returns how many events were relayed and how many failed.
func (r *ProgressRelay) Stats() (relayed, failed int64) {
	return r.relayed.Load(), r.failed.Load()
}
