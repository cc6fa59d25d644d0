// Package command contains write operations (CQRS - Commands): the point
// ledger, streak tracker, badge engine, flashcard scheduler and the event
// dispatcher that sequences them.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rhythmofsigns/progress-engine/internal/domain/activity"
	"github.com/rhythmofsigns/progress-engine/internal/domain/badge"
	"github.com/rhythmofsigns/progress-engine/internal/domain/notification"
	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/review"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/internal/domain/streak"
	"github.com/rhythmofsigns/progress-engine/pkg/logger"
	"github.com/rhythmofsigns/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

// Store exposes the repositories bound to one transaction.
type Store interface {
	Points() points.Repository
	Streaks() streak.Repository
	Reviews() review.Repository
	Badges() badge.Repository
	Activity() activity.Repository
	Facts() activity.FactRepository
}

// UnitOfWork runs fn atomically. Calls for the same user are serialized;
// calls for different users may run concurrently. If fn returns an error
// nothing it wrote is kept.
type UnitOfWork interface {
	Within(ctx context.Context, userID shared.UserID, fn func(ctx context.Context, store Store) error) error
}

// ScoreUpdater mirrors committed point totals into a leaderboard cache. It is
// called with the user's lock held and a freshly read account.
type ScoreUpdater interface {
	UpdateScores(ctx context.Context, account *points.Account) error
}

// ══════════════════════════════════════════════════════════════════════════════
// CASCADE
// ══════════════════════════════════════════════════════════════════════════════

// Cascade carries the state of one per-user unit of work. Notifications and
// events raised inside it are released only after commit.
type Cascade struct {
	ctx   context.Context
	store Store

	User  shared.UserID
	Now   time.Time
	Today time.Time

	notifications []notification.Notification
	events        []shared.Event
	account       *points.Account
	awarded       int
	badges        []badge.Definition
	streak        *streak.State
}

// Context returns the transaction-scoped context.
func (c *Cascade) Context() context.Context { return c.ctx }

// Store returns the transaction-bound repositories.
func (c *Cascade) Store() Store { return c.store }

func (c *Cascade) notify(n notification.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	c.notifications = append(c.notifications, n)
}

func (c *Cascade) publish(e shared.Event) {
	c.events = append(c.events, e)
}

// Outcome summarizes a committed cascade.
type Outcome struct {
	UserID        shared.UserID
	PointsAwarded int
	Account       *points.Account
	Streak        *streak.State
	BadgesEarned  []badge.Definition
	Notifications []notification.Notification
	Events        []shared.Event
}

// LeveledUp reports whether any level-up happened in the cascade.
func (o *Outcome) LeveledUp() bool {
	for _, e := range o.Events {
		if e.EventType() == shared.EventLevelUp {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// RUNNER
// ══════════════════════════════════════════════════════════════════════════════

// Runner executes cascades and releases their side effects after commit.
type Runner struct {
	uow       UnitOfWork
	clock     timeutil.Clock
	sink      notification.Sink
	publisher shared.EventPublisher
	scores    ScoreUpdater
	logger    *logger.Logger
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithSink sets where notifications go after commit.
func WithSink(s notification.Sink) RunnerOption {
	return func(r *Runner) { r.sink = s }
}

// WithPublisher sets where progress events go after commit.
func WithPublisher(p shared.EventPublisher) RunnerOption {
	return func(r *Runner) { r.publisher = p }
}

// WithScoreUpdater sets the leaderboard cache refreshed after commit.
func WithScoreUpdater(u ScoreUpdater) RunnerOption {
	return func(r *Runner) { r.scores = u }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner.
func NewRunner(uow UnitOfWork, clock timeutil.Clock, opts ...RunnerOption) *Runner {
	r := &Runner{
		uow:    uow,
		clock:  clock,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Clock returns the runner's clock.
func (r *Runner) Clock() timeutil.Clock { return r.clock }

// Run executes fn as one cascade for userID.
func (r *Runner) Run(ctx context.Context, userID shared.UserID, fn func(c *Cascade) error) (*Outcome, error) {
	if !userID.IsValid() {
		return nil, shared.NewDomainError("command", "Run", shared.ErrInvalidID, "invalid user id")
	}

	now := r.clock.Now()
	var committed *Cascade

	err := r.uow.Within(ctx, userID, func(txCtx context.Context, store Store) error {
		c := &Cascade{
			ctx:   txCtx,
			store: store,
			User:  userID,
			Now:   now,
			Today: timeutil.DateOf(now),
		}
		if err := fn(c); err != nil {
			return err
		}
		committed = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		UserID:        userID,
		PointsAwarded: committed.awarded,
		Account:       committed.account,
		Streak:        committed.streak,
		BadgesEarned:  committed.badges,
		Notifications: committed.notifications,
		Events:        committed.events,
	}
	r.release(ctx, out)
	return out, nil
}

// release hands committed effects to the outside world. Failures are logged,
// never returned: the cascade is already durable.
func (r *Runner) release(ctx context.Context, out *Outcome) {
	log := r.logger.With(logger.UserID(out.UserID.Int64()))

	if r.sink != nil {
		for _, n := range out.Notifications {
			if err := r.sink.Emit(ctx, n); err != nil {
				log.Warn("notification emit failed", logger.String("type", string(n.Type)), logger.Err(err))
			}
		}
	}
	if r.publisher != nil {
		for _, e := range out.Events {
			if err := r.publisher.Publish(e); err != nil {
				log.Warn("event publish failed", logger.Event(string(e.EventType())), logger.Err(err))
			}
		}
	}
	if r.scores != nil && out.Account != nil {
		if err := r.syncScores(ctx, out.UserID); err != nil {
			log.Warn("leaderboard cache update failed", logger.Err(err))
		}
	}
}

// syncScores mirrors the stored account into the leaderboard cache. Reading
// and writing under the user's lock orders cache writes the same way as
// commits, so the last write always carries the newest totals.
func (r *Runner) syncScores(ctx context.Context, userID shared.UserID) error {
	return r.uow.Within(ctx, userID, func(txCtx context.Context, store Store) error {
		acc, err := store.Points().Get(txCtx, userID)
		if err != nil {
			return err
		}
		return r.scores.UpdateScores(txCtx, acc)
	})
}

// ensureAccounts creates the point account and streak state if absent.
func ensureAccounts(c *Cascade) (*points.Account, *streak.State, error) {
	acc, err := c.store.Points().Ensure(c.ctx, c.User, c.Now)
	if err != nil {
		return nil, nil, fmt.Errorf("ensure point account: %w", err)
	}
	st, err := c.store.Streaks().Ensure(c.ctx, c.User)
	if err != nil {
		return nil, nil, fmt.Errorf("ensure streak state: %w", err)
	}
	return acc, st, nil
}

// incrementDaily bumps one daily counter for today.
func incrementDaily(c *Cascade, kind activity.Kind, n int) error {
	if err := c.store.Activity().Increment(c.ctx, c.User, c.Today, kind, n); err != nil {
		return fmt.Errorf("increment daily %s: %w", kind, err)
	}
	return nil
}
