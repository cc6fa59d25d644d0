package command

import (
	"context"
	"fmt"

	"github.com/rhythmofsigns/progress-engine/internal/domain/activity"
	"github.com/rhythmofsigns/progress-engine/internal/domain/notification"
	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// POINT LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// Point amounts per activity.
const (
	PointsLessonView       = 5
	PointsLessonComplete   = 20
	PointsQuizPass         = 30
	PointsQuizPerfect      = 50
	PointsQuizFail         = 5
	PointsFlashcardSession = 10
	PointsFlashcardCorrect = 2
	PointsForumPost        = 15
	PointsForumComment     = 5
)

// PointLedger credits points inside a cascade and detects level-ups.
type PointLedger struct {
	runner *Runner
}

// NewPointLedger creates a PointLedger.
func NewPointLedger(runner *Runner) *PointLedger {
	return &PointLedger{runner: runner}
}

// Award credits amount to the cascade's user, records it in today's
// activity and raises a level-up notice when the level rises.
func (l *PointLedger) Award(c *Cascade, amount int, src points.Source) (int, error) {
	acc, err := c.store.Points().Ensure(c.ctx, c.User, c.Now)
	if err != nil {
		return 0, fmt.Errorf("ledger: load account: %w", err)
	}

	before := acc.Level()
	applied, err := acc.Add(amount, src, c.Now)
	if err != nil {
		return 0, err
	}
	if err := c.store.Points().Save(c.ctx, acc); err != nil {
		return 0, fmt.Errorf("ledger: save account: %w", err)
	}
	if err := incrementDaily(c, activity.KindPoints, applied); err != nil {
		return 0, err
	}

	c.account = acc.Clone()
	c.awarded += applied
	c.publish(shared.NewPointsAwardedEvent(c.User, applied, src.String(), acc.Total))

	if after := acc.Level(); after > before {
		title := points.TitleFor(after)
		c.notify(notification.LevelUp(c.User, after, title, c.Now))
		c.publish(shared.NewLevelUpEvent(c.User, before, after, title))
	}
	return applied, nil
}

// AddPointsCommand credits points outside of a domain event, e.g. an admin grant.
type AddPointsCommand struct {
	UserID shared.UserID
	Amount int
	Source points.Source
}

// Validate validates the command.
func (cmd AddPointsCommand) Validate() error {
	if !cmd.UserID.IsValid() {
		return shared.NewDomainError("points", "AddPoints", shared.ErrInvalidID, "invalid user id")
	}
	if cmd.Amount < 0 {
		return shared.ErrNegativeAmount
	}
	if !cmd.Source.IsValid() {
		return shared.ErrUnknownSource
	}
	return nil
}

// AddPoints runs a standalone credit as its own cascade.
func (l *PointLedger) AddPoints(ctx context.Context, cmd AddPointsCommand) (*Outcome, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return l.runner.Run(ctx, cmd.UserID, func(c *Cascade) error {
		_, err := l.Award(c, cmd.Amount, cmd.Source)
		return err
	})
}
