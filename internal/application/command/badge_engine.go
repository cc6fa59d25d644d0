package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rhythmofsigns/progress-engine/internal/domain/activity"
	"github.com/rhythmofsigns/progress-engine/internal/domain/badge"
	"github.com/rhythmofsigns/progress-engine/internal/domain/notification"
	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// CounterSource supplies learner facts for a full badge rescan when the host
// application, not the engine's fact store, owns them. StreakDays is always
// taken from the streak state.
type CounterSource interface {
	Counters(ctx context.Context, userID shared.UserID) (activity.Counters, error)
}

// BadgeEngine evaluates badge rules and awards each badge at most once per user.
type BadgeEngine struct {
	runner   *Runner
	ledger   *PointLedger
	catalog  *badge.Catalog
	counters CounterSource
	logger   *logger.Logger
}

// NewBadgeEngine creates a BadgeEngine over a loaded catalog.
func NewBadgeEngine(runner *Runner, ledger *PointLedger, catalog *badge.Catalog) *BadgeEngine {
	return &BadgeEngine{
		runner:  runner,
		ledger:  ledger,
		catalog: catalog,
		logger:  runner.logger.With(logger.Component("badge_engine")),
	}
}

// WithCounterSource replaces the fact store as the source for CheckAllBadges.
func (e *BadgeEngine) WithCounterSource(src CounterSource) *BadgeEngine {
	e.counters = src
	return e
}

// Catalog returns the catalog the engine evaluates.
func (e *BadgeEngine) Catalog() *badge.Catalog { return e.catalog }

// Check awards every active, unheld badge for req whose threshold value meets.
func (e *BadgeEngine) Check(c *Cascade, req badge.Requirement, value int) ([]badge.Definition, error) {
	if !req.IsValid() {
		return nil, shared.ErrUnknownRequirement
	}

	held, err := c.store.Badges().HeldBadgeIDs(c.ctx, c.User)
	if err != nil {
		return nil, fmt.Errorf("badge: load held: %w", err)
	}

	var earned []badge.Definition
	for _, def := range e.catalog.Eligible(req, value, held) {
		ok, err := e.award(c, def)
		if err != nil {
			return earned, err
		}
		if ok {
			earned = append(earned, def)
		}
	}
	return earned, nil
}

// award inserts the award and, on first insert only, credits its reward.
func (e *BadgeEngine) award(c *Cascade, def badge.Definition) (bool, error) {
	a := &badge.Award{
		ID:       uuid.NewString(),
		UserID:   c.User,
		BadgeID:  def.ID,
		EarnedAt: c.Now,
		IsNew:    true,
	}
	inserted, err := c.store.Badges().InsertAward(c.ctx, a)
	if err != nil {
		return false, fmt.Errorf("badge: insert award %q: %w", def.Name, err)
	}
	if !inserted {
		return false, nil
	}

	if def.PointsReward > 0 {
		if _, err := e.ledger.Award(c, def.PointsReward, points.SourceBadge); err != nil {
			return false, err
		}
	}

	c.badges = append(c.badges, def)
	c.notify(notification.BadgeEarned(c.User, def.Name, def.Description, def.Icon, def.Color, def.PointsReward, c.Now))
	c.publish(shared.NewBadgeEarnedEvent(c.User, def.ID, def.Name, def.PointsReward))

	e.logger.Info("badge awarded",
		logger.UserID(c.User.Int64()),
		logger.BadgeName(def.Name),
		logger.Points(def.PointsReward),
	)
	return true, nil
}

// counterValues loads the facts behind every counter requirement.
func (e *BadgeEngine) counterValues(c *Cascade) (activity.Counters, error) {
	var (
		counters activity.Counters
		err      error
	)
	if e.counters != nil {
		counters, err = e.counters.Counters(c.ctx, c.User)
	} else {
		counters, err = c.store.Facts().Counters(c.ctx, c.User)
	}
	if err != nil {
		return activity.Counters{}, fmt.Errorf("badge: load counters: %w", err)
	}

	st, err := c.store.Streaks().Get(c.ctx, c.User)
	switch {
	case err == nil:
		counters.StreakDays = st.CurrentStreak
	case shared.IsNotFound(err):
		counters.StreakDays = 0
	default:
		return activity.Counters{}, fmt.Errorf("badge: load streak: %w", err)
	}
	return counters, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Commands
// ─────────────────────────────────────────────────────────────────────────────

// CheckBadgesCommand evaluates one requirement against a known value.
type CheckBadgesCommand struct {
	UserID      shared.UserID
	Requirement badge.Requirement
	Value       int
}

// Validate validates the command.
func (cmd CheckBadgesCommand) Validate() error {
	if !cmd.UserID.IsValid() {
		return shared.NewDomainError("badge", "CheckBadges", shared.ErrInvalidID, "invalid user id")
	}
	if !cmd.Requirement.IsValid() {
		return shared.ErrUnknownRequirement
	}
	return nil
}

// CheckBadges runs Check as its own cascade.
func (e *BadgeEngine) CheckBadges(ctx context.Context, cmd CheckBadgesCommand) (*Outcome, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return e.runner.Run(ctx, cmd.UserID, func(c *Cascade) error {
		_, err := e.Check(c, cmd.Requirement, cmd.Value)
		return err
	})
}

// AwardBadgeCommand grants one badge regardless of its requirement.
type AwardBadgeCommand struct {
	UserID  shared.UserID
	BadgeID shared.BadgeID
}

// Validate validates the command.
func (cmd AwardBadgeCommand) Validate() error {
	if !cmd.UserID.IsValid() {
		return shared.NewDomainError("badge", "AwardBadge", shared.ErrInvalidID, "invalid user id")
	}
	if !cmd.BadgeID.IsValid() {
		return shared.NewDomainError("badge", "AwardBadge", shared.ErrInvalidID, "invalid badge id")
	}
	return nil
}

// AwardBadge grants a badge and reports whether an award actually happened.
// Holding the badge already is not an error.
func (e *BadgeEngine) AwardBadge(ctx context.Context, cmd AwardBadgeCommand) (bool, error) {
	if err := cmd.Validate(); err != nil {
		return false, err
	}
	def, ok := e.catalog.Get(cmd.BadgeID)
	if !ok {
		return false, shared.ErrBadgeNotFound
	}

	var awarded bool
	_, err := e.runner.Run(ctx, cmd.UserID, func(c *Cascade) error {
		var err error
		awarded, err = e.award(c, def)
		return err
	})
	if err != nil {
		return false, err
	}
	return awarded, nil
}

// CheckAll rescans every counter requirement inside an existing cascade.
func (e *BadgeEngine) CheckAll(c *Cascade) ([]badge.Definition, error) {
	counters, err := e.counterValues(c)
	if err != nil {
		return nil, err
	}

	var earned []badge.Definition
	for _, req := range badge.CounterRequirements {
		value, _ := counters.Value(req)
		got, err := e.Check(c, req, value)
		earned = append(earned, got...)
		if err != nil {
			return earned, err
		}
	}
	return earned, nil
}

// CheckAllBadges is the full reconciliation path: it recomputes every
// counter and evaluates each requirement once.
func (e *BadgeEngine) CheckAllBadges(ctx context.Context, userID shared.UserID) (*Outcome, error) {
	return e.runner.Run(ctx, userID, func(c *Cascade) error {
		_, err := e.CheckAll(c)
		return err
	})
}

// MarkBadgesSeen clears the new flag on a user's awards.
func (e *BadgeEngine) MarkBadgesSeen(ctx context.Context, userID shared.UserID) (int64, error) {
	if !userID.IsValid() {
		return 0, shared.NewDomainError("badge", "MarkSeen", shared.ErrInvalidID, "invalid user id")
	}
	var n int64
	err := e.runner.uow.Within(ctx, userID, func(ctx context.Context, store Store) error {
		var err error
		n, err = store.Badges().MarkSeen(ctx, userID)
		return err
	})
	return n, err
}
