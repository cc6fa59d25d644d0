package command

import (
	"context"
	"fmt"
	"sort"

	"github.com/rhythmofsigns/progress-engine/internal/domain/badge"
	"github.com/rhythmofsigns/progress-engine/internal/domain/notification"
	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// StreakMilestones maps a streak length to its one-time bonus.
var StreakMilestones = map[int]int{
	7:   50,
	30:  200,
	100: 500,
}

// CrossedMilestones returns, ascending, the milestones m with old < m <= new.
func CrossedMilestones(old, new int) []int {
	var out []int
	for m := range StreakMilestones {
		if old < m && m <= new {
			out = append(out, m)
		}
	}
	sort.Ints(out)
	return out
}

// StreakTracker updates streaks and applies the milestone bonus policy.
type StreakTracker struct {
	runner *Runner
	ledger *PointLedger
	badges *BadgeEngine
}

// NewStreakTracker creates a StreakTracker.
func NewStreakTracker(runner *Runner, ledger *PointLedger, badges *BadgeEngine) *StreakTracker {
	return &StreakTracker{runner: runner, ledger: ledger, badges: badges}
}

// RecordActivity advances the streak for today, credits milestone bonuses
// and forwards the new length to the streak badges.
func (t *StreakTracker) RecordActivity(c *Cascade) (streak.Transition, error) {
	st, err := c.store.Streaks().Ensure(c.ctx, c.User)
	if err != nil {
		return streak.Transition{}, fmt.Errorf("streak: load state: %w", err)
	}

	tr := st.RecordActivity(c.Today)
	st.UpdatedAt = c.Now
	if err := c.store.Streaks().Save(c.ctx, st); err != nil {
		return streak.Transition{}, fmt.Errorf("streak: save state: %w", err)
	}
	c.streak = st.Clone()

	if tr.Changed {
		c.publish(shared.NewStreakUpdatedEvent(c.User, tr.Old, tr.New))
	}

	for _, m := range CrossedMilestones(tr.Old, tr.New) {
		bonus := StreakMilestones[m]
		if _, err := t.ledger.Award(c, bonus, points.SourceStreak); err != nil {
			return tr, err
		}
		c.notify(notification.StreakMilestone(c.User, m, bonus, c.Now))
		c.publish(shared.NewStreakMilestoneEvent(c.User, m, bonus))
	}

	if _, err := t.badges.Check(c, badge.RequirementStreakDays, tr.New); err != nil {
		return tr, err
	}
	return tr, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Freeze
// ─────────────────────────────────────────────────────────────────────────────

// UseFreezeCommand spends one monthly freeze on today.
type UseFreezeCommand struct {
	UserID shared.UserID
}

// Validate validates the command.
func (cmd UseFreezeCommand) Validate() error {
	if !cmd.UserID.IsValid() {
		return shared.NewDomainError("streak", "UseFreeze", shared.ErrInvalidID, "invalid user id")
	}
	return nil
}

// UseFreezeResult is the outcome of UseFreeze.
type UseFreezeResult struct {
	Used      bool
	Remaining int
	Streak    *streak.State
}

// UseFreeze spends a freeze. Used is false when the monthly quota is gone.
func (t *StreakTracker) UseFreeze(ctx context.Context, cmd UseFreezeCommand) (*UseFreezeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	result := &UseFreezeResult{}
	_, err := t.runner.Run(ctx, cmd.UserID, func(c *Cascade) error {
		st, err := c.store.Streaks().Ensure(c.ctx, c.User)
		if err != nil {
			return fmt.Errorf("streak: load state: %w", err)
		}
		result.Used = st.UseFreeze(c.Today)
		st.UpdatedAt = c.Now
		if err := c.store.Streaks().Save(c.ctx, st); err != nil {
			return fmt.Errorf("streak: save state: %w", err)
		}
		result.Remaining = st.FreezesAvailable(c.Today)
		result.Streak = st.Clone()
		c.streak = result.Streak
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
