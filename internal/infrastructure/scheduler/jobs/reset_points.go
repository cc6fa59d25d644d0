package jobs

import (
	"context"
	"fmt"

	"github.com/rhythmofsigns/progress-engine/internal/application/command"
	"github.com/rhythmofsigns/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESET POINTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// PointsResetter zeroes periodic point counters.
type PointsResetter interface {
	Handle(ctx context.Context, cmd command.ResetPointsCommand) (*command.ResetPointsResult, error)
}

// ResetPointsJob zeroes the weekly or monthly counters of every account.
type ResetPointsJob struct {
	name        string
	description string
	cmd         command.ResetPointsCommand
	resetter    PointsResetter
	logger      *logger.Logger
}

// NewWeeklyResetJob resets weekly counters on every run.
func NewWeeklyResetJob(resetter PointsResetter, log *logger.Logger) *ResetPointsJob {
	return newResetPointsJob("weekly_points_reset", "Zeroes weekly points for every account",
		command.ResetPointsCommand{Weekly: true}, resetter, log)
}

// NewMonthlyResetJob resets monthly counters on every run.
func NewMonthlyResetJob(resetter PointsResetter, log *logger.Logger) *ResetPointsJob {
	return newResetPointsJob("monthly_points_reset", "Zeroes monthly points for every account",
		command.ResetPointsCommand{Monthly: true}, resetter, log)
}

// NewAutoResetJob decides from the current date: weekly on Mondays, monthly
// on the first of the month, nothing otherwise. Suited to a daily schedule.
func NewAutoResetJob(resetter PointsResetter, log *logger.Logger) *ResetPointsJob {
	return newResetPointsJob("auto_points_reset", "Resets weekly points on Mondays and monthly points on the 1st",
		command.ResetPointsCommand{Auto: true}, resetter, log)
}

func newResetPointsJob(name, description string, cmd command.ResetPointsCommand, resetter PointsResetter, log *logger.Logger) *ResetPointsJob {
	if log == nil {
		log = logger.Nop()
	}
	return &ResetPointsJob{
		name:        name,
		description: description,
		cmd:         cmd,
		resetter:    resetter,
		logger:      log.With(logger.Component(name)),
	}
}

// Name returns the job name.
func (j *ResetPointsJob) Name() string { return j.name }

// Description returns a human-readable description.
func (j *ResetPointsJob) Description() string { return j.description }

// Run executes the reset.
func (j *ResetPointsJob) Run(ctx context.Context) error {
	result, err := j.resetter.Handle(ctx, j.cmd)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	if result.Skipped() {
		j.logger.Debug("nothing to reset", logger.String("today", result.Today))
		return nil
	}
	j.logger.Info("points reset",
		logger.String("today", result.Today),
		logger.Int64("weekly_accounts", result.WeeklyAccounts),
		logger.Int64("monthly_accounts", result.MonthlyAccounts),
	)
	return nil
}
