package command

import (
	"context"
	"fmt"

	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/pkg/logger"
	"github.com/rhythmofsigns/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERIODIC RESETS
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRebuilder reloads a cached leaderboard from storage.
type LeaderboardRebuilder interface {
	Rebuild(ctx context.Context, period points.Period) (int, error)
}

// ResetPointsCommand selects which periodic counters to zero.
type ResetPointsCommand struct {
	Weekly  bool
	Monthly bool
	// All resets both periods.
	All bool
	// Auto resets weekly on Mondays and monthly on the first of the month.
	Auto bool
}

// Validate validates the command.
func (cmd ResetPointsCommand) Validate() error {
	if !cmd.Weekly && !cmd.Monthly && !cmd.All && !cmd.Auto {
		return shared.NewDomainError("points", "Reset", shared.ErrInvalidInput,
			"no reset option specified: use weekly, monthly, all or auto")
	}
	return nil
}

// ResetPointsResult reports what was reset.
type ResetPointsResult struct {
	Today           string
	WeeklyReset     bool
	MonthlyReset    bool
	WeeklyAccounts  int64
	MonthlyAccounts int64
}

// Skipped reports that auto mode found nothing to do today.
func (r *ResetPointsResult) Skipped() bool {
	return !r.WeeklyReset && !r.MonthlyReset
}

// ResetPointsHandler zeroes weekly and monthly counters across all accounts.
type ResetPointsHandler struct {
	repo      points.Repository
	clock     timeutil.Clock
	publisher shared.EventPublisher
	rebuilder LeaderboardRebuilder
	logger    *logger.Logger
}

// NewResetPointsHandler creates a ResetPointsHandler. publisher and rebuilder may be nil.
func NewResetPointsHandler(repo points.Repository, clock timeutil.Clock, publisher shared.EventPublisher, rebuilder LeaderboardRebuilder, log *logger.Logger) *ResetPointsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ResetPointsHandler{
		repo:      repo,
		clock:     clock,
		publisher: publisher,
		rebuilder: rebuilder,
		logger:    log.With(logger.Component("reset_points")),
	}
}

// Handle executes the reset.
func (h *ResetPointsHandler) Handle(ctx context.Context, cmd ResetPointsCommand) (*ResetPointsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	today := timeutil.Today(h.clock)
	weekly := cmd.Weekly || cmd.All
	monthly := cmd.Monthly || cmd.All
	if cmd.Auto {
		if timeutil.IsMonday(today) {
			weekly = true
		}
		if timeutil.IsFirstOfMonth(today) {
			monthly = true
		}
	}

	result := &ResetPointsResult{Today: timeutil.FormatDate(today)}
	if !weekly && !monthly {
		h.logger.Info("nothing to reset today", logger.Date("today", today))
		return result, nil
	}

	if weekly {
		n, err := h.repo.ResetWeekly(ctx, today)
		if err != nil {
			return nil, fmt.Errorf("reset weekly points: %w", err)
		}
		result.WeeklyReset = true
		result.WeeklyAccounts = n
		h.after(ctx, points.PeriodWeekly, n)
	}
	if monthly {
		n, err := h.repo.ResetMonthly(ctx, today)
		if err != nil {
			return result, fmt.Errorf("reset monthly points: %w", err)
		}
		result.MonthlyReset = true
		result.MonthlyAccounts = n
		h.after(ctx, points.PeriodMonthly, n)
	}
	return result, nil
}

func (h *ResetPointsHandler) after(ctx context.Context, period points.Period, accounts int64) {
	h.logger.Info("points reset",
		logger.String("period", string(period)),
		logger.Int64("accounts", accounts),
	)
	if h.publisher != nil {
		if err := h.publisher.Publish(shared.NewPointsResetEvent(string(period), accounts)); err != nil {
			h.logger.Warn("publish reset event failed", logger.Err(err))
		}
	}
	if h.rebuilder != nil {
		if _, err := h.rebuilder.Rebuild(ctx, period); err != nil {
			h.logger.Warn("leaderboard rebuild failed", logger.String("period", string(period)), logger.Err(err))
		}
	}
}
