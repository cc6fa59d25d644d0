package command

import (
	"github.com/rhythmofsigns/progress-engine/internal/domain/badge"
	"github.com/rhythmofsigns/progress-engine/pkg/timeutil"
)

// Engine wires the write-side components over one unit of work.
type Engine struct {
	Runner     *Runner
	Ledger     *PointLedger
	Badges     *BadgeEngine
	Streaks    *StreakTracker
	Scheduler  *Scheduler
	Dispatcher *Dispatcher
}

// NewEngine builds every component around catalog.
func NewEngine(uow UnitOfWork, clock timeutil.Clock, catalog *badge.Catalog, opts ...RunnerOption) *Engine {
	runner := NewRunner(uow, clock, opts...)
	ledger := NewPointLedger(runner)
	badges := NewBadgeEngine(runner, ledger, catalog)
	streaks := NewStreakTracker(runner, ledger, badges)
	scheduler := NewScheduler(runner, ledger)

	return &Engine{
		Runner:     runner,
		Ledger:     ledger,
		Badges:     badges,
		Streaks:    streaks,
		Scheduler:  scheduler,
		Dispatcher: NewDispatcher(runner, ledger, streaks, badges, scheduler),
	}
}
