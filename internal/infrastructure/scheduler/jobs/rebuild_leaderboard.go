// Package jobs contains the engine's scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rhythmofsigns/progress-engine/pkg/logger"
)

// LeaderboardRebuilder reloads every cached leaderboard period from storage
// and reports how many rows it wrote.
type LeaderboardRebuilder interface {
	RebuildAll(ctx context.Context) (int, error)
}

// RebuildStats describes one successful rebuild.
type RebuildStats struct {
	CompletedAt time.Time
	Duration    time.Duration
	Rows        int
}

// RebuildLeaderboardJob reloads the Redis leaderboards on an interval, so a
// cache that was flushed or missed a score update converges on PostgreSQL.
type RebuildLeaderboardJob struct {
	rebuilder LeaderboardRebuilder
	timeout   time.Duration
	logger    *logger.Logger

	last    atomic.Pointer[RebuildStats]
	failing atomic.Int64 // consecutive failed runs
}

// NewRebuildLeaderboardJob bounds each run by timeout; zero leaves only the
// scheduler's context.
func NewRebuildLeaderboardJob(rebuilder LeaderboardRebuilder, timeout time.Duration, log *logger.Logger) *RebuildLeaderboardJob {
	if log == nil {
		log = logger.Nop()
	}
	return &RebuildLeaderboardJob{
		rebuilder: rebuilder,
		timeout:   timeout,
		logger:    log.With(logger.Component("rebuild_leaderboard")),
	}
}

func (j *RebuildLeaderboardJob) Name() string { return "rebuild_leaderboard" }

func (j *RebuildLeaderboardJob) Description() string {
	return "Reloads the all-time, weekly and monthly leaderboard caches from storage"
}

func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	began := time.Now()
	rows, err := j.rebuilder.RebuildAll(ctx)
	if err != nil {
		// Reads fall back to PostgreSQL meanwhile, so this is a warning.
		j.logger.Warn("leaderboard rebuild failed",
			logger.Int64("consecutive_failures", j.failing.Add(1)),
			logger.Err(err),
		)
		return fmt.Errorf("rebuild leaderboard: %w", err)
	}
	j.failing.Store(0)

	done := time.Now()
	j.last.Store(&RebuildStats{CompletedAt: done, Duration: done.Sub(began), Rows: rows})
	j.logger.Info("leaderboard rebuilt", logger.Int("rows", rows), logger.Latency(done.Sub(began)))
	return nil
}

// LastStats describes the most recent successful run, or nil before one.
func (j *RebuildLeaderboardJob) LastStats() *RebuildStats {
	return j.last.Load()
}

// ConsecutiveFailures counts failed runs since the last success.
func (j *RebuildLeaderboardJob) ConsecutiveFailures() int64 {
	return j.failing.Load()
}
