// Package main runs the progress engine as a long-lived worker.
//
// The worker owns the periodic jobs: the weekly and monthly point resets and,
// when Redis is configured, the leaderboard cache rebuild. It also hosts the
// learning event router so that embedding services can publish into it.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rhythmofsigns/progress-engine/config"
	"github.com/rhythmofsigns/progress-engine/internal/app"
	"github.com/rhythmofsigns/progress-engine/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := app.NewLogger(cfg).With(logger.Component("worker"))
	defer func() { _ = log.Sync() }()

	log.Info("starting progress worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.Bool("debug", cfg.App.Debug),
		logger.String("timezone", cfg.App.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORAGE, CACHE AND ENGINE
	// ─────────────────────────────────────────────────────────────────────────
	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing engine")
		a.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Scheduler.Enabled {
		log.Info("scheduler disabled, waiting for shutdown")
		<-ctx.Done()
		return nil
	}

	sched, err := a.Scheduler()
	if err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	for _, job := range sched.ListJobs() {
		log.Info("job scheduled",
			logger.String("job", job.Name),
			logger.String("schedule", job.Schedule),
			logger.Time("next_run", job.NextRun),
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("shutdown signal received", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	done := make(chan error, 1)
	go func() { done <- sched.Stop() }()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("scheduler stopped with error", logger.Err(err))
		}
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Error("shutdown timed out waiting for running jobs")
	}

	m := sched.GetMetrics().Snapshot()
	log.Info("shutdown completed",
		logger.Int64("executions", m.TotalExecutions),
		logger.Int64("failures", m.TotalFailures),
	)
	return nil
}
