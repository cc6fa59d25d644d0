// Package main is the operator CLI for the progress engine.
//
//	progressctl migrate
//	progressctl seed-badges
//	progressctl reset [-weekly] [-monthly] [-all] [-auto]
//	progressctl rebuild-leaderboard
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rhythmofsigns/progress-engine/config"
	"github.com/rhythmofsigns/progress-engine/internal/app"
	"github.com/rhythmofsigns/progress-engine/internal/application/command"
	"github.com/rhythmofsigns/progress-engine/internal/infrastructure/persistence/postgres"
	"github.com/rhythmofsigns/progress-engine/pkg/logger"
)

const usage = `usage: progressctl <command> [flags]

commands:
  migrate               apply pending schema migrations
  seed-badges           insert the default badge catalog
  reset                 zero periodic point counters
                        -weekly -monthly -all -auto
  rebuild-leaderboard   reload the cached leaderboards from storage
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "progressctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := app.NewLogger(cfg).With(logger.Component("progressctl"))
	defer func() { _ = log.Sync() }()

	switch args[0] {
	case "migrate":
		return migrate(ctx, cfg, log, out)
	case "seed-badges":
		return seedBadges(ctx, cfg, log, out)
	case "reset":
		cmd, err := parseReset(args[1:])
		if err != nil {
			return err
		}
		return reset(ctx, cfg, log, cmd, out)
	case "rebuild-leaderboard":
		return rebuildLeaderboard(ctx, cfg, log, out)
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}
}

// parseReset reads the reset flags. At least one is required.
func parseReset(args []string) (command.ResetPointsCommand, error) {
	var cmd command.ResetPointsCommand
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&cmd.Weekly, "weekly", false, "reset weekly points")
	fs.BoolVar(&cmd.Monthly, "monthly", false, "reset monthly points")
	fs.BoolVar(&cmd.All, "all", false, "reset weekly and monthly points")
	fs.BoolVar(&cmd.Auto, "auto", false, "weekly on Mondays, monthly on the 1st")

	if err := fs.Parse(args); err != nil {
		return cmd, fmt.Errorf("%v: %w", err, errUsage)
	}
	if fs.NArg() > 0 {
		return cmd, fmt.Errorf("unexpected argument %q: %w", fs.Arg(0), errUsage)
	}
	if err := cmd.Validate(); err != nil {
		return cmd, fmt.Errorf("%v: %w", err, errUsage)
	}
	return cmd, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func migrate(ctx context.Context, cfg *config.Config, log *logger.Logger, out io.Writer) error {
	conn, err := app.ConnectPostgres(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()

	applied, err := postgres.NewMigrator(conn).Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintf(out, "applied %d migration(s)\n", applied)
	return nil
}

func seedBadges(ctx context.Context, cfg *config.Config, log *logger.Logger, out io.Writer) error {
	conn, err := app.ConnectPostgres(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()

	res, err := command.NewSeedBadgesHandler(postgres.NewStore(conn).Badges()).Handle(ctx, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created %d badge(s), %d active in catalog\n", res.Created, res.Catalog.ActiveCount())
	return nil
}

func reset(ctx context.Context, cfg *config.Config, log *logger.Logger, cmd command.ResetPointsCommand, out io.Writer) error {
	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Reset.Handle(ctx, cmd)
	if err != nil {
		return err
	}
	if res.Skipped() {
		fmt.Fprintf(out, "%s: nothing to reset today\n", res.Today)
		return nil
	}
	if res.WeeklyReset {
		fmt.Fprintf(out, "%s: weekly points reset for %d account(s)\n", res.Today, res.WeeklyAccounts)
	}
	if res.MonthlyReset {
		fmt.Fprintf(out, "%s: monthly points reset for %d account(s)\n", res.Today, res.MonthlyAccounts)
	}
	return nil
}

func rebuildLeaderboard(ctx context.Context, cfg *config.Config, log *logger.Logger, out io.Writer) error {
	cfg.Redis.Required = true
	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Rebuilder == nil {
		return errors.New("redis is disabled; nothing to rebuild")
	}
	n, err := a.Rebuilder.RebuildAll(ctx)
	if err != nil {
		return fmt.Errorf("rebuild leaderboard: %w", err)
	}
	fmt.Fprintf(out, "cached %d leaderboard row(s)\n", n)
	return nil
}
