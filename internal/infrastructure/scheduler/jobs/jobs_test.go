package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmofsigns/progress-engine/internal/application/command"
	"github.com/rhythmofsigns/progress-engine/internal/domain/badge"
	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/internal/infrastructure/persistence/memory"
	"github.com/rhythmofsigns/progress-engine/internal/infrastructure/scheduler/jobs"
	"github.com/rhythmofsigns/progress-engine/pkg/timeutil"
)

type fixture struct {
	store *memory.Store
	clock *timeutil.ManualClock
	reset *command.ResetPointsHandler
}

// 2024-03-04 is a Monday.
func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	store := memory.NewStore()
	clock := timeutil.NewManualClock(now)
	engine := command.NewEngine(store, clock, badge.NewCatalog(nil))
	for _, id := range []shared.UserID{1, 2} {
		_, err := engine.Ledger.AddPoints(context.Background(), command.AddPointsCommand{
			UserID: id, Amount: 50, Source: points.SourceOther,
		})
		require.NoError(t, err)
	}
	return &fixture{
		store: store,
		clock: clock,
		reset: command.NewResetPointsHandler(store.Points(), clock, nil, nil, nil),
	}
}

func (f *fixture) account(t *testing.T, id shared.UserID) *points.Account {
	t.Helper()
	acc, err := f.store.Points().Get(context.Background(), id)
	require.NoError(t, err)
	return acc
}

func TestWeeklyResetJob(t *testing.T) {
	f := newFixture(t, time.Date(2024, time.March, 6, 0, 0, 0, 0, time.UTC))
	job := jobs.NewWeeklyResetJob(f.reset, nil)

	assert.Equal(t, "weekly_points_reset", job.Name())
	require.NoError(t, job.Run(context.Background()))

	acc := f.account(t, 1)
	assert.Zero(t, acc.Weekly)
	assert.Equal(t, 50, acc.Monthly)
	assert.Equal(t, 50, acc.Total)
}

func TestMonthlyResetJob(t *testing.T) {
	f := newFixture(t, time.Date(2024, time.March, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, jobs.NewMonthlyResetJob(f.reset, nil).Run(context.Background()))

	acc := f.account(t, 2)
	assert.Equal(t, 50, acc.Weekly)
	assert.Zero(t, acc.Monthly)
}

func TestAutoResetJob(t *testing.T) {
	tests := []struct {
		name        string
		now         time.Time
		wantWeekly  int
		wantMonthly int
	}{
		{"wednesday", time.Date(2024, time.March, 6, 0, 5, 0, 0, time.UTC), 50, 50},
		{"monday", time.Date(2024, time.March, 4, 0, 5, 0, 0, time.UTC), 0, 50},
		{"first of month", time.Date(2024, time.March, 1, 0, 5, 0, 0, time.UTC), 50, 0},
		{"monday the first", time.Date(2024, time.April, 1, 0, 5, 0, 0, time.UTC), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.now)
			require.NoError(t, jobs.NewAutoResetJob(f.reset, nil).Run(context.Background()))

			acc := f.account(t, 1)
			assert.Equal(t, tt.wantWeekly, acc.Weekly)
			assert.Equal(t, tt.wantMonthly, acc.Monthly)
		})
	}
}

type rebuilderFunc func(ctx context.Context) (int, error)

func (f rebuilderFunc) RebuildAll(ctx context.Context) (int, error) { return f(ctx) }

func TestRebuildLeaderboardJob(t *testing.T) {
	var sawDeadline bool
	job := jobs.NewRebuildLeaderboardJob(rebuilderFunc(func(ctx context.Context) (int, error) {
		_, sawDeadline = ctx.Deadline()
		return 6, nil
	}), time.Minute, nil)

	assert.Nil(t, job.LastStats())
	require.NoError(t, job.Run(context.Background()))
	assert.True(t, sawDeadline)
	require.NotNil(t, job.LastStats())
	assert.Equal(t, 6, job.LastStats().Rows)
	assert.Zero(t, job.ConsecutiveFailures())
}

func TestRebuildLeaderboardJob_Error(t *testing.T) {
	job := jobs.NewRebuildLeaderboardJob(rebuilderFunc(func(context.Context) (int, error) {
		return 0, shared.ErrStorageUnavailable
	}), 0, nil)

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrStorageUnavailable))
	assert.Nil(t, job.LastStats())
	require.Error(t, job.Run(context.Background()))
	assert.Equal(t, int64(2), job.ConsecutiveFailures())
}
