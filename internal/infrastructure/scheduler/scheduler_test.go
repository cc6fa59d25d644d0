package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Description() string           { return "test job " + j.name }
func (j funcJob) Run(ctx context.Context) error { return j.run(ctx) }

func okJob(name string, calls *atomic.Int64) Job {
	return funcJob{name: name, run: func(context.Context) error {
		calls.Add(1)
		return nil
	}}
}

func TestScheduleStrings(t *testing.T) {
	assert.Equal(t, "every monday at 00:00", Weekly(time.Monday, "00:00").String())
	assert.Equal(t, "monthly on day 1 at 00:00", Monthly(1, "00:00").String())
	assert.Equal(t, "@every 15m0s", Every(15*time.Minute).String())
}

func TestRegister_Validation(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	var calls atomic.Int64

	assert.ErrorIs(t, s.Register(nil, Every(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(okJob("a", &calls), nil), ErrNilSchedule)

	require.NoError(t, s.Register(okJob("a", &calls), Every(time.Minute)))
	assert.ErrorIs(t, s.Register(okJob("a", &calls), Every(time.Minute)), ErrJobAlreadyExists)

	require.NoError(t, s.Unregister("a"))
	assert.ErrorIs(t, s.Unregister("a"), ErrJobNotFound)
}

func TestRunNow_RecordsResult(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	var calls atomic.Int64
	boom := errors.New("boom")

	require.NoError(t, s.Register(okJob("ok", &calls), Every(time.Hour)))
	require.NoError(t, s.Register(funcJob{name: "bad", run: func(context.Context) error { return boom }}, Every(time.Hour)))

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Manual)
	assert.Equal(t, int64(1), calls.Load())

	res, err = s.RunNow(context.Background(), "bad")
	assert.ErrorIs(t, err, boom)
	assert.False(t, res.Success)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	snap := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalExecutions)
	assert.Equal(t, int64(1), snap.TotalFailures)
	assert.Equal(t, int64(1), snap.FailuresByJob["bad"])
	assert.InDelta(t, 0.5, snap.SuccessRate, 1e-9)

	history := s.GetHistory(0)
	require.Len(t, history, 2)
	assert.Equal(t, "ok", history[0].JobName)
	assert.Equal(t, "bad", history[1].JobName)
	assert.Len(t, s.GetHistory(1), 1)

	info, err := s.GetJobInfo("bad")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.RunCount)
	assert.Equal(t, int64(1), info.FailCount)
	require.NotNil(t, info.LastResult)
	assert.ErrorIs(t, info.LastResult.Error, boom)

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "bad", jobs[0].Name)
	assert.Equal(t, "ok", jobs[1].Name)
}

func TestHistoryIsBounded(t *testing.T) {
	s := NewScheduler(SchedulerConfig{MaxHistorySize: 3})
	var calls atomic.Int64
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, s.Register(okJob(name, &calls), Every(time.Hour)))
		_, err := s.RunNow(context.Background(), name)
		require.NoError(t, err)
	}

	var names []string
	for _, r := range s.GetHistory(0) {
		names = append(names, r.JobName)
	}
	assert.Equal(t, []string{"c", "d", "e"}, names)
	assert.Equal(t, "e", s.GetHistory(1)[0].JobName)
}

func TestLifecycle(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())

	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(), ErrSchedulerStopped)
}

func TestIntervalJobRuns(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	var calls atomic.Int64
	require.NoError(t, s.Register(okJob("tick", &calls), Every(50*time.Millisecond)))

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, 3*time.Second, 10*time.Millisecond)
}

func TestWallClockSchedulesInLocation(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*60*60)
	s := NewScheduler(SchedulerConfig{Location: loc})
	var calls atomic.Int64
	require.NoError(t, s.Register(okJob("weekly", &calls), Weekly(time.Monday, "00:00")))
	require.NoError(t, s.Register(okJob("monthly", &calls), Monthly(1, "00:00")))

	require.NoError(t, s.Start())
	defer s.Stop()

	weekly, err := s.GetJobInfo("weekly")
	require.NoError(t, err)
	next := weekly.NextRun.In(loc)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 0, next.Hour())
	assert.Equal(t, 0, next.Minute())

	monthly, err := s.GetJobInfo("monthly")
	require.NoError(t, err)
	next = monthly.NextRun.In(loc)
	assert.Equal(t, 1, next.Day())
	assert.Equal(t, 0, next.Hour())

	assert.Zero(t, calls.Load())
}

func TestStopCancelsRunningJob(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	started := make(chan struct{})
	var once sync.Once
	var cancelled atomic.Bool
	require.NoError(t, s.Register(funcJob{name: "slow", run: func(ctx context.Context) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}}, Every(20*time.Millisecond)))

	require.NoError(t, s.Start())
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never started")
	}
	require.NoError(t, s.Stop())
	assert.True(t, cancelled.Load())
}
