// Package scheduler runs the engine's periodic jobs: weekly and monthly point
// resets and leaderboard cache rebuilds. gocron decides when a job fires;
// this package tracks what each run did and allows operators to trigger a
// job by hand.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/rhythmofsigns/progress-engine/pkg/logger"
)

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrNilSchedule             = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
	ErrSchedulerStopped        = errors.New("scheduler has been stopped")
)

// Job is one unit of periodic work. Run's context is cancelled when the
// scheduler stops.
type Job interface {
	Name() string
	Description() string
	Run(ctx context.Context) error
}

// JobResult records one run.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
	Manual      bool
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

type lifecycle int

const (
	idle lifecycle = iota
	running
	stopped
)

// Scheduler owns a gocron scheduler and the bookkeeping around it.
type Scheduler struct {
	cron     *gocron.Scheduler
	location *time.Location
	logger   *logger.Logger
	metrics  *SchedulerMetrics

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	mu      sync.RWMutex
	state   lifecycle
	entries map[string]*entry
	history *resultRing
}

type entry struct {
	job      Job
	schedule Schedule
	handle   *gocron.Job

	runs  int64
	fails int64
	last  *JobResult
}

type SchedulerConfig struct {
	Logger *logger.Logger
	// Location anchors weekly and monthly schedules. Nil means UTC.
	Location *time.Location
	// MaxHistorySize bounds the results kept for GetHistory.
	MaxHistorySize int
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{Location: time.UTC, MaxHistorySize: 1000}
}

func NewScheduler(config SchedulerConfig) *Scheduler {
	loc := config.Location
	if loc == nil {
		loc = time.UTC
	}
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}
	keep := config.MaxHistorySize
	if keep <= 0 {
		keep = 1000
	}

	cron := gocron.NewScheduler(loc)
	// Interval jobs first fire one interval after start; a slow run is
	// never overlapped by the next.
	cron.WaitForScheduleAll()
	cron.SingletonModeAll()

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron,
		location: loc,
		logger:   log.With(logger.Component("scheduler")),
		metrics:  NewSchedulerMetrics(),
		ctx:      ctx,
		cancel:   cancel,
		entries:  make(map[string]*entry),
		history:  newResultRing(keep),
	}
}

// Register schedules job. Names must be unique.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	switch {
	case job == nil:
		return ErrNilJob
	case schedule == nil:
		return ErrNilSchedule
	}
	name := job.Name()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[name]; dup {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	e := &entry{job: job, schedule: schedule}
	handle, err := schedule.apply(s.cron).Tag(name).Do(func() { s.run(s.ctx, e, false) })
	if err != nil {
		return fmt.Errorf("schedule %s (%s): %w", name, schedule, err)
	}
	e.handle = handle
	s.entries[name] = e

	s.logger.Info("job registered",
		logger.String("job", name),
		logger.String("schedule", schedule.String()),
		logger.String("description", job.Description()),
	)
	return nil
}

func (s *Scheduler) Unregister(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if err := s.cron.RemoveByTag(name); err != nil {
		return fmt.Errorf("unregister %s: %w", name, err)
	}
	delete(s.entries, name)
	s.logger.Info("job unregistered", logger.String("job", name))
	return nil
}

// Start fires jobs in the background. A stopped scheduler stays stopped.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case running:
		return ErrSchedulerAlreadyRunning
	case stopped:
		return ErrSchedulerStopped
	}
	s.state = running
	s.cron.StartAsync()

	s.logger.Info("scheduler started",
		logger.Int("jobs_count", len(s.entries)),
		logger.String("location", s.location.String()),
	)
	return nil
}

// Stop halts scheduling, cancels running jobs and waits for them.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.state != running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.state = stopped
	s.mu.Unlock()

	s.cancel()
	s.cron.Stop()
	s.inflight.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == running
}

// RunNow runs the named job on the caller's goroutine, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*JobResult, error) {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	res := s.run(ctx, e, true)
	return res, res.Error
}

func (s *Scheduler) run(ctx context.Context, e *entry, manual bool) *JobResult {
	s.inflight.Add(1)
	defer s.inflight.Done()

	name := e.job.Name()
	log := s.logger.With(logger.String("job", name), logger.Bool("manual", manual))
	log.Info("job started")

	res := &JobResult{JobName: name, StartedAt: time.Now(), Manual: manual}
	res.Error = e.job.Run(ctx)
	res.CompletedAt = time.Now()
	res.Duration = res.CompletedAt.Sub(res.StartedAt)
	res.Success = res.Error == nil

	s.metrics.RecordExecution(name, res.Duration, res.Success)
	s.mu.Lock()
	e.runs++
	if !res.Success {
		e.fails++
	}
	e.last = res
	s.history.push(*res)
	s.mu.Unlock()

	if res.Success {
		log.Info("job completed", logger.Latency(res.Duration))
	} else {
		log.Error("job failed", logger.Latency(res.Duration), logger.Err(res.Error))
	}
	return res
}

// ══════════════════════════════════════════════════════════════════════════════
// INSPECTION
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo describes a registered job. NextRun is zero unless the scheduler
// is running.
type JobInfo struct {
	Name        string
	Description string
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
	LastResult  *JobResult
}

// ListJobs returns every job ordered by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]JobInfo, 0, len(s.entries))
	for name, e := range s.entries {
		out = append(out, s.describe(name, e))
	}
	slices.SortFunc(out, func(a, b JobInfo) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (s *Scheduler) GetJobInfo(name string) (*JobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	info := s.describe(name, e)
	return &info, nil
}

func (s *Scheduler) describe(name string, e *entry) JobInfo {
	info := JobInfo{
		Name:        name,
		Description: e.job.Description(),
		Schedule:    e.schedule.String(),
		RunCount:    e.runs,
		FailCount:   e.fails,
		LastResult:  e.last,
	}
	if e.last != nil {
		info.LastRun = e.last.StartedAt
	}
	if s.state == running && e.handle != nil {
		info.NextRun = e.handle.NextRun()
	}
	return info
}

// GetHistory returns up to limit recent results, oldest first. A limit of
// zero or less returns everything kept.
func (s *Scheduler) GetHistory(limit int) []JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.last(limit)
}

func (s *Scheduler) GetMetrics() *SchedulerMetrics {
	return s.metrics
}

// resultRing keeps the newest cap results.
type resultRing struct {
	buf  []JobResult
	next int
	full bool
}

func newResultRing(capacity int) *resultRing {
	return &resultRing{buf: make([]JobResult, capacity)}
}

func (r *resultRing) push(res JobResult) {
	r.buf[r.next] = res
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *resultRing) last(n int) []JobResult {
	ordered := r.buf[:r.next]
	if r.full {
		ordered = append(slices.Clone(r.buf[r.next:]), r.buf[:r.next]...)
	}
	if n <= 0 || n > len(ordered) {
		n = len(ordered)
	}
	return slices.Clone(ordered[len(ordered)-n:])
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// SchedulerMetrics aggregates runs across all jobs.
type SchedulerMetrics struct {
	mu        sync.Mutex
	runs      int64
	successes int64
	busy      time.Duration
	failures  map[string]int64
}

func NewSchedulerMetrics() *SchedulerMetrics {
	return &SchedulerMetrics{failures: make(map[string]int64)}
}

func (m *SchedulerMetrics) RecordExecution(job string, d time.Duration, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	m.busy += d
	if ok {
		m.successes++
		return
	}
	m.failures[job]++
}

type MetricsSnapshot struct {
	TotalExecutions int64
	TotalSuccesses  int64
	TotalFailures   int64
	FailuresByJob   map[string]int64
	SuccessRate     float64
	AverageDuration time.Duration
}

func (m *SchedulerMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := MetricsSnapshot{
		TotalExecutions: m.runs,
		TotalSuccesses:  m.successes,
		TotalFailures:   m.runs - m.successes,
		FailuresByJob:   make(map[string]int64, len(m.failures)),
	}
	for job, n := range m.failures {
		snap.FailuresByJob[job] = n
	}
	if m.runs > 0 {
		snap.SuccessRate = float64(m.successes) / float64(m.runs)
		snap.AverageDuration = m.busy / time.Duration(m.runs)
	}
	return snap
}
