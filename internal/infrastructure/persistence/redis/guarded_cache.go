package redis

import (
	"context"
	"sync"

	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/pkg/circuitbreaker"
)

// rankCache is the surface of LeaderboardCache that GuardedLeaderboardCache
// protects.
type rankCache interface {
	Replace(ctx context.Context, period points.Period, rows []points.Standing) error
	UpdateScores(ctx context.Context, account *points.Account) error
	Top(ctx context.Context, period points.Period, limit int) ([]points.Standing, error)
	Rank(ctx context.Context, period points.Period, userID shared.UserID) (shared.Rank, bool, error)
}

var _ rankCache = (*LeaderboardCache)(nil)

// GuardedLeaderboardCache puts a circuit breaker in front of the leaderboard
// cache. While the breaker is open every call short-circuits and reads look
// cold, so callers fall back to storage without waiting on Redis timeouts.
//
// An update that fails or is short-circuited leaves the cached sets behind
// storage. Every period is then treated as cold until a Replace for that
// period succeeds.
type GuardedLeaderboardCache struct {
	inner   rankCache
	breaker *circuitbreaker.CircuitBreaker

	mu    sync.RWMutex
	stale map[points.Period]bool
}

// NewGuardedLeaderboardCache wraps inner with breaker.
func NewGuardedLeaderboardCache(inner rankCache, breaker *circuitbreaker.CircuitBreaker) *GuardedLeaderboardCache {
	return &GuardedLeaderboardCache{
		inner:   inner,
		breaker: breaker,
		stale:   make(map[points.Period]bool),
	}
}

func (g *GuardedLeaderboardCache) isStale(period points.Period) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.stale[period]
}

func (g *GuardedLeaderboardCache) markAllStale() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range points.AllPeriods {
		g.stale[p] = true
	}
}

// Replace implements query.LeaderboardCache.
func (g *GuardedLeaderboardCache) Replace(ctx context.Context, period points.Period, rows []points.Standing) error {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.Replace(ctx, period, rows)
	})
	if err != nil {
		return err
	}
	g.mu.Lock()
	delete(g.stale, period)
	g.mu.Unlock()
	return nil
}

// UpdateScores implements command.ScoreUpdater.
func (g *GuardedLeaderboardCache) UpdateScores(ctx context.Context, account *points.Account) error {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.UpdateScores(ctx, account)
	})
	if err != nil {
		g.markAllStale()
	}
	return err
}

// Top implements query.LeaderboardCache.
func (g *GuardedLeaderboardCache) Top(ctx context.Context, period points.Period, limit int) ([]points.Standing, error) {
	if g.isStale(period) {
		return nil, nil
	}
	var rows []points.Standing
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		rows, err = g.inner.Top(ctx, period, limit)
		return err
	})
	return rows, err
}

// Rank implements query.LeaderboardCache.
func (g *GuardedLeaderboardCache) Rank(ctx context.Context, period points.Period, userID shared.UserID) (shared.Rank, bool, error) {
	if g.isStale(period) {
		return 0, false, nil
	}
	var (
		rank shared.Rank
		ok   bool
	)
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		rank, ok, err = g.inner.Rank(ctx, period, userID)
		return err
	})
	return rank, ok, err
}
