package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache keeps leaderboards in Redis sorted sets.
//
// Layout:
//   - ZSET "progress:leaderboard:{period}" member = zero-padded user id,
//     score = -points, so ascending order is points DESC then user id ASC
//   - STRING "progress:leaderboard:{period}:ready" marks a complete load
//   - HASH "progress:leaderboard:totals" user id -> all-time total
//
// A period without its ready marker is cold: reads return nothing and
// single-account updates are skipped, so a partial set is never served.
type LeaderboardCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewLeaderboardCache creates a LeaderboardCache. ttl is how long a rebuilt
// period stays ready; zero means TTLLeaderboardCache.
func NewLeaderboardCache(cache *Cache, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = TTLLeaderboardCache
	}
	return &LeaderboardCache{cache: cache, ttl: ttl}
}

// memberFor pads ids so lexical member order equals numeric order.
func memberFor(userID shared.UserID) string {
	return fmt.Sprintf("%020d", userID.Int64())
}

func parseMember(member string) (shared.UserID, error) {
	id, err := strconv.ParseInt(member, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse leaderboard member %q: %w", member, err)
	}
	return shared.UserID(id), nil
}

func scoreFor(pts int) float64 {
	return float64(-pts)
}

func pointsFromScore(score float64) int {
	return int(-score)
}

// strictlyAbove is the ZCOUNT upper bound selecting scores better than pts.
func strictlyAbove(pts int) string {
	return "(" + strconv.FormatFloat(scoreFor(pts), 'f', -1, 64)
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Replace implements query.LeaderboardCache. It swaps the whole period in
// one MULTI/EXEC block and marks it ready.
func (l *LeaderboardCache) Replace(ctx context.Context, period points.Period, rows []points.Standing) error {
	key := LeaderboardKey(period)
	ready := LeaderboardReadyKey(period)

	_, err := l.cache.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(rows) > 0 {
			members := make([]redis.Z, len(rows))
			totals := make(map[string]any, len(rows))
			for i, r := range rows {
				m := memberFor(r.UserID)
				members[i] = redis.Z{Score: scoreFor(r.Points), Member: m}
				totals[m] = r.Total
			}
			pipe.ZAdd(ctx, key, members...)
			pipe.HSet(ctx, LeaderboardTotalsKey(), totals)
		}
		pipe.Set(ctx, ready, "1", l.ttl)
		return nil
	})
	if err != nil {
		return unavailable("ReplaceLeaderboard", err)
	}
	return nil
}

// UpdateScores implements command.ScoreUpdater. Only ready periods are
// touched.
func (l *LeaderboardCache) UpdateScores(ctx context.Context, account *points.Account) error {
	client := l.cache.Client()

	checks := make(map[points.Period]*redis.IntCmd, len(points.AllPeriods))
	_, err := client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range points.AllPeriods {
			checks[p] = pipe.Exists(ctx, LeaderboardReadyKey(p))
		}
		return nil
	})
	if err != nil {
		return unavailable("UpdateScores", err)
	}

	m := memberFor(account.UserID)
	_, err = client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		warm := false
		for _, p := range points.AllPeriods {
			if checks[p].Val() == 0 {
				continue
			}
			warm = true
			pipe.ZAdd(ctx, LeaderboardKey(p), redis.Z{Score: scoreFor(account.PointsFor(p)), Member: m})
		}
		if warm {
			pipe.HSet(ctx, LeaderboardTotalsKey(), m, account.Total)
		}
		return nil
	})
	if err != nil {
		return unavailable("UpdateScores", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// READ OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Top implements query.LeaderboardCache.
func (l *LeaderboardCache) Top(ctx context.Context, period points.Period, limit int) ([]points.Standing, error) {
	if limit <= 0 {
		return nil, nil
	}
	client := l.cache.Client()

	n, err := client.Exists(ctx, LeaderboardReadyKey(period)).Result()
	if err != nil {
		return nil, unavailable("TopLeaderboard", err)
	}
	if n == 0 {
		return nil, nil
	}

	zs, err := client.ZRangeWithScores(ctx, LeaderboardKey(period), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, unavailable("TopLeaderboard", err)
	}
	if len(zs) == 0 {
		return nil, nil
	}

	fields := make([]string, len(zs))
	for i, z := range zs {
		fields[i], _ = z.Member.(string)
	}
	totals, err := client.HMGet(ctx, LeaderboardTotalsKey(), fields...).Result()
	if err != nil {
		return nil, unavailable("TopLeaderboard", err)
	}

	out := make([]points.Standing, 0, len(zs))
	for i, z := range zs {
		userID, err := parseMember(fields[i])
		if err != nil {
			return nil, err
		}
		s := points.Standing{
			UserID: userID,
			Points: pointsFromScore(z.Score),
		}
		if raw, ok := totals[i].(string); ok {
			s.Total, _ = strconv.Atoi(raw)
		}
		out = append(out, s)
	}
	return out, nil
}

// Rank implements query.LeaderboardCache.
func (l *LeaderboardCache) Rank(ctx context.Context, period points.Period, userID shared.UserID) (shared.Rank, bool, error) {
	client := l.cache.Client()
	key := LeaderboardKey(period)

	n, err := client.Exists(ctx, LeaderboardReadyKey(period)).Result()
	if err != nil {
		return shared.Unranked, false, unavailable("RankLeaderboard", err)
	}
	if n == 0 {
		return shared.Unranked, false, nil
	}

	score, err := client.ZScore(ctx, key, memberFor(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return shared.Unranked, false, nil
	}
	if err != nil {
		return shared.Unranked, false, unavailable("RankLeaderboard", err)
	}

	above, err := client.ZCount(ctx, key, "-inf", strictlyAbove(pointsFromScore(score))).Result()
	if err != nil {
		return shared.Unranked, false, unavailable("RankLeaderboard", err)
	}
	return shared.Rank(above + 1), true, nil
}
