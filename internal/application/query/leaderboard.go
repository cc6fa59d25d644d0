// Package query contains read operations following CQRS pattern.
// Queries never modify engine state; they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Ranks accounts by the counter of a period: all-time, weekly or monthly.
// Served from the sorted-set cache when warm, from storage otherwise.
// ══════════════════════════════════════════════════════════════════════════════

// Leaderboard page bounds.
const (
	DefaultLeaderboardLimit = 20
	MaxLeaderboardLimit     = 100
)

// LeaderboardCache is a rank cache kept in step with committed totals.
type LeaderboardCache interface {
	// Top returns the cached top rows. An empty result means the cache is cold.
	Top(ctx context.Context, period points.Period, limit int) ([]points.Standing, error)

	// Rank returns 1 + the number of cached scores strictly above the user's.
	// ok is false when the user is not cached.
	Rank(ctx context.Context, period points.Period, userID shared.UserID) (shared.Rank, bool, error)

	// Replace swaps the cached period for rows.
	Replace(ctx context.Context, period points.Period, rows []points.Standing) error
}

// GetLeaderboardQuery selects a leaderboard page.
type GetLeaderboardQuery struct {
	// Period is "all", "weekly" or "monthly". Empty means all-time.
	Period string

	// Limit defaults to 20 and is capped at 100.
	Limit int
}

// Validate normalizes and checks the query.
func (q *GetLeaderboardQuery) Validate() (points.Period, error) {
	period, err := points.ParsePeriod(q.Period)
	if err != nil {
		return "", err
	}
	if q.Limit < 0 {
		return "", shared.ErrInvalidLimit
	}
	if q.Limit == 0 {
		q.Limit = DefaultLeaderboardLimit
	}
	if q.Limit > MaxLeaderboardLimit {
		q.Limit = MaxLeaderboardLimit
	}
	return period, nil
}

// LeaderboardEntryDTO is one leaderboard row.
type LeaderboardEntryDTO struct {
	Rank       int    `json:"rank"`
	UserID     int64  `json:"user_id"`
	Points     int    `json:"points"`
	Total      int    `json:"total_points"`
	Level      int    `json:"level"`
	LevelTitle string `json:"level_title"`
}

// GetLeaderboardResult is a leaderboard page.
type GetLeaderboardResult struct {
	Period      string                `json:"period"`
	Entries     []LeaderboardEntryDTO `json:"entries"`
	FromCache   bool                  `json:"from_cache"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// GetLeaderboardHandler answers leaderboard queries.
type GetLeaderboardHandler struct {
	ranking  points.RankingReader
	accounts points.Repository
	cache    LeaderboardCache
	logger   *logger.Logger
}

// NewGetLeaderboardHandler creates the handler. cache may be nil.
func NewGetLeaderboardHandler(ranking points.RankingReader, accounts points.Repository, cache LeaderboardCache, log *logger.Logger) *GetLeaderboardHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetLeaderboardHandler{
		ranking:  ranking,
		accounts: accounts,
		cache:    cache,
		logger:   log.With(logger.Component("leaderboard")),
	}
}

// Handle returns the top of the leaderboard, descending. Tied scores share
// a rank, so ranks here agree with GetUserRank.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	period, err := q.Validate()
	if err != nil {
		return nil, err
	}

	result := &GetLeaderboardResult{Period: string(period), GeneratedAt: time.Now()}

	var rows []points.Standing
	if h.cache != nil {
		rows, err = h.cache.Top(ctx, period, q.Limit)
		if err != nil {
			h.logger.Warn("leaderboard cache read failed", logger.Err(err))
			rows = nil
		}
		result.FromCache = len(rows) > 0
	}
	if len(rows) == 0 {
		rows, err = h.ranking.Top(ctx, period, q.Limit)
		if err != nil {
			return nil, fmt.Errorf("load leaderboard: %w", err)
		}
	}

	result.Entries = toEntries(rows)
	return result, nil
}

func toEntries(rows []points.Standing) []LeaderboardEntryDTO {
	out := make([]LeaderboardEntryDTO, len(rows))
	rank := 0
	for i, r := range rows {
		if i == 0 || r.Points != rows[i-1].Points {
			rank = i + 1
		}
		level := r.Level()
		out[i] = LeaderboardEntryDTO{
			Rank:       rank,
			UserID:     r.UserID.Int64(),
			Points:     r.Points,
			Total:      r.Total,
			Level:      level,
			LevelTitle: points.TitleFor(level),
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// GET USER RANK QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetUserRankQuery asks for one user's position.
type GetUserRankQuery struct {
	UserID shared.UserID
	Period string
}

// GetUserRankResult is a user's position. Participating is false, with an
// unranked Rank, when the user has no point account.
type GetUserRankResult struct {
	Rank          shared.Rank `json:"rank"`
	Participating bool        `json:"participating"`
	Points        int         `json:"points"`
}

// GetUserRank returns 1 + the number of accounts with strictly more points.
func (h *GetLeaderboardHandler) GetUserRank(ctx context.Context, q GetUserRankQuery) (*GetUserRankResult, error) {
	if !q.UserID.IsValid() {
		return nil, shared.NewDomainError("leaderboard", "GetUserRank", shared.ErrInvalidID, "invalid user id")
	}
	period, err := points.ParsePeriod(q.Period)
	if err != nil {
		return nil, err
	}

	acc, err := h.accounts.Get(ctx, q.UserID)
	if shared.IsNotFound(err) {
		return &GetUserRankResult{Rank: shared.Unranked}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	score := acc.PointsFor(period)
	result := &GetUserRankResult{Participating: true, Points: score}

	if h.cache != nil {
		rank, ok, err := h.cache.Rank(ctx, period, q.UserID)
		if err != nil {
			h.logger.Warn("leaderboard cache rank failed", logger.UserID(q.UserID.Int64()), logger.Err(err))
		} else if ok {
			result.Rank = rank
			return result, nil
		}
	}

	above, err := h.ranking.CountAbove(ctx, period, score)
	if err != nil {
		return nil, fmt.Errorf("count accounts above: %w", err)
	}
	result.Rank = shared.Rank(above + 1)
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE REBUILD
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRebuilder reloads the cache from storage.
type LeaderboardRebuilder struct {
	ranking points.RankingReader
	cache   LeaderboardCache
}

// NewLeaderboardRebuilder creates a LeaderboardRebuilder.
func NewLeaderboardRebuilder(ranking points.RankingReader, cache LeaderboardCache) *LeaderboardRebuilder {
	return &LeaderboardRebuilder{ranking: ranking, cache: cache}
}

// Rebuild replaces the cached period with storage contents and returns the
// number of rows written.
func (r *LeaderboardRebuilder) Rebuild(ctx context.Context, period points.Period) (int, error) {
	rows, err := r.ranking.All(ctx, period)
	if err != nil {
		return 0, fmt.Errorf("load %s standings: %w", period, err)
	}
	if err := r.cache.Replace(ctx, period, rows); err != nil {
		return 0, fmt.Errorf("replace %s cache: %w", period, err)
	}
	return len(rows), nil
}

// RebuildAll rebuilds every period.
func (r *LeaderboardRebuilder) RebuildAll(ctx context.Context) (int, error) {
	total := 0
	for _, p := range points.AllPeriods {
		n, err := r.Rebuild(ctx, p)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
