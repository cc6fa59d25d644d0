package query

import (
	"context"
	"fmt"
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/activity"
	"github.com/rhythmofsigns/progress-engine/internal/domain/badge"
	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/internal/domain/streak"
	"github.com/rhythmofsigns/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER STATS QUERY
// Everything the profile and "my stats" pages show about one learner.
// ══════════════════════════════════════════════════════════════════════════════

// RecentBadgeCount is how many recent badges the stats include.
const RecentBadgeCount = 5

// PointsDTO is an account with its derived level data.
type PointsDTO struct {
	Total           int            `json:"total"`
	Weekly          int            `json:"weekly"`
	Monthly         int            `json:"monthly"`
	BySource        map[string]int `json:"by_source"`
	Level           int            `json:"level"`
	LevelTitle      string         `json:"level_title"`
	PointsToNext    int            `json:"points_to_next_level"`
	ProgressPercent int            `json:"level_progress_percent"`
}

// StreakDTO is the streak state as of today.
type StreakDTO struct {
	Current          int        `json:"current"`
	Longest          int        `json:"longest"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
	FreezesLeft      int        `json:"freezes_left"`
	CanUseFreeze     bool       `json:"can_use_freeze"`
	AtRisk           bool       `json:"at_risk"`
}

// EarnedBadgeDTO is an awarded badge for display.
type EarnedBadgeDTO struct {
	BadgeID     int64     `json:"badge_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	EarnedAt    time.Time `json:"earned_at"`
	IsNew       bool      `json:"is_new"`
}

// UserStatsDTO aggregates a learner's progress.
type UserStatsDTO struct {
	UserID           int64            `json:"user_id"`
	Points           PointsDTO        `json:"points"`
	Streak           StreakDTO        `json:"streak"`
	BadgesEarned     int              `json:"badges_earned"`
	BadgesTotal      int              `json:"badges_total"`
	LessonsCompleted int              `json:"lessons_completed"`
	QuizzesPassed    int              `json:"quizzes_passed"`
	Rank             int              `json:"rank"`
	RecentBadges     []EarnedBadgeDTO `json:"recent_badges"`
}

// StatsQueries answers per-user progress queries.
type StatsQueries struct {
	accounts points.Repository
	ranking  points.RankingReader
	streaks  streak.Repository
	badges   badge.Repository
	catalog  *badge.Catalog
	facts    activity.FactRepository
	daily    activity.Repository
	clock    timeutil.Clock
}

// StatsDeps groups the StatsQueries collaborators.
type StatsDeps struct {
	Accounts points.Repository
	Ranking  points.RankingReader
	Streaks  streak.Repository
	Badges   badge.Repository
	Catalog  *badge.Catalog
	Facts    activity.FactRepository
	Daily    activity.Repository
	Clock    timeutil.Clock
}

// NewStatsQueries creates StatsQueries.
func NewStatsQueries(deps StatsDeps) *StatsQueries {
	return &StatsQueries{
		accounts: deps.Accounts,
		ranking:  deps.Ranking,
		streaks:  deps.Streaks,
		badges:   deps.Badges,
		catalog:  deps.Catalog,
		facts:    deps.Facts,
		daily:    deps.Daily,
		clock:    deps.Clock,
	}
}

// GetUserStats returns the learner's stats. Users without an account get
// zero stats and an unranked position.
func (h *StatsQueries) GetUserStats(ctx context.Context, userID shared.UserID) (*UserStatsDTO, error) {
	if !userID.IsValid() {
		return nil, shared.NewDomainError("stats", "GetUserStats", shared.ErrInvalidID, "invalid user id")
	}
	now := h.clock.Now()
	today := timeutil.DateOf(now)

	acc, err := h.accounts.Get(ctx, userID)
	participating := true
	if shared.IsNotFound(err) {
		acc, participating = points.NewAccount(userID, now), false
	} else if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	st, err := h.streaks.Get(ctx, userID)
	if shared.IsNotFound(err) {
		st = streak.NewState(userID)
	} else if err != nil {
		return nil, fmt.Errorf("load streak: %w", err)
	}

	counters, err := h.facts.Counters(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load counters: %w", err)
	}

	awards, err := h.badges.ListAwards(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("load awards: %w", err)
	}

	stats := &UserStatsDTO{
		UserID:           userID.Int64(),
		Points:           toPointsDTO(acc),
		Streak:           toStreakDTO(st, today),
		BadgesEarned:     len(awards),
		BadgesTotal:      h.catalog.ActiveCount(),
		LessonsCompleted: counters.LessonsCompleted,
		QuizzesPassed:    counters.QuizzesPassed,
	}

	if participating {
		above, err := h.ranking.CountAbove(ctx, points.PeriodAll, acc.Total)
		if err != nil {
			return nil, fmt.Errorf("count accounts above: %w", err)
		}
		stats.Rank = above + 1
	}

	for i, a := range awards {
		if i == RecentBadgeCount {
			break
		}
		def, ok := h.catalog.Get(a.BadgeID)
		if !ok {
			continue
		}
		stats.RecentBadges = append(stats.RecentBadges, EarnedBadgeDTO{
			BadgeID:     int64(def.ID),
			Name:        def.Name,
			Description: def.Description,
			Icon:        def.Icon,
			Color:       def.Color,
			EarnedAt:    a.EarnedAt,
			IsNew:       a.IsNew,
		})
	}
	return stats, nil
}

// GetStreakStatus returns the streak as of today without mutating it.
func (h *StatsQueries) GetStreakStatus(ctx context.Context, userID shared.UserID) (*StreakDTO, error) {
	if !userID.IsValid() {
		return nil, shared.NewDomainError("stats", "GetStreakStatus", shared.ErrInvalidID, "invalid user id")
	}
	st, err := h.streaks.Get(ctx, userID)
	if shared.IsNotFound(err) {
		st = streak.NewState(userID)
	} else if err != nil {
		return nil, fmt.Errorf("load streak: %w", err)
	}
	dto := toStreakDTO(st, timeutil.Today(h.clock))
	return &dto, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Activity
// ─────────────────────────────────────────────────────────────────────────────

// DefaultHistoryDays is the span of the stats page activity list.
const DefaultHistoryDays = 30

// ActivityHistory returns stored daily records from days ago through today,
// ascending. Days without activity are omitted.
func (h *StatsQueries) ActivityHistory(ctx context.Context, userID shared.UserID, days int) ([]activity.Daily, error) {
	if days <= 0 {
		days = DefaultHistoryDays
	}
	today := timeutil.Today(h.clock)
	rows, err := h.daily.Range(ctx, userID, timeutil.AddDays(today, -days), today)
	if err != nil {
		return nil, fmt.Errorf("load activity: %w", err)
	}
	return rows, nil
}

// CalendarDayDTO is one heatmap cell.
type CalendarDayDTO struct {
	Date    string `json:"date"`
	Level   int    `json:"level"`
	Points  int    `json:"points"`
	Lessons int    `json:"lessons"`
	Quizzes int    `json:"quizzes"`
}

// ActivityCalendarDTO is a heatmap of recent weeks.
type ActivityCalendarDTO struct {
	Data            []CalendarDayDTO `json:"data"`
	TotalActiveDays int              `json:"total_active_days"`
	TotalPoints     int              `json:"total_points"`
	Weeks           int              `json:"weeks"`
}

// ActivityCalendar builds a heatmap starting weeks weeks before the current
// week's Monday. weeks is capped at 52.
func (h *StatsQueries) ActivityCalendar(ctx context.Context, userID shared.UserID, weeks int) (*ActivityCalendarDTO, error) {
	if weeks <= 0 || weeks > activity.MaxCalendarWeeks {
		weeks = activity.MaxCalendarWeeks
	}
	today := timeutil.Today(h.clock)
	stored, err := h.daily.Range(ctx, userID, activity.CalendarStart(today, weeks), today)
	if err != nil {
		return nil, fmt.Errorf("load activity: %w", err)
	}

	cal := activity.BuildCalendar(userID, stored, today, weeks)
	dto := &ActivityCalendarDTO{
		Data:            make([]CalendarDayDTO, 0, len(cal.Days)),
		TotalActiveDays: cal.TotalActiveDays,
		TotalPoints:     cal.TotalPoints,
		Weeks:           cal.Weeks,
	}
	for i := range cal.Days {
		d := &cal.Days[i]
		dto.Data = append(dto.Data, CalendarDayDTO{
			Date:    timeutil.FormatDate(d.Date),
			Level:   d.Intensity(),
			Points:  d.PointsEarned,
			Lessons: d.LessonsCompleted,
			Quizzes: d.QuizzesPassed,
		})
	}
	return dto, nil
}

func toPointsDTO(a *points.Account) PointsDTO {
	by := make(map[string]int, len(points.AllSources))
	for _, src := range points.AllSources {
		by[src.String()] = a.BySource.Get(src)
	}
	return PointsDTO{
		Total:           a.Total,
		Weekly:          a.Weekly,
		Monthly:         a.Monthly,
		BySource:        by,
		Level:           a.Level(),
		LevelTitle:      a.LevelTitle(),
		PointsToNext:    a.PointsToNextLevel(),
		ProgressPercent: a.LevelProgressPercent(),
	}
}

func toStreakDTO(s *streak.State, today time.Time) StreakDTO {
	return StreakDTO{
		Current:          s.CurrentStreak,
		Longest:          s.LongestStreak,
		LastActivityDate: s.LastActivityDate,
		FreezesLeft:      s.FreezesAvailable(today),
		CanUseFreeze:     s.CanUseFreezeToday(today),
		AtRisk:           s.IsAtRisk(today),
	}
}
