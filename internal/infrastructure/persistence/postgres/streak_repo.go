package postgres

import (
	"context"
	"fmt"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/internal/domain/streak"
)

// StreakRepository implements streak.Repository for PostgreSQL.
type StreakRepository struct {
	q Querier
}

// Get implements streak.Repository.
func (r *StreakRepository) Get(ctx context.Context, userID shared.UserID) (*streak.State, error) {
	var (
		s  streak.State
		id int64
	)
	err := r.q.QueryRow(ctx, `
		SELECT user_id, current_streak, longest_streak, last_activity_date, streak_started_at,
		       freeze_count, freeze_used_date, freeze_last_reset, updated_at
		FROM streaks
		WHERE user_id = $1
	`, userID.Int64()).Scan(
		&id, &s.CurrentStreak, &s.LongestStreak, &s.LastActivityDate, &s.StreakStartedAt,
		&s.FreezeCount, &s.FreezeUsedDate, &s.FreezeLastReset, &s.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrStreakNotFound
	}
	if err != nil {
		return nil, storageError("GetStreak", fmt.Errorf("get streak: %w", err))
	}
	s.UserID = shared.UserID(id)
	return &s, nil
}

// Ensure implements streak.Repository.
func (r *StreakRepository) Ensure(ctx context.Context, userID shared.UserID) (*streak.State, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO streaks (user_id, freeze_count)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID.Int64(), streak.MonthlyFreezeQuota)
	if err != nil {
		return nil, storageError("EnsureStreak", fmt.Errorf("ensure streak: %w", err))
	}
	return r.Get(ctx, userID)
}

// Save implements streak.Repository.
func (r *StreakRepository) Save(ctx context.Context, s *streak.State) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO streaks (
			user_id, current_streak, longest_streak, last_activity_date, streak_started_at,
			freeze_count, freeze_used_date, freeze_last_reset, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			last_activity_date = EXCLUDED.last_activity_date,
			streak_started_at = EXCLUDED.streak_started_at,
			freeze_count = EXCLUDED.freeze_count,
			freeze_used_date = EXCLUDED.freeze_used_date,
			freeze_last_reset = EXCLUDED.freeze_last_reset,
			updated_at = EXCLUDED.updated_at
	`,
		s.UserID.Int64(), s.CurrentStreak, s.LongestStreak, s.LastActivityDate, s.StreakStartedAt,
		s.FreezeCount, s.FreezeUsedDate, s.FreezeLastReset, s.UpdatedAt,
	)
	if err != nil {
		return storageError("SaveStreak", fmt.Errorf("save streak: %w", err))
	}
	return nil
}
