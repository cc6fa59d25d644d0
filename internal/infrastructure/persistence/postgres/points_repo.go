package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// POINT ACCOUNT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// PointRepository implements points.Repository for PostgreSQL.
type PointRepository struct {
	q Querier

	// lock reads rows FOR UPDATE so a period reset cannot interleave with a
	// cascade's read-modify-write of the same account.
	lock bool
}

// NewPointRepository creates a PointRepository.
func NewPointRepository(conn *Connection) *PointRepository {
	return &PointRepository{q: conn}
}

const accountColumns = `
	user_id, total_points, weekly_points, monthly_points,
	lesson_points, quiz_points, streak_points, badge_points, other_points,
	last_weekly_reset, last_monthly_reset, created_at, updated_at`

// Get implements points.Repository.
func (r *PointRepository) Get(ctx context.Context, userID shared.UserID) (*points.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM point_accounts WHERE user_id = $1`
	if r.lock {
		query += ` FOR UPDATE`
	}
	acc, err := scanAccount(r.q.QueryRow(ctx, query, userID.Int64()))
	if IsNoRows(err) {
		return nil, shared.ErrAccountNotFound
	}
	if err != nil {
		return nil, storageError("GetAccount", fmt.Errorf("get point account: %w", err))
	}
	return acc, nil
}

// Ensure implements points.Repository.
func (r *PointRepository) Ensure(ctx context.Context, userID shared.UserID, now time.Time) (*points.Account, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO point_accounts (user_id, created_at, updated_at)
		VALUES ($1, $2, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID.Int64(), now)
	if err != nil {
		return nil, storageError("EnsureAccount", fmt.Errorf("ensure point account: %w", err))
	}
	return r.Get(ctx, userID)
}

// Save implements points.Repository.
func (r *PointRepository) Save(ctx context.Context, a *points.Account) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE point_accounts SET
			total_points = $1,
			weekly_points = $2,
			monthly_points = $3,
			lesson_points = $4,
			quiz_points = $5,
			streak_points = $6,
			badge_points = $7,
			other_points = $8,
			last_weekly_reset = $9,
			last_monthly_reset = $10,
			updated_at = $11
		WHERE user_id = $12
	`,
		a.Total, a.Weekly, a.Monthly,
		a.BySource.Lesson, a.BySource.Quiz, a.BySource.Streak, a.BySource.Badge, a.BySource.Other,
		a.LastWeeklyReset, a.LastMonthlyReset, a.UpdatedAt,
		a.UserID.Int64(),
	)
	if err != nil {
		if IsCheckViolation(err) {
			return shared.WrapError("points", "Save", shared.ErrInvalidState, "account counters out of balance", err)
		}
		return storageError("SaveAccount", fmt.Errorf("save point account: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

// ResetWeekly implements points.Repository.
func (r *PointRepository) ResetWeekly(ctx context.Context, today time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE point_accounts
		SET weekly_points = 0, last_weekly_reset = $1, updated_at = NOW()
	`, today)
	if err != nil {
		return 0, storageError("ResetWeekly", fmt.Errorf("reset weekly points: %w", err))
	}
	return tag.RowsAffected(), nil
}

// ResetMonthly implements points.Repository.
func (r *PointRepository) ResetMonthly(ctx context.Context, today time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE point_accounts
		SET monthly_points = 0, last_monthly_reset = $1, updated_at = NOW()
	`, today)
	if err != nil {
		return 0, storageError("ResetMonthly", fmt.Errorf("reset monthly points: %w", err))
	}
	return tag.RowsAffected(), nil
}

func scanAccount(row pgx.Row) (*points.Account, error) {
	var (
		a      points.Account
		userID int64
	)
	err := row.Scan(
		&userID, &a.Total, &a.Weekly, &a.Monthly,
		&a.BySource.Lesson, &a.BySource.Quiz, &a.BySource.Streak, &a.BySource.Badge, &a.BySource.Other,
		&a.LastWeeklyReset, &a.LastMonthlyReset, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.UserID = shared.UserID(userID)
	return &a, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

// RankingRepository implements points.RankingReader for PostgreSQL.
type RankingRepository struct {
	q Querier
}

// periodColumn maps a period to its counter column. Only these fixed names
// reach query text.
func periodColumn(p points.Period) string {
	switch p {
	case points.PeriodWeekly:
		return "weekly_points"
	case points.PeriodMonthly:
		return "monthly_points"
	default:
		return "total_points"
	}
}

// Top implements points.RankingReader.
func (r *RankingRepository) Top(ctx context.Context, period points.Period, limit int) ([]points.Standing, error) {
	col := periodColumn(period)
	query := fmt.Sprintf(`
		SELECT user_id, %[1]s, total_points
		FROM point_accounts
		ORDER BY %[1]s DESC, user_id
		LIMIT $1
	`, col)
	return r.standings(ctx, query, limit)
}

// All implements points.RankingReader.
func (r *RankingRepository) All(ctx context.Context, period points.Period) ([]points.Standing, error) {
	col := periodColumn(period)
	query := fmt.Sprintf(`
		SELECT user_id, %[1]s, total_points
		FROM point_accounts
		ORDER BY %[1]s DESC, user_id
	`, col)
	return r.standings(ctx, query)
}

// CountAbove implements points.RankingReader.
func (r *RankingRepository) CountAbove(ctx context.Context, period points.Period, score int) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM point_accounts WHERE %s > $1`, periodColumn(period))
	var n int
	if err := r.q.QueryRow(ctx, query, score).Scan(&n); err != nil {
		return 0, storageError("CountAbove", fmt.Errorf("count accounts above: %w", err))
	}
	return n, nil
}

func (r *RankingRepository) standings(ctx context.Context, query string, args ...any) ([]points.Standing, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, storageError("Ranking", fmt.Errorf("query standings: %w", err))
	}
	defer rows.Close()

	var out []points.Standing
	for rows.Next() {
		var (
			s      points.Standing
			userID int64
		)
		if err := rows.Scan(&userID, &s.Points, &s.Total); err != nil {
			return nil, fmt.Errorf("scan standing: %w", err)
		}
		s.UserID = shared.UserID(userID)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("Ranking", err)
	}
	return out, nil
}
