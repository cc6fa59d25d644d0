package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/activity"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY ACTIVITY
// ══════════════════════════════════════════════════════════════════════════════

// ActivityRepository implements activity.Repository for PostgreSQL.
type ActivityRepository struct {
	q Querier
}

const dailyColumns = `
	user_id, activity_date, lessons_viewed, lessons_completed, quizzes_taken,
	quizzes_passed, flashcards_reviewed, points_earned, time_spent_minutes`

// Increment implements activity.Repository.
func (r *ActivityRepository) Increment(ctx context.Context, userID shared.UserID, date time.Time, kind activity.Kind, n int) error {
	if !kind.IsValid() {
		return shared.NewDomainError("activity", "Increment", shared.ErrInvalidInput, "unknown activity kind")
	}
	if n < 0 {
		return shared.NewDomainError("activity", "Increment", shared.ErrNegativeValue, "increment cannot be negative")
	}
	// Column comes from a closed set of names.
	col := kind.Column()
	query := fmt.Sprintf(`
		INSERT INTO daily_activities (user_id, activity_date, %[1]s)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, activity_date)
		DO UPDATE SET %[1]s = daily_activities.%[1]s + EXCLUDED.%[1]s
	`, col)
	if _, err := r.q.Exec(ctx, query, userID.Int64(), timeutil.DateOf(date), n); err != nil {
		return storageError("IncrementActivity", fmt.Errorf("increment %s: %w", col, err))
	}
	return nil
}

// Get implements activity.Repository.
func (r *ActivityRepository) Get(ctx context.Context, userID shared.UserID, date time.Time) (*activity.Daily, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+dailyColumns+` FROM daily_activities WHERE user_id = $1 AND activity_date = $2`,
		userID.Int64(), timeutil.DateOf(date),
	)
	if err != nil {
		return nil, storageError("GetActivity", fmt.Errorf("get daily activity: %w", err))
	}
	days, err := scanDays(rows)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, shared.NewDomainError("activity", "Get", shared.ErrNotFound, "no activity on date")
	}
	return &days[0], nil
}

// Range implements activity.Repository.
func (r *ActivityRepository) Range(ctx context.Context, userID shared.UserID, from, to time.Time) ([]activity.Daily, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+dailyColumns+`
		FROM daily_activities
		WHERE user_id = $1 AND activity_date BETWEEN $2 AND $3
		ORDER BY activity_date
	`, userID.Int64(), timeutil.DateOf(from), timeutil.DateOf(to))
	if err != nil {
		return nil, storageError("RangeActivity", fmt.Errorf("range daily activity: %w", err))
	}
	return scanDays(rows)
}

type dayRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

func scanDays(rows dayRows) ([]activity.Daily, error) {
	defer rows.Close()
	var out []activity.Daily
	for rows.Next() {
		var (
			d      activity.Daily
			userID int64
		)
		err := rows.Scan(&userID, &d.Date, &d.LessonsViewed, &d.LessonsCompleted, &d.QuizzesTaken,
			&d.QuizzesPassed, &d.FlashcardsReviewed, &d.PointsEarned, &d.TimeSpentMinutes)
		if err != nil {
			return nil, fmt.Errorf("scan daily activity: %w", err)
		}
		d.UserID = shared.UserID(userID)
		d.Date = timeutil.DateOf(d.Date)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("ScanActivity", err)
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER FACTS
// ══════════════════════════════════════════════════════════════════════════════

// FactRepository implements activity.FactRepository for PostgreSQL.
type FactRepository struct {
	q Querier
}

// RecordLessonCompleted implements activity.FactRepository.
func (r *FactRepository) RecordLessonCompleted(ctx context.Context, userID shared.UserID, lessonID shared.LessonID, category string, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO completed_lessons (user_id, lesson_id, category, completed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, lesson_id) DO NOTHING
	`, userID.Int64(), int64(lessonID), category, at)
	if err != nil {
		return false, storageError("RecordLesson", fmt.Errorf("record completed lesson: %w", err))
	}
	return tag.RowsAffected() == 1, nil
}

// RecordQuizPassed implements activity.FactRepository.
func (r *FactRepository) RecordQuizPassed(ctx context.Context, userID shared.UserID, perfect bool) error {
	perfectInc := 0
	if perfect {
		perfectInc = 1
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO learner_counters (user_id, quizzes_passed, perfect_quizzes)
		VALUES ($1, 1, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			quizzes_passed = learner_counters.quizzes_passed + 1,
			perfect_quizzes = learner_counters.perfect_quizzes + EXCLUDED.perfect_quizzes
	`, userID.Int64(), perfectInc)
	if err != nil {
		return storageError("RecordQuiz", fmt.Errorf("record passed quiz: %w", err))
	}
	return nil
}

// RecordForumPost implements activity.FactRepository.
func (r *FactRepository) RecordForumPost(ctx context.Context, userID shared.UserID) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO learner_counters (user_id, forum_posts)
		VALUES ($1, 1)
		ON CONFLICT (user_id) DO UPDATE SET forum_posts = learner_counters.forum_posts + 1
	`, userID.Int64())
	if err != nil {
		return storageError("RecordForumPost", fmt.Errorf("record forum post: %w", err))
	}
	return nil
}

// SetLessonSaved implements activity.FactRepository.
func (r *FactRepository) SetLessonSaved(ctx context.Context, userID shared.UserID, lessonID shared.LessonID, saved bool) error {
	var err error
	if saved {
		_, err = r.q.Exec(ctx, `
			INSERT INTO saved_lessons (user_id, lesson_id) VALUES ($1, $2)
			ON CONFLICT (user_id, lesson_id) DO NOTHING
		`, userID.Int64(), int64(lessonID))
	} else {
		_, err = r.q.Exec(ctx,
			`DELETE FROM saved_lessons WHERE user_id = $1 AND lesson_id = $2`,
			userID.Int64(), int64(lessonID),
		)
	}
	if err != nil {
		return storageError("SetLessonSaved", fmt.Errorf("set saved lesson: %w", err))
	}
	return nil
}

// Counters implements activity.FactRepository.
func (r *FactRepository) Counters(ctx context.Context, userID shared.UserID) (activity.Counters, error) {
	var c activity.Counters
	err := r.q.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM completed_lessons WHERE user_id = $1),
			(SELECT COUNT(DISTINCT category) FROM completed_lessons WHERE user_id = $1 AND category <> ''),
			(SELECT COUNT(*) FROM saved_lessons WHERE user_id = $1),
			COALESCE((SELECT quizzes_passed FROM learner_counters WHERE user_id = $1), 0),
			COALESCE((SELECT perfect_quizzes FROM learner_counters WHERE user_id = $1), 0),
			COALESCE((SELECT forum_posts FROM learner_counters WHERE user_id = $1), 0)
	`, userID.Int64()).Scan(
		&c.LessonsCompleted, &c.CategoriesExplored, &c.SavedLessons,
		&c.QuizzesPassed, &c.PerfectQuizzes, &c.ForumPosts,
	)
	if err != nil {
		return activity.Counters{}, storageError("Counters", fmt.Errorf("load learner counters: %w", err))
	}
	return c, nil
}
