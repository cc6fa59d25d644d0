package activity

import (
	"context"
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// Repository defines the interface for daily activity persistence.
// This interface is implemented by the infrastructure layer.
type Repository interface {
	// Increment adds n to one counter of (user, date), creating the row on
	// first activity of the day.
	Increment(ctx context.Context, userID shared.UserID, date time.Time, kind Kind, n int) error

	// Get returns the record for (user, date) or shared.ErrNotFound.
	Get(ctx context.Context, userID shared.UserID, date time.Time) (*Daily, error)

	// Range returns stored records with from <= date <= to, ascending.
	Range(ctx context.Context, userID shared.UserID, from, to time.Time) ([]Daily, error)
}

// FactRepository records the learner facts behind badge counters. Lesson
// completions and saves are sets keyed by lesson, so replays do not inflate
// counts; quiz and post counters count every event.
type FactRepository interface {
	// RecordLessonCompleted marks a lesson completed in a category. It
	// returns false if the lesson was already recorded.
	RecordLessonCompleted(ctx context.Context, userID shared.UserID, lessonID shared.LessonID, category string, at time.Time) (bool, error)

	// RecordQuizPassed counts a passed attempt, and a perfect one when perfect.
	RecordQuizPassed(ctx context.Context, userID shared.UserID, perfect bool) error

	// RecordForumPost counts a created forum thread.
	RecordForumPost(ctx context.Context, userID shared.UserID) error

	// SetLessonSaved adds or removes a bookmark.
	SetLessonSaved(ctx context.Context, userID shared.UserID, lessonID shared.LessonID, saved bool) error

	// Counters returns the current facts. StreakDays is left zero; the
	// streak repository owns it.
	Counters(ctx context.Context, userID shared.UserID) (Counters, error)
}
