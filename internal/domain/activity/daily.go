// Package activity contains per-day learning activity records and the
// cumulative learner facts that badge rules are evaluated against.
package activity

import (
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/pkg/timeutil"
)

// Kind names a daily counter.
type Kind string

const (
	KindLessonView     Kind = "lesson_view"
	KindLessonComplete Kind = "lesson_complete"
	KindQuizTaken      Kind = "quiz_taken"
	KindQuizPassed     Kind = "quiz_passed"
	KindFlashcard      Kind = "flashcard"
	KindPoints         Kind = "points"
	KindTimeSpent      Kind = "time_spent"
)

// IsValid checks the kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindLessonView, KindLessonComplete, KindQuizTaken, KindQuizPassed,
		KindFlashcard, KindPoints, KindTimeSpent:
		return true
	}
	return false
}

// Column returns the storage column backing the counter.
func (k Kind) Column() string {
	switch k {
	case KindLessonView:
		return "lessons_viewed"
	case KindLessonComplete:
		return "lessons_completed"
	case KindQuizTaken:
		return "quizzes_taken"
	case KindQuizPassed:
		return "quizzes_passed"
	case KindFlashcard:
		return "flashcards_reviewed"
	case KindPoints:
		return "points_earned"
	case KindTimeSpent:
		return "time_spent_minutes"
	}
	return ""
}

// Daily is one user's activity on one calendar date.
type Daily struct {
	UserID             shared.UserID
	Date               time.Time
	LessonsViewed      int
	LessonsCompleted   int
	QuizzesTaken       int
	QuizzesPassed      int
	FlashcardsReviewed int
	PointsEarned       int
	TimeSpentMinutes   int
}

// NewDaily creates an empty record for date.
func NewDaily(userID shared.UserID, date time.Time) *Daily {
	return &Daily{UserID: userID, Date: timeutil.DateOf(date)}
}

// Increment adds n to the counter of kind.
func (d *Daily) Increment(kind Kind, n int) error {
	if !kind.IsValid() {
		return shared.NewDomainError("activity", "Increment", shared.ErrInvalidInput, "unknown activity kind")
	}
	if n < 0 {
		return shared.NewDomainError("activity", "Increment", shared.ErrNegativeValue, "increment cannot be negative")
	}
	switch kind {
	case KindLessonView:
		d.LessonsViewed += n
	case KindLessonComplete:
		d.LessonsCompleted += n
	case KindQuizTaken:
		d.QuizzesTaken += n
	case KindQuizPassed:
		d.QuizzesPassed += n
	case KindFlashcard:
		d.FlashcardsReviewed += n
	case KindPoints:
		d.PointsEarned += n
	case KindTimeSpent:
		d.TimeSpentMinutes += n
	}
	return nil
}

// Actions returns the number of learning actions, excluding points and time.
func (d *Daily) Actions() int {
	return d.LessonsViewed + d.LessonsCompleted + d.QuizzesTaken + d.FlashcardsReviewed
}

// Intensity buckets the day's points into 0..4 for heatmaps.
func (d *Daily) Intensity() int {
	switch p := d.PointsEarned; {
	case p <= 0:
		return 0
	case p < 20:
		return 1
	case p < 50:
		return 2
	case p < 100:
		return 3
	default:
		return 4
	}
}

// FillRange returns one record per date in [from, to], using stored records
// where present and empty ones otherwise.
func FillRange(userID shared.UserID, stored []Daily, from, to time.Time) []Daily {
	byDate := make(map[time.Time]Daily, len(stored))
	for _, d := range stored {
		byDate[timeutil.DateOf(d.Date)] = d
	}
	var out []Daily
	for day := timeutil.DateOf(from); !day.After(timeutil.DateOf(to)); day = timeutil.AddDays(day, 1) {
		if d, ok := byDate[day]; ok {
			out = append(out, d)
			continue
		}
		out = append(out, *NewDaily(userID, day))
	}
	return out
}

// MaxCalendarWeeks caps how far back an activity calendar reaches.
const MaxCalendarWeeks = 52

// Calendar is a GitHub-style activity heatmap.
type Calendar struct {
	Days            []Daily
	Weeks           int
	TotalActiveDays int
	TotalPoints     int
}

// CalendarStart returns the Monday weeks weeks before today's week.
func CalendarStart(today time.Time, weeks int) time.Time {
	return timeutil.AddDays(timeutil.StartOfWeek(today), -weeks*7)
}

// BuildCalendar fills the range from CalendarStart to today and totals it.
func BuildCalendar(userID shared.UserID, stored []Daily, today time.Time, weeks int) Calendar {
	if weeks <= 0 || weeks > MaxCalendarWeeks {
		weeks = MaxCalendarWeeks
	}
	days := FillRange(userID, stored, CalendarStart(today, weeks), today)
	cal := Calendar{Days: days, Weeks: weeks}
	for i := range days {
		if days[i].Intensity() > 0 {
			cal.TotalActiveDays++
		}
		cal.TotalPoints += days[i].PointsEarned
	}
	return cal
}
