package activity

import (
	"github.com/rhythmofsigns/progress-engine/internal/domain/badge"
)

// Counters are the cumulative learner facts badge rules read.
type Counters struct {
	LessonsCompleted   int
	QuizzesPassed      int
	PerfectQuizzes     int
	SavedLessons       int
	ForumPosts         int
	CategoriesExplored int
	StreakDays         int
}

// Value returns the counter behind a requirement. Time-of-day requirements
// have no counter and report false.
func (c Counters) Value(req badge.Requirement) (int, bool) {
	switch req {
	case badge.RequirementLessonsCompleted:
		return c.LessonsCompleted, true
	case badge.RequirementQuizzesPassed:
		return c.QuizzesPassed, true
	case badge.RequirementPerfectQuiz:
		return c.PerfectQuizzes, true
	case badge.RequirementSavedLessons:
		return c.SavedLessons, true
	case badge.RequirementForumPosts:
		return c.ForumPosts, true
	case badge.RequirementCategoriesExplored:
		return c.CategoriesExplored, true
	case badge.RequirementStreakDays:
		return c.StreakDays, true
	}
	return 0, false
}
