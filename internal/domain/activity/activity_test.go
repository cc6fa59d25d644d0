package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmofsigns/progress-engine/internal/domain/badge"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/pkg/timeutil"
)

func TestDaily_Increment(t *testing.T) {
	d := NewDaily(1, timeutil.Date(2024, 1, 8))

	require.NoError(t, d.Increment(KindLessonView, 1))
	require.NoError(t, d.Increment(KindLessonView, 1))
	require.NoError(t, d.Increment(KindQuizTaken, 1))
	require.NoError(t, d.Increment(KindPoints, 35))

	assert.Equal(t, 2, d.LessonsViewed)
	assert.Equal(t, 1, d.QuizzesTaken)
	assert.Equal(t, 35, d.PointsEarned)
	assert.Equal(t, 3, d.Actions())

	assert.True(t, shared.IsValidation(d.Increment(Kind("nap"), 1)))
	assert.True(t, shared.IsValidation(d.Increment(KindFlashcard, -1)))
}

func TestKind_Column(t *testing.T) {
	for _, k := range []Kind{KindLessonView, KindLessonComplete, KindQuizTaken, KindQuizPassed, KindFlashcard, KindPoints, KindTimeSpent} {
		assert.NotEmpty(t, k.Column(), k)
	}
	assert.Empty(t, Kind("x").Column())
}

func TestDaily_Intensity(t *testing.T) {
	tests := map[int]int{0: 0, 1: 1, 19: 1, 20: 2, 49: 2, 50: 3, 99: 3, 100: 4, 500: 4}
	for points, want := range tests {
		d := Daily{PointsEarned: points}
		assert.Equal(t, want, d.Intensity(), "points=%d", points)
	}
}

func TestFillRange(t *testing.T) {
	stored := []Daily{
		{UserID: 1, Date: timeutil.Date(2024, 1, 2), PointsEarned: 10},
		{UserID: 1, Date: timeutil.Date(2024, 1, 4), PointsEarned: 60},
	}
	days := FillRange(1, stored, timeutil.Date(2024, 1, 1), timeutil.Date(2024, 1, 5))

	require.Len(t, days, 5)
	assert.Equal(t, timeutil.Date(2024, 1, 1), days[0].Date)
	assert.Equal(t, 10, days[1].PointsEarned)
	assert.Equal(t, 0, days[2].PointsEarned)
	assert.Equal(t, 60, days[3].PointsEarned)
	assert.Equal(t, timeutil.Date(2024, 1, 5), days[4].Date)
}

func TestBuildCalendar(t *testing.T) {
	today := timeutil.Date(2024, 1, 10) // Wednesday
	stored := []Daily{
		{UserID: 1, Date: timeutil.Date(2024, 1, 9), PointsEarned: 25},
		{UserID: 1, Date: timeutil.Date(2024, 1, 10), PointsEarned: 5},
	}

	cal := BuildCalendar(1, stored, today, 1)

	assert.Equal(t, timeutil.Date(2024, 1, 1), CalendarStart(today, 1))
	assert.Len(t, cal.Days, 10)
	assert.Equal(t, 2, cal.TotalActiveDays)
	assert.Equal(t, 30, cal.TotalPoints)
	assert.Equal(t, MaxCalendarWeeks, BuildCalendar(1, nil, today, 500).Weeks)
}

func TestCounters_Value(t *testing.T) {
	c := Counters{LessonsCompleted: 3, QuizzesPassed: 2, PerfectQuizzes: 1, SavedLessons: 4, ForumPosts: 5, CategoriesExplored: 6, StreakDays: 7}

	for req, want := range map[badge.Requirement]int{
		badge.RequirementLessonsCompleted:   3,
		badge.RequirementQuizzesPassed:      2,
		badge.RequirementPerfectQuiz:        1,
		badge.RequirementSavedLessons:       4,
		badge.RequirementForumPosts:         5,
		badge.RequirementCategoriesExplored: 6,
		badge.RequirementStreakDays:         7,
	} {
		got, ok := c.Value(req)
		assert.True(t, ok, req)
		assert.Equal(t, want, got, req)
	}

	_, ok := c.Value(badge.RequirementEarlyLearner)
	assert.False(t, ok)
}
