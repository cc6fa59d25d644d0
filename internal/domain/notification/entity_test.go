package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

var now = time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)

func TestFactories(t *testing.T) {
	lvl := LevelUp(7, 2, "Learner", now)
	assert.Equal(t, TypeLevelUp, lvl.Type)
	assert.Equal(t, "Level Up! You are now Level 2", lvl.Title)
	assert.Equal(t, "Congratulations! You've reached the rank of Learner!", lvl.Message)
	assert.Equal(t, "fa-arrow-up", lvl.Icon)
	assert.Equal(t, "success", lvl.Color)

	st := StreakMilestone(7, 7, 50, now)
	assert.Equal(t, "7-Day Streak!", st.Title)
	assert.Equal(t, "Amazing! You've maintained a 7-day learning streak! +50 XP", st.Message)
	assert.Equal(t, "warning", st.Color)

	b := BadgeEarned(7, "First Steps", "Complete your first lesson", "fa-book", "bronze", 25, now)
	assert.Equal(t, "Badge Earned: First Steps", b.Title)
	assert.Equal(t, "Complete your first lesson. +25 XP", b.Message)
	assert.Equal(t, AchievementsLink, b.Link)
	assert.False(t, b.IsRead)

	c := Custom(7, TypeReminder, "Keep going", "", "", "", "", now)
	assert.Equal(t, DefaultIcon, c.Icon)
	assert.Equal(t, DefaultColor, c.Color)
}

func TestValidate(t *testing.T) {
	n := LevelUp(7, 2, "Learner", now)
	require.NoError(t, n.Validate())

	n.UserID = 0
	assert.True(t, shared.IsValidation(n.Validate()))

	n = LevelUp(7, 2, "Learner", now)
	n.Type = "party"
	assert.True(t, shared.IsValidation(n.Validate()))
}

func TestSinkFunc(t *testing.T) {
	var got Notification
	boom := errors.New("down")
	sink := SinkFunc(func(_ context.Context, n Notification) error {
		got = n
		return boom
	})

	err := sink.Emit(context.Background(), LevelUp(1, 3, "Student", now))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, TypeLevelUp, got.Type)
}
