package points

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

var testNow = time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)

func TestAccount_FreshUserScenario(t *testing.T) {
	acc := NewAccount(1, testNow)

	applied, err := acc.Add(25, SourceBadge, testNow)
	require.NoError(t, err)
	assert.Equal(t, 25, applied)
	assert.Equal(t, 1, acc.Level())
	assert.Equal(t, 25, acc.Total)

	_, err = acc.Add(80, SourceLesson, testNow)
	require.NoError(t, err)
	assert.Equal(t, 105, acc.Total)
	assert.Equal(t, 2, acc.Level())
	assert.Equal(t, "Learner", acc.LevelTitle())
	assert.Equal(t, 195, acc.PointsToNextLevel())
	assert.Equal(t, 2, acc.LevelProgressPercent())
}

func TestAccount_AddKeepsTotalEqualToBreakdown(t *testing.T) {
	acc := NewAccount(1, testNow)
	credits := []struct {
		amount int
		src    Source
	}{
		{5, SourceLesson}, {20, SourceLesson}, {30, SourceQuiz}, {50, SourceStreak},
		{75, SourceBadge}, {15, SourceOther}, {0, SourceQuiz},
	}
	for _, c := range credits {
		_, err := acc.Add(c.amount, c.src, testNow)
		require.NoError(t, err)
		assert.Equal(t, acc.BySource.Sum(), acc.Total)
	}

	assert.Equal(t, 195, acc.Total)
	assert.Equal(t, 25, acc.BySource.Get(SourceLesson))
	assert.Equal(t, 15, acc.BySource.Get(SourceOther))
	assert.LessOrEqual(t, acc.Weekly, acc.Total)
	assert.LessOrEqual(t, acc.Monthly, acc.Total)
}

func TestAccount_AddRejectsBadInput(t *testing.T) {
	acc := NewAccount(1, testNow)

	_, err := acc.Add(-1, SourceLesson, testNow)
	assert.ErrorIs(t, err, shared.ErrNegativeValue)

	_, err = acc.Add(10, Source("bonus"), testNow)
	assert.True(t, shared.IsValidation(err))

	assert.Zero(t, acc.Total)
}

func TestAccount_Resets(t *testing.T) {
	acc := NewAccount(1, testNow)
	_, _ = acc.Add(120, SourceQuiz, testNow)

	today := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	acc.ResetWeekly(today)
	assert.Zero(t, acc.Weekly)
	assert.Equal(t, 120, acc.Monthly)
	require.NotNil(t, acc.LastWeeklyReset)
	assert.Equal(t, today, *acc.LastWeeklyReset)

	acc.ResetMonthly(today)
	assert.Zero(t, acc.Monthly)
	assert.Equal(t, 120, acc.Total)
	assert.Equal(t, acc.BySource.Sum(), acc.Total)
}

func TestAccount_PointsFor(t *testing.T) {
	acc := &Account{Total: 300, Weekly: 40, Monthly: 90}
	assert.Equal(t, 300, acc.PointsFor(PeriodAll))
	assert.Equal(t, 40, acc.PointsFor(PeriodWeekly))
	assert.Equal(t, 90, acc.PointsFor(PeriodMonthly))
}

func TestParsePeriodAndSource(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodAll, p)

	_, err = ParsePeriod("daily")
	assert.True(t, shared.IsValidation(err))

	s, err := ParseSource("streak")
	require.NoError(t, err)
	assert.Equal(t, SourceStreak, s)

	_, err = ParseSource("")
	assert.Error(t, err)
}

func TestAccount_CloneIsDeep(t *testing.T) {
	acc := NewAccount(1, testNow)
	acc.ResetWeekly(testNow)
	c := acc.Clone()
	*c.LastWeeklyReset = testNow.AddDate(0, 0, 7)
	assert.Equal(t, testNow, *acc.LastWeeklyReset)
}
