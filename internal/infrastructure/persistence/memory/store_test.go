package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmofsigns/progress-engine/internal/application/command"
	"github.com/rhythmofsigns/progress-engine/internal/domain/activity"
	"github.com/rhythmofsigns/progress-engine/internal/domain/badge"
	"github.com/rhythmofsigns/progress-engine/internal/domain/notification"
	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/review"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/pkg/timeutil"
)

var now = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

func addPoints(t *testing.T, s *Store, user shared.UserID, amount int) {
	t.Helper()
	ctx := context.Background()
	acc, err := s.Points().Ensure(ctx, user, now)
	require.NoError(t, err)
	_, err = acc.Add(amount, points.SourceLesson, now)
	require.NoError(t, err)
	require.NoError(t, s.Points().Save(ctx, acc))
}

func TestWithin_RestoresSnapshotOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	addPoints(t, s, 1, 10)

	err := s.Within(ctx, 1, func(ctx context.Context, tx command.Store) error {
		acc, err := tx.Points().Get(ctx, 1)
		require.NoError(t, err)
		_, _ = acc.Add(90, points.SourceQuiz, now)
		require.NoError(t, tx.Points().Save(ctx, acc))
		_, err = tx.Facts().RecordLessonCompleted(ctx, 1, 5, "numbers", now)
		require.NoError(t, err)
		return errors.New("boom")
	})
	require.Error(t, err)

	acc, err := s.Points().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, acc.Total)

	counters, err := s.Facts().Counters(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, counters.LessonsCompleted)
}

func TestWithin_RestoresSnapshotOnPanic(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.Within(ctx, 2, func(ctx context.Context, tx command.Store) error {
			_, err := tx.Points().Ensure(ctx, 2, now)
			require.NoError(t, err)
			panic("cascade bug")
		})
	})

	_, err := s.Points().Get(ctx, 2)
	assert.True(t, shared.IsNotFound(err))

	// The lock was released.
	err = s.Within(ctx, 2, func(context.Context, command.Store) error { return nil })
	assert.NoError(t, err)
}

func TestWithin_LockHonorsContext(t *testing.T) {
	s := NewStore()
	held := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = s.Within(context.Background(), 3, func(context.Context, command.Store) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Within(ctx, 3, func(context.Context, command.Store) error { return nil })
	assert.ErrorIs(t, err, shared.ErrTimeout)

	// Other users are not blocked.
	err = s.Within(context.Background(), 4, func(context.Context, command.Store) error { return nil })
	assert.NoError(t, err)
	close(release)
}

func TestPointRepo_Reset(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	addPoints(t, s, 1, 30)
	addPoints(t, s, 2, 50)
	today := timeutil.Date(2024, time.March, 4)

	n, err := s.Points().ResetWeekly(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	acc, err := s.Points().Get(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, acc.Weekly)
	assert.Equal(t, 50, acc.Monthly)
	assert.Equal(t, 50, acc.Total)
}

func TestRankingRepo(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	addPoints(t, s, 1, 30)
	addPoints(t, s, 2, 50)
	addPoints(t, s, 3, 30)
	_, err := s.Streaks().Ensure(ctx, 4) // no account, not ranked
	require.NoError(t, err)

	top, err := s.Ranking().Top(ctx, points.PeriodAll, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, shared.UserID(2), top[0].UserID)
	assert.Equal(t, shared.UserID(1), top[1].UserID)

	all, err := s.Ranking().All(ctx, points.PeriodWeekly)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	above, err := s.Ranking().CountAbove(ctx, points.PeriodAll, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, above)
}

func TestReviewRepo_DueOrdering(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	today := timeutil.Date(2024, time.March, 10)

	mk := func(vocab shared.VocabularyID, lesson shared.LessonID, next *time.Time) {
		c, err := s.Reviews().GetOrCreate(ctx, review.NewCard(1, vocab, lesson, now))
		require.NoError(t, err)
		c.NextReviewDate = next
		require.NoError(t, s.Reviews().Save(ctx, c))
	}
	mk(1, 1, timeutil.DatePtr(timeutil.Date(2024, time.March, 9)))
	mk(2, 1, nil)
	mk(3, 2, timeutil.DatePtr(timeutil.Date(2024, time.March, 5)))
	mk(4, 1, timeutil.DatePtr(timeutil.Date(2024, time.March, 11)))

	due, err := s.Reviews().Due(ctx, 1, today, review.DueFilter{})
	require.NoError(t, err)
	ids := make([]shared.VocabularyID, 0, len(due))
	for _, c := range due {
		ids = append(ids, c.VocabularyID)
	}
	assert.Equal(t, []shared.VocabularyID{2, 3, 1}, ids)

	due, err = s.Reviews().Due(ctx, 1, today, review.DueFilter{LessonID: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, shared.VocabularyID(2), due[0].VocabularyID)

	_, err = s.Reviews().GetOrCreate(ctx, review.NewCard(1, 1, 9, now))
	require.NoError(t, err)
	c, err := s.Reviews().Get(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, shared.LessonID(1), c.LessonID, "existing card is returned unchanged")
}

func TestBadgeRepo(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	n, err := s.Badges().SeedDefinitions(ctx, badge.DefaultCatalog())
	require.NoError(t, err)
	assert.Equal(t, 18, n)
	n, err = s.Badges().SeedDefinitions(ctx, badge.DefaultCatalog())
	require.NoError(t, err)
	assert.Zero(t, n)

	ok, err := s.Badges().InsertAward(ctx, &badge.Award{UserID: 1, BadgeID: 3, EarnedAt: now, IsNew: true})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Badges().InsertAward(ctx, &badge.Award{UserID: 1, BadgeID: 3, EarnedAt: now, IsNew: true})
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = s.Badges().InsertAward(ctx, &badge.Award{UserID: 1, BadgeID: 5, EarnedAt: now.Add(time.Minute), IsNew: true})
	require.NoError(t, err)

	awards, err := s.Badges().ListAwards(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, awards, 2)
	assert.Equal(t, shared.BadgeID(5), awards[0].BadgeID)
	assert.NotEmpty(t, awards[0].ID)

	seen, err := s.Badges().MarkSeen(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), seen)
}

func TestActivityRepo(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	d1 := timeutil.Date(2024, time.March, 1)
	d2 := timeutil.Date(2024, time.March, 3)

	require.NoError(t, s.Activity().Increment(ctx, 1, d1, activity.KindLessonView, 2))
	require.NoError(t, s.Activity().Increment(ctx, 1, d2, activity.KindPoints, 25))
	require.NoError(t, s.Activity().Increment(ctx, 1, d2, activity.KindPoints, 5))

	day, err := s.Activity().Get(ctx, 1, d2)
	require.NoError(t, err)
	assert.Equal(t, 30, day.PointsEarned)

	rows, err := s.Activity().Range(ctx, 1, d1, d2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Date.Equal(d1))

	_, err = s.Activity().Get(ctx, 1, timeutil.Date(2024, time.March, 2))
	assert.True(t, shared.IsNotFound(err))
}

func TestFactRepo_Counters(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	f := s.Facts()

	first, err := f.RecordLessonCompleted(ctx, 1, 1, "greetings", now)
	require.NoError(t, err)
	assert.True(t, first)
	again, err := f.RecordLessonCompleted(ctx, 1, 1, "greetings", now)
	require.NoError(t, err)
	assert.False(t, again)
	_, err = f.RecordLessonCompleted(ctx, 1, 2, "", now)
	require.NoError(t, err)

	require.NoError(t, f.RecordQuizPassed(ctx, 1, true))
	require.NoError(t, f.RecordQuizPassed(ctx, 1, false))
	require.NoError(t, f.SetLessonSaved(ctx, 1, 4, true))
	require.NoError(t, f.SetLessonSaved(ctx, 1, 4, true))
	require.NoError(t, f.SetLessonSaved(ctx, 1, 5, true))
	require.NoError(t, f.SetLessonSaved(ctx, 1, 5, false))

	c, err := f.Counters(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, activity.Counters{
		LessonsCompleted:   2,
		QuizzesPassed:      2,
		PerfectQuizzes:     1,
		SavedLessons:       1,
		CategoriesExplored: 1,
	}, c)
}

func TestNotificationRepo(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Notifications()

	for i := 0; i < 3; i++ {
		n := notification.LevelUp(1, i+2, "Learner", now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Save(ctx, &n))
		assert.NotEmpty(t, n.ID)
	}

	unread, err := repo.Unread(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, unread, 2)
	assert.Equal(t, "Level Up! You are now Level 4", unread[0].Title)

	changed, err := repo.MarkRead(ctx, 1, []string{unread[0].ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	count, err := repo.CountUnread(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	changed, err = repo.MarkRead(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)
}
