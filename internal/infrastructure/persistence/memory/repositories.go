package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rhythmofsigns/progress-engine/internal/domain/activity"
	"github.com/rhythmofsigns/progress-engine/internal/domain/badge"
	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/review"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/internal/domain/streak"
	"github.com/rhythmofsigns/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// POINTS
// ══════════════════════════════════════════════════════════════════════════════

type pointRepo struct{ s *Store }

func (r pointRepo) Get(_ context.Context, userID shared.UserID) (*points.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[userID]
	if !ok || u.account == nil {
		return nil, shared.ErrAccountNotFound
	}
	return u.account.Clone(), nil
}

func (r pointRepo) Ensure(_ context.Context, userID shared.UserID, now time.Time) (*points.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u := r.s.user(userID)
	if u.account == nil {
		u.account = points.NewAccount(userID, now)
	}
	return u.account.Clone(), nil
}

func (r pointRepo) Save(_ context.Context, account *points.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.user(account.UserID).account = account.Clone()
	return nil
}

// ResetWeekly takes each user's lock in turn so a reset never interleaves
// with, or is rolled back by, a running cascade.
func (r pointRepo) ResetWeekly(ctx context.Context, today time.Time) (int64, error) {
	return r.resetEach(ctx, func(a *points.Account) { a.ResetWeekly(today) })
}

func (r pointRepo) ResetMonthly(ctx context.Context, today time.Time) (int64, error) {
	return r.resetEach(ctx, func(a *points.Account) { a.ResetMonthly(today) })
}

func (r pointRepo) resetEach(ctx context.Context, reset func(a *points.Account)) (int64, error) {
	r.s.mu.RLock()
	ids := r.s.userIDs()
	r.s.mu.RUnlock()

	var n int64
	for _, id := range ids {
		unlock, err := r.s.lock(ctx, id)
		if err != nil {
			return n, err
		}
		r.s.mu.Lock()
		if u, ok := r.s.users[id]; ok && u.account != nil {
			reset(u.account)
			n++
		}
		r.s.mu.Unlock()
		unlock()
	}
	return n, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAKS
// ══════════════════════════════════════════════════════════════════════════════

type streakRepo struct{ s *Store }

func (r streakRepo) Get(_ context.Context, userID shared.UserID) (*streak.State, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[userID]
	if !ok || u.streak == nil {
		return nil, shared.ErrStreakNotFound
	}
	return u.streak.Clone(), nil
}

func (r streakRepo) Ensure(_ context.Context, userID shared.UserID) (*streak.State, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u := r.s.user(userID)
	if u.streak == nil {
		u.streak = streak.NewState(userID)
	}
	return u.streak.Clone(), nil
}

func (r streakRepo) Save(_ context.Context, state *streak.State) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.user(state.UserID).streak = state.Clone()
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REVIEW CARDS
// ══════════════════════════════════════════════════════════════════════════════

type reviewRepo struct{ s *Store }

func (r reviewRepo) Get(_ context.Context, userID shared.UserID, vocabularyID shared.VocabularyID) (*review.Card, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if u, ok := r.s.users[userID]; ok {
		if c, ok := u.cards[vocabularyID]; ok {
			return c.Clone(), nil
		}
	}
	return nil, shared.ErrCardNotFound
}

func (r reviewRepo) GetOrCreate(_ context.Context, card *review.Card) (*review.Card, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u := r.s.user(card.UserID)
	if c, ok := u.cards[card.VocabularyID]; ok {
		return c.Clone(), nil
	}
	r.s.cardSeq++
	stored := card.Clone()
	stored.ID = r.s.cardSeq
	u.cards[card.VocabularyID] = stored
	return stored.Clone(), nil
}

func (r reviewRepo) Save(_ context.Context, card *review.Card) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[card.UserID]
	if !ok {
		return shared.ErrCardNotFound
	}
	if _, ok := u.cards[card.VocabularyID]; !ok {
		return shared.ErrCardNotFound
	}
	u.cards[card.VocabularyID] = card.Clone()
	return nil
}

func (r reviewRepo) Due(ctx context.Context, userID shared.UserID, today time.Time, filter review.DueFilter) ([]*review.Card, error) {
	all, err := r.ListByUser(ctx, userID, filter.LessonID)
	if err != nil {
		return nil, err
	}

	due := all[:0]
	for _, c := range all {
		if c.IsDue(today) {
			due = append(due, c)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i].NextReviewDate, due[j].NextReviewDate
		switch {
		case a == nil && b == nil:
			return due[i].ID < due[j].ID
		case a == nil:
			return true
		case b == nil:
			return false
		case !a.Equal(*b):
			return a.Before(*b)
		}
		return due[i].ID < due[j].ID
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = review.DefaultDueLimit
	}
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r reviewRepo) ListByUser(_ context.Context, userID shared.UserID, lessonID shared.LessonID) ([]*review.Card, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, nil
	}
	out := make([]*review.Card, 0, len(u.cards))
	for _, c := range u.cards {
		if lessonID.IsValid() && c.LessonID != lessonID {
			continue
		}
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGES
// ══════════════════════════════════════════════════════════════════════════════

type badgeRepo struct{ s *Store }

func (r badgeRepo) LoadCatalog(_ context.Context) ([]badge.Definition, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]badge.Definition, len(r.s.defs))
	copy(out, r.s.defs)
	return out, nil
}

func (r badgeRepo) SeedDefinitions(_ context.Context, defs []badge.Definition) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing := make(map[string]bool, len(r.s.defs))
	for _, d := range r.s.defs {
		existing[d.Name] = true
	}
	created := 0
	for _, d := range defs {
		if existing[d.Name] {
			continue
		}
		r.s.badgeSeq++
		d.ID = shared.BadgeID(r.s.badgeSeq)
		r.s.defs = append(r.s.defs, d)
		existing[d.Name] = true
		created++
	}
	return created, nil
}

func (r badgeRepo) HeldBadgeIDs(_ context.Context, userID shared.UserID) (map[shared.BadgeID]bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	held := make(map[shared.BadgeID]bool)
	if u, ok := r.s.users[userID]; ok {
		for id := range u.awards {
			held[id] = true
		}
	}
	return held, nil
}

func (r badgeRepo) InsertAward(_ context.Context, award *badge.Award) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u := r.s.user(award.UserID)
	if _, ok := u.awards[award.BadgeID]; ok {
		return false, nil
	}
	if award.ID == "" {
		award.ID = uuid.NewString()
	}
	u.awards[award.BadgeID] = *award
	return true, nil
}

func (r badgeRepo) ListAwards(_ context.Context, userID shared.UserID, limit int) ([]badge.Award, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, nil
	}
	out := make([]badge.Award, 0, len(u.awards))
	for _, a := range u.awards {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EarnedAt.Equal(out[j].EarnedAt) {
			return out[i].EarnedAt.After(out[j].EarnedAt)
		}
		return out[i].BadgeID > out[j].BadgeID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r badgeRepo) MarkSeen(_ context.Context, userID shared.UserID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return 0, nil
	}
	var n int64
	for id, a := range u.awards {
		if a.IsNew {
			a.IsNew = false
			u.awards[id] = a
			n++
		}
	}
	return n, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY ACTIVITY
// ══════════════════════════════════════════════════════════════════════════════

type activityRepo struct{ s *Store }

func (r activityRepo) Increment(_ context.Context, userID shared.UserID, date time.Time, kind activity.Kind, n int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u := r.s.user(userID)
	key := timeutil.FormatDate(date)
	d, ok := u.daily[key]
	if !ok {
		d = activity.NewDaily(userID, date)
	}
	if err := d.Increment(kind, n); err != nil {
		return err
	}
	u.daily[key] = d
	return nil
}

func (r activityRepo) Get(_ context.Context, userID shared.UserID, date time.Time) (*activity.Daily, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if u, ok := r.s.users[userID]; ok {
		if d, ok := u.daily[timeutil.FormatDate(date)]; ok {
			cp := *d
			return &cp, nil
		}
	}
	return nil, shared.NewDomainError("activity", "Get", shared.ErrNotFound, "no activity on date")
}

func (r activityRepo) Range(_ context.Context, userID shared.UserID, from, to time.Time) ([]activity.Daily, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, nil
	}
	from, to = timeutil.DateOf(from), timeutil.DateOf(to)
	var out []activity.Daily
	for _, d := range u.daily {
		if d.Date.Before(from) || d.Date.After(to) {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER FACTS
// ══════════════════════════════════════════════════════════════════════════════

type factRepo struct{ s *Store }

func (r factRepo) RecordLessonCompleted(_ context.Context, userID shared.UserID, lessonID shared.LessonID, category string, _ time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u := r.s.user(userID)
	if _, ok := u.completed[lessonID]; ok {
		return false, nil
	}
	u.completed[lessonID] = category
	return true, nil
}

func (r factRepo) RecordQuizPassed(_ context.Context, userID shared.UserID, perfect bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u := r.s.user(userID)
	u.quizzesPassed++
	if perfect {
		u.perfectQuizzes++
	}
	return nil
}

func (r factRepo) RecordForumPost(_ context.Context, userID shared.UserID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.user(userID).forumPosts++
	return nil
}

func (r factRepo) SetLessonSaved(_ context.Context, userID shared.UserID, lessonID shared.LessonID, saved bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u := r.s.user(userID)
	if saved {
		u.saved[lessonID] = true
	} else {
		delete(u.saved, lessonID)
	}
	return nil
}

func (r factRepo) Counters(_ context.Context, userID shared.UserID) (activity.Counters, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[userID]
	if !ok {
		return activity.Counters{}, nil
	}
	categories := make(map[string]bool)
	for _, cat := range u.completed {
		if cat != "" {
			categories[cat] = true
		}
	}
	return activity.Counters{
		LessonsCompleted:   len(u.completed),
		QuizzesPassed:      u.quizzesPassed,
		PerfectQuizzes:     u.perfectQuizzes,
		SavedLessons:       len(u.saved),
		ForumPosts:         u.forumPosts,
		CategoriesExplored: len(categories),
	}, nil
}
