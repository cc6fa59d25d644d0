// Package memory provides an in-process implementation of every repository
// the engine needs. It backs tests and single-instance deployments without
// a database.
package memory

import (
	"context"
	"sync"

	"github.com/rhythmofsigns/progress-engine/internal/application/command"
	"github.com/rhythmofsigns/progress-engine/internal/domain/activity"
	"github.com/rhythmofsigns/progress-engine/internal/domain/badge"
	"github.com/rhythmofsigns/progress-engine/internal/domain/notification"
	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/review"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/internal/domain/streak"
)

// Store holds all state in memory. Per-user units of work are serialized by
// a lock per user and rolled back by restoring a snapshot of that user's data.
type Store struct {
	mu    sync.RWMutex
	users map[shared.UserID]*userData

	defs     []badge.Definition
	badgeSeq int64
	cardSeq  int64

	notifications map[shared.UserID][]notification.Notification

	locksMu sync.Mutex
	locks   map[shared.UserID]chan struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:         make(map[shared.UserID]*userData),
		notifications: make(map[shared.UserID][]notification.Notification),
		locks:         make(map[shared.UserID]chan struct{}),
	}
}

var (
	_ command.UnitOfWork = (*Store)(nil)
	_ command.Store      = (*Store)(nil)
)

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

// Within implements command.UnitOfWork.
func (s *Store) Within(ctx context.Context, userID shared.UserID, fn func(ctx context.Context, store command.Store) error) (err error) {
	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	snapshot := s.snapshot(userID)
	defer func() {
		if r := recover(); r != nil {
			s.restore(userID, snapshot)
			panic(r)
		}
		if err != nil {
			s.restore(userID, snapshot)
		}
	}()

	return fn(ctx, s)
}

// lock acquires userID's lock or gives up when ctx is done.
func (s *Store) lock(ctx context.Context, userID shared.UserID) (func(), error) {
	s.locksMu.Lock()
	ch, ok := s.locks[userID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[userID] = ch
	}
	s.locksMu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, shared.WrapError("memory", "Lock", shared.ErrTimeout, "waiting for user lock", ctx.Err())
	}
}

func (s *Store) snapshot(userID shared.UserID) *userData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[userID]; ok {
		return u.clone()
	}
	return nil
}

func (s *Store) restore(userID shared.UserID, snap *userData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap == nil {
		delete(s.users, userID)
		return
	}
	s.users[userID] = snap
}

// user returns userID's data, creating it. Callers hold s.mu for writing.
func (s *Store) user(userID shared.UserID) *userData {
	u, ok := s.users[userID]
	if !ok {
		u = newUserData()
		s.users[userID] = u
	}
	return u
}

// userIDs returns every user that has data. Callers hold s.mu.
func (s *Store) userIDs() []shared.UserID {
	ids := make([]shared.UserID, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	return ids
}

// ─────────────────────────────────────────────────────────────────────────────
// command.Store
// ─────────────────────────────────────────────────────────────────────────────

// Points implements command.Store.
func (s *Store) Points() points.Repository { return pointRepo{s} }

// Streaks implements command.Store.
func (s *Store) Streaks() streak.Repository { return streakRepo{s} }

// Reviews implements command.Store.
func (s *Store) Reviews() review.Repository { return reviewRepo{s} }

// Badges implements command.Store.
func (s *Store) Badges() badge.Repository { return badgeRepo{s} }

// Activity implements command.Store.
func (s *Store) Activity() activity.Repository { return activityRepo{s} }

// Facts implements command.Store.
func (s *Store) Facts() activity.FactRepository { return factRepo{s} }

// Notifications returns the notification repository.
func (s *Store) Notifications() notification.Repository { return notificationRepo{s} }

// Ranking returns the leaderboard read side.
func (s *Store) Ranking() points.RankingReader { return rankingRepo{s} }

// ══════════════════════════════════════════════════════════════════════════════
// PER-USER DATA
// ══════════════════════════════════════════════════════════════════════════════

type userData struct {
	account   *points.Account
	streak    *streak.State
	cards     map[shared.VocabularyID]*review.Card
	awards    map[shared.BadgeID]badge.Award
	daily     map[string]*activity.Daily
	completed map[shared.LessonID]string
	saved     map[shared.LessonID]bool

	quizzesPassed  int
	perfectQuizzes int
	forumPosts     int
}

func newUserData() *userData {
	return &userData{
		cards:     make(map[shared.VocabularyID]*review.Card),
		awards:    make(map[shared.BadgeID]badge.Award),
		daily:     make(map[string]*activity.Daily),
		completed: make(map[shared.LessonID]string),
		saved:     make(map[shared.LessonID]bool),
	}
}

func (u *userData) clone() *userData {
	c := newUserData()
	if u.account != nil {
		c.account = u.account.Clone()
	}
	if u.streak != nil {
		c.streak = u.streak.Clone()
	}
	for k, v := range u.cards {
		c.cards[k] = v.Clone()
	}
	for k, v := range u.awards {
		c.awards[k] = v
	}
	for k, v := range u.daily {
		d := *v
		c.daily[k] = &d
	}
	for k, v := range u.completed {
		c.completed[k] = v
	}
	for k, v := range u.saved {
		c.saved[k] = v
	}
	c.quizzesPassed = u.quizzesPassed
	c.perfectQuizzes = u.perfectQuizzes
	c.forumPosts = u.forumPosts
	return c
}
