// Package streak tracks day-to-day learning continuity per user, including
// the monthly freeze allowance that can bridge a single missed day.
//
// All dates handled here are calendar dates as produced by timeutil.DateOf;
// the caller decides which timezone "today" belongs to.
package streak

import (
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/pkg/timeutil"
)

// MonthlyFreezeQuota is how many freezes a user gets each calendar month.
const MonthlyFreezeQuota = 2

// State is a user's streak aggregate. CurrentStreak never exceeds LongestStreak.
type State struct {
	UserID           shared.UserID
	CurrentStreak    int
	LongestStreak    int
	LastActivityDate *time.Time
	StreakStartedAt  *time.Time
	FreezeCount      int
	FreezeUsedDate   *time.Time
	FreezeLastReset  *time.Time
	UpdatedAt        time.Time
}

// NewState creates an empty streak with a full freeze quota.
func NewState(userID shared.UserID) *State {
	return &State{
		UserID:      userID,
		FreezeCount: MonthlyFreezeQuota,
	}
}

// Transition describes the effect of one RecordActivity call.
type Transition struct {
	Old     int
	New     int
	Changed bool
	Reset   bool
}

// freezesAsOf returns the quota as it would be after the lazy monthly reset.
func (s *State) freezesAsOf(today time.Time) int {
	if s.FreezeLastReset == nil || !timeutil.SameMonth(*s.FreezeLastReset, today) {
		return MonthlyFreezeQuota
	}
	return s.FreezeCount
}

// refreshFreezes applies the lazy monthly quota reset.
func (s *State) refreshFreezes(today time.Time) {
	if s.FreezeLastReset == nil || !timeutil.SameMonth(*s.FreezeLastReset, today) {
		s.FreezeCount = MonthlyFreezeQuota
		s.FreezeLastReset = timeutil.DatePtr(today)
	}
}

// RecordActivity registers learning activity on today.
func (s *State) RecordActivity(today time.Time) Transition {
	today = timeutil.DateOf(today)
	s.refreshFreezes(today)

	tr := Transition{Old: s.CurrentStreak}
	yesterday := timeutil.AddDays(today, -1)

	switch {
	case s.LastActivityDate == nil:
		s.CurrentStreak = 1
		s.StreakStartedAt = timeutil.DatePtr(today)
	case timeutil.SameDay(*s.LastActivityDate, today):
		tr.New = s.CurrentStreak
		return tr
	case timeutil.SameDay(*s.LastActivityDate, yesterday),
		s.FreezeUsedDate != nil && timeutil.SameDay(*s.FreezeUsedDate, yesterday):
		s.CurrentStreak++
	default:
		s.CurrentStreak = 1
		s.StreakStartedAt = timeutil.DatePtr(today)
		tr.Reset = tr.Old > 0
	}

	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.LastActivityDate = timeutil.DatePtr(today)

	tr.New = s.CurrentStreak
	tr.Changed = true
	return tr
}

// UseFreeze spends one freeze on today. It returns false, without mutating
// anything beyond the lazy quota reset, when the quota is exhausted.
func (s *State) UseFreeze(today time.Time) bool {
	today = timeutil.DateOf(today)
	s.refreshFreezes(today)
	if s.FreezeCount <= 0 {
		return false
	}
	s.FreezeCount--
	s.FreezeUsedDate = timeutil.DatePtr(today)
	return true
}

// CanUseFreezeToday is a read-only check of whether a freeze would be
// useful and allowed today.
func (s *State) CanUseFreezeToday(today time.Time) bool {
	today = timeutil.DateOf(today)
	if s.freezesAsOf(today) <= 0 || s.CurrentStreak <= 0 {
		return false
	}
	if s.LastActivityDate != nil && timeutil.SameDay(*s.LastActivityDate, today) {
		return false
	}
	if s.FreezeUsedDate != nil && timeutil.SameDay(*s.FreezeUsedDate, today) {
		return false
	}
	return true
}

// FreezesAvailable returns the quota left this month without mutating state.
func (s *State) FreezesAvailable(today time.Time) int {
	return s.freezesAsOf(timeutil.DateOf(today))
}

// IsAtRisk reports whether the streak will break unless the user is active
// (or freezes) today.
func (s *State) IsAtRisk(today time.Time) bool {
	if s.CurrentStreak == 0 || s.LastActivityDate == nil {
		return false
	}
	today = timeutil.DateOf(today)
	return timeutil.SameDay(*s.LastActivityDate, timeutil.AddDays(today, -1)) &&
		(s.FreezeUsedDate == nil || !timeutil.SameDay(*s.FreezeUsedDate, today))
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	c.LastActivityDate = clonePtr(s.LastActivityDate)
	c.StreakStartedAt = clonePtr(s.StreakStartedAt)
	c.FreezeUsedDate = clonePtr(s.FreezeUsedDate)
	c.FreezeLastReset = clonePtr(s.FreezeLastReset)
	return &c
}

func clonePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
