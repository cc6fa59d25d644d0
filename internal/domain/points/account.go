// Package points contains the experience-point ledger: per-user accounts,
// the source breakdown, the level curve and periodic resets.
package points

import (
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SOURCE
// ══════════════════════════════════════════════════════════════════════════════

// Source attributes a credit to the kind of activity that earned it.
type Source string

const (
	SourceLesson Source = "lesson"
	SourceQuiz   Source = "quiz"
	SourceStreak Source = "streak"
	SourceBadge  Source = "badge"
	SourceOther  Source = "other"
)

// AllSources lists every source in display order.
var AllSources = []Source{SourceLesson, SourceQuiz, SourceStreak, SourceBadge, SourceOther}

// IsValid checks that the source is one of the known buckets.
func (s Source) IsValid() bool {
	switch s {
	case SourceLesson, SourceQuiz, SourceStreak, SourceBadge, SourceOther:
		return true
	}
	return false
}

// String returns the string representation.
func (s Source) String() string {
	return string(s)
}

// ParseSource converts a stored or external string into a Source.
func ParseSource(s string) (Source, error) {
	src := Source(s)
	if !src.IsValid() {
		return "", shared.ErrUnknownSource
	}
	return src, nil
}

// Breakdown holds cumulative points per source.
type Breakdown struct {
	Lesson int `json:"lesson"`
	Quiz   int `json:"quiz"`
	Streak int `json:"streak"`
	Badge  int `json:"badge"`
	Other  int `json:"other"`
}

// Get returns the bucket for src.
func (b Breakdown) Get(src Source) int {
	switch src {
	case SourceLesson:
		return b.Lesson
	case SourceQuiz:
		return b.Quiz
	case SourceStreak:
		return b.Streak
	case SourceBadge:
		return b.Badge
	default:
		return b.Other
	}
}

func (b *Breakdown) add(src Source, amount int) {
	switch src {
	case SourceLesson:
		b.Lesson += amount
	case SourceQuiz:
		b.Quiz += amount
	case SourceStreak:
		b.Streak += amount
	case SourceBadge:
		b.Badge += amount
	default:
		b.Other += amount
	}
}

// Sum returns the total across all buckets.
func (b Breakdown) Sum() int {
	return b.Lesson + b.Quiz + b.Streak + b.Badge + b.Other
}

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD
// ══════════════════════════════════════════════════════════════════════════════

// Period selects which counter a leaderboard ranks by.
type Period string

const (
	PeriodAll     Period = "all"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// AllPeriods lists the supported periods.
var AllPeriods = []Period{PeriodAll, PeriodWeekly, PeriodMonthly}

// IsValid checks the period.
func (p Period) IsValid() bool {
	return p == PeriodAll || p == PeriodWeekly || p == PeriodMonthly
}

// ParsePeriod converts a string into a Period. Empty means all-time.
func ParsePeriod(s string) (Period, error) {
	if s == "" {
		return PeriodAll, nil
	}
	p := Period(s)
	if !p.IsValid() {
		return "", shared.ErrUnknownPeriod
	}
	return p, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNT
// ══════════════════════════════════════════════════════════════════════════════

// Account is a user's point ledger. Total always equals BySource.Sum().
type Account struct {
	UserID           shared.UserID
	Total            int
	Weekly           int
	Monthly          int
	BySource         Breakdown
	LastWeeklyReset  *time.Time
	LastMonthlyReset *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewAccount creates an empty account.
func NewAccount(userID shared.UserID, now time.Time) *Account {
	return &Account{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Add credits amount to every counter and the source bucket and returns the
// amount applied.
func (a *Account) Add(amount int, src Source, now time.Time) (int, error) {
	if amount < 0 {
		return 0, shared.ErrNegativeAmount
	}
	if !src.IsValid() {
		return 0, shared.ErrUnknownSource
	}
	a.Total += amount
	a.Weekly += amount
	a.Monthly += amount
	a.BySource.add(src, amount)
	a.UpdatedAt = now
	return amount, nil
}

// ResetWeekly zeroes the weekly counter and stamps the reset date.
func (a *Account) ResetWeekly(today time.Time) {
	a.Weekly = 0
	d := today
	a.LastWeeklyReset = &d
}

// ResetMonthly zeroes the monthly counter and stamps the reset date.
func (a *Account) ResetMonthly(today time.Time) {
	a.Monthly = 0
	d := today
	a.LastMonthlyReset = &d
}

// PointsFor returns the counter a leaderboard period ranks by.
func (a *Account) PointsFor(p Period) int {
	switch p {
	case PeriodWeekly:
		return a.Weekly
	case PeriodMonthly:
		return a.Monthly
	default:
		return a.Total
	}
}

// Level returns the derived level.
func (a *Account) Level() int { return LevelFor(a.Total) }

// LevelTitle returns the title of the derived level.
func (a *Account) LevelTitle() string { return TitleFor(a.Level()) }

// PointsToNextLevel returns how many points are missing for the next level.
func (a *Account) PointsToNextLevel() int { return PointsToNextLevel(a.Total) }

// LevelProgressPercent returns progress through the current level.
func (a *Account) LevelProgressPercent() int { return ProgressPercent(a.Total) }

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	c := *a
	if a.LastWeeklyReset != nil {
		d := *a.LastWeeklyReset
		c.LastWeeklyReset = &d
	}
	if a.LastMonthlyReset != nil {
		d := *a.LastMonthlyReset
		c.LastMonthlyReset = &d
	}
	return &c
}
