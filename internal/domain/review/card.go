// Package review implements the spaced-repetition state of one learner
// against one vocabulary item, scheduled with an SM-2 style algorithm.
package review

import (
	"math"
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/pkg/timeutil"
)

// Rating is the learner's self-assessed recall.
type Rating int

const (
	RatingAgain Rating = 1
	RatingHard  Rating = 2
	RatingGood  Rating = 3
	RatingEasy  Rating = 4
)

// IsValid checks the rating is in 1..4.
func (r Rating) IsValid() bool {
	return r >= RatingAgain && r <= RatingEasy
}

// IsCorrect reports whether the rating counts as a successful recall.
func (r Rating) IsCorrect() bool {
	return r >= RatingGood
}

// String returns the button label.
func (r Rating) String() string {
	switch r {
	case RatingAgain:
		return "again"
	case RatingHard:
		return "hard"
	case RatingGood:
		return "good"
	case RatingEasy:
		return "easy"
	default:
		return "invalid"
	}
}

// ParseRating validates a raw rating.
func ParseRating(n int) (Rating, error) {
	r := Rating(n)
	if !r.IsValid() {
		return 0, shared.ErrInvalidRating
	}
	return r, nil
}

// Ease factor bounds and default.
const (
	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3
	MaxEaseFactor     = 3.0
)

// Card is the review state of (user, vocabulary item).
type Card struct {
	ID             int64
	UserID         shared.UserID
	VocabularyID   shared.VocabularyID
	LessonID       shared.LessonID
	EaseFactor     float64
	Interval       int
	Repetitions    int
	NextReviewDate *time.Time
	LastReviewedAt *time.Time
	TotalReviews   int
	CorrectReviews int
	LastRating     *Rating
	CreatedAt      time.Time
}

// NewCard creates a card that is due on today.
func NewCard(userID shared.UserID, vocabularyID shared.VocabularyID, lessonID shared.LessonID, now time.Time) *Card {
	return &Card{
		UserID:         userID,
		VocabularyID:   vocabularyID,
		LessonID:       lessonID,
		EaseFactor:     DefaultEaseFactor,
		NextReviewDate: timeutil.DatePtr(now),
		CreatedAt:      now,
	}
}

// ProcessRating applies one review at now and returns the new interval in
// days. An invalid rating leaves the card untouched.
//
// Good bootstraps through 1 and 3 days before the ease factor applies, Easy
// jumps to 4 days on the first success only.
func (c *Card) ProcessRating(raw int, now time.Time) (int, error) {
	rating, err := ParseRating(raw)
	if err != nil {
		return 0, err
	}

	today := timeutil.DateOf(now)
	reviewedAt := now

	c.TotalReviews++
	c.LastRating = &rating
	c.LastReviewedAt = &reviewedAt
	if rating.IsCorrect() {
		c.CorrectReviews++
	}

	switch rating {
	case RatingAgain:
		c.Repetitions = 0
		c.Interval = 0

	case RatingHard:
		c.Repetitions = 0
		c.Interval = c.Interval / 2
		if c.Interval < 1 {
			c.Interval = 1
		}
		c.EaseFactor = clampEase(c.EaseFactor - 0.15)

	case RatingGood:
		switch c.Repetitions {
		case 0:
			c.Interval = 1
		case 1:
			c.Interval = 3
		default:
			c.Interval = int(math.Floor(float64(c.Interval) * c.EaseFactor))
		}
		c.Repetitions++

	case RatingEasy:
		if c.Repetitions == 0 {
			c.Interval = 4
		} else {
			c.Interval = int(math.Floor(float64(c.Interval) * c.EaseFactor * 1.3))
		}
		c.Repetitions++
		c.EaseFactor = clampEase(c.EaseFactor + 0.1)
	}

	c.NextReviewDate = timeutil.DatePtr(timeutil.AddDays(today, c.Interval))
	return c.Interval, nil
}

// clampEase bounds the ease factor. The value is not rounded: intervals are
// floored products of it, so any rounding would shift due dates.
func clampEase(ef float64) float64 {
	if ef < MinEaseFactor {
		return MinEaseFactor
	}
	if ef > MaxEaseFactor {
		return MaxEaseFactor
	}
	return ef
}

// IsDue reports whether the card should be shown on today.
func (c *Card) IsDue(today time.Time) bool {
	if c.NextReviewDate == nil {
		return true
	}
	return !c.NextReviewDate.After(timeutil.DateOf(today))
}

// Accuracy returns the share of correct reviews as a percentage.
func (c *Card) Accuracy() float64 {
	if c.TotalReviews == 0 {
		return 0
	}
	return float64(c.CorrectReviews) / float64(c.TotalReviews) * 100
}

// MasteryLevel returns a 0..100 score that blends accuracy with the current
// run of successful reviews.
func (c *Card) MasteryLevel() int {
	if c.TotalReviews == 0 {
		return 0
	}
	bonus := c.Repetitions * 5
	if bonus > 20 {
		bonus = 20
	}
	m := int(math.Floor(c.Accuracy()*0.8 + float64(bonus)))
	if m > 100 {
		return 100
	}
	return m
}

// Clone returns a deep copy.
func (c *Card) Clone() *Card {
	cp := *c
	if c.NextReviewDate != nil {
		d := *c.NextReviewDate
		cp.NextReviewDate = &d
	}
	if c.LastReviewedAt != nil {
		d := *c.LastReviewedAt
		cp.LastReviewedAt = &d
	}
	if c.LastRating != nil {
		r := *c.LastRating
		cp.LastRating = &r
	}
	return &cp
}
