package review

import (
	"context"
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// DueFilter narrows a due-card query.
type DueFilter struct {
	// LessonID scopes the query to one lesson's vocabulary when non-zero.
	LessonID shared.LessonID
	Limit    int
}

// DefaultDueLimit caps due queries that pass no limit.
const DefaultDueLimit = 20

// DeckSummary aggregates a learner's cards, optionally for one lesson.
type DeckSummary struct {
	Cards          int
	Due            int
	AverageMastery int
}

// Repository persists review cards. Cards are unique per (user, vocabulary item).
type Repository interface {
	// Get returns the card or shared.ErrCardNotFound.
	Get(ctx context.Context, userID shared.UserID, vocabularyID shared.VocabularyID) (*Card, error)

	// GetOrCreate returns the existing card or inserts card as given.
	GetOrCreate(ctx context.Context, card *Card) (*Card, error)

	// Save persists the scheduling fields of an existing card.
	Save(ctx context.Context, card *Card) error

	// Due returns cards with no review date or a review date on or before
	// today, earliest first.
	Due(ctx context.Context, userID shared.UserID, today time.Time, filter DueFilter) ([]*Card, error)

	// ListByUser returns all cards of a user, optionally for one lesson.
	ListByUser(ctx context.Context, userID shared.UserID, lessonID shared.LessonID) ([]*Card, error)
}

// Summarize computes a DeckSummary over cards.
func Summarize(cards []*Card, today time.Time) DeckSummary {
	s := DeckSummary{Cards: len(cards)}
	if len(cards) == 0 {
		return s
	}
	total := 0
	for _, c := range cards {
		total += c.MasteryLevel()
		if c.IsDue(today) {
			s.Due++
		}
	}
	s.AverageMastery = total / len(cards)
	return s
}
