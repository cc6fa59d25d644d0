package query

import (
	"context"
	"fmt"
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/review"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DUE CARDS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetDueCardsQuery asks for cards to review today.
type GetDueCardsQuery struct {
	UserID shared.UserID
	// LessonID restricts the result to one lesson when set.
	LessonID shared.LessonID
	Limit    int
}

// Validate validates the query.
func (q *GetDueCardsQuery) Validate() error {
	if !q.UserID.IsValid() {
		return shared.NewDomainError("review", "GetDueCards", shared.ErrInvalidID, "invalid user id")
	}
	if q.Limit < 0 {
		return shared.ErrInvalidLimit
	}
	if q.Limit == 0 {
		q.Limit = review.DefaultDueLimit
	}
	return nil
}

// CardDTO is a flashcard's scheduling state.
type CardDTO struct {
	VocabularyID int64      `json:"vocabulary_id"`
	LessonID     int64      `json:"lesson_id,omitempty"`
	EaseFactor   float64    `json:"ease_factor"`
	Interval     int        `json:"interval"`
	Repetitions  int        `json:"repetitions"`
	Mastery      int        `json:"mastery"`
	IsDue        bool       `json:"is_due"`
	NextReview   *time.Time `json:"next_review,omitempty"`
}

// GetDueCardsResult lists due cards, earliest first.
type GetDueCardsResult struct {
	Cards []CardDTO `json:"cards"`
}

// ReviewQueries answers flashcard queries.
type ReviewQueries struct {
	cards review.Repository
	clock timeutil.Clock
}

// NewReviewQueries creates ReviewQueries.
func NewReviewQueries(cards review.Repository, clock timeutil.Clock) *ReviewQueries {
	return &ReviewQueries{cards: cards, clock: clock}
}

// GetDueCards returns cards whose review date is today or earlier, or unset.
func (h *ReviewQueries) GetDueCards(ctx context.Context, q GetDueCardsQuery) (*GetDueCardsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	today := timeutil.Today(h.clock)

	cards, err := h.cards.Due(ctx, q.UserID, today, review.DueFilter{LessonID: q.LessonID, Limit: q.Limit})
	if err != nil {
		return nil, fmt.Errorf("load due cards: %w", err)
	}

	result := &GetDueCardsResult{Cards: make([]CardDTO, 0, len(cards))}
	for _, c := range cards {
		result.Cards = append(result.Cards, toCardDTO(c, today))
	}
	return result, nil
}

// GetDeckSummary aggregates a user's cards, optionally for one lesson.
func (h *ReviewQueries) GetDeckSummary(ctx context.Context, userID shared.UserID, lessonID shared.LessonID) (review.DeckSummary, error) {
	if !userID.IsValid() {
		return review.DeckSummary{}, shared.NewDomainError("review", "GetDeckSummary", shared.ErrInvalidID, "invalid user id")
	}
	cards, err := h.cards.ListByUser(ctx, userID, lessonID)
	if err != nil {
		return review.DeckSummary{}, fmt.Errorf("load cards: %w", err)
	}
	return review.Summarize(cards, timeutil.Today(h.clock)), nil
}

func toCardDTO(c *review.Card, today time.Time) CardDTO {
	return CardDTO{
		VocabularyID: int64(c.VocabularyID),
		LessonID:     int64(c.LessonID),
		EaseFactor:   c.EaseFactor,
		Interval:     c.Interval,
		Repetitions:  c.Repetitions,
		Mastery:      c.MasteryLevel(),
		IsDue:        c.IsDue(today),
		NextReview:   c.NextReviewDate,
	}
}
