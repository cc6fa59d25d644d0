package command

import (
	"context"
	"fmt"
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/activity"
	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/review"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SPACED REPETITION
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler applies SM-2 reviews to flashcards.
type Scheduler struct {
	runner *Runner
	ledger *PointLedger
}

// NewScheduler creates a Scheduler.
func NewScheduler(runner *Runner, ledger *PointLedger) *Scheduler {
	return &Scheduler{runner: runner, ledger: ledger}
}

// RateFlashcardCommand records one review of a vocabulary card.
type RateFlashcardCommand struct {
	UserID       shared.UserID
	VocabularyID shared.VocabularyID
	// LessonID is stored on the card when it is first created.
	LessonID shared.LessonID
	Rating   int
}

// Validate validates the command.
func (cmd RateFlashcardCommand) Validate() error {
	if !cmd.UserID.IsValid() {
		return shared.NewDomainError("review", "RateFlashcard", shared.ErrInvalidID, "invalid user id")
	}
	if !cmd.VocabularyID.IsValid() {
		return shared.ErrInvalidVocabulary
	}
	if _, err := review.ParseRating(cmd.Rating); err != nil {
		return err
	}
	return nil
}

// RateFlashcardResult is the scheduling outcome shown after a review.
type RateFlashcardResult struct {
	NextInterval int
	Mastery      int
	NextReview   *time.Time
	Message      string
	Card         *review.Card
	Outcome      *Outcome
}

// Rate applies a review inside an existing cascade. Correct answers earn a
// small lesson credit; every review counts toward today's flashcards.
func (s *Scheduler) Rate(c *Cascade, vocabularyID shared.VocabularyID, lessonID shared.LessonID, rating int) (*review.Card, int, error) {
	card, err := c.store.Reviews().GetOrCreate(c.ctx, review.NewCard(c.User, vocabularyID, lessonID, c.Now))
	if err != nil {
		return nil, 0, fmt.Errorf("review: load card: %w", err)
	}

	interval, err := card.ProcessRating(rating, c.Now)
	if err != nil {
		return nil, 0, err
	}
	if err := c.store.Reviews().Save(c.ctx, card); err != nil {
		return nil, 0, fmt.Errorf("review: save card: %w", err)
	}

	if err := incrementDaily(c, activity.KindFlashcard, 1); err != nil {
		return nil, 0, err
	}
	if review.Rating(rating).IsCorrect() {
		if _, err := s.ledger.Award(c, PointsFlashcardCorrect, points.SourceLesson); err != nil {
			return nil, 0, err
		}
	}
	return card, interval, nil
}

// RateFlashcard rates a card as its own cascade.
func (s *Scheduler) RateFlashcard(ctx context.Context, cmd RateFlashcardCommand) (*RateFlashcardResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	result := &RateFlashcardResult{}
	out, err := s.runner.Run(ctx, cmd.UserID, func(c *Cascade) error {
		card, interval, err := s.Rate(c, cmd.VocabularyID, cmd.LessonID, cmd.Rating)
		if err != nil {
			return err
		}
		result.Card = card.Clone()
		result.NextInterval = interval
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Mastery = result.Card.MasteryLevel()
	result.NextReview = result.Card.NextReviewDate
	result.Message = "Next review in " + timeutil.FormatDays(result.NextInterval)
	result.Outcome = out
	return result, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Deck
// ─────────────────────────────────────────────────────────────────────────────

// OpenDeckCommand prepares a lesson's flashcards for study.
type OpenDeckCommand struct {
	UserID        shared.UserID
	LessonID      shared.LessonID
	VocabularyIDs []shared.VocabularyID
}

// Validate validates the command.
func (cmd OpenDeckCommand) Validate() error {
	if !cmd.UserID.IsValid() {
		return shared.NewDomainError("review", "OpenDeck", shared.ErrInvalidID, "invalid user id")
	}
	for _, id := range cmd.VocabularyIDs {
		if !id.IsValid() {
			return shared.ErrInvalidVocabulary
		}
	}
	return nil
}

// DeckResult lists a lesson's cards in the order requested.
type DeckResult struct {
	Cards   []*review.Card
	Summary review.DeckSummary
}

// OpenDeck returns the card of every vocabulary item, creating missing cards
// as due today.
func (s *Scheduler) OpenDeck(ctx context.Context, cmd OpenDeckCommand) (*DeckResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	result := &DeckResult{}
	_, err := s.runner.Run(ctx, cmd.UserID, func(c *Cascade) error {
		cards := make([]*review.Card, 0, len(cmd.VocabularyIDs))
		for _, id := range cmd.VocabularyIDs {
			card, err := c.store.Reviews().GetOrCreate(c.ctx, review.NewCard(c.User, id, cmd.LessonID, c.Now))
			if err != nil {
				return fmt.Errorf("review: load card %s: %w", id, err)
			}
			cards = append(cards, card.Clone())
		}
		result.Cards = cards
		result.Summary = review.Summarize(cards, c.Today)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
