package command

import (
	"context"
	"fmt"
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/activity"
	"github.com/rhythmofsigns/progress-engine/internal/domain/badge"
	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// Hours bounding the time-of-day badges, in the clock's location.
const (
	EarlyLearnerBefore = 8
	NightLearnerFrom   = 22
)

// LearningEvents are the event types the dispatcher consumes.
var LearningEvents = []shared.EventType{
	shared.EventLessonViewed,
	shared.EventLessonCompleted,
	shared.EventQuizCompleted,
	shared.EventFlashcardSession,
	shared.EventFlashcardRated,
	shared.EventForumPostCreated,
	shared.EventForumCommentCreated,
	shared.EventLessonSaveToggled,
}

// Dispatcher maps each learning event to its ordered cascade of streak,
// points, daily activity and badge effects. Each event runs in one per-user
// unit of work: it applies completely or not at all.
type Dispatcher struct {
	runner    *Runner
	ledger    *PointLedger
	streaks   *StreakTracker
	badges    *BadgeEngine
	scheduler *Scheduler
	logger    *logger.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(runner *Runner, ledger *PointLedger, streaks *StreakTracker, badges *BadgeEngine, scheduler *Scheduler) *Dispatcher {
	return &Dispatcher{
		runner:    runner,
		ledger:    ledger,
		streaks:   streaks,
		badges:    badges,
		scheduler: scheduler,
		logger:    runner.logger.With(logger.Component("dispatcher")),
	}
}

// Handle runs the cascade for event.
func (d *Dispatcher) Handle(ctx context.Context, event shared.Event) (*Outcome, error) {
	ue, ok := event.(shared.UserEvent)
	if !ok {
		return nil, shared.NewDomainError("dispatcher", "Handle", shared.ErrInvalidInput,
			fmt.Sprintf("unsupported event %s", event.EventType()))
	}

	var step func(c *Cascade) error
	switch e := event.(type) {
	case shared.LessonViewedEvent:
		step = d.lessonViewed
	case shared.LessonCompletedEvent:
		step = func(c *Cascade) error { return d.lessonCompleted(c, e) }
	case shared.QuizCompletedEvent:
		step = func(c *Cascade) error { return d.quizCompleted(c, e) }
	case shared.FlashcardSessionEvent:
		step = d.flashcardSession
	case shared.FlashcardRatedEvent:
		step = func(c *Cascade) error { return d.flashcardRated(c, e) }
	case shared.ForumPostCreatedEvent:
		step = d.forumPost
	case shared.ForumCommentCreatedEvent:
		step = d.forumComment
	case shared.LessonSaveToggledEvent:
		step = func(c *Cascade) error { return d.lessonSaveToggled(c, e) }
	default:
		return nil, shared.NewDomainError("dispatcher", "Handle", shared.ErrInvalidInput,
			fmt.Sprintf("unsupported event %s", event.EventType()))
	}

	start := time.Now()
	out, err := d.runner.Run(ctx, ue.User(), step)
	if err != nil {
		d.logger.Error("event cascade failed",
			logger.Event(string(event.EventType())),
			logger.UserID(ue.User().Int64()),
			logger.Err(err),
		)
		return nil, err
	}

	d.logger.Debug("event cascade committed",
		logger.Event(string(event.EventType())),
		logger.UserID(ue.User().Int64()),
		logger.Points(out.PointsAwarded),
		logger.Int("badges", len(out.BadgesEarned)),
		logger.Latency(time.Since(start)),
	)
	return out, nil
}

// Subscribe registers the dispatcher on bus for every learning event.
func (d *Dispatcher) Subscribe(bus shared.EventSubscriber) error {
	for _, t := range LearningEvents {
		if err := bus.Subscribe(t, d.handleAsync); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}

func (d *Dispatcher) handleAsync(event shared.Event) error {
	_, err := d.Handle(context.Background(), event)
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Cascades
// ─────────────────────────────────────────────────────────────────────────────

func (d *Dispatcher) lessonViewed(c *Cascade) error {
	if _, _, err := ensureAccounts(c); err != nil {
		return err
	}
	if _, err := d.streaks.RecordActivity(c); err != nil {
		return err
	}
	if _, err := d.ledger.Award(c, PointsLessonView, points.SourceLesson); err != nil {
		return err
	}
	return incrementDaily(c, activity.KindLessonView, 1)
}

func (d *Dispatcher) lessonCompleted(c *Cascade, e shared.LessonCompletedEvent) error {
	if _, _, err := ensureAccounts(c); err != nil {
		return err
	}
	if _, err := c.store.Facts().RecordLessonCompleted(c.ctx, c.User, e.LessonID, e.Category, c.Now); err != nil {
		return fmt.Errorf("record lesson completion: %w", err)
	}
	if _, err := d.streaks.RecordActivity(c); err != nil {
		return err
	}
	if _, err := d.ledger.Award(c, PointsLessonComplete, points.SourceLesson); err != nil {
		return err
	}
	if err := incrementDaily(c, activity.KindLessonComplete, 1); err != nil {
		return err
	}

	switch hour := c.Now.Hour(); {
	case hour < EarlyLearnerBefore:
		if _, err := d.badges.Check(c, badge.RequirementEarlyLearner, 1); err != nil {
			return err
		}
	case hour >= NightLearnerFrom:
		if _, err := d.badges.Check(c, badge.RequirementNightLearner, 1); err != nil {
			return err
		}
	}

	counters, err := c.store.Facts().Counters(c.ctx, c.User)
	if err != nil {
		return fmt.Errorf("load counters: %w", err)
	}
	if _, err := d.badges.Check(c, badge.RequirementLessonsCompleted, counters.LessonsCompleted); err != nil {
		return err
	}
	_, err = d.badges.Check(c, badge.RequirementCategoriesExplored, counters.CategoriesExplored)
	return err
}

func (d *Dispatcher) quizCompleted(c *Cascade, e shared.QuizCompletedEvent) error {
	if _, _, err := ensureAccounts(c); err != nil {
		return err
	}
	if e.Passed {
		if err := c.store.Facts().RecordQuizPassed(c.ctx, c.User, e.IsPerfect()); err != nil {
			return fmt.Errorf("record quiz pass: %w", err)
		}
	}
	if _, err := d.streaks.RecordActivity(c); err != nil {
		return err
	}
	if err := incrementDaily(c, activity.KindQuizTaken, 1); err != nil {
		return err
	}

	if !e.Passed {
		_, err := d.ledger.Award(c, PointsQuizFail, points.SourceQuiz)
		return err
	}

	if err := incrementDaily(c, activity.KindQuizPassed, 1); err != nil {
		return err
	}
	counters, err := c.store.Facts().Counters(c.ctx, c.User)
	if err != nil {
		return fmt.Errorf("load counters: %w", err)
	}

	if e.IsPerfect() {
		if _, err := d.ledger.Award(c, PointsQuizPerfect, points.SourceQuiz); err != nil {
			return err
		}
		if _, err := d.badges.Check(c, badge.RequirementPerfectQuiz, counters.PerfectQuizzes); err != nil {
			return err
		}
	} else {
		if _, err := d.ledger.Award(c, PointsQuizPass, points.SourceQuiz); err != nil {
			return err
		}
	}
	_, err = d.badges.Check(c, badge.RequirementQuizzesPassed, counters.QuizzesPassed)
	return err
}

func (d *Dispatcher) flashcardSession(c *Cascade) error {
	if _, _, err := ensureAccounts(c); err != nil {
		return err
	}
	if _, err := d.streaks.RecordActivity(c); err != nil {
		return err
	}
	if _, err := d.ledger.Award(c, PointsFlashcardSession, points.SourceLesson); err != nil {
		return err
	}
	return incrementDaily(c, activity.KindFlashcard, 1)
}

func (d *Dispatcher) flashcardRated(c *Cascade, e shared.FlashcardRatedEvent) error {
	if _, _, err := ensureAccounts(c); err != nil {
		return err
	}
	_, _, err := d.scheduler.Rate(c, e.VocabularyID, e.LessonID, e.Rating)
	return err
}

func (d *Dispatcher) forumPost(c *Cascade) error {
	if _, _, err := ensureAccounts(c); err != nil {
		return err
	}
	if err := c.store.Facts().RecordForumPost(c.ctx, c.User); err != nil {
		return fmt.Errorf("record forum post: %w", err)
	}
	if _, err := d.ledger.Award(c, PointsForumPost, points.SourceOther); err != nil {
		return err
	}
	counters, err := c.store.Facts().Counters(c.ctx, c.User)
	if err != nil {
		return fmt.Errorf("load counters: %w", err)
	}
	_, err = d.badges.Check(c, badge.RequirementForumPosts, counters.ForumPosts)
	return err
}

func (d *Dispatcher) forumComment(c *Cascade) error {
	if _, _, err := ensureAccounts(c); err != nil {
		return err
	}
	_, err := d.ledger.Award(c, PointsForumComment, points.SourceOther)
	return err
}

func (d *Dispatcher) lessonSaveToggled(c *Cascade, e shared.LessonSaveToggledEvent) error {
	if err := c.store.Facts().SetLessonSaved(c.ctx, c.User, e.LessonID, e.Saved); err != nil {
		return fmt.Errorf("record saved lesson: %w", err)
	}
	if !e.Saved {
		return nil
	}
	counters, err := c.store.Facts().Counters(c.ctx, c.User)
	if err != nil {
		return fmt.Errorf("load counters: %w", err)
	}
	_, err = d.badges.Check(c, badge.RequirementSavedLessons, counters.SavedLessons)
	return err
}
