package shared

import (
	"encoding/json"
	"time"
)

// EventType names an event on the bus and on the wire.
type EventType string

// Learning events are raised by the host application and consumed by the
// dispatcher. Progress events are published by the engine after a cascade
// commits.
const (
	EventLessonViewed        EventType = "learning.lesson_viewed"
	EventLessonCompleted     EventType = "learning.lesson_completed"
	EventQuizCompleted       EventType = "learning.quiz_completed"
	EventFlashcardSession    EventType = "learning.flashcard_session"
	EventFlashcardRated      EventType = "learning.flashcard_rated"
	EventForumPostCreated    EventType = "community.forum_post_created"
	EventForumCommentCreated EventType = "community.forum_comment_created"
	EventLessonSaveToggled   EventType = "learning.lesson_save_toggled"

	EventPointsAwarded   EventType = "progress.points_awarded"
	EventLevelUp         EventType = "progress.level_up"
	EventStreakUpdated   EventType = "progress.streak_updated"
	EventStreakMilestone EventType = "progress.streak_milestone"
	EventBadgeEarned     EventType = "progress.badge_earned"
	EventPointsReset     EventType = "progress.points_reset"
)

// Event is anything carried by an EventBus. The exported fields of the
// concrete type, through their json tags, form the event's payload.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	AggregateID() string
}

// UserEvent is an event scoped to a single learner.
type UserEvent interface {
	Event
	User() UserID
}

// header is embedded by every event. Its fields are unexported so they stay
// out of the payload; the envelope carries them instead.
type header struct {
	kind      EventType
	at        time.Time
	aggregate string
}

func (h header) EventType() EventType  { return h.kind }
func (h header) OccurredAt() time.Time { return h.at }
func (h header) AggregateID() string   { return h.aggregate }

// stamp opens a header at the current time. The timestamp is informational;
// day boundaries always come from the engine's clock.
func stamp(kind EventType, aggregate string) header {
	return header{kind: kind, at: time.Now(), aggregate: aggregate}
}

// ═══════════════════════════════════════════════════════════════════════════
// LEARNING EVENTS
// ═══════════════════════════════════════════════════════════════════════════

type LessonViewedEvent struct {
	header
	UserID   UserID   `json:"user_id"`
	LessonID LessonID `json:"lesson_id"`
}

func NewLessonViewedEvent(userID UserID, lessonID LessonID) LessonViewedEvent {
	return LessonViewedEvent{stamp(EventLessonViewed, userID.String()), userID, lessonID}
}

func (e LessonViewedEvent) User() UserID { return e.UserID }

// LessonCompletedEvent carries the lesson's category for the
// categories-explored badge counter.
type LessonCompletedEvent struct {
	header
	UserID   UserID   `json:"user_id"`
	LessonID LessonID `json:"lesson_id"`
	Category string   `json:"category,omitempty"`
}

func NewLessonCompletedEvent(userID UserID, lessonID LessonID, category string) LessonCompletedEvent {
	return LessonCompletedEvent{stamp(EventLessonCompleted, userID.String()), userID, lessonID, category}
}

func (e LessonCompletedEvent) User() UserID { return e.UserID }

type QuizCompletedEvent struct {
	header
	UserID   UserID `json:"user_id"`
	QuizID   int64  `json:"quiz_id"`
	Passed   bool   `json:"passed"`
	Score    int    `json:"score"`
	MaxScore int    `json:"max_score"`
}

func NewQuizCompletedEvent(userID UserID, quizID int64, passed bool, score, maxScore int) QuizCompletedEvent {
	return QuizCompletedEvent{stamp(EventQuizCompleted, userID.String()), userID, quizID, passed, score, maxScore}
}

func (e QuizCompletedEvent) User() UserID { return e.UserID }

// IsPerfect reports whether every point of the quiz was earned.
func (e QuizCompletedEvent) IsPerfect() bool { return e.MaxScore > 0 && e.Score == e.MaxScore }

type FlashcardSessionEvent struct {
	header
	UserID UserID `json:"user_id"`
}

func NewFlashcardSessionEvent(userID UserID) FlashcardSessionEvent {
	return FlashcardSessionEvent{stamp(EventFlashcardSession, userID.String()), userID}
}

func (e FlashcardSessionEvent) User() UserID { return e.UserID }

// FlashcardRatedEvent is one recall grade (1-4) for one sign.
type FlashcardRatedEvent struct {
	header
	UserID       UserID       `json:"user_id"`
	VocabularyID VocabularyID `json:"vocabulary_id"`
	LessonID     LessonID     `json:"lesson_id"`
	Rating       int          `json:"rating"`
}

func NewFlashcardRatedEvent(userID UserID, vocabularyID VocabularyID, lessonID LessonID, rating int) FlashcardRatedEvent {
	return FlashcardRatedEvent{stamp(EventFlashcardRated, userID.String()), userID, vocabularyID, lessonID, rating}
}

func (e FlashcardRatedEvent) User() UserID { return e.UserID }

type ForumPostCreatedEvent struct {
	header
	UserID UserID `json:"user_id"`
	PostID int64  `json:"post_id"`
}

func NewForumPostCreatedEvent(userID UserID, postID int64) ForumPostCreatedEvent {
	return ForumPostCreatedEvent{stamp(EventForumPostCreated, userID.String()), userID, postID}
}

func (e ForumPostCreatedEvent) User() UserID { return e.UserID }

type ForumCommentCreatedEvent struct {
	header
	UserID    UserID `json:"user_id"`
	CommentID int64  `json:"comment_id"`
}

func NewForumCommentCreatedEvent(userID UserID, commentID int64) ForumCommentCreatedEvent {
	return ForumCommentCreatedEvent{stamp(EventForumCommentCreated, userID.String()), userID, commentID}
}

func (e ForumCommentCreatedEvent) User() UserID { return e.UserID }

// LessonSaveToggledEvent reports a bookmark being added (Saved) or removed.
type LessonSaveToggledEvent struct {
	header
	UserID   UserID   `json:"user_id"`
	LessonID LessonID `json:"lesson_id"`
	Saved    bool     `json:"saved"`
}

func NewLessonSaveToggledEvent(userID UserID, lessonID LessonID, saved bool) LessonSaveToggledEvent {
	return LessonSaveToggledEvent{stamp(EventLessonSaveToggled, userID.String()), userID, lessonID, saved}
}

func (e LessonSaveToggledEvent) User() UserID { return e.UserID }

// ═══════════════════════════════════════════════════════════════════════════
// PROGRESS EVENTS
// ═══════════════════════════════════════════════════════════════════════════

// PointsAwardedEvent is published for every committed point credit.
type PointsAwardedEvent struct {
	header
	UserID   UserID `json:"user_id"`
	Amount   int    `json:"amount"`
	Source   string `json:"source"`
	NewTotal int    `json:"new_total"`
}

func NewPointsAwardedEvent(userID UserID, amount int, source string, newTotal int) PointsAwardedEvent {
	return PointsAwardedEvent{stamp(EventPointsAwarded, userID.String()), userID, amount, source, newTotal}
}

func (e PointsAwardedEvent) User() UserID { return e.UserID }

type LevelUpEvent struct {
	header
	UserID   UserID `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	Title    string `json:"title"`
}

func NewLevelUpEvent(userID UserID, oldLevel, newLevel int, title string) LevelUpEvent {
	return LevelUpEvent{stamp(EventLevelUp, userID.String()), userID, oldLevel, newLevel, title}
}

func (e LevelUpEvent) User() UserID { return e.UserID }

// StreakUpdatedEvent is published when a day of activity changes the streak.
type StreakUpdatedEvent struct {
	header
	UserID    UserID `json:"user_id"`
	OldStreak int    `json:"old_streak"`
	NewStreak int    `json:"new_streak"`
}

func NewStreakUpdatedEvent(userID UserID, oldStreak, newStreak int) StreakUpdatedEvent {
	return StreakUpdatedEvent{stamp(EventStreakUpdated, userID.String()), userID, oldStreak, newStreak}
}

func (e StreakUpdatedEvent) User() UserID { return e.UserID }

// IsBroken reports whether the streak restarted at one.
func (e StreakUpdatedEvent) IsBroken() bool { return e.OldStreak > 0 && e.NewStreak == 1 }

type StreakMilestoneEvent struct {
	header
	UserID    UserID `json:"user_id"`
	Milestone int    `json:"milestone"`
	Bonus     int    `json:"bonus"`
}

func NewStreakMilestoneEvent(userID UserID, milestone, bonus int) StreakMilestoneEvent {
	return StreakMilestoneEvent{stamp(EventStreakMilestone, userID.String()), userID, milestone, bonus}
}

func (e StreakMilestoneEvent) User() UserID { return e.UserID }

// BadgeEarnedEvent is published once per (user, badge).
type BadgeEarnedEvent struct {
	header
	UserID    UserID  `json:"user_id"`
	BadgeID   BadgeID `json:"badge_id"`
	BadgeName string  `json:"badge_name"`
	Reward    int     `json:"reward"`
}

func NewBadgeEarnedEvent(userID UserID, badgeID BadgeID, name string, reward int) BadgeEarnedEvent {
	return BadgeEarnedEvent{stamp(EventBadgeEarned, userID.String()), userID, badgeID, name, reward}
}

func (e BadgeEarnedEvent) User() UserID { return e.UserID }

// PointsResetEvent is published after a periodic reset of all accounts. Its
// aggregate is the period name.
type PointsResetEvent struct {
	header
	Period   string `json:"period"`
	Accounts int64  `json:"accounts"`
}

func NewPointsResetEvent(period string, accounts int64) PointsResetEvent {
	return PointsResetEvent{stamp(EventPointsReset, period), period, accounts}
}

// ═══════════════════════════════════════════════════════════════════════════
// TRANSPORT
// ═══════════════════════════════════════════════════════════════════════════

// EnvelopeVersion is bumped when a payload changes incompatibly.
const EnvelopeVersion = 1

// EventEnvelope is the wire form of an event for other processes.
type EventEnvelope struct {
	ID          string          `json:"id"`
	Type        EventType       `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Version     int             `json:"version"`
	Payload     json.RawMessage `json:"payload"`
}

func NewEnvelope(id string, event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return EventEnvelope{}, WrapError("shared", "NewEnvelope", ErrInvalidFormat, "failed to encode payload", err)
	}
	return EventEnvelope{
		ID:          id,
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     EnvelopeVersion,
		Payload:     payload,
	}, nil
}

type EventHandler func(event Event) error

type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber registers handlers. SubscribeAll handlers see every type.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
}
