// Package notification contains the user-facing notices the engine raises
// while processing events: badges, level-ups, streak milestones.
package notification

import (
	"fmt"
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// Type classifies a notification.
type Type string

const (
	TypeBadge       Type = "badge"
	TypeLevelUp     Type = "level_up"
	TypeStreak      Type = "streak"
	TypeAchievement Type = "achievement"
	TypeReminder    Type = "reminder"
	TypeSystem      Type = "system"
)

// IsValid checks the type.
func (t Type) IsValid() bool {
	switch t {
	case TypeBadge, TypeLevelUp, TypeStreak, TypeAchievement, TypeReminder, TypeSystem:
		return true
	}
	return false
}

// Display defaults.
const (
	DefaultIcon  = "fa-bell"
	DefaultColor = "primary"
)

// AchievementsLink is where badge notifications point.
const AchievementsLink = "/achievements/"

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Notification is one notice for one user.
type Notification struct {
	ID        string
	UserID    shared.UserID
	Type      Type
	Title     string
	Message   string
	Icon      string
	Color     string
	Link      string
	IsRead    bool
	CreatedAt time.Time
}

// Validate checks the notification before it is emitted.
func (n *Notification) Validate() error {
	if !n.UserID.IsValid() {
		return shared.NewDomainError("notification", "Validate", shared.ErrInvalidID, "invalid user id")
	}
	if !n.Type.IsValid() {
		return shared.NewDomainError("notification", "Validate", shared.ErrInvalidInput, "unknown notification type")
	}
	if n.Title == "" {
		return shared.NewDomainError("notification", "Validate", shared.ErrEmptyValue, "title is required")
	}
	return nil
}

func newNotification(userID shared.UserID, t Type, title, message, icon, color, link string, now time.Time) Notification {
	if icon == "" {
		icon = DefaultIcon
	}
	if color == "" {
		color = DefaultColor
	}
	return Notification{
		UserID:    userID,
		Type:      t,
		Title:     title,
		Message:   message,
		Icon:      icon,
		Color:     color,
		Link:      link,
		CreatedAt: now,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORIES
// ══════════════════════════════════════════════════════════════════════════════

// LevelUp builds the notice for reaching a new level.
func LevelUp(userID shared.UserID, level int, title string, now time.Time) Notification {
	return newNotification(userID, TypeLevelUp,
		fmt.Sprintf("Level Up! You are now Level %d", level),
		fmt.Sprintf("Congratulations! You've reached the rank of %s!", title),
		"fa-arrow-up", "success", "", now)
}

// StreakMilestone builds the notice for crossing a streak milestone.
func StreakMilestone(userID shared.UserID, days, bonus int, now time.Time) Notification {
	return newNotification(userID, TypeStreak,
		fmt.Sprintf("%d-Day Streak!", days),
		fmt.Sprintf("Amazing! You've maintained a %d-day learning streak! +%d XP", days, bonus),
		"fa-fire", "warning", "", now)
}

// BadgeEarned builds the notice for a newly earned badge.
func BadgeEarned(userID shared.UserID, name, description, icon, color string, reward int, now time.Time) Notification {
	return newNotification(userID, TypeBadge,
		"Badge Earned: "+name,
		fmt.Sprintf("%s. +%d XP", description, reward),
		icon, color, AchievementsLink, now)
}

// Custom builds an arbitrary notice, e.g. reminders raised by the host.
func Custom(userID shared.UserID, t Type, title, message, icon, color, link string, now time.Time) Notification {
	return newNotification(userID, t, title, message, icon, color, link, now)
}
