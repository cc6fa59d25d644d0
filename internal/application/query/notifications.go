package query

import (
	"context"
	"fmt"
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/notification"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// DefaultUnreadLimit caps the unread list.
const DefaultUnreadLimit = 10

// NotificationDTO is a notification for display.
type NotificationDTO struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Icon      string    `json:"icon"`
	Color     string    `json:"color"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UnreadNotificationsResult is the notification dropdown content.
type UnreadNotificationsResult struct {
	Notifications []NotificationDTO `json:"notifications"`
	UnreadCount   int               `json:"unread_count"`
}

// NotificationQueries reads the notification center.
type NotificationQueries struct {
	repo notification.Repository
}

// NewNotificationQueries creates NotificationQueries.
func NewNotificationQueries(repo notification.Repository) *NotificationQueries {
	return &NotificationQueries{repo: repo}
}

// Unread returns the newest unread notifications and the total unread count.
func (h *NotificationQueries) Unread(ctx context.Context, userID shared.UserID, limit int) (*UnreadNotificationsResult, error) {
	if !userID.IsValid() {
		return nil, shared.NewDomainError("notification", "Unread", shared.ErrInvalidID, "invalid user id")
	}
	if limit <= 0 {
		limit = DefaultUnreadLimit
	}

	list, err := h.repo.Unread(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("load unread notifications: %w", err)
	}
	count, err := h.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}

	result := &UnreadNotificationsResult{
		Notifications: make([]NotificationDTO, 0, len(list)),
		UnreadCount:   count,
	}
	for _, n := range list {
		result.Notifications = append(result.Notifications, NotificationDTO{
			ID:        n.ID,
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			Icon:      n.Icon,
			Color:     n.Color,
			Link:      n.Link,
			CreatedAt: n.CreatedAt,
		})
	}
	return result, nil
}
