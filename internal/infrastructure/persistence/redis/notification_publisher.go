package redis

import (
	"context"
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/notification"
)

// NotificationMessage is the JSON payload published for each notification.
type NotificationMessage struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Icon      string    `json:"icon"`
	Color     string    `json:"color"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationMessage converts a notification to its wire form.
func NewNotificationMessage(n notification.Notification) NotificationMessage {
	return NotificationMessage{
		ID:        n.ID,
		UserID:    n.UserID.Int64(),
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Icon:      n.Icon,
		Color:     n.Color,
		Link:      n.Link,
		CreatedAt: n.CreatedAt,
	}
}

// NotificationPublisher publishes notifications on the user's channel and
// the broadcast channel.
type NotificationPublisher struct {
	cache *Cache
}

var _ notification.Sink = (*NotificationPublisher)(nil)

// NewNotificationPublisher creates a NotificationPublisher.
func NewNotificationPublisher(cache *Cache) *NotificationPublisher {
	return &NotificationPublisher{cache: cache}
}

// Emit implements notification.Sink.
func (p *NotificationPublisher) Emit(ctx context.Context, n notification.Notification) error {
	err := p.cache.Publish(ctx, NewNotificationMessage(n),
		NotificationChannel(n.UserID), NotificationBroadcastChannel())
	if err != nil {
		return unavailable("PublishNotification", err)
	}
	return nil
}
