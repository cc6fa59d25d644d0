package notification

import (
	"context"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// Sink receives notifications after the cascade that produced them has
// committed. Delivery is fire-and-forget: the engine logs and drops errors.
type Sink interface {
	Emit(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) error

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Repository stores notifications for the in-app notification center.
type Repository interface {
	// Save inserts a notification, assigning an ID if empty.
	Save(ctx context.Context, n *Notification) error

	// Unread returns unread notifications, newest first.
	Unread(ctx context.Context, userID shared.UserID, limit int) ([]Notification, error)

	// CountUnread returns the number of unread notifications.
	CountUnread(ctx context.Context, userID shared.UserID) (int, error)

	// MarkRead marks the given notifications read, or all of the user's when
	// ids is empty, and returns how many changed.
	MarkRead(ctx context.Context, userID shared.UserID, ids []string) (int64, error)
}
