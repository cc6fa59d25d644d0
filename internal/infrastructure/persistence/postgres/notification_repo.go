package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rhythmofsigns/progress-engine/internal/domain/notification"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// NotificationRepository implements notification.Repository for PostgreSQL.
type NotificationRepository struct {
	q Querier
}

// Save implements notification.Repository.
func (r *NotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO notifications (id, user_id, notification_type, title, message, icon, color, link, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, n.ID, n.UserID.Int64(), string(n.Type), n.Title, n.Message, n.Icon, n.Color, n.Link, n.IsRead, n.CreatedAt)
	if err != nil {
		return storageError("SaveNotification", fmt.Errorf("save notification: %w", err))
	}
	return nil
}

// Unread implements notification.Repository.
func (r *NotificationRepository) Unread(ctx context.Context, userID shared.UserID, limit int) ([]notification.Notification, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, notification_type, title, message, icon, color, link, is_read, created_at
		FROM notifications
		WHERE user_id = $1 AND NOT is_read
		ORDER BY created_at DESC, id DESC
		LIMIT NULLIF($2, 0)
	`, userID.Int64(), max(limit, 0))
	if err != nil {
		return nil, storageError("UnreadNotifications", fmt.Errorf("query unread notifications: %w", err))
	}
	defer rows.Close()

	var out []notification.Notification
	for rows.Next() {
		n := notification.Notification{UserID: userID}
		var typ string
		if err := rows.Scan(&n.ID, &typ, &n.Title, &n.Message, &n.Icon, &n.Color, &n.Link, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = notification.Type(typ)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("UnreadNotifications", err)
	}
	return out, nil
}

// CountUnread implements notification.Repository.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID shared.UserID) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`,
		userID.Int64(),
	).Scan(&n)
	if err != nil {
		return 0, storageError("CountUnread", fmt.Errorf("count unread notifications: %w", err))
	}
	return n, nil
}

// MarkRead implements notification.Repository.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID shared.UserID, ids []string) (int64, error) {
	if ids == nil {
		ids = []string{}
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE user_id = $1 AND NOT is_read
		  AND (cardinality($2::text[]) = 0 OR id = ANY($2::text[]))
	`, userID.Int64(), ids)
	if err != nil {
		return 0, storageError("MarkRead", fmt.Errorf("mark notifications read: %w", err))
	}
	return tag.RowsAffected(), nil
}
