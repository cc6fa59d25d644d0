package command

import (
	"context"

	"github.com/rhythmofsigns/progress-engine/internal/domain/notification"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// MarkNotificationsReadCommand marks notifications read. Empty IDs means all.
type MarkNotificationsReadCommand struct {
	UserID shared.UserID
	IDs    []string
}

// Validate validates the command.
func (cmd MarkNotificationsReadCommand) Validate() error {
	if !cmd.UserID.IsValid() {
		return shared.NewDomainError("notification", "MarkRead", shared.ErrInvalidID, "invalid user id")
	}
	return nil
}

// MarkNotificationsReadHandler handles MarkNotificationsReadCommand.
type MarkNotificationsReadHandler struct {
	repo notification.Repository
}

// NewMarkNotificationsReadHandler creates the handler.
func NewMarkNotificationsReadHandler(repo notification.Repository) *MarkNotificationsReadHandler {
	return &MarkNotificationsReadHandler{repo: repo}
}

// Handle marks the notifications read and returns how many changed.
func (h *MarkNotificationsReadHandler) Handle(ctx context.Context, cmd MarkNotificationsReadCommand) (int64, error) {
	if err := cmd.Validate(); err != nil {
		return 0, err
	}
	return h.repo.MarkRead(ctx, cmd.UserID, cmd.IDs)
}

// StoreSink persists emitted notifications for the in-app notification center.
type StoreSink struct {
	repo notification.Repository
}

// NewStoreSink creates a sink backed by repo.
func NewStoreSink(repo notification.Repository) *StoreSink {
	return &StoreSink{repo: repo}
}

// Emit implements notification.Sink.
func (s *StoreSink) Emit(ctx context.Context, n notification.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	return s.repo.Save(ctx, &n)
}
