package streak

import (
	"context"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// Repository persists streak state.
type Repository interface {
	// Get returns the state or shared.ErrStreakNotFound.
	Get(ctx context.Context, userID shared.UserID) (*State, error)

	// Ensure creates an empty state if none exists and returns the stored one.
	Ensure(ctx context.Context, userID shared.UserID) (*State, error)

	// Save persists the state.
	Save(ctx context.Context, state *State) error
}
