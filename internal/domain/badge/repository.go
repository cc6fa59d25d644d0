package badge

import (
	"context"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// Repository persists the catalog and user awards.
type Repository interface {
	// LoadCatalog returns every stored definition.
	LoadCatalog(ctx context.Context) ([]Definition, error)

	// SeedDefinitions inserts definitions whose name is not stored yet and
	// returns how many were created. Existing entries are left untouched.
	SeedDefinitions(ctx context.Context, defs []Definition) (int, error)

	// HeldBadgeIDs returns the ids of every badge the user holds.
	HeldBadgeIDs(ctx context.Context, userID shared.UserID) (map[shared.BadgeID]bool, error)

	// InsertAward stores the award if (user, badge) is absent. It returns
	// false, without error, when the user already holds the badge.
	InsertAward(ctx context.Context, award *Award) (bool, error)

	// ListAwards returns a user's awards, newest first. limit <= 0 means all.
	ListAwards(ctx context.Context, userID shared.UserID, limit int) ([]Award, error)

	// MarkSeen clears the new flag on all of a user's awards.
	MarkSeen(ctx context.Context, userID shared.UserID) (int64, error)
}
