package points

import (
	"context"
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// Repository persists point accounts. Implementations used inside a unit of
// work see and write the transaction's view.
type Repository interface {
	// Get returns the account or shared.ErrAccountNotFound.
	Get(ctx context.Context, userID shared.UserID) (*Account, error)

	// Ensure creates a zero account if none exists and returns the stored one.
	Ensure(ctx context.Context, userID shared.UserID, now time.Time) (*Account, error)

	// Save persists all counters of the account.
	Save(ctx context.Context, account *Account) error

	// ResetWeekly zeroes every weekly counter and returns the number of accounts touched.
	ResetWeekly(ctx context.Context, today time.Time) (int64, error)

	// ResetMonthly zeroes every monthly counter and returns the number of accounts touched.
	ResetMonthly(ctx context.Context, today time.Time) (int64, error)
}

// Standing is one leaderboard row. Rows carry no rank: readers derive the
// competition rank from the order and the points of the rows above.
type Standing struct {
	UserID shared.UserID
	Points int
	Total  int
}

// Level returns the all-time level of the row.
func (s Standing) Level() int { return LevelFor(s.Total) }

// RankingReader is the read side used by leaderboards.
type RankingReader interface {
	// Top returns accounts ordered by the period's counter, descending.
	Top(ctx context.Context, period Period, limit int) ([]Standing, error)

	// CountAbove returns how many accounts have strictly more than score in the period.
	CountAbove(ctx context.Context, period Period, score int) (int, error)

	// All returns every account's score for the period. Used to rebuild caches.
	All(ctx context.Context, period Period) ([]Standing, error)
}
