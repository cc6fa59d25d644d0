package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rhythmofsigns/progress-engine/internal/application/command"
	"github.com/rhythmofsigns/progress-engine/internal/domain/activity"
	"github.com/rhythmofsigns/progress-engine/internal/domain/badge"
	"github.com/rhythmofsigns/progress-engine/internal/domain/notification"
	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/review"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
	"github.com/rhythmofsigns/progress-engine/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// userLockNamespace prefixes advisory lock keys so they do not collide with
// other users of the same database.
const userLockNamespace = "progress-engine:user:"

// Store exposes pool-backed repositories and runs per-user units of work.
type Store struct {
	conn *Connection
}

// NewStore creates a Store on conn.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

var (
	_ command.UnitOfWork = (*Store)(nil)
	_ command.Store      = (*Store)(nil)
	_ command.Store      = txStore{}
)

// Within runs fn in one transaction holding userID's advisory lock. The lock
// is released when the transaction ends.
func (s *Store) Within(ctx context.Context, userID shared.UserID, fn func(ctx context.Context, store command.Store) error) error {
	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
			userLockNamespace+userID.String(),
		)
		if err != nil {
			return storageError("Lock", fmt.Errorf("acquire user lock: %w", err))
		}
		return fn(ctx, txStore{q: tx})
	})
}

// Points implements command.Store outside a transaction.
func (s *Store) Points() points.Repository { return &PointRepository{q: s.conn} }

// Streaks implements command.Store outside a transaction.
func (s *Store) Streaks() streak.Repository { return &StreakRepository{q: s.conn} }

// Reviews implements command.Store outside a transaction.
func (s *Store) Reviews() review.Repository { return &ReviewRepository{q: s.conn} }

// Badges implements command.Store outside a transaction.
func (s *Store) Badges() badge.Repository { return &BadgeRepository{q: s.conn} }

// Activity implements command.Store outside a transaction.
func (s *Store) Activity() activity.Repository { return &ActivityRepository{q: s.conn} }

// Facts implements command.Store outside a transaction.
func (s *Store) Facts() activity.FactRepository { return &FactRepository{q: s.conn} }

// Notifications returns the notification repository.
func (s *Store) Notifications() notification.Repository { return &NotificationRepository{q: s.conn} }

// Ranking returns the leaderboard read side.
func (s *Store) Ranking() points.RankingReader { return &RankingRepository{q: s.conn} }

// txStore binds every repository to one transaction.
type txStore struct{ q Querier }

func (t txStore) Points() points.Repository { return &PointRepository{q: t.q, lock: true} }
func (t txStore) Streaks() streak.Repository { return &StreakRepository{q: t.q} }
func (t txStore) Reviews() review.Repository { return &ReviewRepository{q: t.q} }
func (t txStore) Badges() badge.Repository { return &BadgeRepository{q: t.q} }
func (t txStore) Activity() activity.Repository { return &ActivityRepository{q: t.q} }
func (t txStore) Facts() activity.FactRepository { return &FactRepository{q: t.q} }
