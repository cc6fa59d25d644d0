package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one forward-only schema step. Down is kept for manual
// recovery and never run by the engine.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// migrationLockKey serializes migrators started by several workers at once.
const migrationLockKey = 0x70726f67 // "prog"

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Migrator applies the engine's schema.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: Migrations()}
}

// Migrate applies every pending migration, each in its own transaction, and
// returns how many ran. Each transaction takes a global advisory lock and
// re-checks the version, so racing workers apply a step once.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := checkOrder(m.migrations); err != nil {
		return 0, err
	}
	if _, err := m.conn.Exec(ctx, createMigrationsTable); err != nil {
		return 0, fmt.Errorf("%w: create schema_migrations: %w", ErrMigrationFailed, storageError("Migrate", err))
	}

	ran := 0
	for _, mig := range m.migrations {
		applied, err := m.apply(ctx, mig)
		if err != nil {
			return ran, fmt.Errorf("%w: %03d_%s: %w", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
		if applied {
			ran++
		}
	}
	return ran, nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) (applied bool, err error) {
	err = m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
			return err
		}
		var done bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, mig.Version,
		).Scan(&done)
		if err != nil || done {
			return err
		}
		if _, err := tx.Exec(ctx, mig.Up); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name,
		); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// checkOrder rejects lists that are not strictly ascending or carry an
// empty step.
func checkOrder(migs []Migration) error {
	prev := 0
	for _, mig := range migs {
		if mig.Version <= prev {
			return fmt.Errorf("%w: version %d out of order", ErrMigrationFailed, mig.Version)
		}
		if mig.Up == "" {
			return fmt.Errorf("%w: version %d has no up SQL", ErrMigrationFailed, mig.Version)
		}
		prev = mig.Version
	}
	return nil
}

// Migrations lists the schema in order.
func Migrations() []Migration {
	return []Migration{
		{1, "create_points_and_streaks", migration001Up, migration001Down},
		{2, "create_review_cards", migration002Up, migration002Down},
		{3, "create_badges", migration003Up, migration003Down},
		{4, "create_activity_and_facts", migration004Up, migration004Down},
		{5, "create_notifications", migration005Up, migration005Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: POINTS AND STREAKS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS point_accounts (
    user_id BIGINT PRIMARY KEY,
    total_points INTEGER NOT NULL DEFAULT 0,
    weekly_points INTEGER NOT NULL DEFAULT 0,
    monthly_points INTEGER NOT NULL DEFAULT 0,
    lesson_points INTEGER NOT NULL DEFAULT 0,
    quiz_points INTEGER NOT NULL DEFAULT 0,
    streak_points INTEGER NOT NULL DEFAULT 0,
    badge_points INTEGER NOT NULL DEFAULT 0,
    other_points INTEGER NOT NULL DEFAULT 0,
    last_weekly_reset DATE,
    last_monthly_reset DATE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT non_negative_points CHECK (
        total_points >= 0 AND weekly_points >= 0 AND monthly_points >= 0
    ),
    CONSTRAINT total_matches_sources CHECK (
        total_points = lesson_points + quiz_points + streak_points + badge_points + other_points
    )
);

CREATE INDEX IF NOT EXISTS idx_point_accounts_total ON point_accounts(total_points DESC, user_id);
CREATE INDEX IF NOT EXISTS idx_point_accounts_weekly ON point_accounts(weekly_points DESC, user_id);
CREATE INDEX IF NOT EXISTS idx_point_accounts_monthly ON point_accounts(monthly_points DESC, user_id);

CREATE TABLE IF NOT EXISTS streaks (
    user_id BIGINT PRIMARY KEY,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE,
    streak_started_at DATE,
    freeze_count INTEGER NOT NULL DEFAULT 2,
    freeze_used_date DATE,
    freeze_last_reset DATE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT longest_covers_current CHECK (longest_streak >= current_streak),
    CONSTRAINT valid_freeze_count CHECK (freeze_count BETWEEN 0 AND 2)
);
`

const migration001Down = `
DROP TABLE IF EXISTS streaks;
DROP TABLE IF EXISTS point_accounts;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: REVIEW CARDS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS review_cards (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    vocabulary_id BIGINT NOT NULL,
    lesson_id BIGINT,
    ease_factor DOUBLE PRECISION NOT NULL DEFAULT 2.5,
    interval_days INTEGER NOT NULL DEFAULT 0,
    repetitions INTEGER NOT NULL DEFAULT 0,
    next_review_date DATE,
    last_reviewed_at TIMESTAMP WITH TIME ZONE,
    last_rating SMALLINT,
    total_reviews INTEGER NOT NULL DEFAULT 0,
    correct_reviews INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT unique_user_vocabulary UNIQUE (user_id, vocabulary_id),
    CONSTRAINT valid_ease_factor CHECK (ease_factor BETWEEN 1.3 AND 3.0),
    CONSTRAINT valid_last_rating CHECK (last_rating IS NULL OR last_rating BETWEEN 1 AND 4),
    CONSTRAINT correct_within_total CHECK (correct_reviews <= total_reviews)
);

CREATE INDEX IF NOT EXISTS idx_review_cards_due ON review_cards(user_id, next_review_date NULLS FIRST, id);
CREATE INDEX IF NOT EXISTS idx_review_cards_lesson ON review_cards(user_id, lesson_id);
`

const migration002Down = `
DROP TABLE IF EXISTS review_cards;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: BADGES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS badges (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(100) NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    badge_type VARCHAR(20) NOT NULL,
    icon VARCHAR(50) NOT NULL DEFAULT '',
    color VARCHAR(20) NOT NULL DEFAULT '',
    points_reward INTEGER NOT NULL DEFAULT 0,
    requirement_type VARCHAR(40) NOT NULL,
    requirement_value INTEGER NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    display_order INTEGER NOT NULL DEFAULT 0,

    CONSTRAINT valid_badge_type CHECK (badge_type IN ('lesson', 'quiz', 'streak', 'special')),
    CONSTRAINT non_negative_badge_values CHECK (points_reward >= 0 AND requirement_value >= 0)
);

CREATE TABLE IF NOT EXISTS badge_awards (
    id TEXT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    badge_id BIGINT NOT NULL REFERENCES badges(id) ON DELETE CASCADE,
    earned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    is_new BOOLEAN NOT NULL DEFAULT TRUE,

    CONSTRAINT unique_user_badge UNIQUE (user_id, badge_id)
);

CREATE INDEX IF NOT EXISTS idx_badge_awards_user ON badge_awards(user_id, earned_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS badge_awards;
DROP TABLE IF EXISTS badges;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: DAILY ACTIVITY AND LEARNER FACTS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS daily_activities (
    user_id BIGINT NOT NULL,
    activity_date DATE NOT NULL,
    lessons_viewed INTEGER NOT NULL DEFAULT 0,
    lessons_completed INTEGER NOT NULL DEFAULT 0,
    quizzes_taken INTEGER NOT NULL DEFAULT 0,
    quizzes_passed INTEGER NOT NULL DEFAULT 0,
    flashcards_reviewed INTEGER NOT NULL DEFAULT 0,
    points_earned INTEGER NOT NULL DEFAULT 0,
    time_spent_minutes INTEGER NOT NULL DEFAULT 0,

    PRIMARY KEY (user_id, activity_date)
);

CREATE TABLE IF NOT EXISTS completed_lessons (
    user_id BIGINT NOT NULL,
    lesson_id BIGINT NOT NULL,
    category VARCHAR(100) NOT NULL DEFAULT '',
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, lesson_id)
);

CREATE TABLE IF NOT EXISTS saved_lessons (
    user_id BIGINT NOT NULL,
    lesson_id BIGINT NOT NULL,
    saved_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, lesson_id)
);

CREATE TABLE IF NOT EXISTS learner_counters (
    user_id BIGINT PRIMARY KEY,
    quizzes_passed INTEGER NOT NULL DEFAULT 0,
    perfect_quizzes INTEGER NOT NULL DEFAULT 0,
    forum_posts INTEGER NOT NULL DEFAULT 0
);
`

const migration004Down = `
DROP TABLE IF EXISTS learner_counters;
DROP TABLE IF EXISTS saved_lessons;
DROP TABLE IF EXISTS completed_lessons;
DROP TABLE IF EXISTS daily_activities;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 005: NOTIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration005Up = `
CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    notification_type VARCHAR(20) NOT NULL,
    title VARCHAR(200) NOT NULL,
    message TEXT NOT NULL DEFAULT '',
    icon VARCHAR(50) NOT NULL DEFAULT 'fa-bell',
    color VARCHAR(20) NOT NULL DEFAULT 'primary',
    link VARCHAR(200) NOT NULL DEFAULT '',
    is_read BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(user_id, created_at DESC) WHERE NOT is_read;
`

const migration005Down = `
DROP TABLE IF EXISTS notifications;
`
