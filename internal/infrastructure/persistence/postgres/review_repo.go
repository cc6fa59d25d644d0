package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rhythmofsigns/progress-engine/internal/domain/review"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// ReviewRepository implements review.Repository for PostgreSQL.
type ReviewRepository struct {
	q Querier
}

const cardColumns = `
	id, user_id, vocabulary_id, lesson_id, ease_factor, interval_days, repetitions,
	next_review_date, last_reviewed_at, last_rating, total_reviews, correct_reviews, created_at`

// Get implements review.Repository.
func (r *ReviewRepository) Get(ctx context.Context, userID shared.UserID, vocabularyID shared.VocabularyID) (*review.Card, error) {
	card, err := scanCard(r.q.QueryRow(ctx,
		`SELECT `+cardColumns+` FROM review_cards WHERE user_id = $1 AND vocabulary_id = $2`,
		userID.Int64(), int64(vocabularyID),
	))
	if IsNoRows(err) {
		return nil, shared.ErrCardNotFound
	}
	if err != nil {
		return nil, storageError("GetCard", fmt.Errorf("get review card: %w", err))
	}
	return card, nil
}

// GetOrCreate implements review.Repository.
func (r *ReviewRepository) GetOrCreate(ctx context.Context, c *review.Card) (*review.Card, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO review_cards (user_id, vocabulary_id, lesson_id, ease_factor, next_review_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, vocabulary_id) DO NOTHING
	`, c.UserID.Int64(), int64(c.VocabularyID), nullableID(int64(c.LessonID)), c.EaseFactor, c.NextReviewDate, c.CreatedAt)
	if err != nil {
		return nil, storageError("CreateCard", fmt.Errorf("create review card: %w", err))
	}
	return r.Get(ctx, c.UserID, c.VocabularyID)
}

// Save implements review.Repository.
func (r *ReviewRepository) Save(ctx context.Context, c *review.Card) error {
	var lastRating *int16
	if c.LastRating != nil {
		v := int16(*c.LastRating)
		lastRating = &v
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE review_cards SET
			ease_factor = $1,
			interval_days = $2,
			repetitions = $3,
			next_review_date = $4,
			last_reviewed_at = $5,
			last_rating = $6,
			total_reviews = $7,
			correct_reviews = $8
		WHERE user_id = $9 AND vocabulary_id = $10
	`,
		c.EaseFactor, c.Interval, c.Repetitions, c.NextReviewDate, c.LastReviewedAt, lastRating,
		c.TotalReviews, c.CorrectReviews, c.UserID.Int64(), int64(c.VocabularyID),
	)
	if err != nil {
		return storageError("SaveCard", fmt.Errorf("save review card: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCardNotFound
	}
	return nil
}

// Due implements review.Repository.
func (r *ReviewRepository) Due(ctx context.Context, userID shared.UserID, today time.Time, filter review.DueFilter) ([]*review.Card, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = review.DefaultDueLimit
	}
	return r.list(ctx, `
		SELECT `+cardColumns+`
		FROM review_cards
		WHERE user_id = $1
		  AND ($2::bigint = 0 OR lesson_id = $2)
		  AND (next_review_date IS NULL OR next_review_date <= $3)
		ORDER BY next_review_date NULLS FIRST, id
		LIMIT $4
	`, userID.Int64(), int64(filter.LessonID), today, limit)
}

// ListByUser implements review.Repository.
func (r *ReviewRepository) ListByUser(ctx context.Context, userID shared.UserID, lessonID shared.LessonID) ([]*review.Card, error) {
	return r.list(ctx, `
		SELECT `+cardColumns+`
		FROM review_cards
		WHERE user_id = $1 AND ($2::bigint = 0 OR lesson_id = $2)
		ORDER BY id
	`, userID.Int64(), int64(lessonID))
}

func (r *ReviewRepository) list(ctx context.Context, query string, args ...any) ([]*review.Card, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, storageError("ListCards", fmt.Errorf("list review cards: %w", err))
	}
	defer rows.Close()

	var out []*review.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review card: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("ListCards", err)
	}
	return out, nil
}

func scanCard(row pgx.Row) (*review.Card, error) {
	var (
		c                    review.Card
		userID, vocabularyID int64
		lessonID             *int64
		lastRating           *int16
	)
	err := row.Scan(
		&c.ID, &userID, &vocabularyID, &lessonID, &c.EaseFactor, &c.Interval, &c.Repetitions,
		&c.NextReviewDate, &c.LastReviewedAt, &lastRating, &c.TotalReviews, &c.CorrectReviews, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.UserID = shared.UserID(userID)
	c.VocabularyID = shared.VocabularyID(vocabularyID)
	if lessonID != nil {
		c.LessonID = shared.LessonID(*lessonID)
	}
	if lastRating != nil {
		rating := review.Rating(*lastRating)
		c.LastRating = &rating
	}
	return &c, nil
}

// nullableID stores a zero id as NULL.
func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
