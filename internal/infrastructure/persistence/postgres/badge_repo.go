package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rhythmofsigns/progress-engine/internal/domain/badge"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// BadgeRepository implements badge.Repository for PostgreSQL.
type BadgeRepository struct {
	q Querier
}

// LoadCatalog implements badge.Repository.
func (r *BadgeRepository) LoadCatalog(ctx context.Context) ([]badge.Definition, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, name, description, badge_type, icon, color, points_reward,
		       requirement_type, requirement_value, is_active, display_order
		FROM badges
		ORDER BY display_order, id
	`)
	if err != nil {
		return nil, storageError("LoadCatalog", fmt.Errorf("load badge catalog: %w", err))
	}
	defer rows.Close()

	var out []badge.Definition
	for rows.Next() {
		var (
			d       badge.Definition
			id      int64
			typ     string
			reqType string
		)
		err := rows.Scan(&id, &d.Name, &d.Description, &typ, &d.Icon, &d.Color, &d.PointsReward,
			&reqType, &d.RequirementValue, &d.IsActive, &d.DisplayOrder)
		if err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		d.ID = shared.BadgeID(id)
		d.Type = badge.Type(typ)
		d.Requirement = badge.Requirement(reqType)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("LoadCatalog", err)
	}
	return out, nil
}

// SeedDefinitions implements badge.Repository. Rows are matched by name.
func (r *BadgeRepository) SeedDefinitions(ctx context.Context, defs []badge.Definition) (int, error) {
	created := 0
	for _, d := range defs {
		tag, err := r.q.Exec(ctx, `
			INSERT INTO badges (
				name, description, badge_type, icon, color, points_reward,
				requirement_type, requirement_value, is_active, display_order
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (name) DO NOTHING
		`, d.Name, d.Description, string(d.Type), d.Icon, d.Color, d.PointsReward,
			string(d.Requirement), d.RequirementValue, d.IsActive, d.DisplayOrder)
		if err != nil {
			return created, storageError("SeedBadges", fmt.Errorf("seed badge %q: %w", d.Name, err))
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}

// HeldBadgeIDs implements badge.Repository.
func (r *BadgeRepository) HeldBadgeIDs(ctx context.Context, userID shared.UserID) (map[shared.BadgeID]bool, error) {
	rows, err := r.q.Query(ctx, `SELECT badge_id FROM badge_awards WHERE user_id = $1`, userID.Int64())
	if err != nil {
		return nil, storageError("HeldBadges", fmt.Errorf("query held badges: %w", err))
	}
	defer rows.Close()

	held := make(map[shared.BadgeID]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan held badge: %w", err)
		}
		held[shared.BadgeID(id)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("HeldBadges", err)
	}
	return held, nil
}

// InsertAward implements badge.Repository. The (user_id, badge_id)
// constraint makes a second award a no-op.
func (r *BadgeRepository) InsertAward(ctx context.Context, award *badge.Award) (bool, error) {
	if award.ID == "" {
		award.ID = uuid.NewString()
	}
	tag, err := r.q.Exec(ctx, `
		INSERT INTO badge_awards (id, user_id, badge_id, earned_at, is_new)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, badge_id) DO NOTHING
	`, award.ID, award.UserID.Int64(), int64(award.BadgeID), award.EarnedAt, award.IsNew)
	if err != nil {
		return false, storageError("InsertAward", fmt.Errorf("insert badge award: %w", err))
	}
	return tag.RowsAffected() == 1, nil
}

// ListAwards implements badge.Repository.
func (r *BadgeRepository) ListAwards(ctx context.Context, userID shared.UserID, limit int) ([]badge.Award, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, badge_id, earned_at, is_new
		FROM badge_awards
		WHERE user_id = $1
		ORDER BY earned_at DESC, badge_id DESC
		LIMIT NULLIF($2, 0)
	`, userID.Int64(), max(limit, 0))
	if err != nil {
		return nil, storageError("ListAwards", fmt.Errorf("list badge awards: %w", err))
	}
	defer rows.Close()

	var out []badge.Award
	for rows.Next() {
		a := badge.Award{UserID: userID}
		var badgeID int64
		if err := rows.Scan(&a.ID, &badgeID, &a.EarnedAt, &a.IsNew); err != nil {
			return nil, fmt.Errorf("scan badge award: %w", err)
		}
		a.BadgeID = shared.BadgeID(badgeID)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("ListAwards", err)
	}
	return out, nil
}

// MarkSeen implements badge.Repository.
func (r *BadgeRepository) MarkSeen(ctx context.Context, userID shared.UserID) (int64, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE badge_awards SET is_new = FALSE WHERE user_id = $1 AND is_new`,
		userID.Int64(),
	)
	if err != nil {
		return 0, storageError("MarkSeen", fmt.Errorf("mark badges seen: %w", err))
	}
	return tag.RowsAffected(), nil
}
