// Package badge defines achievement rules and the awards users earn from them.
package badge

import (
	"sort"
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// Type groups badges on the achievements page.
type Type string

const (
	TypeLesson  Type = "lesson"
	TypeQuiz    Type = "quiz"
	TypeStreak  Type = "streak"
	TypeSpecial Type = "special"
)

// IsValid checks the badge type.
func (t Type) IsValid() bool {
	switch t {
	case TypeLesson, TypeQuiz, TypeStreak, TypeSpecial:
		return true
	}
	return false
}

// Requirement names the counter a badge is evaluated against.
type Requirement string

const (
	RequirementLessonsCompleted   Requirement = "lessons_completed"
	RequirementQuizzesPassed      Requirement = "quizzes_passed"
	RequirementPerfectQuiz        Requirement = "perfect_quiz"
	RequirementStreakDays         Requirement = "streak_days"
	RequirementForumPosts         Requirement = "forum_posts"
	RequirementSavedLessons       Requirement = "saved_lessons"
	RequirementCategoriesExplored Requirement = "categories_explored"
	RequirementEarlyLearner       Requirement = "early_learner"
	RequirementNightLearner       Requirement = "night_learner"
)

// CounterRequirements are re-evaluated by a full rescan. Time-of-day
// requirements are one-shot signals and have no counter to recompute.
var CounterRequirements = []Requirement{
	RequirementLessonsCompleted,
	RequirementQuizzesPassed,
	RequirementPerfectQuiz,
	RequirementSavedLessons,
	RequirementForumPosts,
	RequirementCategoriesExplored,
	RequirementStreakDays,
}

// IsValid checks the requirement key.
func (r Requirement) IsValid() bool {
	switch r {
	case RequirementLessonsCompleted, RequirementQuizzesPassed, RequirementPerfectQuiz,
		RequirementStreakDays, RequirementForumPosts, RequirementSavedLessons,
		RequirementCategoriesExplored, RequirementEarlyLearner, RequirementNightLearner:
		return true
	}
	return false
}

// Definition is one catalog entry.
type Definition struct {
	ID               shared.BadgeID
	Name             string
	Description      string
	Type             Type
	Icon             string
	Color            string
	PointsReward     int
	Requirement      Requirement
	RequirementValue int
	IsActive         bool
	DisplayOrder     int
}

// Validate checks a definition before it is stored.
func (d Definition) Validate() error {
	if d.Name == "" {
		return shared.NewDomainError("badge", "Validate", shared.ErrEmptyValue, "badge name is required")
	}
	if !d.Type.IsValid() {
		return shared.NewDomainError("badge", "Validate", shared.ErrInvalidInput, "unknown badge type")
	}
	if !d.Requirement.IsValid() {
		return shared.ErrUnknownRequirement
	}
	if d.PointsReward < 0 || d.RequirementValue < 0 {
		return shared.NewDomainError("badge", "Validate", shared.ErrNegativeValue, "reward and requirement must be non-negative")
	}
	return nil
}

// Satisfied reports whether value meets the definition's threshold.
func (d Definition) Satisfied(value int) bool {
	return d.IsActive && value >= d.RequirementValue
}

// Award records that a user holds a badge.
type Award struct {
	ID       string
	UserID   shared.UserID
	BadgeID  shared.BadgeID
	EarnedAt time.Time
	IsNew    bool
}

// EarnedBadge joins an award with its definition for display.
type EarnedBadge struct {
	Award
	Badge Definition
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Catalog is the immutable, process-wide set of badge definitions.
type Catalog struct {
	defs  []Definition
	byID  map[shared.BadgeID]Definition
	byReq map[Requirement][]Definition
}

// NewCatalog indexes definitions. Inactive entries are kept for display but
// never match.
func NewCatalog(defs []Definition) *Catalog {
	c := &Catalog{
		defs:  make([]Definition, len(defs)),
		byID:  make(map[shared.BadgeID]Definition, len(defs)),
		byReq: make(map[Requirement][]Definition),
	}
	copy(c.defs, defs)
	sort.SliceStable(c.defs, func(i, j int) bool {
		if c.defs[i].Type != c.defs[j].Type {
			return typeRank(c.defs[i].Type) < typeRank(c.defs[j].Type)
		}
		return c.defs[i].DisplayOrder < c.defs[j].DisplayOrder
	})
	for _, d := range c.defs {
		c.byID[d.ID] = d
		c.byReq[d.Requirement] = append(c.byReq[d.Requirement], d)
	}
	return c
}

func typeRank(t Type) int {
	switch t {
	case TypeLesson:
		return 0
	case TypeQuiz:
		return 1
	case TypeStreak:
		return 2
	default:
		return 3
	}
}

// All returns every definition in display order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Get looks a definition up by id.
func (c *Catalog) Get(id shared.BadgeID) (Definition, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// ActiveCount returns the number of active definitions.
func (c *Catalog) ActiveCount() int {
	n := 0
	for _, d := range c.defs {
		if d.IsActive {
			n++
		}
	}
	return n
}

// Eligible returns the active definitions for req whose threshold value
// meets, excluding any in held.
func (c *Catalog) Eligible(req Requirement, value int, held map[shared.BadgeID]bool) []Definition {
	var out []Definition
	for _, d := range c.byReq[req] {
		if d.Satisfied(value) && !held[d.ID] {
			out = append(out, d)
		}
	}
	return out
}
