package badge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

func seededCatalog() *Catalog {
	defs := DefaultCatalog()
	for i := range defs {
		defs[i].ID = shared.BadgeID(i + 1)
	}
	return NewCatalog(defs)
}

func TestDefaultCatalog_IsValid(t *testing.T) {
	defs := DefaultCatalog()
	require.Len(t, defs, 18)

	names := map[string]bool{}
	for _, d := range defs {
		require.NoError(t, d.Validate(), d.Name)
		assert.False(t, names[d.Name], "duplicate name %s", d.Name)
		names[d.Name] = true
	}
}

func TestCatalog_Eligible(t *testing.T) {
	c := seededCatalog()

	got := c.Eligible(RequirementLessonsCompleted, 5, nil)
	require.Len(t, got, 2)
	assert.Equal(t, "First Steps", got[0].Name)
	assert.Equal(t, "Getting Started", got[1].Name)

	held := map[shared.BadgeID]bool{got[0].ID: true}
	again := c.Eligible(RequirementLessonsCompleted, 5, held)
	require.Len(t, again, 1)
	assert.Equal(t, "Getting Started", again[0].Name)

	assert.Empty(t, c.Eligible(RequirementStreakDays, 2, nil))
	assert.Len(t, c.Eligible(RequirementStreakDays, 100, nil), 4)
}

func TestCatalog_InactiveNeverMatches(t *testing.T) {
	defs := []Definition{
		{ID: 1, Name: "Gone", Type: TypeSpecial, Requirement: RequirementForumPosts, RequirementValue: 1, IsActive: false},
		{ID: 2, Name: "Here", Type: TypeSpecial, Requirement: RequirementForumPosts, RequirementValue: 1, IsActive: true},
	}
	c := NewCatalog(defs)

	got := c.Eligible(RequirementForumPosts, 10, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "Here", got[0].Name)
	assert.Equal(t, 1, c.ActiveCount())
	assert.Len(t, c.All(), 2)
}

func TestCatalog_DisplayOrder(t *testing.T) {
	c := seededCatalog()
	all := c.All()
	assert.Equal(t, TypeLesson, all[0].Type)
	assert.Equal(t, TypeSpecial, all[len(all)-1].Type)
	assert.Equal(t, "Explorer", all[len(all)-1].Name)

	d, ok := c.Get(all[0].ID)
	assert.True(t, ok)
	assert.Equal(t, all[0], d)
}

func TestDefinition_Validate(t *testing.T) {
	base := Definition{Name: "x", Type: TypeQuiz, Requirement: RequirementQuizzesPassed, RequirementValue: 1}
	require.NoError(t, base.Validate())

	bad := base
	bad.Name = ""
	assert.True(t, shared.IsValidation(bad.Validate()))

	bad = base
	bad.Requirement = "likes"
	assert.ErrorIs(t, bad.Validate(), shared.ErrInvalidInput)

	bad = base
	bad.PointsReward = -5
	assert.True(t, shared.IsValidation(bad.Validate()))
}
