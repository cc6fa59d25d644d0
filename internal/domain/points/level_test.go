package points

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{105, 2},
		{299, 2},
		{300, 3},
		{1000, 5},
		{10499, 14},
		{10500, 15},
		{1_000_000, 15},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.total), "total=%d", tt.total)
	}
}

func TestLevelFor_MonotoneAndBounded(t *testing.T) {
	prev := LevelFor(0)
	for total := 0; total <= 12000; total++ {
		lvl := LevelFor(total)
		assert.GreaterOrEqual(t, lvl, prev)
		assert.GreaterOrEqual(t, lvl, MinLevel)
		assert.LessOrEqual(t, lvl, MaxLevel)
		prev = lvl
	}
}

func TestTitleFor(t *testing.T) {
	assert.Equal(t, "Newcomer", TitleFor(1))
	assert.Equal(t, "Learner", TitleFor(2))
	assert.Equal(t, "Sage", TitleFor(15))
	assert.Equal(t, "Newcomer", TitleFor(0))
	assert.Equal(t, "Sage", TitleFor(99))
}

func TestProgressAndNextLevel(t *testing.T) {
	tests := []struct {
		total    int
		progress int
		toNext   int
	}{
		{0, 0, 100},
		{50, 50, 50},
		{100, 0, 200},
		{250, 75, 50},
		{10499, 99, 1},
		{10500, 100, 0},
		{20000, 100, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.progress, ProgressPercent(tt.total), "progress total=%d", tt.total)
		assert.Equal(t, tt.toNext, PointsToNextLevel(tt.total), "next total=%d", tt.total)
	}
}

func TestThresholdFor(t *testing.T) {
	assert.Equal(t, 0, ThresholdFor(1))
	assert.Equal(t, 100, ThresholdFor(2))
	assert.Equal(t, 10500, ThresholdFor(15))
	assert.Equal(t, 10500, ThresholdFor(20))
}
