package points

// levelThresholds[i] is the total needed to reach level i+1.
var levelThresholds = [...]int{0, 100, 300, 600, 1000, 1500, 2100, 2800, 3600, 4500, 5500, 6600, 7800, 9100, 10500}

var levelTitles = [...]string{
	"Newcomer", "Learner", "Student", "Practitioner", "Skilled",
	"Proficient", "Advanced", "Expert", "Master", "Grandmaster",
	"Legend", "Champion", "Elite", "Virtuoso", "Sage",
}

const (
	MinLevel = 1
	MaxLevel = len(levelThresholds)
)

// LevelFor returns the level for a point total: the smallest index whose
// threshold exceeds total (never below 1), or MaxLevel once the last
// threshold is reached.
func LevelFor(total int) int {
	for i, threshold := range levelThresholds {
		if total < threshold {
			if i < MinLevel {
				return MinLevel
			}
			return i
		}
	}
	return MaxLevel
}

// TitleFor returns the title of a level, clamped to the table.
func TitleFor(level int) string {
	idx := level - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(levelTitles) {
		idx = len(levelTitles) - 1
	}
	return levelTitles[idx]
}

// ThresholdFor returns the total required to reach level.
func ThresholdFor(level int) int {
	if level <= MinLevel {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return levelThresholds[level-1]
}

// PointsToNextLevel returns 0 at max level.
func PointsToNextLevel(total int) int {
	level := LevelFor(total)
	if level >= MaxLevel {
		return 0
	}
	return levelThresholds[level] - total
}

// ProgressPercent returns floor((total-prev)/(next-prev)*100), or 100 at
// max level or when the band is empty.
func ProgressPercent(total int) int {
	level := LevelFor(total)
	if level >= MaxLevel {
		return 100
	}
	prev := 0
	if level > 1 {
		prev = levelThresholds[level-1]
	}
	needed := levelThresholds[level] - prev
	if needed <= 0 {
		return 100
	}
	pct := (total - prev) * 100 / needed
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}
