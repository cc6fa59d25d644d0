package badge

// DefaultCatalog returns the built-in badge set. IDs are assigned by storage
// when the catalog is seeded; entries are matched by name.
func DefaultCatalog() []Definition {
	return []Definition{
		// Lesson milestones
		{Name: "First Steps", Description: "Complete your first lesson", Type: TypeLesson, Icon: "fa-book", Color: "bronze", PointsReward: 25, Requirement: RequirementLessonsCompleted, RequirementValue: 1, DisplayOrder: 1, IsActive: true},
		{Name: "Getting Started", Description: "Complete 5 lessons", Type: TypeLesson, Icon: "fa-book", Color: "bronze", PointsReward: 50, Requirement: RequirementLessonsCompleted, RequirementValue: 5, DisplayOrder: 2, IsActive: true},
		{Name: "Dedicated Learner", Description: "Complete 10 lessons", Type: TypeLesson, Icon: "fa-graduation-cap", Color: "silver", PointsReward: 100, Requirement: RequirementLessonsCompleted, RequirementValue: 10, DisplayOrder: 3, IsActive: true},
		{Name: "Knowledge Seeker", Description: "Complete 25 lessons", Type: TypeLesson, Icon: "fa-brain", Color: "gold", PointsReward: 250, Requirement: RequirementLessonsCompleted, RequirementValue: 25, DisplayOrder: 4, IsActive: true},
		{Name: "Master Student", Description: "Complete 50 lessons", Type: TypeLesson, Icon: "fa-crown", Color: "platinum", PointsReward: 500, Requirement: RequirementLessonsCompleted, RequirementValue: 50, DisplayOrder: 5, IsActive: true},

		// Quiz achievements
		{Name: "Quiz Taker", Description: "Pass your first quiz", Type: TypeQuiz, Icon: "fa-star", Color: "bronze", PointsReward: 25, Requirement: RequirementQuizzesPassed, RequirementValue: 1, DisplayOrder: 1, IsActive: true},
		{Name: "Quiz Master", Description: "Pass 10 quizzes", Type: TypeQuiz, Icon: "fa-trophy", Color: "silver", PointsReward: 100, Requirement: RequirementQuizzesPassed, RequirementValue: 10, DisplayOrder: 2, IsActive: true},
		{Name: "Perfect Score", Description: "Get 100% on any quiz", Type: TypeQuiz, Icon: "fa-gem", Color: "gold", PointsReward: 75, Requirement: RequirementPerfectQuiz, RequirementValue: 1, DisplayOrder: 3, IsActive: true},
		{Name: "Quiz Champion", Description: "Pass 25 quizzes", Type: TypeQuiz, Icon: "fa-medal", Color: "gold", PointsReward: 250, Requirement: RequirementQuizzesPassed, RequirementValue: 25, DisplayOrder: 4, IsActive: true},

		// Streak achievements
		{Name: "On Fire", Description: "Maintain a 3-day streak", Type: TypeStreak, Icon: "fa-fire", Color: "bronze", PointsReward: 30, Requirement: RequirementStreakDays, RequirementValue: 3, DisplayOrder: 1, IsActive: true},
		{Name: "Week Warrior", Description: "Maintain a 7-day streak", Type: TypeStreak, Icon: "fa-fire", Color: "silver", PointsReward: 75, Requirement: RequirementStreakDays, RequirementValue: 7, DisplayOrder: 2, IsActive: true},
		{Name: "Consistency King", Description: "Maintain a 30-day streak", Type: TypeStreak, Icon: "fa-fire", Color: "gold", PointsReward: 300, Requirement: RequirementStreakDays, RequirementValue: 30, DisplayOrder: 3, IsActive: true},
		{Name: "Unstoppable", Description: "Maintain a 100-day streak", Type: TypeStreak, Icon: "fa-fire", Color: "diamond", PointsReward: 1000, Requirement: RequirementStreakDays, RequirementValue: 100, DisplayOrder: 4, IsActive: true},

		// Special achievements
		{Name: "Social Butterfly", Description: "Create your first forum post", Type: TypeSpecial, Icon: "fa-comments", Color: "bronze", PointsReward: 20, Requirement: RequirementForumPosts, RequirementValue: 1, DisplayOrder: 1, IsActive: true},
		{Name: "Bookworm", Description: "Save 10 lessons to your collection", Type: TypeSpecial, Icon: "fa-bookmark", Color: "silver", PointsReward: 50, Requirement: RequirementSavedLessons, RequirementValue: 10, DisplayOrder: 2, IsActive: true},
		{Name: "Early Bird", Description: "Complete a lesson before 8 AM", Type: TypeSpecial, Icon: "fa-sun", Color: "gold", PointsReward: 40, Requirement: RequirementEarlyLearner, RequirementValue: 1, DisplayOrder: 3, IsActive: true},
		{Name: "Night Owl", Description: "Complete a lesson after 10 PM", Type: TypeSpecial, Icon: "fa-moon", Color: "silver", PointsReward: 40, Requirement: RequirementNightLearner, RequirementValue: 1, DisplayOrder: 4, IsActive: true},
		{Name: "Explorer", Description: "Study lessons from 5 different categories", Type: TypeSpecial, Icon: "fa-compass", Color: "gold", PointsReward: 100, Requirement: RequirementCategoriesExplored, RequirementValue: 5, DisplayOrder: 5, IsActive: true},
	}
}
