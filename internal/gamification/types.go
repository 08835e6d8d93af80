package gamification

import (
	"context"
	"time"
)

// Ledger sources.
const (
	SourceCourseCompletion = "course_completion"
	SourceAchievement      = "achievement"
)

// Achievement codes.
const (
	FirstCourse  = "first_course"
	CourseMaster = "course_master"
)

// CourseMasterThreshold is the completed-course count that earns course_master.
const CourseMasterThreshold = 10

// DefaultCompletionXP is granted for finishing a course, before quiz points.
const DefaultCompletionXP = 100

// Achievement is a one-time milestone carrying a fixed XP reward.
type Achievement struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Points      int    `json:"points"`
}

// Catalogue is seeded into the store at startup.
func Catalogue() []Achievement {
	return []Achievement{
		{Code: FirstCourse, Name: "First Steps", Description: "Complete your first course", Points: 50},
		{Code: CourseMaster, Name: "Course Master", Description: "Complete 10 courses", Points: 500},
	}
}

// Awarded is an achievement a user holds.
type Awarded struct {
	Achievement
	AwardedAt time.Time `json:"awarded_at"`
}

// XP is a user's experience row.
type XP struct {
	UserID        string    `json:"-"`
	TotalXP       int       `json:"total_xp"`
	Level         int       `json:"level"`
	XPToNextLevel int       `json:"xp_to_next_level"`
	UpdatedAt     time.Time `json:"-"`
}

// LevelProgress is the XP earned inside the current level.
func (x XP) LevelProgress() int {
	return LevelProgress(x.TotalXP, x.Level)
}

// LedgerEntry is one immutable XP grant.
type LedgerEntry struct {
	ID          string
	UserID      string
	Amount      int
	Source      string
	SourceID    string
	Description string
	CreatedAt   time.Time
}

// Summary is the gamification read model of one user.
type Summary struct {
	Achievements []Awarded `json:"achievements"`
	XP           XP        `json:"xp"`
}

// Repo persists XP rows, the ledger and achievements.
type Repo interface {
	// GetXP returns nil when the user has no row yet.
	GetXP(ctx context.Context, userID string) (*XP, error)
	// RecordXP writes the row and appends entry in one transaction.
	RecordXP(ctx context.Context, xp XP, entry LedgerEntry) error
	HasLedgerEntry(ctx context.Context, userID, source, sourceID string) (bool, error)

	// CompletedCourseCount counts distinct courses the user finished.
	CompletedCourseCount(ctx context.Context, userID string) (int, error)

	EnsureAchievements(ctx context.Context, catalogue []Achievement) error
	Achievement(ctx context.Context, code string) (*Achievement, error)
	HasUserAchievement(ctx context.Context, userID, code string) (bool, error)
	AwardAchievement(ctx context.Context, userID, code string, at time.Time) error
	UserAchievements(ctx context.Context, userID string) ([]Awarded, error)
}
