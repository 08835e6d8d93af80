// Package progress computes course completion and persists fine-grained
// progress records: a debounced client-side sink and the server-side
// upsert service behind it.
package progress

import (
	"encoding/json"
	"math"
	"time"
)

// Percentage returns the completion percentage of a course with
// lessonCount lessons when the learner is at (lessonIndex, blockIndex) in
// a lesson of blockCount blocks. The result is clamped to 0..100.
func Percentage(lessonCount, lessonIndex, blockIndex, blockCount int) int {
	if lessonCount <= 0 || blockCount <= 0 {
		return 0
	}
	perBlock := 100.0 / float64(blockCount)
	done := float64(lessonIndex*100) + float64(blockIndex+1)*perBlock
	pct := int(math.Round(done / float64(lessonCount*100) * 100))
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// Record is one stored progress row, keyed by
// (UserID, CourseID, LessonID, BlockID).
type Record struct {
	UserID               string          `json:"userId"`
	CourseID             string          `json:"courseId"`
	LessonID             string          `json:"lessonId"`
	BlockID              string          `json:"blockId"`
	CompletionPercentage int             `json:"completionPercentage"`
	Score                int             `json:"score"`
	TimeSpent            int             `json:"timeSpent"`
	Completed            bool            `json:"completed"`
	Answers              json.RawMessage `json:"answers,omitempty"`
	CompletedAt          *time.Time      `json:"completedAt,omitempty"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// View is the read shape returned to clients.
type View struct {
	CompletionPercentage int             `json:"completionPercentage"`
	TimeSpent            int             `json:"timeSpent"`
	Score                int             `json:"score"`
	Completed            bool            `json:"completed"`
	Answers              json.RawMessage `json:"answers"`
	LessonID             string          `json:"lessonId"`
	BlockID              string          `json:"blockId"`
}

// View projects r to its client read shape.
func (r *Record) View() *View {
	if r == nil {
		return nil
	}
	answers := r.Answers
	if len(answers) == 0 {
		answers = json.RawMessage("{}")
	}
	return &View{
		CompletionPercentage: r.CompletionPercentage,
		TimeSpent:            r.TimeSpent,
		Score:                r.Score,
		Completed:            r.Completed,
		Answers:              answers,
		LessonID:             r.LessonID,
		BlockID:              r.BlockID,
	}
}
