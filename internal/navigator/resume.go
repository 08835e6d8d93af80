package navigator

import (
	"encoding/json"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/answers"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/progress"
)

// ResumeFrom turns the latest stored record into resume state for course.
// A block that no longer exists resumes at the start of its lesson, or of
// the course. Answers that fail to decode are dropped.
func ResumeFrom(course *content.Course, rec *progress.Record) Resume {
	if rec == nil {
		return Resume{}
	}
	r := Resume{
		TimeSpent:  rec.TimeSpent,
		Score:      rec.Score,
		Percentage: rec.CompletionPercentage,
		Completed:  rec.Completed,
	}

	if _, pos, ok := course.BlockByID(content.ID(rec.BlockID)); ok {
		r.Position = pos
	} else {
		for i, lesson := range course.Lessons {
			if string(lesson.ID) == rec.LessonID && len(lesson.Blocks) > 0 {
				r.Position = content.Position{Lesson: i}
				break
			}
		}
	}

	if len(rec.Answers) > 0 {
		var stored map[content.ID]answers.Answer
		if err := json.Unmarshal(rec.Answers, &stored); err == nil {
			r.Answers = stored
		}
	}
	return r
}

// furthestFor returns the first position whose completion percentage is
// pct, or the last one below it when none matches exactly.
func furthestFor(course *content.Course, pct int) content.Position {
	var best content.Position
	lessons := course.LessonCount()
	for l := 0; l < lessons; l++ {
		count := course.BlockCount(l)
		for b := 0; b < count; b++ {
			p := progress.Percentage(lessons, l, b, count)
			if p > pct {
				return best
			}
			best = content.Position{Lesson: l, Block: b}
			if p == pct {
				return best
			}
		}
	}
	return best
}
