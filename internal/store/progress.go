package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/progress"
)

// ProgressRepo implements progress.Repo.
type ProgressRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

// completed only ever turns on, completed_at keeps its first value and
// answers are replaced only when the write carries them.
const upsertProgress = `INSERT INTO progress (
	user_id, course_id, lesson_id, block_id, completion_percentage, score, time_spent,
	completed, answers, completed_at, updated_at, sequence
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, course_id, lesson_id, block_id) DO UPDATE SET
	completion_percentage = excluded.completion_percentage,
	score = excluded.score,
	time_spent = excluded.time_spent,
	completed = MAX(progress.completed, excluded.completed),
	answers = COALESCE(excluded.answers, progress.answers),
	completed_at = COALESCE(progress.completed_at, excluded.completed_at),
	updated_at = excluded.updated_at,
	sequence = excluded.sequence`

func (r *ProgressRepo) UpsertProgress(ctx context.Context, rec progress.Record) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	var answers, completedAt any
	if len(rec.Answers) > 0 {
		answers = string(rec.Answers)
	}
	if rec.Completed {
		completedAt = millis(now)
	}

	_, err = r.db.ExecContext(ctx, upsertProgress,
		rec.UserID, rec.CourseID, rec.LessonID, rec.BlockID,
		rec.CompletionPercentage, rec.Score, rec.TimeSpent,
		rec.Completed, answers, completedAt, millis(now), seqNum,
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

var progressColumns = []string{
	"user_id", "course_id", "lesson_id", "block_id", "completion_percentage", "score",
	"time_spent", "completed", "answers", "completed_at", "updated_at",
}

// LatestProgress returns the most recently written record of the course,
// or nil when the user has none.
func (r *ProgressRepo) LatestProgress(ctx context.Context, userID, courseID string) (*progress.Record, error) {
	query, args := build().Select(progressColumns...).
		From(entsql.Table("progress")).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("course_id", courseID))).
		OrderBy(entsql.Desc("sequence")).
		Limit(1).
		Query()

	rec, err := scanProgress(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}

	// Completion belongs to the course, not to the row that happens to be
	// newest.
	if !rec.Completed {
		done, at, err := r.completion(ctx, userID, courseID)
		if err != nil {
			return nil, err
		}
		rec.Completed = done
		rec.CompletedAt = at
	}
	return rec, nil
}

func (r *ProgressRepo) completion(ctx context.Context, userID, courseID string) (bool, *time.Time, error) {
	query, args := build().Select("completed_at").
		From(entsql.Table("progress")).
		Where(entsql.And(
			entsql.EQ("user_id", userID),
			entsql.EQ("course_id", courseID),
			entsql.EQ("completed", 1),
		)).
		OrderBy("completed_at").
		Limit(1).
		Query()

	var at sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("query completion: %w", err)
	}
	if !at.Valid {
		return true, nil, nil
	}
	t := fromMillis(at.Int64)
	return true, &t, nil
}

// CompletedCourseCount counts the distinct courses the user completed,
// whether recorded by a progress write or by a completion XP grant.
func (r *ProgressRepo) CompletedCourseCount(ctx context.Context, userID string) (int, error) {
	return completedCourseCount(ctx, r.db, userID)
}

func completedCourseCount(ctx context.Context, db *sql.DB, userID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM (
		SELECT course_id FROM progress WHERE user_id = ? AND completed = 1
		UNION
		SELECT source_id FROM xp_ledger WHERE user_id = ? AND source = 'course_completion'
	)`, userID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completed courses: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner) (*progress.Record, error) {
	var rec progress.Record
	var answers sql.NullString
	var completedAt sql.NullInt64
	var updated int64
	err := row.Scan(&rec.UserID, &rec.CourseID, &rec.LessonID, &rec.BlockID,
		&rec.CompletionPercentage, &rec.Score, &rec.TimeSpent, &rec.Completed,
		&answers, &completedAt, &updated)
	if err != nil {
		return nil, err
	}
	if answers.Valid {
		rec.Answers = json.RawMessage(answers.String)
	}
	if completedAt.Valid {
		t := fromMillis(completedAt.Int64)
		rec.CompletedAt = &t
	}
	rec.UpdatedAt = fromMillis(updated)
	return &rec, nil
}
