package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/apperr"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/logging"
)

// Repo stores progress records.
type Repo interface {
	// UpsertProgress inserts rec or merges it into the row with the same
	// key: completed is OR-ed, completedAt is set once, the numeric fields
	// take the new values, answers are replaced only when rec carries them.
	UpsertProgress(ctx context.Context, rec Record) error
	LatestProgress(ctx context.Context, userID, courseID string) (*Record, error)
	CompletedCourseCount(ctx context.Context, userID string) (int, error)
}

// SubmitRequest is the progress write payload.
type SubmitRequest struct {
	CourseID             content.ID      `json:"courseId" validate:"required,numeric"`
	LessonID             content.ID      `json:"lessonId,omitempty"`
	BlockID              content.ID      `json:"blockId,omitempty"`
	CompletionPercentage *int            `json:"completionPercentage,omitempty" validate:"omitempty,min=0,max=100"`
	Score                *int            `json:"score,omitempty" validate:"omitempty,min=0"`
	TimeSpent            *int            `json:"timeSpent,omitempty" validate:"omitempty,min=0"`
	Completed            *bool           `json:"completed,omitempty"`
	Answers              json.RawMessage `json:"answers,omitempty"`
}

// Service is the server side of progress persistence.
type Service struct {
	repo     Repo
	validate *validator.Validate
	logger   *zap.Logger
}

func NewService(repo Repo, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(),
		logger:   logging.OrNop(logger),
	}
}

// Submit validates req and upserts it for userID.
func (s *Service) Submit(ctx context.Context, userID string, req SubmitRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return apperr.Validation("invalid progress update", describe(err))
	}
	if len(req.Answers) > 0 && !json.Valid(req.Answers) {
		return apperr.Validation("invalid progress update", "answers must be JSON")
	}

	rec := Record{
		UserID:   userID,
		CourseID: string(req.CourseID),
		LessonID: string(req.LessonID),
		BlockID:  string(req.BlockID),
		Answers:  req.Answers,
	}
	if req.CompletionPercentage != nil {
		rec.CompletionPercentage = *req.CompletionPercentage
	}
	if req.Score != nil {
		rec.Score = *req.Score
	}
	if req.TimeSpent != nil {
		rec.TimeSpent = *req.TimeSpent
	}
	if req.Completed != nil {
		rec.Completed = *req.Completed
	}
	return s.Save(ctx, rec)
}

// Save upserts an already validated record. It satisfies Writer so an
// in-process sink can write without going through Submit.
func (s *Service) Save(ctx context.Context, rec Record) error {
	if err := s.repo.UpsertProgress(ctx, rec); err != nil {
		return apperr.Persistence("save progress", err)
	}
	s.logger.Debug("progress saved",
		zap.String("user", rec.UserID),
		zap.String("course", rec.CourseID),
		zap.String("block", rec.BlockID),
		zap.Int("pct", rec.CompletionPercentage),
		zap.Bool("completed", rec.Completed))
	return nil
}

// Latest returns the most recently updated record for the course, or nil.
func (s *Service) Latest(ctx context.Context, userID string, courseID content.ID) (*Record, error) {
	if _, ok := courseID.Int(); !ok {
		return nil, apperr.Validation("invalid courseId", string(courseID))
	}
	rec, err := s.repo.LatestProgress(ctx, userID, string(courseID))
	if err != nil {
		return nil, apperr.Persistence("load progress", err)
	}
	return rec, nil
}

// CompletedCourses counts the distinct courses userID has completed.
func (s *Service) CompletedCourses(ctx context.Context, userID string) (int, error) {
	n, err := s.repo.CompletedCourseCount(ctx, userID)
	if err != nil {
		return 0, apperr.Persistence("count completed courses", err)
	}
	return n, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
