package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
)

// RemoteWriter saves progress through a learning platform API
// (POST {base}/api/progress) on behalf of a token-bearing learner.
type RemoteWriter struct {
	client *resty.Client
}

func NewRemoteWriter(baseURL, token string, timeout time.Duration) *RemoteWriter {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json")
	return &RemoteWriter{client: client}
}

func (w *RemoteWriter) Save(ctx context.Context, rec Record) error {
	pct, score, spent, done := rec.CompletionPercentage, rec.Score, rec.TimeSpent, rec.Completed
	body := SubmitRequest{
		CourseID:             content.ID(rec.CourseID),
		LessonID:             content.ID(rec.LessonID),
		BlockID:              content.ID(rec.BlockID),
		CompletionPercentage: &pct,
		Score:                &score,
		TimeSpent:            &spent,
		Completed:            &done,
		Answers:              rec.Answers,
	}

	var result struct {
		Success bool `json:"success"`
	}
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/api/progress")
	if err != nil {
		return fmt.Errorf("post progress: %w", err)
	}
	if resp.IsError() || !result.Success {
		return fmt.Errorf("post progress: status %d", resp.StatusCode())
	}
	return nil
}

// Latest reads the learner's stored progress for courseID
// (GET {base}/api/progress). It returns nil when nothing is stored.
func (w *RemoteWriter) Latest(ctx context.Context, courseID string) (*Record, error) {
	var result struct {
		Progress *View `json:"progress"`
	}
	resp, err := w.client.R().
		SetContext(ctx).
		SetQueryParam("courseId", courseID).
		SetResult(&result).
		Get("/api/progress")
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get progress: status %d", resp.StatusCode())
	}
	v := result.Progress
	if v == nil {
		return nil, nil
	}
	return &Record{
		CourseID:             courseID,
		LessonID:             v.LessonID,
		BlockID:              v.BlockID,
		CompletionPercentage: v.CompletionPercentage,
		Score:                v.Score,
		TimeSpent:            v.TimeSpent,
		Completed:            v.Completed,
		Answers:              v.Answers,
	}, nil
}
