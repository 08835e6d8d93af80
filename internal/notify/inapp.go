package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification is an in-app message shown to the learner.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CourseID  string    `json:"courseId"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationRepo persists in-app notifications.
type NotificationRepo interface {
	CreateNotification(ctx context.Context, n Notification) error
}

// InApp stores a notification for the learner.
type InApp struct {
	repo NotificationRepo
}

func NewInApp(repo NotificationRepo) *InApp {
	return &InApp{repo: repo}
}

func (*InApp) Channel() string { return "in_app" }

func (n *InApp) Notify(ctx context.Context, c Completion) error {
	title := c.CourseTitle
	if title == "" {
		title = "course " + c.CourseID
	}
	return n.repo.CreateNotification(ctx, Notification{
		ID:        uuid.NewString(),
		UserID:    c.UserID,
		CourseID:  c.CourseID,
		Title:     "Course completed",
		Body:      fmt.Sprintf("You completed %s with a score of %d.", title, c.Score),
		CreatedAt: completedAt(c),
	})
}

func completedAt(c Completion) time.Time {
	if c.CompletedAt.IsZero() {
		return time.Now().UTC()
	}
	return c.CompletedAt.UTC()
}
