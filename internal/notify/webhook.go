package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Chat posts a completion message to a chat-bot webhook.
type Chat struct {
	client *resty.Client
	url    string
}

func NewChat(webhookURL string) *Chat {
	return &Chat{client: resty.New(), url: webhookURL}
}

func (*Chat) Channel() string { return "chat" }

func (n *Chat) Notify(ctx context.Context, c Completion) error {
	title := c.CourseTitle
	if title == "" {
		title = "course " + c.CourseID
	}
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"text":     fmt.Sprintf("%s completed %s (score %d)", c.UserID, title, c.Score),
			"userId":   c.UserID,
			"courseId": c.CourseID,
			"score":    c.Score,
		}).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("chat webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("chat webhook: status %d", resp.StatusCode())
	}
	return nil
}

// CRM records completions against the learner in a CRM:
// POST {base}/learners/{userId}/completions.
type CRM struct {
	client *resty.Client
}

func NewCRM(baseURL, apiKey string) *CRM {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &CRM{client: client}
}

func (*CRM) Channel() string { return "crm" }

func (n *CRM) Notify(ctx context.Context, c Completion) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetPathParam("userId", c.UserID).
		SetBody(map[string]any{
			"courseId":    c.CourseID,
			"courseTitle": c.CourseTitle,
			"score":       c.Score,
			"completedAt": completedAt(c).Format(time.RFC3339),
		}).
		Post("/learners/{userId}/completions")
	if err != nil {
		return fmt.Errorf("crm sync: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("crm sync: status %d", resp.StatusCode())
	}
	return nil
}
