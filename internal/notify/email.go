package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendFunc delivers one message and returns the provider's HTTP status.
type SendFunc func(ctx context.Context, msg *mail.SGMailV3) (int, error)

// Email sends a congratulation mail through SendGrid.
type Email struct {
	fromName string
	fromAddr string
	send     SendFunc
}

// NewEmail builds a SendGrid-backed email notifier.
func NewEmail(apiKey, fromAddr, fromName string) *Email {
	client := sendgrid.NewSendClient(apiKey)
	return NewEmailWithSender(fromAddr, fromName, func(ctx context.Context, msg *mail.SGMailV3) (int, error) {
		resp, err := client.SendWithContext(ctx, msg)
		if err != nil {
			return 0, err
		}
		return resp.StatusCode, nil
	})
}

// NewEmailWithSender builds an email notifier around send.
func NewEmailWithSender(fromAddr, fromName string, send SendFunc) *Email {
	return &Email{fromName: fromName, fromAddr: fromAddr, send: send}
}

func (*Email) Channel() string { return "email" }

func (e *Email) Notify(ctx context.Context, c Completion) error {
	if c.Email == "" {
		return errors.New("learner has no email address")
	}
	title := c.CourseTitle
	if title == "" {
		title = "your course"
	}
	subject := fmt.Sprintf("You completed %s", title)
	plain := fmt.Sprintf("Congratulations! You completed %s with a score of %d.", title, c.Score)
	html := fmt.Sprintf("<p>Congratulations! You completed <strong>%s</strong> with a score of %d.</p>", title, c.Score)

	msg := mail.NewSingleEmail(
		mail.NewEmail(e.fromName, e.fromAddr),
		subject,
		mail.NewEmail("", c.Email),
		plain,
		html,
	)
	status, err := e.send(ctx, msg)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if status >= 300 {
		return fmt.Errorf("send email: status %d", status)
	}
	return nil
}
