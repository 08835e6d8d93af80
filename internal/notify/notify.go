// Package notify delivers course completions to best-effort channels:
// in-app notifications, email, a chat bot and a CRM.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/logging"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/metrics"
)

// DefaultTimeout bounds each channel's delivery.
const DefaultTimeout = 10 * time.Second

// Completion is the payload every channel receives once per finished
// course.
type Completion struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email,omitempty"`
	CourseID    string    `json:"courseId"`
	CourseTitle string    `json:"courseTitle,omitempty"`
	Score       int       `json:"score"`
	CompletedAt time.Time `json:"completedAt"`
}

// Notifier is one delivery channel.
type Notifier interface {
	Channel() string
	Notify(ctx context.Context, c Completion) error
}

// Dispatcher invokes every configured notifier once per completion.
// Failures are logged and counted; they never reach the caller.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics

	wg sync.WaitGroup
}

func NewDispatcher(timeout time.Duration, logger *zap.Logger, m *metrics.Metrics, notifiers ...Notifier) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		notifiers: notifiers,
		timeout:   timeout,
		logger:    logging.OrNop(logger),
		metrics:   m,
	}
}

// Channels lists the configured channel names.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.notifiers))
	for _, n := range d.notifiers {
		names = append(names, n.Channel())
	}
	return names
}

// Dispatch starts delivery on every channel and returns immediately.
func (d *Dispatcher) Dispatch(c Completion) {
	for _, n := range d.notifiers {
		d.wg.Add(1)
		go d.deliver(n, c)
	}
}

// Wait blocks until every started delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(n Notifier, c Completion) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			d.metrics.Notification(n.Channel(), false)
			d.logger.Error("notifier panicked", zap.String("channel", n.Channel()), zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := n.Notify(ctx, c)
	d.metrics.Notification(n.Channel(), err == nil)
	if err != nil {
		d.logger.Warn("completion notification failed",
			zap.String("channel", n.Channel()),
			zap.String("user", c.UserID),
			zap.String("course", c.CourseID),
			zap.Error(err))
		return
	}
	d.logger.Debug("completion notification sent",
		zap.String("channel", n.Channel()),
		zap.String("user", c.UserID),
		zap.String("course", c.CourseID))
}
