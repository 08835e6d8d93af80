package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/gamification"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/hints"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/llm"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/metrics"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/notify"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/progress"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/store"
)

// services is the engine wired against one local store.
type services struct {
	courses      content.Provider
	progress     *progress.Service
	gamification *gamification.Engine
	dispatcher   *notify.Dispatcher
	hints        *hints.Service
}

func buildServices(ctx context.Context, e *env, st *store.Store, m *metrics.Metrics) (*services, error) {
	cfg := e.cfg

	courses := content.Chain{content.NewStoreProvider(st.Courses())}
	if cfg.Content.Dir != "" {
		courses = append(courses, content.NewDirProvider(cfg.Content.Dir))
	}
	if cfg.Content.BaseURL != "" {
		courses = append(courses, content.NewHTTPProvider(cfg.Content.BaseURL, cfg.Server.ReadTimeout))
	}

	engine := gamification.NewEngine(st.Gamification(),
		gamification.WithCompletionXP(cfg.Gamification.CourseCompletionXP),
		gamification.WithLogger(e.logger),
		gamification.WithMetrics(m))
	if err := engine.Seed(ctx); err != nil {
		return nil, err
	}

	notifiers := []notify.Notifier{notify.NewInApp(st.Notifications())}
	if cfg.Notify.SendGridAPIKey != "" && cfg.Notify.EmailFrom != "" {
		notifiers = append(notifiers, notify.NewEmail(cfg.Notify.SendGridAPIKey, cfg.Notify.EmailFrom, cfg.Notify.EmailFromName))
	}
	if cfg.Notify.ChatWebhookURL != "" {
		notifiers = append(notifiers, notify.NewChat(cfg.Notify.ChatWebhookURL))
	}
	if cfg.Notify.CRMBaseURL != "" {
		notifiers = append(notifiers, notify.NewCRM(cfg.Notify.CRMBaseURL, cfg.Notify.CRMAPIKey))
	}
	dispatcher := notify.NewDispatcher(cfg.Notify.Timeout, e.logger, m, notifiers...)

	// The app works without a model: hints fall back to authored text.
	provider, err := llm.NewProvider(ctx, cfg.LLM.Discover(), st.EventRepo(), e.logger)
	if err != nil {
		e.logger.Warn("LLM provider not configured, generated hints disabled", zap.Error(err))
		provider = nil
	}
	hintCfg := hints.DefaultConfig()
	hintCfg.Timeout = cfg.LLM.Timeout

	e.logger.Info("services ready",
		zap.Strings("notify_channels", dispatcher.Channels()),
		zap.Bool("llm", provider != nil))

	return &services{
		courses:      courses,
		progress:     progress.NewService(st.Progress(), e.logger),
		gamification: engine,
		dispatcher:   dispatcher,
		hints:        hints.NewService(provider, hintCfg, e.logger),
	}, nil
}

func (s *services) close() {
	s.dispatcher.Wait()
}

func describeCourse(c *content.Course) string {
	return fmt.Sprintf("%s %q (%d lessons, %d blocks)", c.ID, c.Title, c.LessonCount(), c.TotalBlocks())
}
