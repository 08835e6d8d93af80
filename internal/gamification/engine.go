// Package gamification keeps the XP ledger, levels and achievements.
package gamification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/apperr"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/logging"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/metrics"
)

// Engine grants XP and awards achievements. It is safe for concurrent use;
// grants are serialized so check-then-insert awards stay one-time.
type Engine struct {
	repo         Repo
	logger       *zap.Logger
	metrics      *metrics.Metrics
	completionXP int
	now          func() time.Time

	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithCompletionXP sets the base XP granted per completed course.
func WithCompletionXP(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.completionXP = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrNop(l) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(repo Repo, opts ...Option) *Engine {
	e := &Engine{
		repo:         repo,
		logger:       zap.NewNop(),
		completionXP: DefaultCompletionXP,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Seed makes sure the achievement catalogue exists.
func (e *Engine) Seed(ctx context.Context) error {
	if err := e.repo.EnsureAchievements(ctx, Catalogue()); err != nil {
		return apperr.Persistence("seed achievements", err)
	}
	return nil
}

// AddXP grants amount to userID and appends a ledger entry for the raw
// grant. It returns the updated row.
func (e *Engine) AddXP(ctx context.Context, userID string, amount int, source, sourceID, description string) (XP, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addXPLocked(ctx, userID, amount, source, sourceID, description)
}

func (e *Engine) addXPLocked(ctx context.Context, userID string, amount int, source, sourceID, description string) (XP, error) {
	if userID == "" {
		return XP{}, apperr.Validation("invalid xp grant", "user id is required")
	}
	if amount < 0 {
		return XP{}, apperr.Validation("invalid xp grant", fmt.Sprintf("amount %d is negative", amount))
	}

	current, err := e.repo.GetXP(ctx, userID)
	if err != nil {
		return XP{}, apperr.Persistence("load xp", err)
	}
	row := newXP(userID)
	if current != nil {
		row = *current
	}

	now := e.now().UTC()
	next, gained := apply(row, amount)
	next.UpdatedAt = now

	entry := LedgerEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Source:      source,
		SourceID:    sourceID,
		Description: description,
		CreatedAt:   now,
	}
	if err := e.repo.RecordXP(ctx, next, entry); err != nil {
		return XP{}, apperr.Persistence("record xp", err)
	}

	e.metrics.XPGranted(amount)
	e.logger.Debug("xp granted",
		zap.String("user", userID),
		zap.Int("amount", amount),
		zap.String("source", source),
		zap.Int("total", next.TotalXP),
		zap.Int("level", next.Level),
	)
	if gained > 0 {
		e.logger.Info("level up", zap.String("user", userID), zap.Int("level", next.Level))
	}
	return next, nil
}

// EvaluateAchievements awards the milestones the user's completed-course
// count has reached. Awards already held are left alone.
func (e *Engine) EvaluateAchievements(ctx context.Context, userID string) ([]Achievement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evaluateLocked(ctx, userID)
}

func (e *Engine) evaluateLocked(ctx context.Context, userID string) ([]Achievement, error) {
	count, err := e.repo.CompletedCourseCount(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("count completed courses", err)
	}

	var due []string
	if count == 1 {
		due = append(due, FirstCourse)
	}
	if count >= CourseMasterThreshold {
		due = append(due, CourseMaster)
	}

	var awarded []Achievement
	for _, code := range due {
		a, err := e.awardLocked(ctx, userID, code)
		if err != nil {
			return awarded, err
		}
		if a != nil {
			awarded = append(awarded, *a)
		}
	}
	return awarded, nil
}

// awardLocked returns nil when the user already holds code.
func (e *Engine) awardLocked(ctx context.Context, userID, code string) (*Achievement, error) {
	held, err := e.repo.HasUserAchievement(ctx, userID, code)
	if err != nil {
		return nil, apperr.Persistence("check achievement", err)
	}
	if held {
		return nil, nil
	}

	a, err := e.repo.Achievement(ctx, code)
	if err != nil {
		return nil, apperr.Persistence("load achievement", err)
	}
	if a == nil {
		return nil, apperr.NotFound("achievement " + code)
	}

	if err := e.repo.AwardAchievement(ctx, userID, code, e.now().UTC()); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return nil, nil
		}
		return nil, apperr.Persistence("award achievement", err)
	}
	e.metrics.AchievementAwarded(code)
	e.logger.Info("achievement awarded", zap.String("user", userID), zap.String("code", code))

	if a.Points > 0 {
		if _, err := e.addXPLocked(ctx, userID, a.Points, SourceAchievement, code, a.Name); err != nil {
			return a, err
		}
	}
	return a, nil
}

// CompleteCourse grants the completion XP plus score for courseID once per
// user, then evaluates achievements.
func (e *Engine) CompleteCourse(ctx context.Context, userID, courseID string, score int) error {
	_, err := e.CompleteCourseOnce(ctx, userID, courseID, score)
	return err
}

// CompleteCourseOnce is CompleteCourse reporting whether this call was the
// one that credited the course.
func (e *Engine) CompleteCourseOnce(ctx context.Context, userID, courseID string, score int) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	done, err := e.repo.HasLedgerEntry(ctx, userID, SourceCourseCompletion, courseID)
	if err != nil {
		return false, apperr.Persistence("check course completion", err)
	}
	if !done {
		if score < 0 {
			score = 0
		}
		desc := fmt.Sprintf("Completed course %s", courseID)
		if _, err := e.addXPLocked(ctx, userID, e.completionXP+score, SourceCourseCompletion, courseID, desc); err != nil {
			return false, err
		}
	}

	if _, err := e.evaluateLocked(ctx, userID); err != nil {
		return !done, err
	}
	return !done, nil
}

// Summary returns the user's XP row and awarded achievements.
func (e *Engine) Summary(ctx context.Context, userID string) (Summary, error) {
	row, err := e.repo.GetXP(ctx, userID)
	if err != nil {
		return Summary{}, apperr.Persistence("load xp", err)
	}
	xp := newXP(userID)
	if row != nil {
		xp = *row
	}
	held, err := e.repo.UserAchievements(ctx, userID)
	if err != nil {
		return Summary{}, apperr.Persistence("load achievements", err)
	}
	if held == nil {
		held = []Awarded{}
	}
	return Summary{Achievements: held, XP: xp}, nil
}
