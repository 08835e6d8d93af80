// Package hints resolves the hint shown when a quiz branch asks for one.
package hints

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/llm"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/logging"
)

// Fallback is shown when neither the author nor a model supplied a hint.
const Fallback = "Re-read the question and rule out the options you are sure are wrong."

// Source says where a hint came from.
type Source string

const (
	SourceAuthored  Source = "authored"
	SourceGenerated Source = "generated"
	SourceFallback  Source = "fallback"
)

type Hint struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
}

type Config struct {
	MaxTokens   int
	Temperature float64
	// Timeout bounds one generation; zero means the caller's deadline.
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{MaxTokens: 256, Temperature: 0.4, Timeout: 15 * time.Second}
}

// Service picks the authored hint, then a generated one, then Fallback.
// A nil provider disables generation.
type Service struct {
	provider llm.Provider
	cfg      Config
	logger   *zap.Logger
}

func NewService(provider llm.Provider, cfg Config, logger *zap.Logger) *Service {
	return &Service{provider: provider, cfg: cfg, logger: logging.OrNop(logger)}
}

// Hint never fails: generation errors are logged and fall back.
func (s *Service) Hint(ctx context.Context, course *content.Course, block *content.Block) Hint {
	if block == nil {
		return Hint{Text: Fallback, Source: SourceFallback}
	}
	quiz, err := block.Quiz()
	if err != nil {
		s.logger.Warn("decode quiz for hint", zap.String("block", block.ID.String()), zap.Error(err))
	}
	if quiz != nil && strings.TrimSpace(quiz.Hint) != "" {
		return Hint{Text: quiz.Hint, Source: SourceAuthored}
	}
	if s.provider == nil || quiz == nil || quiz.Question == "" {
		return Hint{Text: Fallback, Source: SourceFallback}
	}

	text, err := s.generate(ctx, course, block, quiz)
	if err != nil {
		s.logger.Warn("generate hint",
			zap.String("course", courseID(course)),
			zap.String("block", block.ID.String()),
			zap.Error(err))
		return Hint{Text: Fallback, Source: SourceFallback}
	}
	return Hint{Text: text, Source: SourceGenerated}
}

type hintOutput struct {
	Hint string `json:"hint"`
}

func (s *Service) generate(ctx context.Context, course *content.Course, block *content.Block, quiz *content.Quiz) (string, error) {
	ctx = llm.WithPurpose(ctx, "hint")
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	resp, err := s.provider.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Messages:    llm.UserPrompt(buildUserMessage(course, block, quiz)),
		Schema:      Schema,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("hint generation: %w", err)
	}

	var out hintOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", fmt.Errorf("parse hint response: %w", err)
	}
	text := strings.TrimSpace(out.Hint)
	if text == "" {
		return "", fmt.Errorf("empty hint")
	}
	if leaksAnswer(text, quiz) {
		return "", fmt.Errorf("hint reveals a correct option")
	}
	return text, nil
}

// leaksAnswer reports whether the hint quotes a correct option verbatim.
// Very short options ("Yes", "42") are too common to judge.
func leaksAnswer(text string, quiz *content.Quiz) bool {
	lower := strings.ToLower(text)
	for _, o := range quiz.Options {
		opt := strings.ToLower(strings.TrimSpace(o.Text))
		if o.IsCorrect && len(opt) >= 12 && strings.Contains(lower, opt) {
			return true
		}
	}
	return false
}

func courseID(c *content.Course) string {
	if c == nil {
		return ""
	}
	return c.ID.String()
}
