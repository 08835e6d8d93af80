package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/store"
)

// Provider names.
const (
	ProviderNone       = ""
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
	ProviderMock       = "mock"
)

// Config selects one provider. An empty Provider disables generation.
type Config struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Enabled reports whether a provider is configured.
func (c Config) Enabled() bool { return c.Provider != ProviderNone }

// Discover fills an unset provider from the vendors' conventional API key
// variables, first match wins.
func (c Config) Discover() Config {
	if c.Provider != ProviderNone {
		return c
	}
	for _, probe := range []struct{ env, provider string }{
		{"ANTHROPIC_API_KEY", ProviderAnthropic},
		{"OPENAI_API_KEY", ProviderOpenAI},
		{"GEMINI_API_KEY", ProviderGemini},
		{"OPENROUTER_API_KEY", ProviderOpenRouter},
	} {
		if k := os.Getenv(probe.env); k != "" {
			c.Provider = probe.provider
			if c.APIKey == "" {
				c.APIKey = k
			}
			return c
		}
	}
	return c
}

func (c Config) Validate() error {
	switch c.Provider {
	case ProviderNone, ProviderMock:
		return nil
	case ProviderAnthropic, ProviderOpenAI, ProviderOpenRouter, ProviderGemini:
		if c.APIKey == "" {
			return fmt.Errorf("llm: api key is required for provider %s", c.Provider)
		}
		return nil
	default:
		return fmt.Errorf("llm: unknown provider %q", c.Provider)
	}
}

// NewProvider builds the configured provider wrapped as
// caller -> retry -> recording -> provider. It returns nil, nil when no
// provider is configured.
func NewProvider(ctx context.Context, cfg Config, events store.EventRepo, logger *zap.Logger) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		base Provider
		err  error
	)
	switch cfg.Provider {
	case ProviderNone:
		return nil, nil
	case ProviderMock:
		base = NewMockProvider()
	case ProviderAnthropic:
		base, err = NewAnthropicProvider(cfg)
	case ProviderOpenAI:
		base, err = NewOpenAIProvider(cfg)
	case ProviderOpenRouter:
		base, err = NewOpenRouterProvider(cfg)
	case ProviderGemini:
		base, err = NewGeminiProvider(ctx, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s provider: %w", cfg.Provider, err)
	}

	return WithRetry(WithRecording(base, cfg.Provider, events, logger), DefaultRetry()), nil
}
