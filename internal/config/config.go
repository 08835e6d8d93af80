package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/llm"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "LEARNPATH_"

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Auth         AuthConfig         `yaml:"auth"`
	Log          LogConfig          `yaml:"log"`
	Navigation   NavigationConfig   `yaml:"navigation"`
	Progress     ProgressConfig     `yaml:"progress"`
	Gamification GamificationConfig `yaml:"gamification"`
	Notify       NotifyConfig       `yaml:"notify"`
	Content      ContentConfig      `yaml:"content"`
	LLM          llm.Config         `yaml:"llm"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type NavigationConfig struct {
	Settle    time.Duration `yaml:"settle"`
	TimerTick time.Duration `yaml:"timer_tick"`
}

type ProgressConfig struct {
	Debounce       time.Duration `yaml:"debounce"`
	AnswerDebounce time.Duration `yaml:"answer_debounce"`
}

type GamificationConfig struct {
	CourseCompletionXP int `yaml:"course_completion_xp"`
}

type NotifyConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	SendGridAPIKey string        `yaml:"sendgrid_api_key"`
	EmailFrom      string        `yaml:"email_from"`
	EmailFromName  string        `yaml:"email_from_name"`
	ChatWebhookURL string        `yaml:"chat_webhook_url"`
	CRMBaseURL     string        `yaml:"crm_base_url"`
	CRMAPIKey      string        `yaml:"crm_api_key"`
}

// ContentConfig selects where course documents come from when they are
// not in the local store.
type ContentConfig struct {
	Dir     string `yaml:"dir"`
	BaseURL string `yaml:"base_url"`
}

// Default returns a Config with every field at its default.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads .env (if present), then the YAML file at path (if non-empty),
// then LEARNPATH_* environment overrides, then fills defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	c := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Addr, "ADDR")
	setString(&c.Database.Path, "DB")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Auth.Issuer, "JWT_ISSUER")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Notify.SendGridAPIKey, "SENDGRID_API_KEY")
	setString(&c.Notify.EmailFrom, "EMAIL_FROM")
	setString(&c.Notify.EmailFromName, "EMAIL_FROM_NAME")
	setString(&c.Notify.ChatWebhookURL, "CHAT_WEBHOOK_URL")
	setString(&c.Notify.CRMBaseURL, "CRM_BASE_URL")
	setString(&c.Notify.CRMAPIKey, "CRM_API_KEY")
	setString(&c.Content.Dir, "CONTENT_DIR")
	setString(&c.Content.BaseURL, "CONTENT_URL")
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.APIKey, "LLM_API_KEY")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")

	for key, dst := range map[string]*time.Duration{
		"SETTLE":          &c.Navigation.Settle,
		"TIMER_TICK":      &c.Navigation.TimerTick,
		"SAVE_DEBOUNCE":   &c.Progress.Debounce,
		"ANSWER_DEBOUNCE": &c.Progress.AnswerDebounce,
		"NOTIFY_TIMEOUT":  &c.Notify.Timeout,
		"LLM_TIMEOUT":     &c.LLM.Timeout,
	} {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = d
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "COURSE_XP"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sCOURSE_XP: %w", EnvPrefix, err)
		}
		c.Gamification.CourseCompletionXP = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "learnpath"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Navigation.Settle == 0 {
		c.Navigation.Settle = 200 * time.Millisecond
	}
	if c.Navigation.TimerTick == 0 {
		c.Navigation.TimerTick = time.Second
	}
	if c.Progress.Debounce == 0 {
		c.Progress.Debounce = time.Second
	}
	if c.Progress.AnswerDebounce == 0 {
		c.Progress.AnswerDebounce = time.Second
	}
	if c.Gamification.CourseCompletionXP == 0 {
		c.Gamification.CourseCompletionXP = 100
	}
	if c.Notify.Timeout == 0 {
		c.Notify.Timeout = 10 * time.Second
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 15 * time.Second
	}
	if c.Notify.EmailFromName == "" {
		c.Notify.EmailFromName = "Learning Platform"
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
		*dst = v
	}
}
