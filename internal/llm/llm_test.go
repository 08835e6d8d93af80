package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/store"
)

var hintSchema = &Schema{
	Name: "test-hint",
	Definition: map[string]any{
		"type":                 "object",
		"required":             []any{"hint"},
		"additionalProperties": false,
		"properties": map[string]any{
			"hint": map[string]any{"type": "string", "minLength": 1},
		},
	},
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2}
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"hint":"look at the title"}`, false},
		{"missing field", `{}`, true},
		{"empty hint", `{"hint":""}`, true},
		{"extra field", `{"hint":"x","answer":"b"}`, true},
		{"not json", `look at the title`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateResponse(hintSchema, json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			var inv *ErrInvalidResponse
			if err != nil && !errors.As(err, &inv) {
				t.Fatalf("err = %T, want *ErrInvalidResponse", err)
			}
		})
	}
	if err := validateResponse(nil, json.RawMessage("anything")); err != nil {
		t.Fatalf("nil schema rejected: %v", err)
	}
}

func TestRetryTransientThenSuccess(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrUnavailable{Err: errors.New("down")}},
		MockResponse{Err: &ErrRateLimit{Err: errors.New("slow down")}},
		MockResponse{Content: json.RawMessage(`{"hint":"ok"}`)},
	)
	resp, err := WithRetry(mock, fastRetry()).Generate(context.Background(), Request{Schema: hintSchema})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Content) != `{"hint":"ok"}` {
		t.Fatalf("content = %s", resp.Content)
	}
	if n := len(mock.Calls()); n != 3 {
		t.Fatalf("calls = %d, want 3", n)
	}
}

func TestRetryInvalidResponseOnlyOnce(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{}`)},
		MockResponse{Content: json.RawMessage(`{}`)},
		MockResponse{Content: json.RawMessage(`{"hint":"never reached"}`)},
	)
	_, err := WithRetry(mock, fastRetry()).Generate(context.Background(), Request{Schema: hintSchema})
	var inv *ErrInvalidResponse
	if !errors.As(err, &inv) {
		t.Fatalf("err = %v, want invalid response", err)
	}
	if n := len(mock.Calls()); n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}
}

func TestRetryStopsOnTruncationAndCancel(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: &ErrTruncated{}})
	if _, err := WithRetry(mock, fastRetry()).Generate(context.Background(), Request{}); err == nil {
		t.Fatal("expected error")
	}
	if n := len(mock.Calls()); n != 1 {
		t.Fatalf("truncation retried: %d calls", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mock = NewMockProvider(MockResponse{Err: context.Canceled})
	if _, err := WithRetry(mock, fastRetry()).Generate(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want canceled", err)
	}
}

func TestMockFallback(t *testing.T) {
	mock := NewMockProvider()
	if _, err := mock.Generate(context.Background(), Request{}); err == nil {
		t.Fatal("empty mock should fail")
	}
	mock.Fallback = json.RawMessage(`{"hint":"default"}`)
	resp, err := mock.Generate(context.Background(), Request{Schema: hintSchema})
	if err != nil || string(resp.Content) != `{"hint":"default"}` {
		t.Fatalf("fallback = %v, %v", resp, err)
	}
}

type memEvents struct {
	mu     sync.Mutex
	events []store.LLMRequestEventData
	err    error
}

func (m *memEvents) AppendLLMRequest(_ context.Context, data store.LLMRequestEventData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, data)
	return m.err
}

func (m *memEvents) RecentLLMRequests(context.Context, int) ([]store.LLMRequestRecord, error) {
	return nil, nil
}

func TestRecordingAppendsEvents(t *testing.T) {
	events := &memEvents{}
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"hint":"a"}`), Usage: Usage{InputTokens: 10, OutputTokens: 4}},
		MockResponse{Err: &ErrUnavailable{Err: errors.New("down")}},
	)
	p := WithRecording(mock, "mock", events, nil)
	ctx := WithPurpose(context.Background(), "hint")

	if _, err := p.Generate(ctx, Request{Schema: hintSchema}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := p.Generate(ctx, Request{}); err == nil {
		t.Fatal("second call should fail")
	}

	if len(events.events) != 2 {
		t.Fatalf("events = %d, want 2", len(events.events))
	}
	first, second := events.events[0], events.events[1]
	if !first.Success || first.Purpose != "hint" || first.InputTokens != 10 || first.Provider != "mock" {
		t.Errorf("first event = %+v", first)
	}
	if second.Success || second.ErrorMessage == "" {
		t.Errorf("second event = %+v", second)
	}
}

func TestRecordingSurvivesEventFailure(t *testing.T) {
	events := &memEvents{err: errors.New("disk full")}
	p := WithRecording(NewMockProvider(MockResponse{Content: json.RawMessage(`"x"`)}), "mock", events, nil)
	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("event failure leaked: %v", err)
	}
}

func TestOpenAIProvider(t *testing.T) {
	var got struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		ResponseFormat *struct {
			Type       string `json:"type"`
			JSONSchema struct {
				Name string `json:"name"`
			} `json:"json_schema"`
		} `json:"response_format"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": `{"hint":"Think about who owns the data."}`},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 40, "completion_tokens": 12, "total_tokens": 52},
		})
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	resp, err := p.Generate(context.Background(), Request{
		System:    "You write hints.",
		Messages:  UserPrompt("Question: who owns customer data?"),
		Schema:    hintSchema,
		MaxTokens: 128,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Usage.Total() != 52 || resp.StopReason != "end" {
		t.Errorf("resp = %+v", resp)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("messages = %+v", got.Messages)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.JSONSchema.Name != "test-hint" {
		t.Errorf("response format = %+v", got.ResponseFormat)
	}
}

func TestOpenAIProviderRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "slow down", "type": "rate_limit"}})
	}))
	defer srv.Close()

	p, _ := NewOpenAIProvider(Config{APIKey: "k", BaseURL: srv.URL + "/v1"})
	_, err := p.Generate(context.Background(), Request{Messages: UserPrompt("hi")})
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("err = %v, want rate limit", err)
	}
}

func TestAnthropicProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"content":     []map[string]any{{"type": "text", "text": `{"hint":"Check the retention period."}`}},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 30, "output_tokens": 9},
		})
	}))
	defer srv.Close()

	client := anthropic.NewClient(option.WithAPIKey("test-key"), option.WithBaseURL(srv.URL))
	p := &AnthropicProvider{client: &client, model: "claude-haiku-4-5-20251001"}

	resp, err := p.Generate(context.Background(), Request{Messages: UserPrompt("hint please"), Schema: hintSchema, MaxTokens: 64})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Usage.InputTokens != 30 || resp.StopReason != "end" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestAnthropicTruncatedStructuredOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"content":     []map[string]any{{"type": "text", "text": `{"hint":"Check the`}},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "max_tokens",
			"usage":       map[string]any{"input_tokens": 30, "output_tokens": 64},
		})
	}))
	defer srv.Close()

	client := anthropic.NewClient(option.WithAPIKey("test-key"), option.WithBaseURL(srv.URL))
	p := &AnthropicProvider{client: &client, model: "claude-haiku-4-5-20251001"}

	_, err := p.Generate(context.Background(), Request{Messages: UserPrompt("hint"), Schema: hintSchema, MaxTokens: 64})
	var tr *ErrTruncated
	if !errors.As(err, &tr) {
		t.Fatalf("err = %v, want truncated", err)
	}
}

func TestConfig(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	cfg := Config{}.Discover()
	if cfg.Provider != ProviderOpenAI || cfg.APIKey != "sk-test" {
		t.Fatalf("discovered = %+v", cfg)
	}
	if kept := (Config{Provider: ProviderMock}).Discover(); kept.Provider != ProviderMock {
		t.Fatalf("explicit provider overridden: %+v", kept)
	}

	if err := (Config{Provider: ProviderGemini}).Validate(); err == nil {
		t.Error("gemini without key accepted")
	}
	if err := (Config{Provider: "palm"}).Validate(); err == nil {
		t.Error("unknown provider accepted")
	}

	p, err := NewProvider(context.Background(), Config{}, nil, nil)
	if err != nil || p != nil {
		t.Fatalf("disabled provider = %v, %v", p, err)
	}
	p, err = NewProvider(context.Background(), Config{Provider: ProviderMock}, nil, nil)
	if err != nil || p == nil || p.ModelID() != "mock" {
		t.Fatalf("mock provider = %v, %v", p, err)
	}
}
