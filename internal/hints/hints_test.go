package hints

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/llm"
)

func quizBlock(t *testing.T, quiz content.Quiz) *content.Block {
	t.Helper()
	raw, err := json.Marshal(quiz)
	if err != nil {
		t.Fatal(err)
	}
	return &content.Block{ID: "q1", Type: content.BlockQuiz, Title: "Data retention", Content: raw}
}

func retentionQuiz() content.Quiz {
	return content.Quiz{
		QuestionType: content.QuestionSingle,
		Question:     "How long are customer invoices retained?",
		Options: []content.Option{
			{ID: "a", Text: "Seven years from the invoice date", IsCorrect: true},
			{ID: "b", Text: "Until the customer asks", IsCorrect: false},
		},
	}
}

func testCourse(block *content.Block) *content.Course {
	return &content.Course{
		ID:    "c1",
		Title: "Records Management",
		Lessons: []content.Lesson{
			{ID: "l1", Title: "Retention", Blocks: []content.Block{*block}},
		},
	}
}

func TestAuthoredHintWins(t *testing.T) {
	quiz := retentionQuiz()
	quiz.Hint = "Think about tax law."
	block := quizBlock(t, quiz)
	mock := llm.NewMockProvider()

	got := NewService(mock, DefaultConfig(), nil).Hint(t.Context(), testCourse(block), block)

	if got.Source != SourceAuthored || got.Text != "Think about tax law." {
		t.Fatalf("hint = %+v", got)
	}
	if len(mock.Calls()) != 0 {
		t.Fatal("provider called despite authored hint")
	}
}

func TestGeneratedHint(t *testing.T) {
	block := quizBlock(t, retentionQuiz())
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"hint":"Invoices are tax records; consider how long tax authorities can audit."}`),
	})

	got := NewService(mock, DefaultConfig(), nil).Hint(t.Context(), testCourse(block), block)

	if got.Source != SourceGenerated {
		t.Fatalf("source = %s, want generated", got.Source)
	}
	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d", len(calls))
	}
	prompt := calls[0].Messages[0].Content
	for _, want := range []string{"Records Management", "Lesson: Retention", "How long are customer invoices retained?"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if calls[0].Schema != Schema {
		t.Error("request not constrained by the hint schema")
	}
}

func TestFallbacks(t *testing.T) {
	quiz := retentionQuiz()

	tests := []struct {
		name     string
		provider llm.Provider
		block    *content.Block
	}{
		{"no provider", nil, quizBlock(t, quiz)},
		{"provider error", llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrUnavailable{Err: errors.New("down")}}), quizBlock(t, quiz)},
		{"schema violation", llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{"tip":"x"}`)}), quizBlock(t, quiz)},
		{"leaks answer", llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{"hint":"It is seven years from the invoice date."}`)}), quizBlock(t, quiz)},
		{"not a quiz", llm.NewMockProvider(), &content.Block{ID: "t1", Type: content.BlockText}},
		{"nil block", llm.NewMockProvider(), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewService(tt.provider, DefaultConfig(), nil).Hint(t.Context(), nil, tt.block)
			if got.Source != SourceFallback || got.Text != Fallback {
				t.Fatalf("hint = %+v, want fallback", got)
			}
		})
	}
}
