package hints

import (
	"fmt"
	"strings"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/llm"
)

// Schema constrains generated hints to a single short string.
var Schema = &llm.Schema{
	Name:        "quiz-hint",
	Description: "A short hint for a quiz question that does not reveal the answer",
	Definition: map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"hint"},
		"properties": map[string]any{
			"hint": map[string]any{
				"type":        "string",
				"minLength":   1,
				"maxLength":   400,
				"description": "One or two sentences nudging the learner toward the answer",
			},
		},
	},
}

const systemPrompt = `You help employees work through compliance and skills training. A learner answered a quiz question incorrectly and asked for a hint.`

func buildUserMessage(course *content.Course, block *content.Block, quiz *content.Quiz) string {
	var b strings.Builder

	if course != nil && course.Title != "" {
		fmt.Fprintf(&b, "Course: %s\n", course.Title)
		if _, pos, ok := course.BlockByID(block.ID); ok {
			if lesson := course.LessonAt(pos.Lesson); lesson != nil && lesson.Title != "" {
				fmt.Fprintf(&b, "Lesson: %s\n", lesson.Title)
			}
		}
	}
	if block.Title != "" {
		fmt.Fprintf(&b, "Block: %s\n", block.Title)
	}
	fmt.Fprintf(&b, "Question type: %s\n", quiz.QuestionType)
	fmt.Fprintf(&b, "Question: %s\n", quiz.Question)

	if len(quiz.Options) > 0 {
		b.WriteString("\nOptions:\n")
		for _, o := range quiz.Options {
			mark := ""
			if o.IsCorrect {
				mark = " (correct)"
			}
			fmt.Fprintf(&b, "- %s%s\n", o.Text, mark)
		}
	}

	b.WriteString(`
Instructions:
1. Write one or two sentences that point the learner at the idea the question tests.
2. Never state or quote a correct option.
3. Plain text only, no markdown.`)

	return b.String()
}
