// Package answers holds a learner's in-session answers and the rules for
// validating and grading them against a block's content.
package answers

import (
	"strings"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/apperr"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
)

// Kind is the shape of an answer value.
type Kind string

const (
	KindSingle   Kind = "single"
	KindMultiple Kind = "multiple"
	KindText     Kind = "text"
	KindMedia    Kind = "media"
	KindSequence Kind = "sequence"
)

// Answer is one block's answer. Only the field matching Kind is set.
type Answer struct {
	Kind     Kind     `json:"kind"`
	Selected []string `json:"selected,omitempty"`
	Text     string   `json:"text,omitempty"`
	Media    string   `json:"media,omitempty"`
	Order    []string `json:"order,omitempty"`
}

func Single(optionID string) Answer { return Answer{Kind: KindSingle, Selected: []string{optionID}} }

func Multiple(optionIDs ...string) Answer {
	return Answer{Kind: KindMultiple, Selected: append([]string(nil), optionIDs...)}
}

func Text(s string) Answer { return Answer{Kind: KindText, Text: s} }

// Media references an uploaded audio or video recording.
func Media(ref string) Answer { return Answer{Kind: KindMedia, Media: ref} }

func Sequence(itemIDs ...string) Answer {
	return Answer{Kind: KindSequence, Order: append([]string(nil), itemIDs...)}
}

// Toggle returns a copy of a with optionID added to or removed from the
// selection.
func (a Answer) Toggle(optionID string) Answer {
	out := Answer{Kind: KindMultiple}
	found := false
	for _, id := range a.Selected {
		if id == optionID {
			found = true
			continue
		}
		out.Selected = append(out.Selected, id)
	}
	if !found {
		out.Selected = append(out.Selected, optionID)
	}
	return out
}

// Validate reports whether a is complete enough to allow forward
// navigation from block. Non-interactive blocks always pass.
func Validate(block *content.Block, a Answer) error {
	switch block.Type {
	case content.BlockQuiz:
		q, err := block.Quiz()
		if err != nil {
			return apperr.Validation("quiz content", err.Error())
		}
		return validateQuiz(q, a)
	case content.BlockSequence:
		s, err := block.Sequence()
		if err != nil {
			return apperr.Validation("sequence content", err.Error())
		}
		if !isPermutation(s, a.Order) {
			return apperr.Validation("every item must be placed exactly once", string(block.ID))
		}
		return nil
	default:
		return nil
	}
}

func validateQuiz(q *content.Quiz, a Answer) error {
	switch questionType(q) {
	case content.QuestionSingle, content.QuestionMultiple:
		if len(a.Selected) == 0 {
			return apperr.Validation("select an option", "")
		}
		if questionType(q) == content.QuestionSingle && len(a.Selected) > 1 {
			return apperr.Validation("select only one option", "")
		}
		for _, id := range a.Selected {
			if _, ok := q.Option(id); !ok {
				return apperr.Validation("unknown option", id)
			}
		}
	case content.QuestionText:
		if strings.TrimSpace(a.Text) == "" {
			return apperr.Validation("answer must not be empty", "")
		}
	case content.QuestionAudio, content.QuestionVideo:
		if strings.TrimSpace(a.Media) == "" {
			return apperr.Validation("a recording is required", "")
		}
	default:
		return apperr.Validation("unsupported question type", string(q.QuestionType))
	}
	return nil
}

// Correct grades a against the options marked correct in block's quiz.
// Quizzes without marked options, media answers and non-interactive
// blocks are accepted.
func Correct(block *content.Block, a Answer) (bool, error) {
	switch block.Type {
	case content.BlockQuiz:
		q, err := block.Quiz()
		if err != nil {
			return false, err
		}
		return correctQuiz(q, a), nil
	case content.BlockSequence:
		s, err := block.Sequence()
		if err != nil {
			return false, err
		}
		if len(s.CorrectOrder) == 0 {
			return true, nil
		}
		if len(s.CorrectOrder) != len(a.Order) {
			return false, nil
		}
		for i, id := range s.CorrectOrder {
			if string(id) != a.Order[i] {
				return false, nil
			}
		}
		return true, nil
	default:
		return true, nil
	}
}

func correctQuiz(q *content.Quiz, a Answer) bool {
	correct := q.CorrectOptions()
	if len(correct) == 0 {
		return true
	}
	switch questionType(q) {
	case content.QuestionSingle:
		if len(a.Selected) != 1 {
			return false
		}
		o, ok := q.Option(a.Selected[0])
		return ok && o.IsCorrect
	case content.QuestionMultiple:
		want := make(map[string]bool, len(correct))
		for _, id := range correct {
			want[id] = true
		}
		got := make(map[string]bool, len(a.Selected))
		for _, id := range a.Selected {
			if !want[id] {
				return false
			}
			got[id] = true
		}
		return len(got) == len(want)
	case content.QuestionText:
		given := strings.ToLower(strings.TrimSpace(a.Text))
		for _, o := range q.Options {
			if o.IsCorrect && strings.ToLower(strings.TrimSpace(o.Text)) == given {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func questionType(q *content.Quiz) content.QuestionType {
	if q.QuestionType == "" {
		return content.QuestionSingle
	}
	return q.QuestionType
}

func isPermutation(s *content.Sequence, order []string) bool {
	if len(order) != len(s.Items) {
		return false
	}
	seen := make(map[string]bool, len(order))
	for _, item := range s.Items {
		seen[string(item.ID)] = false
	}
	for _, id := range order {
		placed, ok := seen[id]
		if !ok || placed {
			return false
		}
		seen[id] = true
	}
	return true
}
