package content

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// QuestionType is the answer shape a quiz expects.
type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
	QuestionText     QuestionType = "text"
	QuestionAudio    QuestionType = "audio"
	QuestionVideo    QuestionType = "video"
)

type Quiz struct {
	QuestionType QuestionType `json:"questionType"`
	Question     string       `json:"question"`
	Options      []Option     `json:"options"`
	// TimeLimit is in seconds; 0 means unlimited.
	TimeLimit int        `json:"timeLimit,omitempty"`
	Branching *Branching `json:"branching,omitempty"`
	Points    int        `json:"points,omitempty"`
	Hint      string     `json:"hint,omitempty"`
}

type Option struct {
	ID        ID     `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Option returns the option with the given id.
func (q *Quiz) Option(id string) (*Option, bool) {
	for i := range q.Options {
		if string(q.Options[i].ID) == id {
			return &q.Options[i], true
		}
	}
	return nil, false
}

// CorrectOptions returns the ids of options marked correct.
func (q *Quiz) CorrectOptions() []string {
	var ids []string
	for _, o := range q.Options {
		if o.IsCorrect {
			ids = append(ids, string(o.ID))
		}
	}
	return ids
}

type Branching struct {
	CorrectPath   Path `json:"correctPath"`
	IncorrectPath Path `json:"incorrectPath"`
}

// Choose returns the path for the given correctness.
func (b *Branching) Choose(correct bool) Path {
	if correct {
		return b.CorrectPath
	}
	return b.IncorrectPath
}

// PathKind names a branch outcome.
type PathKind string

const (
	PathNext     PathKind = "next"
	PathSkip     PathKind = "skip"
	PathRepeat   PathKind = "repeat"
	PathHint     PathKind = "hint"
	PathSpecific PathKind = "specific"
)

// Path is one side of a branching rule. Target is set only for specific
// paths and holds a block id or title.
type Path struct {
	Kind   PathKind
	Target string
}

func Next() Path                  { return Path{Kind: PathNext} }
func Skip() Path                  { return Path{Kind: PathSkip} }
func Repeat() Path                { return Path{Kind: PathRepeat} }
func Hint() Path                  { return Path{Kind: PathHint} }
func Specific(target string) Path { return Path{Kind: PathSpecific, Target: target} }

func (p Path) IsZero() bool { return p.Kind == "" }

func (p Path) String() string {
	if p.Kind == PathSpecific {
		return fmt.Sprintf("specific(%s)", p.Target)
	}
	return string(p.Kind)
}

type pathObject struct {
	Type          string `json:"type"`
	TargetBlockID ID     `json:"targetBlockId"`
}

// UnmarshalJSON accepts "next" | "skip" | "repeat" | "hint", an object
// {"type":"specific","targetBlockId":...}, or any other string as a
// specific target.
func (p *Path) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = Path{}
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		var obj pathObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("branch path: %w", err)
		}
		if obj.Type == "" && obj.TargetBlockID != "" {
			obj.Type = string(PathSpecific)
		}
		*p = parsePath(obj.Type)
		if p.Kind == PathSpecific {
			p.Target = string(obj.TargetBlockID)
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("branch path must be a string or object: %w", err)
	}
	*p = parsePath(s)
	return nil
}

func (p Path) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case "":
		return []byte("null"), nil
	case PathSpecific:
		return json.Marshal(pathObject{Type: string(PathSpecific), TargetBlockID: ID(p.Target)})
	default:
		return json.Marshal(string(p.Kind))
	}
}

func parsePath(s string) Path {
	switch PathKind(s) {
	case "":
		return Path{}
	case PathNext, PathSkip, PathRepeat, PathHint:
		return Path{Kind: PathKind(s)}
	case PathSpecific:
		return Path{Kind: PathSpecific}
	default:
		return Specific(s)
	}
}

// Sequence is the payload of a sequence block: items the learner must put
// in order.
type Sequence struct {
	Items        []SequenceItem `json:"items"`
	CorrectOrder []ID           `json:"correctOrder,omitempty"`
}

type SequenceItem struct {
	ID   ID     `json:"id"`
	Text string `json:"text"`
}
