package navigator

import (
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/answers"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
)

// EventKind identifies a controller notification.
type EventKind string

const (
	EventPosition  EventKind = "position"
	EventTick      EventKind = "tick"
	EventExpired   EventKind = "expired"
	EventHint      EventKind = "hint"
	EventRepeat    EventKind = "repeat"
	EventCompleted EventKind = "completed"
)

// Event is delivered to the session's Listener after the controller has
// released its lock.
type Event struct {
	Kind       EventKind        `json:"type"`
	Position   content.Position `json:"position"`
	LessonID   content.ID       `json:"lessonId"`
	BlockID    content.ID       `json:"blockId"`
	Percentage int              `json:"completionPercentage"`
	Score      int              `json:"score"`
	// Remaining is set on tick and expired events.
	Remaining int `json:"remaining,omitempty"`
	// Transition names what moved the position: start, advance, retreat,
	// jump, skip, specific or resume.
	Transition string `json:"transition,omitempty"`
}

// Listener receives events. It may be called from the caller's goroutine
// or a timer goroutine and must not block.
type Listener func(Event)

// SubmitResult reports how an answer submission was resolved.
type SubmitResult struct {
	Correct bool         `json:"correct"`
	Points  int          `json:"points"`
	Path    content.Path `json:"path"`
	// Dropped is true when the submission arrived while a previous
	// transition was still settling.
	Dropped bool `json:"dropped"`
}

// Snapshot is an immutable view of the session.
type Snapshot struct {
	Position   content.Position `json:"position"`
	LessonID   content.ID       `json:"lessonId"`
	BlockID    content.ID       `json:"blockId"`
	Percentage int              `json:"completionPercentage"`
	Score      int              `json:"score"`
	TimeSpent  int              `json:"timeSpent"`
	Completed  bool             `json:"completed"`
	// Remaining is the countdown of the current block, or -1 when untimed.
	Remaining int `json:"remaining"`
	// Unlocked is the highest lesson index the learner may jump to.
	Unlocked int                           `json:"unlockedLesson"`
	Answers  map[content.ID]answers.Answer `json:"answers"`
}
