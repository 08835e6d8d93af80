// Package outline lists a course's lessons and jumps to an unlocked one.
package outline

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/router"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/screen"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/ui/components"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/ui/layout"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/ui/theme"
)

// Jumper repositions the session. navigator.Controller satisfies it.
type Jumper interface {
	JumpTo(lesson, block int) error
}

type jumpFailedMsg struct{ err error }

// OutlineScreen shows the lesson list. Lessons past unlocked are disabled.
type OutlineScreen struct {
	course  *content.Course
	current int
	menu    components.Menu
	errMsg  string
}

var _ screen.Screen = (*OutlineScreen)(nil)
var _ screen.KeyHintProvider = (*OutlineScreen)(nil)

func New(course *content.Course, current, unlocked int, jumper Jumper) *OutlineScreen {
	items := make([]components.MenuItem, 0, len(course.Lessons))
	for i, l := range course.Lessons {
		title := l.Title
		if title == "" {
			title = "Lesson " + l.ID.String()
		}
		detail := fmt.Sprintf("%d blocks", len(l.Blocks))
		if i == current {
			detail += " · current"
		}
		items = append(items, components.MenuItem{
			Label:    fmt.Sprintf("%d. %s", i+1, title),
			Detail:   detail,
			Disabled: i > unlocked && i != current,
			Action:   jumpAction(jumper, i),
		})
	}
	return &OutlineScreen{
		course:  course,
		current: current,
		menu:    components.NewMenu(items, current),
	}
}

func jumpAction(j Jumper, lesson int) func() tea.Cmd {
	return func() tea.Cmd {
		return func() tea.Msg {
			if err := j.JumpTo(lesson, 0); err != nil {
				return jumpFailedMsg{err: err}
			}
			return router.PopScreenMsg{}
		}
	}
}

func (s *OutlineScreen) Init() tea.Cmd { return nil }

func (s *OutlineScreen) Title() string { return "Outline" }

func (s *OutlineScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Open lesson"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *OutlineScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case jumpFailedMsg:
		s.errMsg = msg.err.Error()
		return s, nil
	case tea.KeyMsg:
		var cmd tea.Cmd
		s.menu, cmd = s.menu.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *OutlineScreen) View(width, height int) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(layout.Centered(width, theme.Title, s.course.Title))
	b.WriteString("\n\n")
	b.WriteString(s.menu.View())
	if s.errMsg != "" {
		b.WriteString("\n")
		b.WriteString(theme.Incorrect.Render("  " + s.errMsg))
	}
	return b.String()
}
