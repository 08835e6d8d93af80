package outline

import (
	"errors"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/router"
)

type fakeJumper struct {
	lesson, block int
	calls         int
	err           error
}

func (f *fakeJumper) JumpTo(lesson, block int) error {
	f.calls++
	f.lesson, f.block = lesson, block
	return f.err
}

func testCourse() *content.Course {
	text := func(id string) content.Block { return content.Block{ID: content.ID(id), Type: content.BlockText} }
	return &content.Course{
		ID:    "7",
		Title: "Onboarding",
		Lessons: []content.Lesson{
			{ID: "1", Title: "Welcome", Blocks: []content.Block{text("a")}},
			{ID: "2", Title: "Tools", Blocks: []content.Block{text("b"), text("c")}},
			{ID: "3", Title: "Policies", Blocks: []content.Block{text("d")}},
		},
	}
}

func press(s *OutlineScreen, code rune) tea.Cmd {
	_, cmd := s.Update(tea.KeyPressMsg{Code: code})
	return cmd
}

func TestOutlineJumpsToUnlockedLesson(t *testing.T) {
	j := &fakeJumper{}
	s := New(testCourse(), 0, 1, j)

	press(s, tea.KeyDown)
	cmd := press(s, tea.KeyEnter)
	if cmd == nil {
		t.Fatal("expected a command on Enter")
	}
	if _, ok := cmd().(router.PopScreenMsg); !ok {
		t.Error("expected PopScreenMsg after jump")
	}
	if j.lesson != 1 || j.block != 0 {
		t.Errorf("jumped to (%d,%d), want (1,0)", j.lesson, j.block)
	}
}

func TestOutlineSkipsLockedLessons(t *testing.T) {
	j := &fakeJumper{}
	s := New(testCourse(), 1, 1, j)

	press(s, tea.KeyDown)
	cmd := press(s, tea.KeyEnter)
	if cmd == nil {
		t.Fatal("expected a command on Enter")
	}
	cmd()
	if j.lesson != 1 {
		t.Errorf("selection moved onto a locked lesson: %d", j.lesson)
	}
	if !strings.Contains(s.View(80, 24), "(locked)") {
		t.Error("expected locked marker in view")
	}
}

func TestOutlineShowsJumpError(t *testing.T) {
	j := &fakeJumper{err: errors.New("lesson is locked")}
	s := New(testCourse(), 0, 2, j)

	msg := press(s, tea.KeyEnter)()
	s.Update(msg)

	if !strings.Contains(s.View(80, 24), "lesson is locked") {
		t.Error("expected jump error in view")
	}
}
