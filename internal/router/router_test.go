package router

import (
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/screen"
)

// stubScreen is a minimal screen for testing.
type stubScreen struct {
	title   string
	initRan bool
	msgs    int
	closed  bool
}

func (s *stubScreen) Init() tea.Cmd {
	s.initRan = true
	return nil
}
func (s *stubScreen) Update(tea.Msg) (screen.Screen, tea.Cmd) { s.msgs++; return s, nil }
func (s *stubScreen) View(int, int) string                    { return s.title }
func (s *stubScreen) Title() string                           { return s.title }
func (s *stubScreen) Close()                                  { s.closed = true }

type tickMsg struct{}

func TestPush(t *testing.T) {
	s1 := &stubScreen{title: "first"}
	r := New(s1)

	s2 := &stubScreen{title: "second"}
	r.Update(PushScreenMsg{Screen: s2})

	if r.Depth() != 2 {
		t.Errorf("expected depth 2, got %d", r.Depth())
	}
	if r.Active().Title() != "second" {
		t.Errorf("expected active 'second', got %q", r.Active().Title())
	}
	if !s2.initRan {
		t.Error("expected Init() to run on pushed screen")
	}
}

func TestPopClosesScreen(t *testing.T) {
	s1 := &stubScreen{title: "first"}
	r := New(s1)

	s2 := &stubScreen{title: "second"}
	r.Push(s2)
	r.Update(PopScreenMsg{})

	if r.Depth() != 1 {
		t.Errorf("expected depth 1, got %d", r.Depth())
	}
	if r.Active().Title() != "first" {
		t.Errorf("expected active 'first', got %q", r.Active().Title())
	}
	if !s2.closed {
		t.Error("popped screen not closed")
	}
	if s1.closed {
		t.Error("root closed on pop")
	}
}

func TestPopNoopAtBottom(t *testing.T) {
	s1 := &stubScreen{title: "first"}
	r := New(s1)

	r.Pop()

	if r.Depth() != 1 {
		t.Errorf("expected depth 1 after pop at bottom, got %d", r.Depth())
	}
}

func TestRootReceivesBackgroundMessages(t *testing.T) {
	root := &stubScreen{title: "root"}
	r := New(root)
	top := &stubScreen{title: "top"}
	r.Push(top)

	r.Update(tickMsg{})
	if top.msgs != 1 || root.msgs != 1 {
		t.Fatalf("tick: top=%d root=%d, want 1 and 1", top.msgs, root.msgs)
	}

	r.Update(tea.KeyPressMsg{Code: 'x', Text: "x"})
	if top.msgs != 2 || root.msgs != 1 {
		t.Fatalf("key: top=%d root=%d, want keys only on top", top.msgs, root.msgs)
	}
}

func TestCloseReleasesStack(t *testing.T) {
	s1 := &stubScreen{title: "first"}
	s2 := &stubScreen{title: "second"}
	r := New(s1)
	r.Push(s2)

	r.Close()

	if !s1.closed || !s2.closed {
		t.Errorf("closed = %v, %v", s1.closed, s2.closed)
	}
	if r.Active() != nil {
		t.Error("stack not empty after Close")
	}
}
