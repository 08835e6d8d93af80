package summary

import (
	"errors"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/gamification"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/router"
)

func testResult() Result {
	return Result{CourseTitle: "Security Basics", Score: 30, TimeSpent: 754}
}

func testStanding() gamification.Summary {
	return gamification.Summary{
		XP: gamification.XP{TotalXP: 180, Level: 2, XPToNextLevel: 102},
		Achievements: []gamification.Awarded{
			{Achievement: gamification.Achievement{Code: gamification.FirstCourse, Name: "First Steps", Points: 50}},
		},
	}
}

func TestSummaryScreen_Title(t *testing.T) {
	s := New(testResult())
	if s.Title() != "Course Complete" {
		t.Errorf("Title = %q, want %q", s.Title(), "Course Complete")
	}
}

func TestSummaryScreen_Display(t *testing.T) {
	s := New(testResult())
	view := s.View(80, 24)
	for _, want := range []string{"Security Basics", "Score 30", "12:34", "Crediting XP"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestSummaryScreen_Standing(t *testing.T) {
	s := New(testResult())
	if s.Stats().Level != 0 {
		t.Fatal("stats shown before standing arrived")
	}

	s.Update(StandingMsg{Summary: testStanding()})

	view := s.View(80, 24)
	for _, want := range []string{"180 XP", "Level 2", "First Steps"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if got := s.Stats(); got.TotalXP != 180 || got.Level != 2 {
		t.Errorf("Stats = %+v", got)
	}
}

func TestSummaryScreen_StandingError(t *testing.T) {
	s := New(testResult())
	s.Update(StandingMsg{Err: errors.New("db locked")})
	if !strings.Contains(s.View(80, 24), "db locked") {
		t.Error("expected error in view")
	}
}

func TestSummaryScreen_Navigation_Enter(t *testing.T) {
	s := New(testResult())
	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a command on Enter")
	}
	if _, ok := cmd().(router.PopScreenMsg); !ok {
		t.Error("expected PopScreenMsg on Enter")
	}
}

func TestSummaryScreen_Navigation_Quit(t *testing.T) {
	s := New(testResult())
	_, cmd := s.Update(tea.KeyPressMsg{Code: 'q', Text: "q"})
	if cmd == nil {
		t.Fatal("expected a command on q")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected QuitMsg on q")
	}
}
