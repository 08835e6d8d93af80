package summary

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/gamification"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/router"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/screen"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/ui/components"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/ui/layout"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/ui/theme"
)

// Result is what the learner achieved in the finished course.
type Result struct {
	CourseTitle string
	Score       int
	// TimeSpent is in seconds.
	TimeSpent int
}

// StandingMsg carries the learner's gamification summary. It may arrive
// more than once while the completion is being credited.
type StandingMsg struct {
	Summary gamification.Summary
	Err     error
}

// SummaryScreen is shown when a course is completed.
type SummaryScreen struct {
	result   Result
	standing *gamification.Summary
	errMsg   string
}

var _ screen.Screen = (*SummaryScreen)(nil)
var _ screen.KeyHintProvider = (*SummaryScreen)(nil)
var _ screen.StatsProvider = (*SummaryScreen)(nil)

func New(result Result) *SummaryScreen {
	return &SummaryScreen{result: result}
}

func (s *SummaryScreen) Init() tea.Cmd {
	return nil
}

func (s *SummaryScreen) Title() string {
	return "Course Complete"
}

func (s *SummaryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Review course"},
		{Key: "Q", Description: "Quit"},
	}
}

func (s *SummaryScreen) Stats() layout.Stats {
	if s.standing == nil {
		return layout.Stats{}
	}
	return layout.Stats{TotalXP: s.standing.XP.TotalXP, Level: s.standing.XP.Level}
}

func (s *SummaryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case StandingMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		sum := msg.Summary
		s.standing = &sum
		s.errMsg = ""
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "q":
			return s, tea.Quit
		}
	}
	return s, nil
}

func (s *SummaryScreen) View(width, height int) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(layout.Centered(width, theme.Title, "Course complete!"))
	b.WriteString("\n")
	b.WriteString(layout.Centered(width, theme.Subtitle, s.result.CourseTitle))
	b.WriteString("\n\n")

	mins := s.result.TimeSpent / 60
	secs := s.result.TimeSpent % 60
	stats := fmt.Sprintf("Score %d   %s %d:%02d",
		s.result.Score,
		lipgloss.NewStyle().Foreground(theme.Accent).Render("T"),
		mins, secs)
	b.WriteString(layout.Centered(width, theme.Body, stats))
	b.WriteString("\n\n")

	switch {
	case s.errMsg != "":
		b.WriteString(layout.Centered(width, theme.Incorrect, "Could not load XP: "+s.errMsg))
		b.WriteString("\n")
	case s.standing == nil:
		b.WriteString(layout.Centered(width, theme.Hint, "Crediting XP..."))
		b.WriteString("\n")
	default:
		b.WriteString(s.renderStanding(width))
	}

	return b.String()
}

func (s *SummaryScreen) renderStanding(width int) string {
	xp := s.standing.XP
	var b strings.Builder

	b.WriteString(layout.Centered(width, theme.XP, fmt.Sprintf("%d XP  ·  Level %d", xp.TotalXP, xp.Level)))
	b.WriteString("\n")

	inLevel := xp.LevelProgress()
	span := inLevel + xp.XPToNextLevel
	percent := 0
	if span > 0 {
		percent = inLevel * 100 / span
	}
	bar := components.NewProgressBar("Next level", percent, min(40, max(width-30, 10)))
	b.WriteString(layout.Centered(width, lipgloss.NewStyle(), bar.View()))
	b.WriteString("\n\n")

	if len(s.standing.Achievements) > 0 {
		b.WriteString(layout.Centered(width, theme.Subtitle, "Achievements"))
		b.WriteString("\n")
		for _, a := range s.standing.Achievements {
			line := fmt.Sprintf("★ %s  +%d", a.Name, a.Points)
			b.WriteString(layout.Centered(width, theme.Correct, line))
			b.WriteString("\n")
		}
	}
	return b.String()
}
