package player

import (
	"encoding/json"
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/ui/components"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/ui/layout"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/ui/theme"
)

// urgentSeconds is when the countdown turns red.
const urgentSeconds = 5

func (p *PlayerScreen) View(width, height int) string {
	if p.block == nil {
		return layout.Centered(width, theme.Hint, "\n\nLoading course...")
	}

	var b strings.Builder
	b.WriteString(p.renderInfoLine(width))
	b.WriteString("\n")
	b.WriteString(layout.Divider(width))
	b.WriteString("\n\n")

	title := p.block.Title
	if title == "" {
		title = strings.ToUpper(string(p.block.Type))
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(theme.Text).Render("  " + title))
	b.WriteString("\n\n")

	body := lipgloss.NewStyle().Width(max(width-4, 10)).PaddingLeft(2)
	switch {
	case p.quiz != nil:
		b.WriteString(body.Render(theme.Body.Bold(true).Render(p.quiz.Question)))
		b.WriteString("\n\n")
		b.WriteString(p.renderQuizInput())
	case p.seq != nil:
		b.WriteString(p.renderSequence())
	default:
		b.WriteString(body.Render(theme.Body.Render(describeBody(p.block.Type, p.block.Content))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(p.renderFeedback())
	b.WriteString("\n")

	bar := components.NewProgressBar("Progress", p.snap.Percentage, min(40, max(width-30, 10)))
	b.WriteString("  " + bar.View())
	return b.String()
}

func (p *PlayerScreen) renderInfoLine(width int) string {
	lesson := p.course.LessonAt(p.snap.Position.Lesson)
	lessonTitle := ""
	if lesson != nil {
		lessonTitle = lesson.Title
	}
	left := lipgloss.NewStyle().
		Foreground(theme.Secondary).
		Bold(true).
		Render(fmt.Sprintf("  Lesson %d/%d  %s",
			p.snap.Position.Lesson+1, p.course.LessonCount(), lessonTitle))

	right := lipgloss.NewStyle().Foreground(theme.TextDim).Render(
		fmt.Sprintf("Block %d/%d  %s %d",
			p.snap.Position.Block+1, p.course.BlockCount(p.snap.Position.Lesson),
			lipgloss.NewStyle().Foreground(theme.Success).Render("*"),
			p.snap.Score))
	if p.snap.Remaining >= 0 {
		timer := fmt.Sprintf("  T %d:%02d", p.snap.Remaining/60, p.snap.Remaining%60)
		if p.snap.Remaining <= urgentSeconds {
			right += theme.Urgent.Render(timer)
		} else {
			right += lipgloss.NewStyle().Foreground(theme.Accent).Render(timer)
		}
	}

	line := left
	if pad := width - lipgloss.Width(left) - lipgloss.Width(right) - 4; pad > 0 {
		line += strings.Repeat(" ", pad) + right
	}
	return line
}

func (p *PlayerScreen) renderQuizInput() string {
	if p.typing {
		prompt := "  Your answer: "
		if p.quiz.QuestionType != content.QuestionText {
			prompt = "  Recording reference: "
		}
		return prompt + p.input.View() + "\n"
	}

	a, _ := p.ctl.Answer(p.block.ID)
	checked := make(map[string]bool, len(a.Selected))
	for _, id := range a.Selected {
		checked[id] = true
	}
	c := components.Choices{
		Multiple: p.quiz.QuestionType == content.QuestionMultiple,
		Checked:  checked,
	}
	for _, o := range p.quiz.Options {
		c.Options = append(c.Options, components.Choice{ID: string(o.ID), Text: o.Text})
	}
	return c.View()
}

func (p *PlayerScreen) renderSequence() string {
	var b strings.Builder
	a, _ := p.ctl.Answer(p.block.ID)
	placed := make(map[string]int, len(a.Order))
	for i, id := range a.Order {
		placed[id] = i + 1
	}
	b.WriteString(theme.Hint.Render("  Press the numbers in the right order. Backspace undoes."))
	b.WriteString("\n\n")
	for i, item := range p.seq.Items {
		line := fmt.Sprintf("  %d  %s", i+1, item.Text)
		if n, ok := placed[string(item.ID)]; ok {
			b.WriteString(theme.Selected.Render(fmt.Sprintf("%s  → #%d", line, n)))
		} else {
			b.WriteString(theme.Unselected.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (p *PlayerScreen) renderFeedback() string {
	var lines []string
	if p.result != nil {
		if p.result.Correct {
			msg := "  Correct!"
			if p.result.Points > 0 {
				msg += fmt.Sprintf(" +%d", p.result.Points)
			}
			lines = append(lines, theme.Correct.Render(msg))
		} else {
			lines = append(lines, theme.Incorrect.Render("  Incorrect."))
		}
	}
	if p.hint != nil {
		lines = append(lines, theme.Hint.Render("  Hint: "+p.hint.Text))
	}
	if p.notice != "" {
		lines = append(lines, theme.Subtitle.Render("  "+p.notice))
	}
	if p.errMsg != "" {
		lines = append(lines, theme.Incorrect.Render("  "+p.errMsg))
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// describeBody turns a non-interactive block payload into display text.
// Payloads are author-defined JSON: a plain string, or an object whose
// well-known fields are shown.
func describeBody(t content.BlockType, raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return withMediaTag(t, s)
	}
	var obj map[string]any
	if json.Unmarshal(raw, &obj) == nil {
		var parts []string
		for _, k := range []string{"text", "body", "caption", "url", "src", "file"} {
			if v, ok := obj[k].(string); ok && v != "" {
				parts = append(parts, v)
			}
		}
		if len(parts) > 0 {
			return withMediaTag(t, strings.Join(parts, "\n"))
		}
	}
	return string(raw)
}

func withMediaTag(t content.BlockType, s string) string {
	switch t {
	case content.BlockVideo, content.BlockAudio, content.BlockImage, content.BlockFileUpload:
		return fmt.Sprintf("[%s] %s", t, s)
	}
	return s
}
