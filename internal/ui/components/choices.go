package components

import (
	"fmt"
	"strings"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/ui/theme"
)

// Choice is one selectable answer option.
type Choice struct {
	ID   string
	Text string
}

// Choices renders numbered options. Checked marks the learner's current
// selection; once Reveal is set the correct ids are highlighted.
type Choices struct {
	Options  []Choice
	Multiple bool
	Checked  map[string]bool
	Reveal   bool
	Correct  map[string]bool
}

func (c Choices) View() string {
	var b strings.Builder
	for i, opt := range c.Options {
		mark := "( )"
		if c.Multiple {
			mark = "[ ]"
		}
		if c.Checked[opt.ID] {
			mark = "(•)"
			if c.Multiple {
				mark = "[x]"
			}
		}
		line := fmt.Sprintf("  %d %s %s", i+1, mark, opt.Text)

		switch {
		case c.Reveal && c.Correct[opt.ID]:
			b.WriteString(theme.Correct.Render(line))
		case c.Reveal && c.Checked[opt.ID]:
			b.WriteString(theme.Incorrect.Render(line))
		case c.Checked[opt.ID]:
			b.WriteString(theme.Selected.Render(line))
		default:
			b.WriteString(theme.Unselected.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}
